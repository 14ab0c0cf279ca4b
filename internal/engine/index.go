package engine

import (
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
)

// indexEvent is an active index change queued by a flow transaction. The
// index is a single aggregate, so changes are batched into one commit
type indexEvent struct {
	data any
	typ  api.EventType
}

func (e *Engine) handleIndexEvents(batch []indexEvent) error {
	_, err := e.execIndex(func(_ *api.IndexState, ag *IndexAggregator) error {
		for _, ev := range batch {
			if err := events.Raise(ag, ev.typ, ev.data); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}
