package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

// Start begins processing queued work and resumes any flows that were
// running when the engine last stopped
func (e *Engine) Start() error {
	slog.Info("Engine starting")

	e.indexQueue.Start()
	e.workQueue.Start()
	go e.scheduler.Run(e.ctx)

	if err := e.RecoverFlows(); err != nil {
		e.workQueue.Cancel()
		e.indexQueue.Cancel()
		return fmt.Errorf("%w: %w", ErrRecoverFlows, err)
	}
	return nil
}

// Now returns the current wall time from the engine's configured clock
func (e *Engine) Now() time.Time {
	return e.clock()
}

func (e *Engine) enqueueWork(w *workItem) {
	if err := e.workQueue.Enqueue(w); err != nil {
		slog.Warn("Work not queued",
			log.FlowID(w.flowID),
			log.RequestID(w.requestID),
			slog.String("kind", w.kind.String()),
			log.Error(err))
	}
}

func (e *Engine) enqueueIndexEvent(typ api.EventType, data any) {
	if err := e.indexQueue.Enqueue(indexEvent{typ: typ, data: data}); err != nil {
		slog.Warn("Index event not queued",
			slog.String("event_type", string(typ)),
			log.Error(err))
	}
}
