package engine

import (
	"context"
	"log/slog"

	"github.com/kode4food/quarry/pkg/events"
	"github.com/kode4food/quarry/pkg/log"
)

// Stop drains queued work and shuts the engine down. Flows still running
// are resumed by the next engine to Start against the same stores
func (e *Engine) Stop() error {
	e.workQueue.Flush()
	e.indexQueue.Flush()
	e.cancel()
	e.saveIndexSnapshot()
	slog.Info("Engine stopped")
	return nil
}

func (e *Engine) saveIndexSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	if err := e.indexExec.SaveSnapshot(ctx, events.IndexKey); err != nil {
		slog.Error("Failed to save index snapshot", log.Error(err))
		return
	}
	slog.Info("Index snapshot saved")
}
