package engine

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

const timeoutTask = "timeout"

func (e *Engine) scheduleTimeout(
	flowID api.FlowID, reqID api.RequestID, at time.Time,
) {
	if at.IsZero() {
		return
	}
	e.scheduler.Schedule(e.ctx, timeoutKey(flowID, reqID), at,
		func(time.Time) error {
			e.enqueueWork(&workItem{
				kind:      workTimeout,
				flowID:    flowID,
				requestID: reqID,
			})
			return nil
		},
	)
}

func (e *Engine) expireRequest(flowID api.FlowID, reqID api.RequestID) error {
	forced, err := e.forceComplete(flowID, reqID, api.Status{
		Success: false,
		Message: api.TimeoutMessage,
	})
	if forced {
		e.metrics.RequestTimedOut()
		slog.Info("Request timed out",
			log.FlowID(flowID),
			log.RequestID(reqID))
	}
	return err
}

func timeoutKey(flowID api.FlowID, reqID api.RequestID) []string {
	return []string{
		timeoutTask, string(flowID), strconv.FormatInt(int64(reqID), 10),
	}
}

func timeoutPrefix(flowID api.FlowID) []string {
	return []string{timeoutTask, string(flowID)}
}
