package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
	"github.com/kode4food/quarry/pkg/log"
)

const (
	dropUnknownRequest = "unknown_request"
	dropDuplicate      = "duplicate"
)

// Deliver records one response against its request. When the response
// completes the request, the handler bound to the request's next state runs
// in the same transaction. Duplicate and late responses are dropped without
// error. A response for a flow that does not exist or is already terminal
// returns ErrUnknownFlow
func (e *Engine) Deliver(resp *api.Response) error {
	if err := resp.Validate(); err != nil {
		return err
	}

	var dropped string
	err := e.flowTx(resp.FlowID, func(tx *flowTx) error {
		dropped = ""
		st := tx.Value()
		if !st.Exists() || flowTransitions.IsTerminal(st.Status) {
			return fmt.Errorf("%w: %s", ErrUnknownFlow, resp.FlowID)
		}
		req, ok := st.Requests[resp.RequestID]
		if !ok {
			dropped = dropUnknownRequest
			return nil
		}

		switch req.Track(resp) {
		case api.TrackFragment:
			if err := events.Raise(tx.FlowAggregator,
				api.EventTypeFragmentRecorded,
				api.FragmentRecordedEvent{
					FlowID:     resp.FlowID,
					RequestID:  resp.RequestID,
					ResponseID: resp.ResponseID,
					Payload:    resp.Payload,
				},
			); err != nil {
				return err
			}
		case api.TrackSentinel:
			if err := events.Raise(tx.FlowAggregator,
				api.EventTypeSentinelRecorded,
				api.SentinelRecordedEvent{
					FlowID:     resp.FlowID,
					RequestID:  resp.RequestID,
					ResponseID: resp.ResponseID,
					Status:     *resp.Status,
				},
			); err != nil {
				return err
			}
		default:
			dropped = dropDuplicate
			return nil
		}
		return tx.checkRequest(resp.RequestID)
	})

	if dropped != "" {
		e.metrics.ResponseDropped(dropped)
		slog.Debug("Response dropped",
			log.FlowID(resp.FlowID),
			log.RequestID(resp.RequestID),
			slog.Int64("response_id", int64(resp.ResponseID)),
			slog.String("reason", dropped))
	}
	return err
}

// DeliverBatch delivers each response in order, returning how many were
// accepted. Responses for unknown or terminal flows count as dropped
func (e *Engine) DeliverBatch(resps []*api.Response) (int, error) {
	var accepted int
	for _, resp := range resps {
		if err := e.Deliver(resp); err != nil {
			if isDroppable(err) {
				slog.Debug("Response for unknown flow dropped",
					log.FlowID(resp.FlowID),
					log.Error(err))
				continue
			}
			return accepted, err
		}
		accepted++
	}
	return accepted, nil
}

// forceComplete closes a request with a synthesized sentinel, whatever it
// has received so far. It is how timeouts and transport failures surface to
// the handler, and it overrides any sentinel already recorded for a request
// that is still waiting on fragments
func (e *Engine) forceComplete(
	flowID api.FlowID, reqID api.RequestID, status api.Status,
) (bool, error) {
	var forced bool
	err := e.flowTx(flowID, func(tx *flowTx) error {
		forced = false
		st := tx.Value()
		if !st.Exists() || flowTransitions.IsTerminal(st.Status) {
			return nil
		}
		req, ok := st.Requests[reqID]
		if !ok || req.Status != api.RequestOutstanding {
			return nil
		}
		if err := events.Raise(tx.FlowAggregator,
			api.EventTypeSentinelRecorded,
			api.SentinelRecordedEvent{
				FlowID:     flowID,
				RequestID:  reqID,
				ResponseID: api.ResponseID(len(req.Fragments)),
				Status:     status,
				Forced:     true,
			},
		); err != nil {
			return err
		}
		child := req.ChildFlowID
		tx.OnSuccess(func(*api.FlowState) {
			forced = true
			if child != "" {
				tx.enqueueWork(&workItem{
					kind:   workCancelChild,
					flowID: child,
					reason: status.Message,
				})
			}
		})
		return tx.checkRequest(reqID)
	})
	return forced, err
}

func (tx *flowTx) checkRequest(reqID api.RequestID) error {
	req := tx.Value().Requests[reqID]
	if !req.Ready() {
		return nil
	}
	return tx.completeRequest(req)
}

func isDroppable(err error) bool {
	return errors.Is(err, ErrUnknownFlow) ||
		errors.Is(err, api.ErrFlowIDRequired) ||
		errors.Is(err, api.ErrInvalidRequestID) ||
		errors.Is(err, api.ErrInvalidResponseID)
}
