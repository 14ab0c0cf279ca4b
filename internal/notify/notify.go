package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

type (
	// Notifier is told once when a flow reaches a terminal status
	Notifier interface {
		OnFlowTerminal(ctx context.Context, n *api.Notification) error
	}

	// Hub fans notifications out to any number of subscribers
	Hub struct {
		topic  source
		prod   topic.Producer[*api.Notification]
		mu     sync.RWMutex
		closed bool
	}

	// Logger writes notifications to the structured log
	Logger struct{}

	// Multi delivers each notification to every notifier it holds
	Multi []Notifier

	source interface {
		NewConsumer() topic.Consumer[*api.Notification]
	}
)

var ErrHubClosed = errors.New("notification hub closed")

// NewHub creates an open notification hub
func NewHub() *Hub {
	t := caravan.NewTopic[*api.Notification]()
	return &Hub{
		topic: t,
		prod:  t.NewProducer(),
	}
}

// OnFlowTerminal publishes the notification to current subscribers
func (h *Hub) OnFlowTerminal(_ context.Context, n *api.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	h.prod.Send() <- n
	return nil
}

// Subscribe returns a consumer receiving notifications published after
// the call. The caller must close it
func (h *Hub) Subscribe() topic.Consumer[*api.Notification] {
	return h.topic.NewConsumer()
}

// Close stops the hub from accepting notifications
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.prod.Close()
	}
}

// OnFlowTerminal logs the notification
func (Logger) OnFlowTerminal(ctx context.Context, n *api.Notification) error {
	level := slog.LevelInfo
	if n.Status != api.FlowSucceeded {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "Flow notification",
		log.FlowID(n.FlowID),
		log.ClientID(n.ClientID),
		log.FlowType(n.Type),
		log.Status(n.Status),
		slog.String("kind", string(n.Kind)),
		slog.String("creator", n.Creator),
		slog.String("message", n.Message))
	return nil
}

// OnFlowTerminal delivers to every notifier, joining their errors
func (m Multi) OnFlowTerminal(ctx context.Context, n *api.Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.OnFlowTerminal(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
