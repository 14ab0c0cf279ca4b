package helpers

import (
	"context"
	"slices"
	"sync"

	"github.com/kode4food/quarry/pkg/api"
)

// MockNotifier records terminal notifications
type MockNotifier struct {
	notes []*api.Notification
	mu    sync.Mutex
}

// NewMockNotifier creates an empty notification recorder
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// OnFlowTerminal records the notification
func (m *MockNotifier) OnFlowTerminal(
	_ context.Context, n *api.Notification,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
	return nil
}

// Notifications returns every notification recorded so far
func (m *MockNotifier) Notifications() []*api.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.notes)
}

// For returns the notifications recorded for a flow
func (m *MockNotifier) For(flowID api.FlowID) []*api.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*api.Notification
	for _, n := range m.notes {
		if n.FlowID == flowID {
			res = append(res, n)
		}
	}
	return res
}
