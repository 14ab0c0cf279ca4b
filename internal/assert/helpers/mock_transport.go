package helpers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/quarry/pkg/api"
)

// MockTransport records dispatched actions in place of an agent endpoint
type MockTransport struct {
	errors     map[api.ActionName]error
	dispatched []*api.ActionRequest
	waiters    map[api.ActionName]chan struct{}
	mu         sync.Mutex
}

// NewMockTransport creates a transport that accepts every action unless an
// error has been configured for it
func NewMockTransport() *MockTransport {
	return &MockTransport{
		errors:  map[api.ActionName]error{},
		waiters: map[api.ActionName]chan struct{}{},
	}
}

// Dispatch records the action and returns the configured error, if any
func (m *MockTransport) Dispatch(
	_ context.Context, req *api.ActionRequest,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dispatched = append(m.dispatched, req)
	if ch, ok := m.waiters[req.Action]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return m.errors[req.Action]
}

// SetError configures the transport to fail dispatches of an action
func (m *MockTransport) SetError(action api.ActionName, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[action] = err
}

// Dispatched returns every action request seen so far, in dispatch order
func (m *MockTransport) Dispatched() []*api.ActionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.dispatched)
}

// DispatchedFor returns the action requests sent on behalf of a flow
func (m *MockTransport) DispatchedFor(flowID api.FlowID) []*api.ActionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*api.ActionRequest
	for _, req := range m.dispatched {
		if req.FlowID == flowID {
			res = append(res, req)
		}
	}
	return res
}

// Count returns how many times an action was dispatched
func (m *MockTransport) Count(action api.ActionName) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(action)
}

// WaitForDispatch blocks until an action is dispatched or the timeout
// expires
func (m *MockTransport) WaitForDispatch(
	action api.ActionName, timeout time.Duration,
) bool {
	m.mu.Lock()
	if m.countLocked(action) > 0 {
		m.mu.Unlock()
		return true
	}
	ch, ok := m.waiters[action]
	if !ok {
		ch = make(chan struct{}, 1)
		m.waiters[action] = ch
	}
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return m.Count(action) > 0
	}
}

func (m *MockTransport) countLocked(action api.ActionName) int {
	var res int
	for _, req := range m.dispatched {
		if req.Action == action {
			res++
		}
	}
	return res
}
