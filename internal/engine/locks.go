package engine

import (
	"sync"

	"github.com/kode4food/quarry/pkg/api"
)

type (
	// flowLocks serializes transactions per flow, so that at most one
	// handler is ever in flight for a flow within this process
	flowLocks struct {
		locks map[api.FlowID]*flowLock
		mu    sync.Mutex
	}

	flowLock struct {
		sync.Mutex
		refs int
	}
)

func newFlowLocks() *flowLocks {
	return &flowLocks{
		locks: map[api.FlowID]*flowLock{},
	}
}

// lock acquires the flow's lock and returns the function that releases it
func (l *flowLocks) lock(id api.FlowID) func() {
	l.mu.Lock()
	fl, ok := l.locks[id]
	if !ok {
		fl = &flowLock{}
		l.locks[id] = fl
	}
	fl.refs++
	l.mu.Unlock()

	fl.Lock()
	return func() {
		fl.Unlock()
		l.mu.Lock()
		defer l.mu.Unlock()
		if fl.refs--; fl.refs == 0 {
			delete(l.locks, id)
		}
	}
}

func (l *flowLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
