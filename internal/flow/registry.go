package flow

import (
	"fmt"
	"slices"
	"sync"

	"github.com/kode4food/quarry/pkg/api"
)

// Registry holds the flow types the engine can run. It is built at process
// start and injected into the engine
type Registry struct {
	flows map[api.FlowType]Flow
	mu    sync.RWMutex
}

// NewRegistry creates a registry containing the provided flows
func NewRegistry(flows ...Flow) (*Registry, error) {
	r := &Registry{flows: map[api.FlowType]Flow{}}
	for _, f := range flows {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and adds a flow definition
func (r *Registry) Register(f Flow) error {
	if err := f.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	typ := f.FlowType()
	if _, ok := r.flows[typ]; ok {
		return fmt.Errorf("%w: %s", ErrFlowTypeExists, typ)
	}
	r.flows[typ] = f
	return nil
}

// Get returns the definition registered for the flow type
func (r *Registry) Get(typ api.FlowType) (Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[typ]
	return f, ok
}

// Types returns the registered flow types in sorted order
func (r *Registry) Types() []api.FlowType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]api.FlowType, 0, len(r.flows))
	for typ := range r.flows {
		res = append(res, typ)
	}
	slices.Sort(res)
	return res
}
