// Package flows assembles the registry of flow types the server runs
package flows

import (
	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/internal/flows/interrogate"
)

// All returns every built-in flow definition
func All() []flow.Flow {
	return interrogate.Flows()
}

// NewRegistry creates a registry holding the built-in flows along with any
// extra definitions
func NewRegistry(extra ...flow.Flow) (*flow.Registry, error) {
	return flow.NewRegistry(append(All(), extra...)...)
}
