package engine_test

import (
	"encoding/json"
	"testing"

	testify "github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/assert/helpers"
	"github.com/kode4food/quarry/internal/engine"
	"github.com/kode4food/quarry/internal/metrics"
)

func TestNewMissingDependency(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		deps := env.Dependencies()
		deps.Transport = nil
		_, err := engine.New(env.Config, deps)
		testify.ErrorIs(t, err, engine.ErrMissingDependency)

		deps = env.Dependencies()
		deps.Registry = nil
		_, err = engine.New(env.Config, deps)
		testify.ErrorIs(t, err, engine.ErrMissingDependency)

		deps = env.Dependencies()
		deps.FlowStore = nil
		_, err = engine.New(env.Config, deps)
		testify.ErrorIs(t, err, engine.ErrMissingDependency)
	})
}

func TestNewDefaults(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		deps := env.Dependencies()
		deps.Notifier = nil
		deps.Metrics = nil
		eng, err := engine.New(env.Config, deps)
		testify.NoError(t, err)
		testify.NotNil(t, eng.Metrics())
		testify.Equal(t, env.Registry, eng.Registry())
		testify.NoError(t, eng.Stop())
	})
}

func TestStartStop(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		testify.NoError(t, env.Engine.Start())

		ids, err := env.Engine.ListActiveFlows()
		testify.NoError(t, err)
		testify.Empty(t, ids)
	})
}

func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	return helpers.CounterValue(t, m, name)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	testify.NoError(t, err)
	return data
}
