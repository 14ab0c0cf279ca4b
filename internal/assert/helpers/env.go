package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kode4food/timebox"
	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/config"
	"github.com/kode4food/quarry/internal/engine"
	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/internal/metrics"
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
)

// TestEngineEnv holds all the components needed for engine testing
type TestEngineEnv struct {
	Engine     *engine.Engine
	Redis      *miniredis.Miniredis
	Transport  *MockTransport
	Notifier   *MockNotifier
	Registry   *flow.Registry
	Metrics    *metrics.Metrics
	Config     *config.Config
	Publishers []engine.Publisher
	Cleanup    func()
	flowStore  *timebox.Store
	indexStore *timebox.Store
}

const (
	defaultStoreTimeout = 5 * time.Second

	// WaitTimeout bounds how long tests wait for asynchronous progress
	WaitTimeout = 5 * time.Second
)

// NewTestConfig creates a default configuration with debug logging enabled
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.APIHost = "localhost"
	cfg.RequestTimeout = time.Minute
	cfg.DispatchTimeout = time.Second
	cfg.DispatchWorkers = 4
	cfg.FlowCacheSize = 100
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// NewTestEngine creates a test engine backed by an in-memory Redis, a mock
// transport and a mock notifier. The test flows are registered unless other
// flows are provided
func NewTestEngine(t *testing.T, flows ...flow.Flow) *TestEngineEnv {
	t.Helper()

	server, err := miniredis.Run()
	assert.NoError(t, err)

	tb, err := timebox.NewTimebox(timebox.Config{
		MaxRetries: timebox.DefaultMaxRetries,
		CacheSize:  100,
		Workers:    true,
	})
	assert.NoError(t, err)

	cfg := NewTestConfig()

	flowConfig := cfg.FlowStore
	flowConfig.Addr = server.Addr()
	flowConfig.Prefix = "test-flow"
	flowStore, err := tb.NewStore(flowConfig)
	assert.NoError(t, err)

	indexConfig := cfg.IndexStore
	indexConfig.Addr = server.Addr()
	indexConfig.Prefix = "test-index"
	indexStore, err := tb.NewStore(indexConfig)
	assert.NoError(t, err)

	if len(flows) == 0 {
		flows = TestFlows()
	}
	reg, err := flow.NewRegistry(flows...)
	assert.NoError(t, err)

	env := &TestEngineEnv{
		Redis:      server,
		Transport:  NewMockTransport(),
		Notifier:   NewMockNotifier(),
		Registry:   reg,
		Metrics:    metrics.New(),
		Config:     cfg,
		flowStore:  flowStore,
		indexStore: indexStore,
	}
	env.Engine = env.NewEngineInstance()
	env.Cleanup = func() {
		_ = env.Engine.Stop()
		_ = tb.Close()
		server.Close()
	}
	return env
}

// NewEngineInstance creates a new engine sharing the environment's stores
// and mocks. Used to simulate a process restart
func (e *TestEngineEnv) NewEngineInstance() *engine.Engine {
	eng, err := engine.New(e.Config, e.Dependencies())
	if err != nil {
		panic(err)
	}
	return eng
}

// Dependencies returns the engine dependencies of the environment
func (e *TestEngineEnv) Dependencies() engine.Dependencies {
	return engine.Dependencies{
		FlowStore:  e.flowStore,
		IndexStore: e.indexStore,
		Registry:   e.Registry,
		Transport:  e.Transport,
		Notifier:   e.Notifier,
		Publishers: e.Publishers,
		Metrics:    e.Metrics,
	}
}

// AppendFlowEvents appends flow events directly to the flow store
func (e *TestEngineEnv) AppendFlowEvents(
	flowID api.FlowID, evs ...*timebox.Event,
) error {
	ctx, cancel := context.WithTimeout(
		context.Background(), defaultStoreTimeout,
	)
	defer cancel()

	aggregateID := events.FlowKey(flowID)
	stored, err := e.flowStore.GetEvents(ctx, aggregateID, 0)
	if err != nil {
		return err
	}
	seq := int64(len(stored))

	for i, ev := range evs {
		ev.AggregateID = aggregateID
		ev.Sequence = seq + int64(i)
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
	}

	err = e.flowStore.AppendEvents(ctx, aggregateID, seq, evs)
	if err == nil {
		return nil
	}

	conflict := new(timebox.VersionConflictError)
	if !errors.As(err, &conflict) {
		return err
	}

	seq = conflict.ActualSequence
	for i, ev := range evs {
		ev.Sequence = seq + int64(i)
	}
	return e.flowStore.AppendEvents(ctx, aggregateID, seq, evs)
}

// FlowEvent builds a raw flow event for AppendFlowEvents
func FlowEvent(t *testing.T, typ api.EventType, data any) *timebox.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	assert.NoError(t, err)
	return &timebox.Event{
		Type: timebox.EventType(typ),
		Data: raw,
	}
}

// WithTestEnv creates a test engine environment, executes the provided
// function with it, and ensures cleanup happens automatically
func WithTestEnv(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	testEnv := NewTestEngine(t)
	defer testEnv.Cleanup()
	fn(testEnv)
}

// WithStartedEnv creates a test engine environment, starts its engine, and
// executes the provided function with it
func WithStartedEnv(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		assert.NoError(t, env.Engine.Start())
		fn(env)
	})
}

// WithEngine creates a test engine, executes the provided function with it,
// and ensures cleanup happens automatically
func WithEngine(t *testing.T, fn func(*engine.Engine)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		fn(env.Engine)
	})
}

// WithStartedEngine creates a test engine, starts it, executes the provided
// function with the engine, and ensures cleanup happens automatically
func WithStartedEngine(t *testing.T, fn func(*engine.Engine)) {
	t.Helper()
	WithStartedEnv(t, func(env *TestEngineEnv) {
		fn(env.Engine)
	})
}

// WithFlowsEnv creates a started test environment that runs only the given
// flow definitions
func WithFlowsEnv(
	t *testing.T, flows []flow.Flow, fn func(*TestEngineEnv),
) {
	t.Helper()
	testEnv := NewTestEngine(t, flows...)
	defer testEnv.Cleanup()
	assert.NoError(t, testEnv.Engine.Start())
	fn(testEnv)
}
