package engine

import (
	"context"
	"errors"
	"time"

	"github.com/kode4food/timebox"

	"github.com/kode4food/quarry/internal/config"
	"github.com/kode4food/quarry/internal/engine/queue"
	"github.com/kode4food/quarry/internal/engine/scheduler"
	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/internal/metrics"
	"github.com/kode4food/quarry/internal/notify"
	"github.com/kode4food/quarry/internal/transport"
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
)

type (
	// Engine is the flow execution engine
	Engine struct {
		ctx        context.Context
		cancel     context.CancelFunc
		config     *config.Config
		flowExec   *FlowExecutor
		indexExec  *IndexExecutor
		registry   *flow.Registry
		transport  transport.Transport
		notifier   notify.Notifier
		publishers []Publisher
		metrics    *metrics.Metrics
		scheduler  *scheduler.Scheduler
		clock      scheduler.Clock
		indexQueue *queue.Queue[indexEvent]
		workQueue  *queue.Queue[*workItem]
		locks      *flowLocks
	}

	// Dependencies are the collaborators an engine is built from
	Dependencies struct {
		FlowStore        *timebox.Store
		IndexStore       *timebox.Store
		Registry         *flow.Registry
		Transport        transport.Transport
		Notifier         notify.Notifier
		Publishers       []Publisher
		Metrics          *metrics.Metrics
		Clock            scheduler.Clock
		TimerConstructor scheduler.TimerConstructor
	}

	// Publisher receives every flow once it is terminal. Publishers may be
	// called more than once for the same flow and must be idempotent
	Publisher interface {
		Publish(context.Context, *api.FlowState) error
	}

	// FlowExecutor manages flow state persistence and event sourcing
	FlowExecutor = timebox.Executor[*api.FlowState]

	// FlowAggregator aggregates flow state from events
	FlowAggregator = timebox.Aggregator[*api.FlowState]

	// IndexExecutor manages the active flow index
	IndexExecutor = timebox.Executor[*api.IndexState]

	// IndexAggregator aggregates the active flow index from events
	IndexAggregator = timebox.Aggregator[*api.IndexState]
)

const (
	snapshotTimeout = 5 * time.Second
	indexBatchSize  = 64
)

var (
	ErrMissingDependency = errors.New("missing engine dependency")
	ErrUnknownFlow       = errors.New("unknown or terminal flow")
	ErrFlowNotFound      = errors.New("flow not found")
	ErrFlowExists        = errors.New("flow exists")
	ErrFlowTerminal      = errors.New("flow is terminal")
	ErrUnknownFlowType   = errors.New("unknown flow type")
	ErrInvalidFlowID     = errors.New("invalid flow ID")
	ErrRecoverFlows      = errors.New("failed to recover flows")
)

// New creates an engine from its configuration and dependencies
func New(cfg *config.Config, deps Dependencies) (*Engine, error) {
	switch {
	case deps.FlowStore == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("flow store"))
	case deps.IndexStore == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("index store"))
	case deps.Registry == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("registry"))
	case deps.Transport == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("transport"))
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	makeTimer := deps.TimerConstructor
	if makeTimer == nil {
		makeTimer = scheduler.NewTimer
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Logger{}
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		ctx:    ctx,
		cancel: cancel,
		config: cfg,
		flowExec: timebox.NewExecutor(
			deps.FlowStore, events.NewFlowState, events.FlowAppliers,
		),
		indexExec: timebox.NewExecutor(
			deps.IndexStore, events.NewIndexState, events.IndexAppliers,
		),
		registry:   deps.Registry,
		transport:  deps.Transport,
		notifier:   notifier,
		publishers: deps.Publishers,
		metrics:    m,
		scheduler:  scheduler.New(clock, makeTimer),
		clock:      clock,
		locks:      newFlowLocks(),
	}
	e.indexQueue = queue.New("index", e.handleIndexEvents, queue.Config{
		Workers:    1,
		BatchSize:  indexBatchSize,
		MaxRetries: queue.DefaultMaxRetries,
		RetryDelay: queue.DefaultRetryDelay,
	})
	e.workQueue = queue.New("work", e.handleWork, queue.Config{
		Workers:   cfg.DispatchWorkers,
		BatchSize: 1,
	})
	return e, nil
}

// Metrics returns the engine's instruments
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Registry returns the flow types the engine can run
func (e *Engine) Registry() *flow.Registry {
	return e.registry
}
