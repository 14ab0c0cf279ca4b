package flow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kode4food/quarry/pkg/api"
)

type (
	// Context is handed to every handler invocation. Calls made through it
	// return immediately; the engine dispatches the accumulated requests
	// only after the handler's results have been committed
	Context struct {
		info     Info
		now      time.Time
		flow     Flow
		types    TypeLookup
		state    api.StateID
		nextID   api.RequestID
		requests []*Request
		replies  []json.RawMessage
		logs     []string
		counters []string
		err      error
	}

	// Info describes the flow instance a handler runs for
	Info struct {
		Args     json.RawMessage
		FlowID   api.FlowID
		ClientID api.ClientID
		Type     api.FlowType
		Creator  string
	}

	// Request is one outbound call accumulated by a handler
	Request struct {
		Args      json.RawMessage
		Kind      api.RequestKind
		Action    api.ActionName
		FlowType  api.FlowType
		NextState api.StateID
		ID        api.RequestID
		Timeout   time.Duration
	}

	// CallOption adjusts a request as it is issued
	CallOption func(*Request)

	// TypeLookup reports whether a flow type can be started as a child
	TypeLookup interface {
		Get(api.FlowType) (Flow, bool)
	}
)

// NewContext creates a handler context. nextID is the ID the first request
// issued through the context will receive
func NewContext(
	info Info, fl Flow, types TypeLookup, state api.StateID,
	nextID api.RequestID, now time.Time,
) *Context {
	return &Context{
		info:   info,
		flow:   fl,
		types:  types,
		state:  state,
		nextID: nextID,
		now:    now,
	}
}

// WithTimeout overrides the engine's default request deadline
func WithTimeout(d time.Duration) CallOption {
	return func(r *Request) {
		r.Timeout = d
	}
}

// CallClient issues an action to the flow's client. The response will be
// handed to the next state's handler once its status arrives
func (c *Context) CallClient(
	action api.ActionName, args any, next api.StateID, opts ...CallOption,
) api.RequestID {
	return c.issue(&Request{
		Kind:      api.RequestAction,
		Action:    action,
		NextState: next,
	}, args, opts)
}

// CallFlow starts a child flow. Its published results arrive as the
// request's responses and its terminal status as the request's status
func (c *Context) CallFlow(
	typ api.FlowType, args any, next api.StateID, opts ...CallOption,
) api.RequestID {
	if _, ok := c.types.Get(typ); !ok {
		c.fail(fmt.Errorf("%w: %s", ErrUnknownFlowType, typ))
		return 0
	}
	return c.issue(&Request{
		Kind:      api.RequestChildFlow,
		FlowType:  typ,
		NextState: next,
	}, args, opts)
}

// SendReply publishes a result of the flow
func (c *Context) SendReply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.fail(fmt.Errorf("%w: %w", ErrEncodeArgs, err))
		return
	}
	c.replies = append(c.replies, data)
}

// Log records a message in the flow's log
func (c *Context) Log(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

// Inc increments the named flow counter once the handler commits
func (c *Context) Inc(counter string) {
	c.counters = append(c.counters, counter)
}

// DecodeArgs decodes the flow's start arguments into v
func (c *Context) DecodeArgs(v any) error {
	if len(c.info.Args) == 0 {
		return nil
	}
	return json.Unmarshal(c.info.Args, v)
}

// FlowID returns the ID of the running flow
func (c *Context) FlowID() api.FlowID {
	return c.info.FlowID
}

// ClientID returns the client the flow targets
func (c *Context) ClientID() api.ClientID {
	return c.info.ClientID
}

// Type returns the running flow's type
func (c *Context) Type() api.FlowType {
	return c.info.Type
}

// Creator returns the user that started the flow
func (c *Context) Creator() string {
	return c.info.Creator
}

// State returns the state whose handler is running
func (c *Context) State() api.StateID {
	return c.state
}

// Now returns the engine's time at the start of the invocation
func (c *Context) Now() time.Time {
	return c.now
}

// Requests returns the requests issued so far, in ID order
func (c *Context) Requests() []*Request {
	return c.requests
}

// Replies returns the results published so far
func (c *Context) Replies() []json.RawMessage {
	return c.replies
}

// Logs returns the log messages recorded so far
func (c *Context) Logs() []string {
	return c.logs
}

// Counters returns the counters incremented so far
func (c *Context) Counters() []string {
	return c.counters
}

// Err returns the first error recorded by a call through the context.
// A handler that ignores it still fails when it returns
func (c *Context) Err() error {
	return c.err
}

func (c *Context) issue(
	req *Request, args any, opts []CallOption,
) api.RequestID {
	if !c.flow.HasState(req.NextState) {
		c.fail(fmt.Errorf("%w: %s", ErrUnknownState, req.NextState))
		return 0
	}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			c.fail(fmt.Errorf("%w: %w", ErrEncodeArgs, err))
			return 0
		}
		req.Args = data
	}
	for _, opt := range opts {
		opt(req)
	}
	req.ID = c.nextID
	c.nextID++
	c.requests = append(c.requests, req)
	return req.ID
}

func (c *Context) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}
