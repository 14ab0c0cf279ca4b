// Package flow defines how flow types are declared and what a handler may
// do while it runs. A Definition binds every state of a flow type to a typed
// handler; a Context collects the requests, replies and log messages the
// handler produces so the engine can commit them atomically
package flow
