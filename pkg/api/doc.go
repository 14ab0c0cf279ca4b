// Package api defines the durable flow model and the wire types exchanged
// with agents and API clients
//
// Flow state is immutable: every setter returns a modified copy, and the
// event appliers in package events are the only code that builds new states
package api
