// Package engine drives flow instances. Every response enters through
// Deliver, which records it against its request and, once the request is
// complete, runs the handler bound to the request's next state. Handler
// results and newly issued requests are committed in a single transaction,
// and outbound work is only dispatched once that commit has succeeded
package engine
