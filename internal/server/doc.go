// Package server exposes the engine over HTTP: flow management, agent
// message intake, client enrollment, and a WebSocket stream of flow
// notifications
package server
