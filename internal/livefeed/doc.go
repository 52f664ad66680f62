// Package livefeed maintains the backend's push channel.
//
// One WebSocket connection per identity delivers three message shapes: a
// session reset event, frame updates whose count is the current occupancy,
// and bare cumulative totals. Messages are applied in transport order with
// no sequence numbers or de-duplication.
//
// The connection is supervised: any unexpected close waits a flat reconnect
// delay (3 seconds by default, as the dashboard did) and reopens
// unconditionally. An optional retry bound turns the retry-forever loop into
// a circuit breaker for deployments that want one.
package livefeed
