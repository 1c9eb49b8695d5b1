// Package broadcast implements the real-time fan-out of poll updates to WebSocket observers.
//
// The Registry maps polls to subscribed observers and owns the global connected set.
// The Broadcaster delivers snapshot frames to every observer of a poll, evicting
// observers whose delivery fails. Per-connection write goroutines keep delivery
// non-blocking and handle slow clients gracefully.
package broadcast
