// Package websocket pushes adjustment session snapshots to browsers.
//
// Hub is an actor: one goroutine owns the per-session client map and every
// caller talks to it through a command channel. Each connection gets a
// clientWriter goroutine that is its only writer, with write deadlines and a
// ping keep-alive. A client whose send buffer is full is evicted rather than
// allowed to stall the hub. Hub implements domain.Publisher, so sessions push
// to it directly while holding their own lock; PublishSnapshot never blocks.
package websocket
