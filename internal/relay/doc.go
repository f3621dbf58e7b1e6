// Package relay implements the websocket session layer: connection
// registry, per-connection frame routing, resident thread state and the
// bridge between a running task and the client frames it produces and
// consumes.
//
// Each connection authenticates with its first frame, then operates on
// threads. A thread.message starts a task whose output streams back as
// stream.* frames; when the task needs a human decision it suspends on a
// pending action until the client answers with action.confirm or
// action.cancel, or the thread is closed.
package relay
