// Package executor defines the AgentExecutor contract supplied by the
// library user, plus RequestContext. It is grounded on the teacher's
// server/a2a/handler.go ScenarioBasedA2AHandler, generalized from MCP
// tool-call scenarios to the Execute/Cancel event-producing contract.
package executor

import (
	"context"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/queue"
)

// RequestContext is everything an AgentExecutor needs to act on one
// message/send or message/stream call.
type RequestContext struct {
	// Message is the incoming user message that triggered this call.
	Message a2a.Message
	// Task is the current task snapshot, or nil for a brand-new task.
	Task *a2a.Task
	// TaskID and ContextID are always populated, even for a new task
	// (the handler mints them before invoking the executor).
	TaskID    string
	ContextID string
	// Metadata carries opaque call-scoped data (authorization, tracing)
	// threaded through from the JSON-RPC request.
	Metadata map[string]any
}

// AgentExecutor is supplied by the library user to produce the actual
// agent behavior behind the protocol.
type AgentExecutor interface {
	// Execute produces events onto queue for the given request. It must
	// eventually either close the queue itself (q.Close) or emit a
	// terminal status event or Message; returning from Execute does not
	// by itself close the queue. A returned error is turned into a
	// terminal failed status event whose message carries the error
	// text, so message/send answers with that failed Task rather than
	// with a JSON-RPC error.
	Execute(ctx context.Context, reqCtx RequestContext, q *queue.EventQueue) error

	// Cancel asynchronously requests cancellation of a running task. It
	// should result in a canceled terminal status event being enqueued,
	// but may return before that event is observed.
	Cancel(ctx context.Context, reqCtx RequestContext, q *queue.EventQueue) error
}
