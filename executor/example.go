package executor

import (
	"context"
	"strings"
	"time"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/queue"
	"github.com/google/uuid"
)

// ScenarioExecutor is a demo AgentExecutor that picks its behavior from
// the incoming message text, the way the teacher's
// ScenarioBasedA2AHandler dispatched MCP tool calls by name. It exists
// for the example server and for tests exercising the full request
// pipeline end to end; it is not meant to be production behavior.
type ScenarioExecutor struct{}

// Execute implements AgentExecutor.
func (ScenarioExecutor) Execute(ctx context.Context, req RequestContext, q *queue.EventQueue) error {
	switch {
	case strings.Contains(strings.ToLower(req.Message.Text()), "stream"):
		return streamScenario(req, q)
	default:
		return echoScenario(req, q)
	}
}

// Cancel implements AgentExecutor. The demo executor does no background
// work of its own, so canceling just closes out the task.
func (ScenarioExecutor) Cancel(ctx context.Context, req RequestContext, q *queue.EventQueue) error {
	q.Enqueue(a2a.TaskStatusUpdateEvent{
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateCanceled},
		Final:     true,
	})
	return nil
}

// echoScenario answers with a single terminal agent Message, exercising
// the message/send one-shot path (no Task is ever created).
func echoScenario(req RequestContext, q *queue.EventQueue) error {
	reply := a2a.Message{
		Role:      a2a.RoleAgent,
		MessageID: uuid.NewString(),
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Parts:     []a2a.Part{a2a.NewTextPart("pong")},
	}
	q.Enqueue(reply)
	return nil
}

// streamScenario emits a Task followed by a working status, a
// three-chunk artifact ("Hel" + "lo" appended, then a lastChunk marker),
// and a final completed status — the canonical streaming-with-artifacts
// walkthrough.
func streamScenario(req RequestContext, q *queue.EventQueue) error {
	now := time.Now().UTC()
	task := a2a.Task{
		ID:        req.TaskID,
		ContextID: req.ContextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: &now},
	}
	q.Enqueue(task)

	q.Enqueue(a2a.TaskStatusUpdateEvent{
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	})

	q.Enqueue(a2a.TaskArtifactUpdateEvent{
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Artifact:  a2a.Artifact{ArtifactID: "a", Parts: []a2a.Part{a2a.NewTextPart("Hel")}},
	})
	q.Enqueue(a2a.TaskArtifactUpdateEvent{
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Artifact:  a2a.Artifact{ArtifactID: "a", Parts: []a2a.Part{a2a.NewTextPart("lo")}},
		Append:    true,
	})
	q.Enqueue(a2a.TaskArtifactUpdateEvent{
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Artifact:  a2a.Artifact{ArtifactID: "a", Parts: []a2a.Part{}},
		Append:    true,
		LastChunk: true,
	})

	q.Enqueue(a2a.TaskStatusUpdateEvent{
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
		Final:     true,
	})
	return nil
}
