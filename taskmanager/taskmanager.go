// Package taskmanager applies Events to a Task in place, enforcing the
// state machine defined in a2a.TaskState, and folds artifact chunks per
// the append/lastChunk rules. It is grounded on the state-transition
// and artifact-merge logic in the teacher's
// server/a2a/capability.go:applyUpdateToTask, generalized to the
// modern tagged-union Event type and the full terminal-state set
// (including rejected, which the teacher's isTerminalState omits).
package taskmanager

import (
	"fmt"
	"time"

	"github.com/gate4ai/a2a"
)

// Outcome tells the caller (ResultAggregator) what just happened so it
// can decide whether to keep reading the queue.
type Outcome int

const (
	// OutcomeContinue means the task is still live; keep consuming.
	OutcomeContinue Outcome = iota
	// OutcomeTerminal means the task reached a terminal state.
	OutcomeTerminal
	// OutcomeMessage means a terminal conversational Message arrived;
	// no task was mutated.
	OutcomeMessage
)

// Apply mutates task according to ev and returns the resulting outcome.
// task may be nil when ev is a2a.Task (adopted wholesale), a2a.Message
// (no task exists yet), or a TaskStatusUpdateEvent (a new task is
// started from the event's ids and status); an artifact update with a
// nil task is an error.
//
// Illegal transitions (anything attempted from a terminal state, or a
// move not allowed by a2a.TaskState.CanTransition) return an
// a2a.NewInvalidRequest error; task is left unmodified.
func Apply(task *a2a.Task, ev a2a.Event) (*a2a.Task, Outcome, error) {
	switch e := ev.(type) {
	case a2a.Task:
		adopted := e
		return &adopted, outcomeFor(adopted.Status.State), nil

	case a2a.Message:
		return task, OutcomeMessage, nil

	case a2a.TaskStatusUpdateEvent:
		fresh := task == nil
		if fresh {
			if e.TaskID == "" {
				return nil, OutcomeContinue, fmt.Errorf("taskmanager: status update for unknown task without a task id")
			}
			task = &a2a.Task{ID: e.TaskID, ContextID: e.ContextID}
		}
		if !fresh && task.Status.State.IsTerminal() {
			return task, OutcomeTerminal, a2a.NewInvalidRequest(
				fmt.Sprintf("task %s is in terminal state %s, cannot transition to %s", task.ID, task.Status.State, e.Status.State))
		}
		if !fresh && !task.Status.State.CanTransition(e.Status.State) {
			return task, OutcomeContinue, a2a.NewInvalidRequest(
				fmt.Sprintf("illegal transition %s -> %s for task %s", task.Status.State, e.Status.State, task.ID))
		}
		task.Status = e.Status
		if task.Status.Timestamp == nil {
			now := time.Now().UTC()
			task.Status.Timestamp = &now
		}
		if e.Status.Message != nil {
			task.History = append(task.History, *e.Status.Message)
		}
		if e.Final && task.Status.State.IsTerminal() {
			return task, OutcomeTerminal, nil
		}
		return task, OutcomeContinue, nil

	case a2a.TaskArtifactUpdateEvent:
		if task == nil {
			return nil, OutcomeContinue, fmt.Errorf("taskmanager: artifact update for unknown task %s", e.TaskID)
		}
		if task.Status.State.IsTerminal() {
			return task, OutcomeTerminal, a2a.NewInvalidRequest(
				fmt.Sprintf("task %s is in terminal state %s, cannot accept artifact updates", task.ID, task.Status.State))
		}
		task.Artifacts = a2a.ApplyArtifactUpdate(task.Artifacts, e.Artifact, e.Append)
		return task, OutcomeContinue, nil

	default:
		return task, OutcomeContinue, fmt.Errorf("taskmanager: unknown event type %T", ev)
	}
}

func outcomeFor(s a2a.TaskState) Outcome {
	if s.IsTerminal() {
		return OutcomeTerminal
	}
	return OutcomeContinue
}
