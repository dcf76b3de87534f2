// Package aggregator implements ResultAggregator: it drains one tap of
// an EventQueue, drives taskmanager.Apply, and persists every mutation
// to a store.TaskStore. It is grounded on the consume-and-fold loop in
// the teacher's server/a2a/capability.go, generalized to the two modes
// the protocol needs: a blocking collect-to-terminal call for
// message/send, and a channel-based stream-with-interrupt call for
// message/stream and tasks/resubscribe.
package aggregator

import (
	"context"
	"errors"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/queue"
	"github.com/gate4ai/a2a/store"
	"github.com/gate4ai/a2a/taskmanager"
	"go.uber.org/zap"
)

// ResultAggregator folds one EventQueue consumer into a Task, persisting
// every step to a TaskStore.
type ResultAggregator struct {
	store  store.TaskStore
	logger *zap.Logger
}

// New returns a ResultAggregator backed by store. A nil logger falls
// back to zap.NewNop().
func New(taskStore store.TaskStore, logger *zap.Logger) *ResultAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultAggregator{store: taskStore, logger: logger}
}

// ConsumeToTerminal implements collect-to-terminal mode: it reads task
// and consumer until a terminal outcome or a bare Message arrives,
// persisting the task after every mutation, and returns the final
// Event — either the completed *a2a.Task (as a2a.Task) or the terminal
// a2a.Message.
//
// task may be nil if the executor is expected to produce the first
// a2a.Task event itself.
func (r *ResultAggregator) ConsumeToTerminal(ctx context.Context, task *a2a.Task, consumer *queue.Consumer) (a2a.Event, error) {
	for {
		ev, ok, err := consumer.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			if task == nil {
				return nil, errors.New("aggregator: queue closed before any task was produced")
			}
			return *task, nil
		}

		next, outcome, applyErr := taskmanager.Apply(task, ev)
		if applyErr != nil {
			r.logger.Warn("event rejected by task manager", zap.Error(applyErr))
			return nil, applyErr
		}
		task = next

		if task != nil {
			if err := r.store.Save(task); err != nil {
				return nil, err
			}
		}

		switch outcome {
		case taskmanager.OutcomeTerminal:
			return *task, nil
		case taskmanager.OutcomeMessage:
			return ev.(a2a.Message), nil
		case taskmanager.OutcomeContinue:
			// keep draining
		}
	}
}

// StreamItem is one unit handed to the downstream consumer of
// ConsumeStream: either a raw Event to forward verbatim, or a terminal
// error.
type StreamItem struct {
	Event a2a.Event
	Err   error
}

// ConsumeStream implements stream-with-interrupt mode. It forwards
// every event read from consumer to the returned channel (for an SSE
// writer to relay) while folding each one into task and persisting to
// the store concurrently. An input-required status is forwarded like any
// other event and does not close the returned channel — the queue stays
// open for the executor to resume; no separate Task snapshot is sent.
// The channel closes after a terminal status or a terminal Message, or
// when the queue closes or ctx is done.
func (r *ResultAggregator) ConsumeStream(ctx context.Context, task *a2a.Task, consumer *queue.Consumer) <-chan StreamItem {
	out := make(chan StreamItem, 1)
	go func() {
		defer close(out)
		for {
			ev, ok, err := consumer.Recv(ctx)
			if err != nil {
				out <- StreamItem{Err: err}
				return
			}
			if !ok {
				return
			}

			next, outcome, applyErr := taskmanager.Apply(task, ev)
			if applyErr != nil {
				r.logger.Warn("event rejected by task manager", zap.Error(applyErr))
				out <- StreamItem{Err: applyErr}
				return
			}
			task = next

			if task != nil {
				if err := r.store.Save(task); err != nil {
					out <- StreamItem{Err: err}
					return
				}
			}

			select {
			case out <- StreamItem{Event: ev}:
			case <-ctx.Done():
				return
			}

			if outcome == taskmanager.OutcomeTerminal || outcome == taskmanager.OutcomeMessage {
				return
			}
		}
	}()
	return out
}
