package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/aggregator"
	"github.com/gate4ai/a2a/executor"
	"github.com/gate4ai/a2a/queue"
	"github.com/gate4ai/a2a/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCancelTimeout bounds how long onCancelTask waits for the
// executor's cooperative cancel hook to produce a terminal event.
const DefaultCancelTimeout = 10 * time.Second

// RequestHandler orchestrates every public A2A operation by wiring
// together QueueManager, TaskStore, ResultAggregator, and a
// user-supplied AgentExecutor. It is grounded on the dispatch style of
// the teacher's server/a2a/capability.go, generalized from MCP
// capability calls to the fixed A2A method table.
type RequestHandler struct {
	store         store.TaskStore
	queues        *queue.Manager
	aggregator    *aggregator.ResultAggregator
	executor      executor.AgentExecutor
	push          *PushNotifier
	card          a2a.AgentCard
	queueCapacity int
	cancelTimeout time.Duration
	logger        *zap.Logger
}

// New returns a RequestHandler. card's Capabilities gate streaming and
// push-notification operations.
func New(taskStore store.TaskStore, queues *queue.Manager, agg *aggregator.ResultAggregator, exec executor.AgentExecutor, push *PushNotifier, card a2a.AgentCard, logger *zap.Logger) *RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestHandler{
		store:         taskStore,
		queues:        queues,
		aggregator:    agg,
		executor:      exec,
		push:          push,
		card:          card,
		queueCapacity: queue.DefaultCapacity,
		cancelTimeout: DefaultCancelTimeout,
		logger:        logger,
	}
}

// SetQueueCapacity overrides the per-task EventQueue buffer bound used
// by every queue this handler creates from this point on.
func (h *RequestHandler) SetQueueCapacity(capacity int) {
	h.queueCapacity = capacity
}

// SetCancelTimeout overrides how long onCancelTask waits for a terminal
// event after invoking the executor's cooperative cancel hook.
func (h *RequestHandler) SetCancelTimeout(d time.Duration) {
	h.cancelTimeout = d
}

func (h *RequestHandler) resolveTask(params a2a.MessageSendParams) (task *a2a.Task, taskID, contextID string, err error) {
	if params.Message.TaskID != "" {
		task, err = h.store.Load(params.Message.TaskID)
		if err != nil {
			return nil, "", "", err
		}
		return task, task.ID, task.ContextID, nil
	}
	contextID = params.Message.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	return nil, uuid.NewString(), contextID, nil
}

func errorMessage(err error) *a2a.Message {
	return &a2a.Message{
		Role:      a2a.RoleAgent,
		MessageID: uuid.NewString(),
		Parts:     []a2a.Part{a2a.NewTextPart(err.Error())},
	}
}

// runExecutor launches Execute on its own goroutine, waiting for the
// aggregator to have attached its tap first so no event it produces is
// lost. An error returned by Execute is folded into a terminal Failed
// status event carrying the error text, so every caller observes it the
// same way: as the final event of a stream, and as a failed Task from
// message/send (not as a JSON-RPC error).
func (h *RequestHandler) runExecutor(taskID, contextID string, reqCtx executor.RequestContext, q *queue.EventQueue) context.CancelFunc {
	execCtx, cancel := context.WithCancel(context.Background())
	h.queues.StoreCancelFunc(taskID, cancel)

	go func() {
		defer cancel()
		if err := h.queues.AwaitQueuePollerStart(execCtx, taskID); err != nil {
			return
		}
		if err := h.executor.Execute(execCtx, reqCtx, q); err != nil {
			h.logger.Warn("executor returned an error", zap.String("taskId", taskID), zap.Error(err))
			q.Enqueue(a2a.TaskStatusUpdateEvent{
				TaskID:    taskID,
				ContextID: contextID,
				Status:    a2a.TaskStatus{State: a2a.TaskStateFailed, Message: errorMessage(err)},
				Final:     true,
			})
		}
	}()
	return cancel
}

// OnMessageSend implements message/send: resolve or create the task,
// run the executor to completion, and return the final Task or
// terminal Message.
func (h *RequestHandler) OnMessageSend(ctx context.Context, params a2a.MessageSendParams) (a2a.Event, error) {
	task, taskID, contextID, err := h.resolveTask(params)
	if err != nil {
		return nil, err
	}

	q := h.queues.Get(taskID)
	if q == nil {
		if q, err = h.queues.Create(taskID, h.queueCapacity); err != nil {
			return nil, a2a.NewInternalError(err)
		}
	}

	reqCtx := executor.RequestContext{Message: params.Message, Task: task, TaskID: taskID, ContextID: contextID, Metadata: params.Metadata}
	h.runExecutor(taskID, contextID, reqCtx, q)

	consumer := q.Tap()
	h.queues.MarkPollerStarted(taskID)

	result, err := h.aggregator.ConsumeToTerminal(ctx, task, consumer)
	h.queues.Close(taskID)
	if err != nil {
		return nil, a2a.NewInternalError(err)
	}

	if final, ok := result.(a2a.Task); ok {
		h.push.Notify(context.Background(), &final)
	}
	return result, nil
}

// OnMessageSendStream implements message/stream: it sets up the task
// exactly as OnMessageSend, then returns a raw event Consumer for the
// transport layer to relay as SSE frames, while a second tap drives the
// persistence aggregator in the background so TaskStore stays current
// independent of whether anyone is still reading the stream.
func (h *RequestHandler) OnMessageSendStream(ctx context.Context, params a2a.MessageSendParams) (*queue.Consumer, error) {
	if !h.card.Capabilities.Streaming {
		return nil, a2a.NewInvalidRequest("this agent does not support streaming")
	}

	task, taskID, contextID, err := h.resolveTask(params)
	if err != nil {
		return nil, err
	}

	q := h.queues.Get(taskID)
	if q == nil {
		if q, err = h.queues.Create(taskID, h.queueCapacity); err != nil {
			return nil, a2a.NewInternalError(err)
		}
	}

	reqCtx := executor.RequestContext{Message: params.Message, Task: task, TaskID: taskID, ContextID: contextID, Metadata: params.Metadata}
	h.runExecutor(taskID, contextID, reqCtx, q)

	sseConsumer := q.Tap()
	persistConsumer := q.Tap()
	h.queues.MarkPollerStarted(taskID)

	go h.persist(taskID, task.Clone(), persistConsumer)

	return sseConsumer, nil
}

func (h *RequestHandler) persist(taskID string, task *a2a.Task, consumer *queue.Consumer) {
	for item := range h.aggregator.ConsumeStream(context.Background(), task, consumer) {
		if item.Err != nil {
			h.logger.Warn("background persistence stopped early", zap.String("taskId", taskID), zap.Error(item.Err))
			return
		}
		if final, ok := item.Event.(a2a.TaskStatusUpdateEvent); ok && final.Final {
			loaded, err := h.store.Load(taskID)
			if err == nil {
				h.push.Notify(context.Background(), loaded)
			}
		}
	}
	h.queues.Close(taskID)
}

// OnCancelTask implements tasks/cancel.
func (h *RequestHandler) OnCancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	task, err := h.store.Load(params.ID)
	if err != nil {
		return nil, err
	}
	if task.Status.State.IsTerminal() {
		return nil, a2a.NewTaskNotCancelable(params.ID)
	}
	q := h.queues.Get(params.ID)
	if q == nil {
		return nil, a2a.NewTaskNotCancelable(params.ID)
	}

	// Stop the original Execute goroutine's context before asking the
	// executor to produce a cancellation event, so it cannot race a late
	// event onto q after Cancel's terminal one.
	if stop, ok := h.queues.CancelFunc(params.ID); ok {
		stop()
	}

	// Tap before Cancel: a Cancel that enqueues its terminal event
	// synchronously closes q, and a later tap would see none of it.
	consumer := q.Tap()
	reqCtx := executor.RequestContext{TaskID: params.ID, ContextID: task.ContextID, Task: task}
	if err := h.executor.Cancel(ctx, reqCtx, q); err != nil {
		return nil, a2a.NewInternalError(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.cancelTimeout)
	defer cancel()
	result, err := h.aggregator.ConsumeToTerminal(waitCtx, task, consumer)
	if err != nil {
		return nil, a2a.NewInternalError(err)
	}
	final, ok := result.(a2a.Task)
	if !ok {
		return nil, a2a.NewInternalError(fmt.Errorf("handler: cancel produced a Message instead of a terminal Task"))
	}

	h.queues.Close(params.ID)
	h.push.Notify(context.Background(), &final)
	return &final, nil
}

// OnGetTask implements tasks/get.
func (h *RequestHandler) OnGetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	task, err := h.store.Load(params.ID)
	if err != nil {
		return nil, err
	}
	return task.TruncateHistory(params.HistoryLength), nil
}

// OnResubscribeToTask implements tasks/resubscribe: a late tap of the
// existing live queue. A closed or never-created queue is TaskNotFound.
func (h *RequestHandler) OnResubscribeToTask(ctx context.Context, params a2a.TaskIDParams) (*queue.Consumer, error) {
	consumer := h.queues.Tap(params.ID)
	if consumer == nil {
		return nil, a2a.NewTaskNotFound(params.ID)
	}
	return consumer, nil
}

// OnSetPushNotificationConfig implements tasks/pushNotificationConfig/set.
func (h *RequestHandler) OnSetPushNotificationConfig(ctx context.Context, params a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	if !h.card.Capabilities.PushNotifications {
		return a2a.TaskPushNotificationConfig{}, a2a.NewPushNotificationNotSupported()
	}
	if _, err := h.store.Load(params.TaskID); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return h.push.Set(params.TaskID, params.PushNotificationConfig), nil
}

// OnGetPushNotificationConfig implements tasks/pushNotificationConfig/get.
func (h *RequestHandler) OnGetPushNotificationConfig(ctx context.Context, params a2a.TaskIDParams) (a2a.TaskPushNotificationConfig, error) {
	if !h.card.Capabilities.PushNotifications {
		return a2a.TaskPushNotificationConfig{}, a2a.NewPushNotificationNotSupported()
	}
	cfg, ok := h.push.Get(params.ID, "")
	if !ok {
		return a2a.TaskPushNotificationConfig{}, a2a.NewTaskNotFound(params.ID)
	}
	return a2a.TaskPushNotificationConfig{TaskID: params.ID, PushNotificationConfig: cfg}, nil
}

// OnListPushNotificationConfig implements tasks/pushNotificationConfig/list.
func (h *RequestHandler) OnListPushNotificationConfig(ctx context.Context, params a2a.TaskIDParams) ([]a2a.TaskPushNotificationConfig, error) {
	if !h.card.Capabilities.PushNotifications {
		return nil, a2a.NewPushNotificationNotSupported()
	}
	return h.push.List(params.ID), nil
}

// OnDeletePushNotificationConfig implements tasks/pushNotificationConfig/delete.
func (h *RequestHandler) OnDeletePushNotificationConfig(ctx context.Context, params a2a.TaskIDParams) error {
	if !h.card.Capabilities.PushNotifications {
		return a2a.NewPushNotificationNotSupported()
	}
	h.push.Delete(params.ID, "")
	return nil
}
