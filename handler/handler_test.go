package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/aggregator"
	"github.com/gate4ai/a2a/executor"
	"github.com/gate4ai/a2a/queue"
	"github.com/gate4ai/a2a/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, streaming, push bool) (*RequestHandler, store.TaskStore) {
	t.Helper()
	s := store.NewInMemoryTaskStore()
	qm := queue.NewManager()
	agg := aggregator.New(s, nil)
	card := a2a.AgentCard{
		Name: "test-agent",
		Capabilities: a2a.AgentCapabilities{
			Streaming:         streaming,
			PushNotifications: push,
		},
	}
	pn := NewPushNotifier(nil, 0)
	return New(s, qm, agg, executor.ScenarioExecutor{}, pn, card, nil), s
}

func TestOnMessageSend_EchoOneShot(t *testing.T) {
	h, _ := newTestHandler(t, true, false)
	result, err := h.OnMessageSend(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("ping")}},
	})
	require.NoError(t, err)
	msg, ok := result.(a2a.Message)
	require.True(t, ok)
	assert.Equal(t, "pong", msg.Text())
}

func TestOnMessageSend_StreamScenarioReachesCompleted(t *testing.T) {
	h, s := newTestHandler(t, true, false)
	result, err := h.OnMessageSend(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("please stream")}},
	})
	require.NoError(t, err)
	task, ok := result.(a2a.Task)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "Hello", task.Artifacts[0].Parts[0].Text)

	persisted, err := s.Load(task.ID)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, persisted.Status.State)
}

func TestOnMessageSendStream_RejectedWithoutCapability(t *testing.T) {
	h, _ := newTestHandler(t, false, false)
	_, err := h.OnMessageSendStream(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("please stream")}},
	})
	require.Error(t, err)
	var rpcErr *a2a.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, a2a.ErrorCodeInvalidRequest, rpcErr.Code)
}

func TestOnMessageSendStream_RelaysAllFramesAndPersists(t *testing.T) {
	h, s := newTestHandler(t, true, false)
	consumer, err := h.OnMessageSendStream(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("please stream")}},
	})
	require.NoError(t, err)

	var taskID string
	count := 0
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, ok, err := consumer.Recv(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
		switch e := ev.(type) {
		case a2a.Task:
			taskID = e.ID
		case a2a.TaskStatusUpdateEvent:
			taskID = e.TaskID
		}
	}
	assert.Equal(t, 6, count)

	// background persistence goroutine runs concurrently with the test;
	// give it a moment to finish saving before asserting final state.
	require.Eventually(t, func() bool {
		task, err := s.Load(taskID)
		return err == nil && task.Status.State == a2a.TaskStateCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestOnResubscribeToTask_NotFoundWhenNoLiveQueue(t *testing.T) {
	h, _ := newTestHandler(t, true, false)
	_, err := h.OnResubscribeToTask(context.Background(), a2a.TaskIDParams{ID: "never-existed"})
	require.Error(t, err)
	var rpcErr *a2a.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, a2a.ErrorCodeTaskNotFound, rpcErr.Code)
}

func TestOnResubscribeToTask_MultipleConsumersSeeIdenticalEvents(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	qm := queue.NewManager()
	agg := aggregator.New(s, nil)
	card := a2a.AgentCard{Capabilities: a2a.AgentCapabilities{Streaming: true}}
	h := New(s, qm, agg, blockingExecutor{}, NewPushNotifier(nil, 0), card, nil)

	original, err := h.OnMessageSendStream(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("hi")}},
	})
	require.NoError(t, err)

	ev, ok, err := original.Recv(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	taskID := ev.(a2a.TaskStatusUpdateEvent).TaskID

	// blockingExecutor is now parked on <-ctx.Done(); attach a second,
	// late consumer before the terminal event exists.
	resubscribed, err := h.OnResubscribeToTask(context.Background(), a2a.TaskIDParams{ID: taskID})
	require.NoError(t, err)

	_, err = h.OnCancelTask(context.Background(), a2a.TaskIDParams{ID: taskID})
	require.NoError(t, err)

	originalEv, ok, err := original.Recv(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	resubEv, ok, err := resubscribed.Recv(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, originalEv, resubEv)

	status := originalEv.(a2a.TaskStatusUpdateEvent)
	assert.Equal(t, a2a.TaskStateCanceled, status.Status.State)
	assert.True(t, status.Final)
}

func TestOnCancelTask_InputRequiredThenCancel(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	qm := queue.NewManager()
	agg := aggregator.New(s, nil)
	card := a2a.AgentCard{Capabilities: a2a.AgentCapabilities{Streaming: true}}
	h := New(s, qm, agg, blockingExecutor{}, NewPushNotifier(nil, 0), card, nil)

	consumer, err := h.OnMessageSendStream(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("hi")}},
	})
	require.NoError(t, err)

	ev, ok, err := consumer.Recv(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	status := ev.(a2a.TaskStatusUpdateEvent)
	require.Equal(t, a2a.TaskStateInputRequired, status.Status.State)
	taskID := status.TaskID

	task, err := h.OnCancelTask(context.Background(), a2a.TaskIDParams{ID: taskID})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, task.Status.State)

	_, err = h.OnCancelTask(context.Background(), a2a.TaskIDParams{ID: taskID})
	require.Error(t, err)
	var rpcErr *a2a.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, a2a.ErrorCodeTaskNotCancelable, rpcErr.Code)
}

func TestPushNotifications_GatedByCapability(t *testing.T) {
	h, _ := newTestHandler(t, true, false)
	_, err := h.OnSetPushNotificationConfig(context.Background(), a2a.TaskPushNotificationConfig{TaskID: "t1"})
	require.Error(t, err)
	var rpcErr *a2a.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, a2a.ErrorCodePushNotificationNotSupported, rpcErr.Code)
}

func TestPushNotifier_DeliversOnCompletion(t *testing.T) {
	var delivered int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&delivered, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, s := newTestHandler(t, true, true)
	result, err := h.OnMessageSend(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("please stream")}},
	})
	require.NoError(t, err)
	task := result.(a2a.Task)

	_, err = h.OnSetPushNotificationConfig(context.Background(), a2a.TaskPushNotificationConfig{
		TaskID:                 task.ID,
		PushNotificationConfig: a2a.PushNotificationConfig{URL: srv.URL},
	})
	require.NoError(t, err)

	h.push.Notify(context.Background(), &task)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&delivered) >= 1 }, time.Second, 10*time.Millisecond)

	_, loadErr := s.Load(task.ID)
	require.NoError(t, loadErr)
}

// blockingExecutor emits input-required and waits for Cancel.
type blockingExecutor struct{}

func (blockingExecutor) Execute(ctx context.Context, req executor.RequestContext, q *queue.EventQueue) error {
	q.Enqueue(a2a.TaskStatusUpdateEvent{TaskID: req.TaskID, ContextID: req.ContextID, Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired}})
	<-ctx.Done()
	return nil
}

func (blockingExecutor) Cancel(ctx context.Context, req executor.RequestContext, q *queue.EventQueue) error {
	q.Enqueue(a2a.TaskStatusUpdateEvent{TaskID: req.TaskID, ContextID: req.ContextID, Status: a2a.TaskStatus{State: a2a.TaskStateCanceled}, Final: true})
	return nil
}
