package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/queue"
	"github.com/gate4ai/a2a/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeToTerminal_TaskPath(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	agg := New(s, nil)
	q := queue.New(8)
	consumer := q.Tap()

	task := &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateSubmitted}}
	q.Enqueue(a2a.TaskStatusUpdateEvent{TaskID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})
	q.Enqueue(a2a.TaskArtifactUpdateEvent{
		TaskID:   "t1",
		Artifact: a2a.Artifact{ArtifactID: "a", Parts: []a2a.Part{a2a.NewTextPart("Hello")}},
	})
	q.Enqueue(a2a.TaskStatusUpdateEvent{TaskID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}, Final: true})

	result, err := agg.ConsumeToTerminal(context.Background(), task, consumer)
	require.NoError(t, err)

	final, ok := result.(a2a.Task)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCompleted, final.Status.State)
	require.Len(t, final.Artifacts, 1)
	assert.Equal(t, "Hello", final.Artifacts[0].Parts[0].Text)

	persisted, err := s.Load("t1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, persisted.Status.State)
}

func TestConsumeToTerminal_MessagePath(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	agg := New(s, nil)
	q := queue.New(8)
	consumer := q.Tap()

	msg := a2a.Message{Role: a2a.RoleAgent, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("pong")}}
	q.Enqueue(msg)
	q.Close()

	result, err := agg.ConsumeToTerminal(context.Background(), nil, consumer)
	require.NoError(t, err)
	got, ok := result.(a2a.Message)
	require.True(t, ok)
	assert.Equal(t, "pong", got.Text())
}

func TestConsumeStream_SurfacesInputRequiredWithoutClosing(t *testing.T) {
	s := store.NewInMemoryTaskStore()
	agg := New(s, nil)
	q := queue.New(8)
	consumer := q.Tap()

	task := &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
	items := agg.ConsumeStream(context.Background(), task, consumer)

	q.Enqueue(a2a.TaskStatusUpdateEvent{TaskID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired}})

	select {
	case item := <-items:
		require.NoError(t, item.Err)
		ev, ok := item.Event.(a2a.TaskStatusUpdateEvent)
		require.True(t, ok)
		assert.Equal(t, a2a.TaskStateInputRequired, ev.Status.State)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for input-required event")
	}

	// channel must still be open; queue resumes after user re-sends.
	q.Enqueue(a2a.TaskStatusUpdateEvent{TaskID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})
	select {
	case item, ok := <-items:
		require.True(t, ok)
		require.NoError(t, item.Err)
	case <-time.After(time.Second):
		t.Fatal("stream closed early on input-required")
	}

	q.Enqueue(a2a.TaskStatusUpdateEvent{TaskID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}, Final: true})
	select {
	case item, ok := <-items:
		require.True(t, ok)
		require.NoError(t, item.Err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for terminal event")
	}

	_, stillOpen := <-items
	assert.False(t, stillOpen, "stream must close after terminal outcome")
}
