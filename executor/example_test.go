package executor

import (
	"context"
	"testing"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioExecutor_Echo(t *testing.T) {
	q := queue.New(8)
	c := q.Tap()

	req := RequestContext{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("ping")}},
		TaskID:  "t1",
	}
	require.NoError(t, ScenarioExecutor{}.Execute(context.Background(), req, q))

	ev, ok, err := c.Recv(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	msg, ok := ev.(a2a.Message)
	require.True(t, ok)
	assert.Equal(t, "pong", msg.Text())
}

func TestScenarioExecutor_Stream(t *testing.T) {
	q := queue.New(8)
	c := q.Tap()

	req := RequestContext{
		Message:   a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("please stream")}},
		TaskID:    "t1",
		ContextID: "ctx1",
	}
	require.NoError(t, ScenarioExecutor{}.Execute(context.Background(), req, q))

	var events []a2a.Event
	for {
		ev, ok, err := c.Recv(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		events = append(events, ev)
	}
	require.Len(t, events, 6)
	_, isTask := events[0].(a2a.Task)
	assert.True(t, isTask)
	last, ok := events[5].(a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, last.Final)
	assert.Equal(t, a2a.TaskStateCompleted, last.Status.State)
}

func TestScenarioExecutor_Cancel(t *testing.T) {
	q := queue.New(8)
	c := q.Tap()

	require.NoError(t, ScenarioExecutor{}.Cancel(context.Background(), RequestContext{TaskID: "t1"}, q))
	ev, ok, err := c.Recv(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	status, ok := ev.(a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCanceled, status.Status.State)
}
