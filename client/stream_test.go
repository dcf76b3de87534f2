package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gate4ai/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseFrame renders a JSON-RPC response carrying ev as a single SSE data
// frame, matching the "data: <json>\n\n" shape rpc.Server writes.
func sseFrame(t *testing.T, id string, ev a2a.Event) string {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	idRaw, err := json.Marshal(id)
	require.NoError(t, err)
	resp := a2a.Response{JSONRPC: a2a.Version, ID: idRaw, Result: raw}
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	return fmt.Sprintf("data: %s\n\n", body)
}

func TestSendMessageStream_RelaysSixFramesInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		task := a2a.Task{ID: "t1", ContextID: "c1", Status: a2a.TaskStatus{State: a2a.TaskStateSubmitted}}
		working := a2a.TaskStatusUpdateEvent{TaskID: "t1", ContextID: "c1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
		first := a2a.TaskArtifactUpdateEvent{TaskID: "t1", ContextID: "c1", Artifact: a2a.Artifact{ArtifactID: "a", Parts: []a2a.Part{a2a.NewTextPart("Hel")}}}
		appended := a2a.TaskArtifactUpdateEvent{TaskID: "t1", ContextID: "c1", Artifact: a2a.Artifact{ArtifactID: "a", Parts: []a2a.Part{a2a.NewTextPart("lo")}}, Append: true}
		lastChunk := a2a.TaskArtifactUpdateEvent{TaskID: "t1", ContextID: "c1", Artifact: a2a.Artifact{ArtifactID: "a", Parts: []a2a.Part{}}, Append: true, LastChunk: true}
		completed := a2a.TaskStatusUpdateEvent{TaskID: "t1", ContextID: "c1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}, Final: true}

		for _, ev := range []a2a.Event{task, working, first, appended, lastChunk, completed} {
			fmt.Fprint(w, sseFrame(t, "1", ev))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	items, err := c.SendMessageStream(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("please stream")}},
	})
	require.NoError(t, err)

	var got []StreamItem
	for item := range items {
		got = append(got, item)
	}
	require.Len(t, got, 6)
	for _, item := range got {
		require.NoError(t, item.Err)
	}
	_, ok := got[0].Event.(a2a.Task)
	assert.True(t, ok)
	last, ok := got[5].Event.(a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, last.Final)
}

func TestSendMessageStream_RejectsJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := a2a.Response{JSONRPC: a2a.Version, Error: a2a.NewInvalidRequest("no streaming")}
		body, _ := json.Marshal(resp)
		w.Write(body)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.SendMessageStream(context.Background(), a2a.MessageSendParams{
		Message: a2a.Message{Role: a2a.RoleUser, MessageID: "m1", Parts: []a2a.Part{a2a.NewTextPart("hi")}},
	})
	require.Error(t, err)
	var rpcErr *a2a.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, a2a.ErrorCodeInvalidRequest, rpcErr.Code)
}

func TestResubscribeTask_ReconnectsAfterDroppedConnection(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		if attempts == 1 {
			// Drop the connection mid-stream, no final event.
			fmt.Fprint(w, sseFrame(t, "1", a2a.TaskStatusUpdateEvent{TaskID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}))
			flusher.Flush()
			return
		}
		fmt.Fprint(w, sseFrame(t, "1", a2a.TaskStatusUpdateEvent{TaskID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}, Final: true}))
		flusher.Flush()
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	items, err := c.ResubscribeTask(ctx, "t1")
	require.NoError(t, err)

	var last StreamItem
	count := 0
	for item := range items {
		require.NoError(t, item.Err)
		last = item
		count++
	}
	assert.GreaterOrEqual(t, count, 2)
	status, ok := last.Event.(a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, status.Final)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestResubscribeTask_StopsOnTaskNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := a2a.Response{JSONRPC: a2a.Version, Error: a2a.NewTaskNotFound("t1")}
		body, _ := json.Marshal(resp)
		w.Write(body)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.ResubscribeTask(context.Background(), "t1")
	require.Error(t, err)
	var rpcErr *a2a.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, a2a.ErrorCodeTaskNotFound, rpcErr.Code)
}
