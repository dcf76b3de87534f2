package client

import (
	"encoding/json"
	"fmt"

	"github.com/gate4ai/a2a"
)

// peekEvent carries every field that distinguishes one Event variant
// from another, without committing to a concrete type. A2A's wire
// format has no explicit "kind" discriminator on events, so the client
// classifies by field shape the same way the teacher's
// gateway/clients/a2aClient/client.go _processSSEStream does (there, by
// attempting one type then falling back to the next).
type peekEvent struct {
	Role     *string         `json:"role"`
	Status   json.RawMessage `json:"status"`
	Artifact json.RawMessage `json:"artifact"`
	TaskID   *string         `json:"taskId"`
}

// decodeEvent classifies and unmarshals a raw JSON-RPC result as one of
// the four Event variants: Message (has "role"), TaskArtifactUpdateEvent
// (has "artifact"), TaskStatusUpdateEvent (has "status" and "taskId"),
// or Task (has "status" without "taskId").
func decodeEvent(raw json.RawMessage) (a2a.Event, error) {
	var peek peekEvent
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, fmt.Errorf("client: decode event shape: %w", err)
	}

	switch {
	case peek.Role != nil:
		var msg a2a.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("client: decode message event: %w", err)
		}
		return msg, nil

	case len(peek.Artifact) > 0:
		var ev a2a.TaskArtifactUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("client: decode artifact event: %w", err)
		}
		return ev, nil

	case len(peek.Status) > 0 && peek.TaskID != nil:
		var ev a2a.TaskStatusUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("client: decode status event: %w", err)
		}
		return ev, nil

	case len(peek.Status) > 0:
		var task a2a.Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, fmt.Errorf("client: decode task event: %w", err)
		}
		return task, nil

	default:
		return nil, fmt.Errorf("client: unrecognized event shape: %s", raw)
	}
}
