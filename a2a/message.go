// Package a2a defines the wire data model of the Agent-to-Agent protocol:
// messages, parts, artifacts, tasks, events, the AgentCard, and the
// JSON-RPC error taxonomy used to carry them.
package a2a

// Role identifies who authored a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// PartKind discriminates the Part tagged union on the wire.
type PartKind string

const (
	KindText PartKind = "text"
	KindFile PartKind = "file"
	KindData PartKind = "data"
)

// Part is a tagged union: exactly one of Text, File, Data is populated,
// selected by Kind. Unlike the untagged Type-by-pointer-presence struct
// some A2A implementations use, this keeps wire (de)serialization
// unambiguous even when a field happens to be the zero value.
type Part struct {
	Kind     PartKind       `json:"kind"`
	Text     string         `json:"text,omitempty"`
	File     *FilePart      `json:"file,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTextPart builds a text Part.
func NewTextPart(text string) Part {
	return Part{Kind: KindText, Text: text}
}

// NewDataPart builds a data Part.
func NewDataPart(data map[string]any) Part {
	return Part{Kind: KindData, Data: data}
}

// FilePart is either FileWithBytes or FileWithUri; exactly one of Bytes
// or URI is set.
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"` // base64, mutually exclusive with URI
	URI      string `json:"uri,omitempty"`
}

// Message is a single turn in the conversation between client and agent,
// or a terminal conversational reply carried as an Event.
type Message struct {
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	MessageID string         `json:"messageId"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Text concatenates the text of every TextPart in the message, in order.
// Convenience used by tests and the example executor; not part of the
// wire format.
func (m Message) Text() string {
	var out []byte
	for _, p := range m.Parts {
		if p.Kind == KindText {
			out = append(out, p.Text...)
		}
	}
	return string(out)
}
