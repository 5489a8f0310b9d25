package llmgate

import "context"

// Role identifies who produced a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested action. Arguments is the serialized
// argument payload exactly as the model produced it; consumers parse it
// as needed.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn of conversation history on the wire.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolSchema describes a callable tool for the model.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// Request is the input for one gateway round trip.
type Request struct {
	ConfigID      string       `json:"config_id"`
	Messages      []Message    `json:"messages"`
	Tools         []ToolSchema `json:"tools,omitempty"`
	SystemPrompt  string       `json:"system_prompt"`
	CorrelationID string       `json:"correlation_id"`
}

// EventType identifies the kind of stream event.
type EventType string

const (
	EventContent   EventType = "content"
	EventReasoning EventType = "reasoning"
	EventToolCalls EventType = "tool_calls"
	EventDone      EventType = "done"
	EventStopped   EventType = "stopped"
	EventError     EventType = "error"
)

// Event is a single incremental result from a streaming call.
// Exactly one terminal event (done, stopped, error) is delivered per
// correlation id; events after a terminal one are undefined behavior.
type Event struct {
	Type          EventType  `json:"type"`
	CorrelationID string     `json:"correlation_id"`
	Content       string     `json:"content,omitempty"`
	ToolCalls     []ToolCall `json:"tool_calls,omitempty"`
	Err           error      `json:"-"`
}

// Terminal reports whether the event ends its stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventDone, EventStopped, EventError:
		return true
	}
	return false
}

// Gateway wraps one LLM round trip as an event stream.
type Gateway interface {
	// ChatCompletion starts a streaming call. The returned channel
	// delivers events for req.CorrelationID and is closed after the
	// terminal event.
	ChatCompletion(ctx context.Context, req Request) (<-chan Event, error)

	// StopStream asks the in-flight stream for the correlation id to
	// halt; the subscriber receives a stopped terminal event.
	StopStream(correlationID string) error
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolResultMessage creates a tool result Message keyed to the call it
// answers.
func ToolResultMessage(toolCallID, toolName, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		Name:       toolName,
	}
}
