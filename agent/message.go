package agent

import (
	"time"

	"github.com/google/uuid"

	"reactagent/llmgate"
)

// Message is a single turn in the conversation. Assistant messages are
// created empty when a phase begins streaming, mutated in place as
// fragments arrive, and finalized once the stream completes. Tool
// messages are created atomically after tool execution and always carry
// the id of the call they answer.
type Message struct {
	ID        string             `json:"id"`
	Role      llmgate.Role       `json:"role"`
	Content   string             `json:"content"`
	Timestamp time.Time          `json:"timestamp"`
	ToolCalls []llmgate.ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName link a tool-result message to its
	// originating call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	// Reasoning is the model's private deliberation. It is never
	// parsed for control signals.
	Reasoning string `json:"reasoning,omitempty"`

	// PendingToolCalls holds calls awaiting human confirmation. Set on
	// the assistant message whose calls paused the run.
	PendingToolCalls []llmgate.ToolCall `json:"pending_tool_calls,omitempty"`
}

// NewUserMessage creates a user Message.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      llmgate.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant Message ready to
// receive streamed fragments.
func NewAssistantMessage() Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      llmgate.RoleAssistant,
		Timestamp: time.Now(),
	}
}

// NewToolMessage creates a tool-result Message keyed to the call it
// answers.
func NewToolMessage(content string, call llmgate.ToolCall) Message {
	return Message{
		ID:         uuid.New().String(),
		Role:       llmgate.RoleTool,
		Content:    content,
		Timestamp:  time.Now(),
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}

// ToChatMessages converts engine history into gateway wire messages.
func ToChatMessages(history []Message) []llmgate.Message {
	messages := make([]llmgate.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case llmgate.RoleUser:
			messages = append(messages, llmgate.UserMessage(msg.Content))
		case llmgate.RoleAssistant:
			m := llmgate.AssistantMessage(msg.Content)
			m.ToolCalls = msg.ToolCalls
			messages = append(messages, m)
		case llmgate.RoleTool:
			messages = append(messages, llmgate.ToolResultMessage(msg.ToolCallID, msg.ToolName, msg.Content))
		}
	}
	return messages
}

func copyHistory(history []Message) []Message {
	h := make([]Message, len(history))
	copy(h, history)
	return h
}
