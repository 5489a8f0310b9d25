// Package catalog describes which tools are available to the agent
// loop, which server hosts each tool, and whether a call may run
// without human approval. It also defines the tool invocation boundary
// and provides Registry, an in-process implementation of both.
package catalog

import (
	"context"

	"reactagent/llmgate"
)

// ToolInfo is the awareness-level description of a tool (no schema).
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerRef identifies the server hosting a tool. Key is the routing
// identifier; Name is the display name and is used when Key is empty.
type ServerRef struct {
	Key  string `json:"key,omitempty"`
	Name string `json:"name"`
}

// RoutingKey returns the identifier used to dispatch a call.
func (s ServerRef) RoutingKey() string {
	if s.Key != "" {
		return s.Key
	}
	return s.Name
}

// CallContext carries the active resource and task identifiers alongside
// a tool invocation. Empty values mean no active context.
type CallContext struct {
	ResourceID string `json:"resource_id,omitempty"`
	TaskID     string `json:"task_id,omitempty"`
}

// Catalog reports available tools and the confirmation policy. The
// engine treats a Catalog as read-only.
type Catalog interface {
	// ListAvailable returns name+description for every available tool.
	ListAvailable() []ToolInfo

	// ListFull returns the full schemas for every available tool.
	ListFull() []llmgate.ToolSchema

	// ResolveServer returns the server hosting the named tool.
	ResolveServer(toolName string) (ServerRef, bool)

	// AllAutoConfirmable reports whether every call in the batch may
	// execute without human approval.
	AllAutoConfirmable(calls []llmgate.ToolCall) bool
}

// Runner executes one tool call and returns its raw result.
type Runner interface {
	Execute(ctx context.Context, server ServerRef, toolName string, args map[string]interface{}, callCtx CallContext) (interface{}, error)
}
