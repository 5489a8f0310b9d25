package catalog

import (
	"context"
	"fmt"
	"sync"

	"reactagent/llmgate"
)

// ToolExecutor is the function signature for locally registered tools.
type ToolExecutor func(ctx context.Context, args map[string]interface{}, callCtx CallContext) (interface{}, error)

// ToolDefinition describes a registered tool.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// RegisteredTool pairs a tool definition with its executor.
type RegisteredTool struct {
	Definition ToolDefinition
	Executor   ToolExecutor
}

type serverEntry struct {
	ref         ServerRef
	autoConfirm bool
	tools       map[string]*RegisteredTool
	order       []string
}

// Registry is an in-process Catalog and Runner. Tools are grouped under
// named servers; the confirmation policy is per server. Listing order is
// registration order, so prompt tool listings are deterministic.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*serverEntry
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{servers: make(map[string]*serverEntry)}
}

// AddServer registers a tool server. autoConfirm marks every tool on the
// server as executable without human approval.
func (r *Registry) AddServer(key, name string, autoConfirm bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	routing := ServerRef{Key: key, Name: name}.RoutingKey()
	if _, ok := r.servers[routing]; ok {
		return
	}
	r.servers[routing] = &serverEntry{
		ref:         ServerRef{Key: key, Name: name},
		autoConfirm: autoConfirm,
		tools:       make(map[string]*RegisteredTool),
	}
	r.order = append(r.order, routing)
}

// Register adds a tool to a server. The server must exist.
func (r *Registry) Register(serverKey string, tool RegisteredTool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.servers[serverKey]
	if !ok {
		return fmt.Errorf("unknown tool server %q", serverKey)
	}
	if _, exists := entry.tools[tool.Definition.Name]; !exists {
		entry.order = append(entry.order, tool.Definition.Name)
	}
	entry.tools[tool.Definition.Name] = &tool
	return nil
}

// ListAvailable returns name+description for every registered tool.
func (r *Registry) ListAvailable() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var infos []ToolInfo
	for _, key := range r.order {
		entry := r.servers[key]
		for _, name := range entry.order {
			infos = append(infos, ToolInfo{
				Name:        name,
				Description: entry.tools[name].Definition.Description,
			})
		}
	}
	return infos
}

// ListFull returns the full schemas for every registered tool.
func (r *Registry) ListFull() []llmgate.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var schemas []llmgate.ToolSchema
	for _, key := range r.order {
		entry := r.servers[key]
		for _, name := range entry.order {
			def := entry.tools[name].Definition
			schemas = append(schemas, llmgate.ToolSchema{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: def.InputSchema,
			})
		}
	}
	return schemas
}

// ResolveServer returns the server hosting the named tool.
func (r *Registry) ResolveServer(toolName string) (ServerRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.order {
		entry := r.servers[key]
		if _, ok := entry.tools[toolName]; ok {
			return entry.ref, true
		}
	}
	return ServerRef{}, false
}

// AllAutoConfirmable reports whether every call in the batch targets a
// tool on an auto-confirm server. Calls to unknown tools are never
// auto-confirmable.
func (r *Registry) AllAutoConfirmable(calls []llmgate.ToolCall) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, call := range calls {
		confirmed := false
		for _, key := range r.order {
			entry := r.servers[key]
			if _, ok := entry.tools[call.Name]; ok {
				confirmed = entry.autoConfirm
				break
			}
		}
		if !confirmed {
			return false
		}
	}
	return true
}

// Execute runs a registered tool.
func (r *Registry) Execute(ctx context.Context, server ServerRef, toolName string, args map[string]interface{}, callCtx CallContext) (interface{}, error) {
	r.mu.RLock()
	entry, ok := r.servers[server.RoutingKey()]
	var tool *RegisteredTool
	if ok {
		tool = entry.tools[toolName]
	}
	r.mu.RUnlock()

	if entry == nil {
		return nil, fmt.Errorf("unknown tool server %q", server.RoutingKey())
	}
	if tool == nil {
		return nil, fmt.Errorf("tool %q not registered on server %q", toolName, server.RoutingKey())
	}
	return tool.Executor(ctx, args, callCtx)
}
