package catalog

import (
	"context"
	"testing"

	"reactagent/llmgate"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.AddServer("safe", "Safe Tools", true)
	r.AddServer("gated", "Gated Tools", false)

	echo := func(ctx context.Context, args map[string]interface{}, callCtx CallContext) (interface{}, error) {
		return args["text"], nil
	}
	if err := r.Register("safe", RegisteredTool{
		Definition: ToolDefinition{Name: "echo", Description: "Echoes its input."},
		Executor:   echo,
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("gated", RegisteredTool{
		Definition: ToolDefinition{Name: "delete_resource", Description: "Deletes a resource."},
		Executor:   echo,
	}); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRegistryListings(t *testing.T) {
	r := testRegistry(t)

	infos := r.ListAvailable()
	if len(infos) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(infos))
	}
	if infos[0].Name != "echo" || infos[1].Name != "delete_resource" {
		t.Errorf("unexpected order: %v", infos)
	}

	schemas := r.ListFull()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(schemas))
	}
}

func TestRegistryResolveServer(t *testing.T) {
	r := testRegistry(t)

	ref, ok := r.ResolveServer("echo")
	if !ok || ref.Key != "safe" {
		t.Errorf("resolve echo: ok=%v ref=%+v", ok, ref)
	}
	if _, ok := r.ResolveServer("missing"); ok {
		t.Error("expected unknown tool to not resolve")
	}
}

func TestRegistryAutoConfirmPolicy(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name  string
		calls []llmgate.ToolCall
		want  bool
	}{
		{"all auto", []llmgate.ToolCall{{Name: "echo"}}, true},
		{"one gated", []llmgate.ToolCall{{Name: "echo"}, {Name: "delete_resource"}}, false},
		{"unknown tool", []llmgate.ToolCall{{Name: "missing"}}, false},
		{"empty batch", nil, true},
	}
	for _, tt := range tests {
		if got := r.AllAutoConfirmable(tt.calls); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRegistryExecute(t *testing.T) {
	r := testRegistry(t)

	result, err := r.Execute(context.Background(), ServerRef{Key: "safe"}, "echo",
		map[string]interface{}{"text": "hi"}, CallContext{})
	if err != nil {
		t.Fatal(err)
	}
	if result != "hi" {
		t.Errorf("result = %v", result)
	}

	if _, err := r.Execute(context.Background(), ServerRef{Key: "safe"}, "missing", nil, CallContext{}); err == nil {
		t.Error("expected error for unregistered tool")
	}
	if _, err := r.Execute(context.Background(), ServerRef{Key: "nope"}, "echo", nil, CallContext{}); err == nil {
		t.Error("expected error for unknown server")
	}
}

func TestRegistryDuplicateServerKept(t *testing.T) {
	r := NewRegistry()
	r.AddServer("s", "First", true)
	r.AddServer("s", "Second", false)

	if err := r.Register("s", RegisteredTool{
		Definition: ToolDefinition{Name: "t", Description: "x"},
		Executor: func(ctx context.Context, args map[string]interface{}, callCtx CallContext) (interface{}, error) {
			return nil, nil
		},
	}); err != nil {
		t.Fatal(err)
	}
	// The first registration wins; auto-confirm stays true.
	if !r.AllAutoConfirmable([]llmgate.ToolCall{{Name: "t"}}) {
		t.Error("expected the first server registration to win")
	}
}
