package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reactagent/catalog"
	"reactagent/store"
)

// registerLocalTools builds the tool registry the CLI ships with. The
// history tools are only registered when a store is configured.
func registerLocalTools(registry *catalog.Registry, db *store.SQLiteStore, autoConfirm bool) error {
	registry.AddServer("local", "Local Tools", autoConfirm)

	err := registry.Register("local", catalog.RegisteredTool{
		Definition: catalog.ToolDefinition{
			Name:        "current_time",
			Description: "Returns the current local date and time.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		Executor: func(ctx context.Context, args map[string]interface{}, callCtx catalog.CallContext) (interface{}, error) {
			return time.Now().Format(time.RFC1123), nil
		},
	})
	if err != nil {
		return err
	}

	err = registry.Register("local", catalog.RegisteredTool{
		Definition: catalog.ToolDefinition{
			Name:        "read_file",
			Description: "Reads a text file from the working directory, for example an exported transcript.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path of the file, relative to the working directory.",
					},
				},
				"required": []interface{}{"path"},
			},
		},
		Executor: func(ctx context.Context, args map[string]interface{}, callCtx catalog.CallContext) (interface{}, error) {
			path, _ := args["path"].(string)
			if path == "" {
				return nil, errors.New("path argument is required")
			}
			if filepath.IsAbs(path) {
				return nil, errors.New("absolute paths are not allowed")
			}
			clean := filepath.Clean(path)
			if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
				return nil, errors.New("path escapes the working directory")
			}
			data, err := os.ReadFile(clean)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", clean, err)
			}
			return string(data), nil
		},
	})
	if err != nil {
		return err
	}

	if db == nil {
		return nil
	}

	registry.AddServer("history", "Conversation History", true)
	return registry.Register("history", catalog.RegisteredTool{
		Definition: catalog.ToolDefinition{
			Name:        "load_conversation",
			Description: "Loads the saved messages of a past conversation by its id.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"conversation_id": map[string]interface{}{
						"type":        "string",
						"description": "Identifier of the conversation to load.",
					},
				},
				"required": []interface{}{"conversation_id"},
			},
		},
		Executor: func(ctx context.Context, args map[string]interface{}, callCtx catalog.CallContext) (interface{}, error) {
			id, _ := args["conversation_id"].(string)
			if id == "" {
				return nil, errors.New("conversation_id argument is required")
			}
			messages, err := db.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			type entry struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			}
			out := make([]entry, 0, len(messages))
			for _, m := range messages {
				out = append(out, entry{Role: string(m.Role), Content: m.Content})
			}
			return out, nil
		},
	})
}
