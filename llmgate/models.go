package llmgate

// ModelInfo describes a known model.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	SupportsTools bool     `json:"supports_tools"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog.
var Models = []ModelInfo{
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		ContextWindow: 1047576, SupportsTools: true,
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, SupportsTools: true,
		Aliases: []string{"gpt5-mini"},
	},
	{
		ID: "gemini-3-pro-preview", Provider: "gemini", DisplayName: "Gemini 3 Pro (Preview)",
		ContextWindow: 1048576, SupportsTools: true,
		Aliases: []string{"gemini-pro"},
	},
}

// GetModelInfo returns the catalog entry for a model id or alias, or nil
// if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// DefaultModel returns the first (newest) model for a provider, or nil
// if the provider is unknown.
func DefaultModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}
