package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"reactagent/agent"
	"reactagent/llmgate"
)

// Config is the YAML configuration file.
type Config struct {
	// AIConfigs maps config ids to model settings. The id is what a
	// run selects with the --ai flag.
	AIConfigs map[string]AIConfig `yaml:"ai_configs"`

	// BusinessContexts optionally inject domain guidance into the
	// phase prompts. The "default" key applies to every phase without
	// a dedicated entry; "thought", "action", and "observation" target
	// one phase each.
	BusinessContexts map[string]string `yaml:"business_contexts"`

	// Database is the SQLite path for conversation history. Empty
	// disables persistence.
	Database string `yaml:"database"`

	// AutoConfirmTools controls whether the built-in local tools run
	// without asking for approval.
	AutoConfirmTools bool `yaml:"auto_confirm_tools"`

	MaxIterations int `yaml:"max_iterations"`
}

// AIConfig selects a provider and model. The API key is read from the
// named environment variable, never stored in the file.
type AIConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{AutoConfirmTools: true}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == defaultConfigPath {
			// No file means defaults plus environment variables.
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

var defaultAPIKeyEnvs = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// gatewayConfigs converts the file's AI configs into gateway model
// configs, resolving API keys from the environment. With no configs in
// the file, a single "default" anthropic config is synthesized.
func (c *Config) gatewayConfigs() (map[string]llmgate.ModelConfig, error) {
	if len(c.AIConfigs) == 0 {
		c.AIConfigs = map[string]AIConfig{
			"default": {Provider: "anthropic"},
		}
	}
	configs := make(map[string]llmgate.ModelConfig, len(c.AIConfigs))
	for id, ai := range c.AIConfigs {
		keyEnv := ai.APIKeyEnv
		if keyEnv == "" {
			keyEnv = defaultAPIKeyEnvs[ai.Provider]
		}
		key := os.Getenv(keyEnv)
		if key == "" {
			return nil, fmt.Errorf("ai config %q: environment variable %s is not set", id, keyEnv)
		}
		configs[id] = llmgate.ModelConfig{
			Provider:    ai.Provider,
			Model:       ai.Model,
			APIKey:      key,
			Temperature: ai.Temperature,
			MaxTokens:   ai.MaxTokens,
		}
	}
	return configs, nil
}

// applyContexts installs the configured business contexts on a prompt
// manager.
func (c *Config) applyContexts(prompts *agent.PromptManager) {
	for key, context := range c.BusinessContexts {
		switch key {
		case "default":
			prompts.SetSystemContext(context)
		case "thought":
			prompts.SetBusinessContext(agent.PhaseThought, context)
		case "action":
			prompts.SetBusinessContext(agent.PhaseAction, context)
		case "observation":
			prompts.SetBusinessContext(agent.PhaseObservation, context)
		}
	}
}
