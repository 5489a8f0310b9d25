package llmgate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
)

// ModelConfig maps a config identifier to a concrete provider setup.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// GollmGateway is a Gateway backed by the gollm SDK. One gollm.LLM is
// created lazily per config id and reused across calls.
type GollmGateway struct {
	hub   *Hub
	retry RetryPolicy
	log   *zap.Logger

	mu      sync.Mutex
	configs map[string]ModelConfig
	llms    map[string]gollm.LLM
}

// NewGollmGateway creates a gateway for the given config set.
func NewGollmGateway(configs map[string]ModelConfig, logger *zap.Logger) *GollmGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &GollmGateway{
		hub:     NewHub(),
		retry:   DefaultRetryPolicy(),
		log:     logger,
		configs: configs,
		llms:    make(map[string]gollm.LLM),
	}
	g.retry.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn("retrying gateway call",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return g
}

// SetRetryPolicy overrides the default retry policy.
func (g *GollmGateway) SetRetryPolicy(policy RetryPolicy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retry = policy
}

// ChatCompletion starts one streaming round trip. The stream goroutine
// publishes events to the hub; the returned channel closes after the
// terminal event.
func (g *GollmGateway) ChatCompletion(ctx context.Context, req Request) (<-chan Event, error) {
	llm, err := g.llmFor(req.ConfigID)
	if err != nil {
		return nil, err
	}

	events, err := g.hub.Subscribe(req.CorrelationID)
	if err != nil {
		return nil, err
	}

	prompt := buildGollmPrompt(req)
	go g.stream(ctx, llm, prompt, req)
	return events, nil
}

// StopStream halts the stream for the correlation id. The subscriber
// receives a stopped terminal event; further producer output is dropped.
func (g *GollmGateway) StopStream(correlationID string) error {
	g.hub.Stop(correlationID)
	return nil
}

func (g *GollmGateway) llmFor(configID string) (gollm.LLM, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if llm, ok := g.llms[configID]; ok {
		return llm, nil
	}

	cfg, ok := g.configs[configID]
	if !ok {
		return nil, &ConfigurationError{GatewayError: GatewayError{
			Message: fmt.Sprintf("unknown config id %q", configID),
		}}
	}

	model := cfg.Model
	if model == "" {
		if info := DefaultModel(cfg.Provider); info != nil {
			model = info.ID
		}
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(maxTokens),
		gollm.SetTemperature(temperature),
		gollm.SetMaxRetries(0), // retries are handled by RetryPolicy
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(cfg.APIKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, &ConfigurationError{GatewayError: GatewayError{
			Message: fmt.Sprintf("creating LLM for config %q", configID), Cause: err,
		}}
	}
	g.llms[configID] = llm
	return llm, nil
}

// stream drives one gollm call and publishes its events.
func (g *GollmGateway) stream(ctx context.Context, llm gollm.LLM, prompt *gollm.Prompt, req Request) {
	id := req.CorrelationID

	if !llm.SupportsStreaming() {
		text, err := Retry(ctx, g.retryPolicy(), func(ctx context.Context) (string, error) {
			text, genErr := llm.Generate(ctx, prompt)
			if genErr != nil {
				return "", translateGollmError(genErr)
			}
			return text, nil
		})
		if err != nil {
			g.publishErr(ctx, id, err)
			return
		}
		g.hub.Publish(Event{Type: EventContent, CorrelationID: id, Content: text})
		g.finish(id, text)
		return
	}

	stream, err := Retry(ctx, g.retryPolicy(), func(ctx context.Context) (gollm.TokenStream, error) {
		s, openErr := llm.Stream(ctx, prompt)
		if openErr != nil {
			return nil, translateGollmError(openErr)
		}
		return s, nil
	})
	if err != nil {
		g.publishErr(ctx, id, err)
		return
	}
	defer stream.Close()

	var fullText strings.Builder
	for {
		token, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			g.publishErr(ctx, id, err)
			return
		}
		if token == nil {
			continue
		}
		g.hub.Publish(Event{Type: EventContent, CorrelationID: id, Content: token.Text})
		fullText.WriteString(token.Text)
	}

	g.finish(id, fullText.String())
}

// finish publishes the tool-call batch recovered from the response text,
// if any, followed by the done terminal event.
func (g *GollmGateway) finish(id, text string) {
	if calls := parseEmbeddedToolCalls(text); len(calls) > 0 {
		g.hub.Publish(Event{Type: EventToolCalls, CorrelationID: id, ToolCalls: calls})
	}
	g.hub.Publish(Event{Type: EventDone, CorrelationID: id})
}

func (g *GollmGateway) publishErr(ctx context.Context, id string, err error) {
	if ctx.Err() != nil {
		g.hub.Publish(Event{Type: EventStopped, CorrelationID: id})
		return
	}
	translated := translateGollmError(err)
	g.log.Warn("gateway stream failed", zap.String("correlation_id", id), zap.Error(translated))
	g.hub.Publish(Event{Type: EventError, CorrelationID: id, Err: translated})
}

func (g *GollmGateway) retryPolicy() RetryPolicy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retry
}

// buildGollmPrompt flattens the wire request into a gollm prompt. gollm
// takes a single prompt string, so prior turns are folded in with role
// prefixes; the system prompt rides separately.
func buildGollmPrompt(req Request) *gollm.Prompt {
	var parts []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			parts = append(parts, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
		case RoleTool:
			parts = append(parts, "[Tool Result]: "+msg.Content)
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if req.SystemPrompt != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(req.SystemPrompt, gollm.CacheTypeEphemeral))
	}

	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
		promptOpts = append(promptOpts, gollm.WithToolChoice("auto"))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// parseEmbeddedToolCalls recovers tool calls that gollm returns embedded
// as JSON in the response text.
func parseEmbeddedToolCalls(text string) []ToolCall {
	start := strings.Index(text, `[{"name"`)
	if start == -1 {
		return nil
	}

	var rawCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err != nil {
		return nil
	}

	calls := make([]ToolCall, 0, len(rawCalls))
	for _, rc := range rawCalls {
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: string(rc.Arguments),
		})
	}
	return calls
}

// translateGollmError converts a gollm error into the gateway error
// hierarchy by classifying its message.
func translateGollmError(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *GatewayError, *ProviderError, *AuthenticationError, *InvalidRequestError,
		*NotFoundError, *RateLimitError, *ServerError, *ContentFilterError,
		*ContextLengthError, *RequestTimeoutError, *AbortError, *NetworkError,
		*ConfigurationError:
		return err
	}
	msg := err.Error()
	msgLower := strings.ToLower(msg)

	switch {
	case strings.Contains(msgLower, "401") || strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid api key"):
		return &AuthenticationError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, StatusCode: 401,
		}}
	case strings.Contains(msgLower, "404") || strings.Contains(msgLower, "not found"):
		return &NotFoundError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, StatusCode: 404,
		}}
	case strings.Contains(msgLower, "429") || strings.Contains(msgLower, "rate limit"):
		return &RateLimitError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, StatusCode: 429, Retryable: true,
		}}
	case strings.Contains(msgLower, "context length") || strings.Contains(msgLower, "too many tokens"):
		return &ContextLengthError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, StatusCode: 413,
		}}
	case strings.Contains(msgLower, "500") || strings.Contains(msgLower, "internal server"):
		return &ServerError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, StatusCode: 500, Retryable: true,
		}}
	case strings.Contains(msgLower, "timeout"):
		return &RequestTimeoutError{GatewayError: GatewayError{Message: msg, Cause: err}}
	case strings.Contains(msgLower, "content filter") || strings.Contains(msgLower, "safety"):
		return &ContentFilterError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err},
		}}
	default:
		return &ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err},
			Retryable:    true,
		}
	}
}
