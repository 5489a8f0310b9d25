package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"reactagent/catalog"
	"reactagent/llmgate"
)

// Phase names the stage the loop is currently executing.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseThought     Phase = "thought"
	PhaseAction      Phase = "action"
	PhaseObservation Phase = "observation"
)

// DefaultMaxIterations caps a run when the caller does not set a limit.
const DefaultMaxIterations = 10

const fallbackAnswer = "Sorry, I could not produce a complete answer. Please try rephrasing your question."

var errRunStopped = errors.New("run stopped")

// Store persists conversation messages. Persistence failures never
// abort a run; the engine logs them and moves on.
type Store interface {
	Save(ctx context.Context, conversationID string, msg Message) error
}

// RunOptions carries the per-run inputs. History is copied before the
// loop starts; the caller's slice is never mutated.
type RunOptions struct {
	ConfigID       string
	ConversationID string
	History        []Message
	ResourceID     string
	TaskID         string
	MaxIterations  int
}

// Events receives run progress. Every callback is optional.
type Events struct {
	// OnHistory delivers a snapshot of the full history after every
	// mutation, including per-fragment streaming updates.
	OnHistory func(history []Message)

	OnPhaseChange     func(phase Phase)
	OnIterationChange func(iteration int)
	OnLog             func(message string)
	OnError           func(err error)
}

func (ev Events) phase(p Phase) {
	if ev.OnPhaseChange != nil {
		ev.OnPhaseChange(p)
	}
}

func (ev Events) iteration(n int) {
	if ev.OnIterationChange != nil {
		ev.OnIterationChange(n)
	}
}

func (ev Events) log(msg string) {
	if ev.OnLog != nil {
		ev.OnLog(msg)
	}
}

func (ev Events) error(err error) {
	if ev.OnError != nil {
		ev.OnError(err)
	}
}

// Engine drives the think, act, observe loop. One Engine runs one
// conversation at a time; Stop interrupts the run in flight.
type Engine struct {
	gateway llmgate.Gateway
	catalog catalog.Catalog
	runner  catalog.Runner
	store   Store
	prompts *PromptManager

	maxToolResultChars int
	maxToolResultLines int

	mu              sync.Mutex
	stopped         bool
	currentStreamID string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog supplies the tool catalog consulted for listings,
// routing, and confirmation policy.
func WithCatalog(c catalog.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithRunner supplies the executor for confirmed tool calls.
func WithRunner(r catalog.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithStore enables message persistence.
func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithPrompts replaces the default prompt manager.
func WithPrompts(p *PromptManager) Option {
	return func(e *Engine) { e.prompts = p }
}

// WithToolResultLimits overrides the truncation budgets applied to
// tool results before they enter the conversation.
func WithToolResultLimits(maxChars, maxLines int) Option {
	return func(e *Engine) {
		e.maxToolResultChars = maxChars
		e.maxToolResultLines = maxLines
	}
}

// NewEngine creates an Engine on top of a streaming gateway.
func NewEngine(gateway llmgate.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gateway:            gateway,
		maxToolResultChars: DefaultToolResultChars,
		maxToolResultLines: DefaultToolResultLines,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.prompts == nil {
		e.prompts = NewPromptManager()
	}
	return e
}

// runState is the working state of a single run. It is never shared
// across runs.
type runState struct {
	opts    RunOptions
	events  Events
	history []Message
}

func (st *runState) append(msg Message) {
	st.history = append(st.history, msg)
	st.emitHistory()
}

func (st *runState) mutateLast(mutate func(*Message)) {
	if len(st.history) == 0 {
		return
	}
	mutate(&st.history[len(st.history)-1])
	st.emitHistory()
}

func (st *runState) last() *Message {
	if len(st.history) == 0 {
		return nil
	}
	return &st.history[len(st.history)-1]
}

func (st *runState) emitHistory() {
	if st.events.OnHistory != nil {
		st.events.OnHistory(copyHistory(st.history))
	}
}

// Stop requests cancellation of the run in flight. The active stream
// is halted and the loop exits before its next phase.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	streamID := e.currentStreamID
	e.mu.Unlock()
	if streamID != "" {
		_ = e.gateway.StopStream(streamID)
	}
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *Engine) setStream(id string) {
	e.mu.Lock()
	e.currentStreamID = id
	e.mu.Unlock()
}

// Run executes the loop until the model signals completion, no tool
// calls are produced, the iteration cap is reached, the run is
// stopped, or a stream fails. Stream failures are delivered through
// events.OnError; Run returns an error only for misconfiguration.
func (e *Engine) Run(ctx context.Context, opts RunOptions, events Events) error {
	if e.gateway == nil {
		return errors.New("agent: engine has no gateway")
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	e.mu.Lock()
	e.stopped = false
	e.mu.Unlock()

	st := &runState{opts: opts, events: events, history: copyHistory(opts.History)}
	defer func() {
		e.setStream("")
		events.phase(PhaseIdle)
	}()

	for iteration := 1; iteration <= opts.MaxIterations; iteration++ {
		if e.isStopped() || ctx.Err() != nil {
			events.log("run stopped")
			return nil
		}
		events.iteration(iteration)

		events.phase(PhaseThought)
		directive, err := e.thought(ctx, st)
		if err != nil {
			return e.phaseFailed(st, "think", err)
		}
		if directive == nil {
			events.log("think phase produced no directive, ending run")
			return nil
		}
		for _, field := range directive.Unknown {
			events.log(fmt.Sprintf("ignoring unknown directive field %q", field))
		}
		if !directive.Continue {
			return nil
		}

		events.phase(PhaseAction)
		calls, err := e.action(ctx, st)
		if err != nil {
			return e.phaseFailed(st, "act", err)
		}
		if len(calls) == 0 {
			events.log("act phase produced no tool calls, treating the reply as final")
			return nil
		}

		if e.catalog == nil || !e.catalog.AllAutoConfirmable(calls) {
			st.mutateLast(func(m *Message) {
				m.PendingToolCalls = calls
			})
			events.log("tool calls require confirmation, pausing run")
			return nil
		}

		e.executeToolCalls(ctx, st, calls)
		if e.isStopped() || ctx.Err() != nil {
			events.log("run stopped")
			return nil
		}

		events.phase(PhaseObservation)
		if err := e.observation(ctx, st); err != nil {
			if errors.Is(err, errRunStopped) {
				events.log("run stopped")
				return nil
			}
			// A failed observation is not fatal; the next think phase
			// still sees the tool results.
			events.error(fmt.Errorf("observe phase: %w", err))
		}
	}

	events.log(fmt.Sprintf("maximum iterations (%d) reached, ending run", opts.MaxIterations))
	return nil
}

// ResumeAfterConfirmation executes calls the user approved, then
// re-enters the loop with a fresh iteration budget.
func (e *Engine) ResumeAfterConfirmation(ctx context.Context, calls []llmgate.ToolCall, opts RunOptions, events Events) error {
	e.mu.Lock()
	e.stopped = false
	e.mu.Unlock()

	st := &runState{opts: opts, events: events, history: copyHistory(opts.History)}
	st.mutateLast(func(m *Message) {
		if len(m.PendingToolCalls) > 0 {
			m.PendingToolCalls = nil
		}
	})
	e.executeToolCalls(ctx, st, calls)
	if e.isStopped() || ctx.Err() != nil {
		events.log("run stopped")
		events.phase(PhaseIdle)
		return nil
	}

	resumed := opts
	resumed.History = st.history
	return e.Run(ctx, resumed, events)
}

func (e *Engine) phaseFailed(st *runState, phase string, err error) error {
	if errors.Is(err, errRunStopped) || e.isStopped() {
		st.events.log("run stopped")
		return nil
	}
	st.events.error(fmt.Errorf("%s phase: %w", phase, err))
	return nil
}

// thought runs the think phase and applies the final-answer
// substitution when the directive ends the run.
func (e *Engine) thought(ctx context.Context, st *runState) (*Directive, error) {
	prompt := e.prompts.ThoughtPrompt(st.opts.ResourceID, st.opts.TaskID, e.listAvailable())
	res, err := e.streamCompletion(ctx, st, PhaseThought, prompt, nil)
	if err != nil {
		return nil, err
	}

	directive := ExtractDirective(res.content)
	if directive == nil {
		return nil, nil
	}

	if !directive.Continue {
		final := StripDirective(res.content)
		if final == "" {
			switch {
			case strings.TrimSpace(res.reasoning) != "":
				final = strings.TrimSpace(res.reasoning)
			case strings.TrimSpace(directive.Reason) != "":
				final = strings.TrimSpace(directive.Reason)
			default:
				final = fallbackAnswer
			}
		}
		st.mutateLast(func(m *Message) {
			m.Content = final
		})
		if last := st.last(); last != nil {
			e.persist(ctx, st, *last)
		}
	}
	return directive, nil
}

// action runs the act phase and returns the tool calls it produced.
func (e *Engine) action(ctx context.Context, st *runState) ([]llmgate.ToolCall, error) {
	prompt := e.prompts.ActionPrompt(st.opts.ResourceID, st.opts.TaskID, e.listAvailable())
	res, err := e.streamCompletion(ctx, st, PhaseAction, prompt, e.listFull())
	if err != nil {
		return nil, err
	}
	return res.toolCalls, nil
}

// observation runs the observe phase over the freshly added tool
// results. No tools are exposed.
func (e *Engine) observation(ctx context.Context, st *runState) error {
	prompt := e.prompts.ObservationPrompt(st.opts.ResourceID, st.opts.TaskID)
	_, err := e.streamCompletion(ctx, st, PhaseObservation, prompt, nil)
	return err
}

type callResult struct {
	content   string
	reasoning string
	toolCalls []llmgate.ToolCall
}

// streamCompletion issues one gateway call for a phase and accumulates
// its stream into a fresh assistant message.
func (e *Engine) streamCompletion(ctx context.Context, st *runState, phase Phase, systemPrompt string, tools []llmgate.ToolSchema) (*callResult, error) {
	correlationID := fmt.Sprintf("react-%s-%s", phase, uuid.New().String()[:8])

	req := llmgate.Request{
		ConfigID:      st.opts.ConfigID,
		Messages:      ToChatMessages(st.history),
		Tools:         tools,
		SystemPrompt:  systemPrompt,
		CorrelationID: correlationID,
	}

	events, err := e.gateway.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	e.setStream(correlationID)
	defer e.setStream("")

	st.append(NewAssistantMessage())

	res := &callResult{}
	for {
		select {
		case <-ctx.Done():
			_ = e.gateway.StopStream(correlationID)
			return nil, errRunStopped
		case ev, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("stream %s closed without a terminal event", correlationID)
			}
			switch ev.Type {
			case llmgate.EventContent:
				if ev.Content == "" {
					continue
				}
				res.content += ev.Content
				st.mutateLast(func(m *Message) {
					m.Content += ev.Content
				})
			case llmgate.EventReasoning:
				if ev.Content == "" {
					continue
				}
				// Whitespace-only deltas carry paragraph breaks and
				// must survive accumulation.
				res.reasoning += ev.Content
				st.mutateLast(func(m *Message) {
					m.Reasoning += ev.Content
				})
			case llmgate.EventToolCalls:
				res.toolCalls = ev.ToolCalls
				st.mutateLast(func(m *Message) {
					m.ToolCalls = ev.ToolCalls
				})
			case llmgate.EventDone:
				if last := st.last(); last != nil && (last.Content != "" || last.Reasoning != "" || len(last.ToolCalls) > 0) {
					e.persist(ctx, st, *last)
				}
				return res, nil
			case llmgate.EventStopped:
				return nil, errRunStopped
			case llmgate.EventError:
				if ev.Err != nil {
					return nil, ev.Err
				}
				return nil, fmt.Errorf("stream %s failed", correlationID)
			}
		}
	}
}

// executeToolCalls runs each call in order. A call that cannot be
// resolved or that fails is reported through OnError and skipped;
// later calls still run.
func (e *Engine) executeToolCalls(ctx context.Context, st *runState, calls []llmgate.ToolCall) {
	for _, call := range calls {
		if e.isStopped() || ctx.Err() != nil {
			return
		}
		msg, err := e.executeOne(ctx, st.opts, call)
		if err != nil {
			st.events.error(fmt.Errorf("tool %s: %w", call.Name, err))
			continue
		}
		st.append(msg)
		e.persist(ctx, st, msg)
	}
}

func (e *Engine) executeOne(ctx context.Context, opts RunOptions, call llmgate.ToolCall) (Message, error) {
	if e.catalog == nil || e.runner == nil {
		return Message{}, errors.New("no tool runner configured")
	}
	server, ok := e.catalog.ResolveServer(call.Name)
	if !ok {
		return Message{}, fmt.Errorf("no server hosts tool %q", call.Name)
	}

	args := map[string]interface{}{}
	if trimmed := strings.TrimSpace(call.Arguments); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			// Unreadable arguments degrade to an empty argument set so
			// tools with optional parameters can still run.
			args = map[string]interface{}{}
		}
	}

	result, err := e.runner.Execute(ctx, server, call.Name, args, catalog.CallContext{
		ResourceID: opts.ResourceID,
		TaskID:     opts.TaskID,
	})
	if err != nil {
		return Message{}, err
	}

	content := formatToolResult(result)
	content = TruncateLines(TruncateChars(content, e.maxToolResultChars), e.maxToolResultLines)
	return NewToolMessage(content, call), nil
}

func formatToolResult(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(payload)
	}
}

func (e *Engine) persist(ctx context.Context, st *runState, msg Message) {
	if e.store == nil || st.opts.ConversationID == "" {
		return
	}
	if err := e.store.Save(ctx, st.opts.ConversationID, msg); err != nil {
		st.events.log(fmt.Sprintf("persist message %s failed: %v", msg.ID, err))
	}
}

func (e *Engine) listAvailable() []catalog.ToolInfo {
	if e.catalog == nil {
		return nil
	}
	return e.catalog.ListAvailable()
}

func (e *Engine) listFull() []llmgate.ToolSchema {
	if e.catalog == nil {
		return nil
	}
	return e.catalog.ListFull()
}
