package agent

import (
	"fmt"
	"strings"
	"sync"

	"reactagent/catalog"
)

// PromptManager composes the per-phase system prompts. Composition is
// pure: the same phase, context identifiers, tool list, and configured
// business contexts always yield the same prompt text.
type PromptManager struct {
	mu             sync.RWMutex
	defaultContext string
	phaseContexts  map[Phase]string
}

// NewPromptManager returns a manager with no business contexts
// configured.
func NewPromptManager() *PromptManager {
	return &PromptManager{phaseContexts: make(map[Phase]string)}
}

// SetSystemContext sets the fallback business context used by any
// phase without a dedicated one.
func (p *PromptManager) SetSystemContext(context string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultContext = context
}

// SetBusinessContext sets the business context for a single phase.
func (p *PromptManager) SetBusinessContext(phase Phase, context string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phaseContexts[phase] = context
}

// ThoughtPrompt builds the system prompt for the think phase. Tools are
// listed for awareness only; the model must not call them here.
func (p *PromptManager) ThoughtPrompt(resourceID, taskID string, tools []catalog.ToolInfo) string {
	return p.withContext(PhaseThought, thoughtTemplate(resourceID, taskID, tools))
}

// ActionPrompt builds the system prompt for the act phase.
func (p *PromptManager) ActionPrompt(resourceID, taskID string, tools []catalog.ToolInfo) string {
	return p.withContext(PhaseAction, actionTemplate(resourceID, taskID, tools))
}

// ObservationPrompt builds the system prompt for the observe phase. No
// tools are exposed; the phase only summarizes.
func (p *PromptManager) ObservationPrompt(resourceID, taskID string) string {
	return p.withContext(PhaseObservation, observationTemplate(resourceID, taskID))
}

func (p *PromptManager) withContext(phase Phase, prompt string) string {
	p.mu.RLock()
	context, ok := p.phaseContexts[phase]
	if !ok || context == "" {
		context = p.defaultContext
	}
	p.mu.RUnlock()
	if context == "" {
		return prompt
	}
	return prompt + "\n\n---\n\n## Business Context\n\n" + context
}

func basePrompt(resourceID, taskID string) string {
	var b strings.Builder
	b.WriteString(`You are a professional assistant for working with transcribed audio and video content.

Key concepts:
- A resource is an uploaded audio or video file.
- A task is one processing run over a resource, such as transcription or summarization.
- Tool results already present in the conversation are current. Reuse them instead of calling the same tool again with the same arguments.`)
	b.WriteString("\n\nCurrent context:\n")
	if resourceID != "" {
		fmt.Fprintf(&b, "- Active resource ID: %s\n", resourceID)
	} else {
		b.WriteString("- No active resource selected.\n")
	}
	if taskID != "" {
		fmt.Fprintf(&b, "- Active task ID: %s\n", taskID)
	} else {
		b.WriteString("- No active task selected.\n")
	}
	return b.String()
}

func toolListing(tools []catalog.ToolInfo) string {
	if len(tools) == 0 {
		return "No tools are available.\n"
	}
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}

func thoughtTemplate(resourceID, taskID string, tools []catalog.ToolInfo) string {
	var b strings.Builder
	b.WriteString(basePrompt(resourceID, taskID))
	b.WriteString(`
## Current Phase: Think

Analyze the user's request and the conversation so far, then decide whether more work is needed.

Your responsibilities:
1. Review the latest user message and any tool results already gathered.
2. Decide whether the available information fully answers the request.
3. If it does, write the final answer for the user.
4. If it does not, state briefly what information is still missing.

Tools that will be available in the act phase (do not call them now):
`)
	b.WriteString(toolListing(tools))
	b.WriteString(`
## Output Format

End your reply with exactly one directive block:

` + directiveOpenTag + `{"shouldContinue": true, "reason": "why more work is needed"}` + directiveCloseTag + `

Set "shouldContinue" to false only when your reply above the block is the complete final answer:

` + directiveOpenTag + `{"shouldContinue": false, "reason": "request fully answered"}` + directiveCloseTag + `

The block is machine-read and stripped before the user sees your reply. Never mention it in your prose.`)
	return b.String()
}

func actionTemplate(resourceID, taskID string, tools []catalog.ToolInfo) string {
	var b strings.Builder
	b.WriteString(basePrompt(resourceID, taskID))
	b.WriteString(`
## Current Phase: Act

The think phase decided more information is needed. Call the tools that gather it.

Your responsibilities:
1. Pick the tools that address the missing information identified in the previous message.
2. Fill in arguments from the current context. Use the active resource and task IDs where a tool asks for them.
3. Issue the calls. Do not write an answer for the user in this phase.

Available tools:
`)
	b.WriteString(toolListing(tools))
	return b.String()
}

func observationTemplate(resourceID, taskID string) string {
	var b strings.Builder
	b.WriteString(basePrompt(resourceID, taskID))
	b.WriteString(`
## Current Phase: Observe

Tool results have just been added to the conversation.

Your responsibilities:
1. Read only the most recent tool results.
2. Summarize in one or two sentences what they contribute to the user's request.
3. Do not answer the user and do not call tools. The next think phase decides what happens next.`)
	return b.String()
}
