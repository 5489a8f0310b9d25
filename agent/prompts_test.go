package agent

import (
	"strings"
	"testing"

	"reactagent/catalog"
)

var testTools = []catalog.ToolInfo{
	{Name: "get_transcript", Description: "Fetches the transcript of a resource."},
	{Name: "search_segments", Description: "Searches transcript segments."},
}

func TestThoughtPromptDeterministic(t *testing.T) {
	p := NewPromptManager()
	a := p.ThoughtPrompt("res-1", "task-1", testTools)
	b := p.ThoughtPrompt("res-1", "task-1", testTools)
	if a != b {
		t.Error("same inputs must produce the same prompt")
	}
}

func TestThoughtPromptContents(t *testing.T) {
	p := NewPromptManager()
	prompt := p.ThoughtPrompt("res-1", "task-1", testTools)

	for _, want := range []string{
		"res-1", "task-1",
		"get_transcript", "search_segments",
		directiveOpenTag, "shouldContinue",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("thought prompt missing %q", want)
		}
	}
}

func TestThoughtPromptNoContext(t *testing.T) {
	p := NewPromptManager()
	prompt := p.ThoughtPrompt("", "", nil)
	if !strings.Contains(prompt, "No active resource selected") {
		t.Error("expected explicit no-resource note")
	}
	if !strings.Contains(prompt, "No tools are available") {
		t.Error("expected empty tool listing note")
	}
	if strings.Contains(prompt, "Business Context") {
		t.Error("no business context configured, none should appear")
	}
}

func TestObservationPromptTakesNoTools(t *testing.T) {
	p := NewPromptManager()
	prompt := p.ObservationPrompt("res-1", "")
	if strings.Contains(prompt, "get_transcript") {
		t.Error("observe prompt must not list tools")
	}
	if !strings.Contains(prompt, "Observe") {
		t.Error("expected the observe phase section")
	}
}

func TestBusinessContextPerPhase(t *testing.T) {
	p := NewPromptManager()
	p.SetSystemContext("general guidance")
	p.SetBusinessContext(PhaseAction, "action guidance")

	thought := p.ThoughtPrompt("", "", nil)
	if !strings.Contains(thought, "general guidance") {
		t.Error("thought prompt should fall back to the default context")
	}

	action := p.ActionPrompt("", "", nil)
	if !strings.Contains(action, "action guidance") {
		t.Error("action prompt should use its dedicated context")
	}
	if strings.Contains(action, "general guidance") {
		t.Error("dedicated context must override the default")
	}
}

func TestBusinessContextAppendedAfterTemplate(t *testing.T) {
	p := NewPromptManager()
	p.SetSystemContext("ctx")
	prompt := p.ThoughtPrompt("", "", nil)
	idx := strings.Index(prompt, "## Business Context")
	if idx < 0 {
		t.Fatal("context section missing")
	}
	if strings.Contains(prompt[idx:], "## Output Format") {
		t.Error("context must come after the template body")
	}
}
