package agent

import (
	"reflect"
	"testing"
)

func TestExtractDirectiveClosedTag(t *testing.T) {
	text := `The answer is 4.

<agent_meta>{"shouldContinue": false, "reason": "question answered"}</agent_meta>`

	d := ExtractDirective(text)
	if d == nil {
		t.Fatal("expected a directive")
	}
	if d.Continue {
		t.Error("expected continue=false")
	}
	if d.Reason != "question answered" {
		t.Errorf("reason = %q", d.Reason)
	}
	if len(d.Unknown) != 0 {
		t.Errorf("unexpected unknown fields: %v", d.Unknown)
	}
}

func TestExtractDirectiveUnterminatedTag(t *testing.T) {
	// Stream ended before the closing marker arrived.
	text := `Need more data. <agent_meta>{"shouldContinue": true, "reason": "missing transcript"}`

	d := ExtractDirective(text)
	if d == nil {
		t.Fatal("expected a directive from an unterminated tag")
	}
	if !d.Continue || d.Reason != "missing transcript" {
		t.Errorf("got %+v", d)
	}
}

func TestExtractDirectiveTruncatedJSON(t *testing.T) {
	// The object itself was cut off mid-stream.
	text := `<agent_meta>{"shouldContinue": false, "reason": "done`

	d := ExtractDirective(text)
	if d == nil {
		t.Fatal("expected a directive from a truncated fragment")
	}
	if d.Continue {
		t.Error("expected the readable shouldContinue field to be honored")
	}
}

func TestExtractDirectiveMalformedDefaultsToContinue(t *testing.T) {
	texts := []string{
		`<agent_meta>{"shouldContinue": maybe}</agent_meta>`,
		`<agent_meta>{broken</agent_meta>`,
		`<agent_meta>{"shouldContinue": "yes"}</agent_meta>`,
	}
	for _, text := range texts {
		d := ExtractDirective(text)
		if d == nil {
			t.Fatalf("%q: expected a default directive", text)
		}
		if !d.Continue {
			t.Errorf("%q: malformed content must default to continue", text)
		}
	}
}

func TestExtractDirectiveNone(t *testing.T) {
	tests := []string{
		"plain answer without markers",
		"<agent_meta></agent_meta>",
		"<agent_meta>no object here</agent_meta>",
	}
	for _, text := range tests {
		if d := ExtractDirective(text); d != nil {
			t.Errorf("%q: expected nil, got %+v", text, d)
		}
	}
}

func TestExtractDirectiveUnknownFields(t *testing.T) {
	text := `<agent_meta>{"shouldContinue": true, "confidence": 0.9, "phase": "x"}</agent_meta>`

	d := ExtractDirective(text)
	if d == nil {
		t.Fatal("expected a directive")
	}
	if !d.Continue {
		t.Error("expected continue=true")
	}
	if !reflect.DeepEqual(d.Unknown, []string{"confidence", "phase"}) {
		t.Errorf("unknown fields = %v", d.Unknown)
	}
}

func TestExtractDirectiveAbsentFieldDefaultsToContinue(t *testing.T) {
	d := ExtractDirective(`<agent_meta>{"reason": "just thinking"}</agent_meta>`)
	if d == nil {
		t.Fatal("expected a directive")
	}
	if !d.Continue {
		t.Error("absent shouldContinue must default to true")
	}
	if d.Reason != "just thinking" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestStripDirective(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"closed tag",
			"The answer.\n\n<agent_meta>{\"shouldContinue\": false}</agent_meta>",
			"The answer.",
		},
		{
			"unterminated tag",
			"Partial answer. <agent_meta>{\"shouldContinue\": fa",
			"Partial answer.",
		},
		{
			"no tag",
			"Nothing to strip.",
			"Nothing to strip.",
		},
		{
			"only tag",
			"<agent_meta>{\"shouldContinue\": false}</agent_meta>",
			"",
		},
		{
			"multiple tags",
			"<agent_meta>{}</agent_meta>middle<agent_meta>{}</agent_meta>",
			"middle",
		},
	}
	for _, tt := range tests {
		if got := StripDirective(tt.in); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStripDirectiveIdempotent(t *testing.T) {
	in := "Answer text.\n<agent_meta>{\"shouldContinue\": false}</agent_meta>"
	once := StripDirective(in)
	if twice := StripDirective(once); twice != once {
		t.Errorf("strip not idempotent: %q then %q", once, twice)
	}
}
