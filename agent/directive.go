package agent

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/buger/jsonparser"
)

// Control-channel markers. The model embeds a JSON object between these
// markers to signal whether the loop should continue.
const (
	directiveOpenTag  = "<agent_meta>"
	directiveCloseTag = "</agent_meta>"
)

// Directive is the parsed continuation signal from a think phase.
type Directive struct {
	// Continue reports whether the loop should run another iteration.
	// Defaults to true when the field is absent or unreadable.
	Continue bool

	// Reason is the model's stated motivation for the decision.
	Reason string

	// Unknown lists fields present in the directive object that the
	// protocol does not define. They carry no behavior.
	Unknown []string
}

// directiveRe captures the region between the markers, or from an
// opening marker to the end of text when the stream ended before the
// closing marker arrived.
var directiveRe = regexp.MustCompile(`(?s)<agent_meta>\s*(.*?)\s*(?:</agent_meta>|\z)`)

var (
	closedDirectiveRe = regexp.MustCompile(`(?s)<agent_meta>.*?</agent_meta>`)
	openDirectiveRe   = regexp.MustCompile(`(?s)<agent_meta>.*\z`)
)

// ExtractDirective locates the first directive region in text and
// parses it. Returns nil when no marker is present or the region holds
// nothing that resembles an object. Malformed or truncated object
// content degrades to a default-continue directive rather than an
// error, so a garbled stream never wedges the loop into a false stop.
func ExtractDirective(text string) *Directive {
	m := directiveRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := extractJSONObject(m[1])
	if raw == "" {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err == nil {
		d := &Directive{Continue: true}
		for key, value := range fields {
			switch key {
			case "shouldContinue":
				var b bool
				if json.Unmarshal(value, &b) == nil {
					d.Continue = b
				}
			case "reason":
				var s string
				if json.Unmarshal(value, &s) == nil {
					d.Reason = s
				}
			default:
				d.Unknown = append(d.Unknown, key)
			}
		}
		sort.Strings(d.Unknown)
		return d
	}

	// The object is not valid JSON, typically a fragment cut off
	// mid-stream. Salvage what is readable.
	d := &Directive{Continue: true}
	if b, err := jsonparser.GetBoolean([]byte(raw), "shouldContinue"); err == nil {
		d.Continue = b
	}
	if s, err := jsonparser.GetString([]byte(raw), "reason"); err == nil {
		d.Reason = s
	}
	return d
}

// StripDirective removes every directive region from text, including an
// unterminated region left open at the end of a truncated stream, and
// trims surrounding whitespace. Applying it to already-stripped text is
// a no-op.
func StripDirective(text string) string {
	cleaned := closedDirectiveRe.ReplaceAllString(text, "")
	cleaned = openDirectiveRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSONObject pulls the first balanced JSON object out of body.
// An unbalanced tail starting at '{' is returned as-is so the lenient
// parser can pick fields out of the fragment. Returns "" when body
// contains no object at all.
func extractJSONObject(body string) string {
	start := strings.IndexByte(body, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(body); i++ {
		c := body[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return body[start : i+1]
				}
			}
		}
	}
	return body[start:]
}
