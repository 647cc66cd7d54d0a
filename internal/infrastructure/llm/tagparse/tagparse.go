// Package tagparse recovers tag arrays from LLM responses that wrap the
// payload in prose or markdown code fences. Models routinely ignore
// "return ONLY the JSON array" instructions, so parsing has to.
package tagparse

import (
	"encoding/json"
	"strings"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

// FallbackTag is the single degraded tag used when no well-formed array can
// be recovered.
var FallbackTag = domain.Tag{Name: "document", Confidence: 0.5}

// Parse extracts the first well-formed JSON array from raw and decodes it
// into tags. It never fails: an unparseable response degrades to the single
// fallback tag, and ok reports whether real tags were recovered.
func Parse(raw string) (tags []domain.Tag, ok bool) {
	raw = stripFence(raw)

	// Prose may contain incidental bracketed spans before the payload, so
	// try each balanced candidate until one decodes.
	for offset := 0; offset < len(raw); {
		start := strings.Index(raw[offset:], "[")
		if start < 0 {
			break
		}
		start += offset

		candidate := balancedSpan(raw[start:])
		if candidate == "" {
			break
		}

		var parsed []domain.Tag
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			if out := cleanTags(parsed); len(out) > 0 {
				return out, true
			}
		}
		offset = start + 1
	}

	return []domain.Tag{FallbackTag}, false
}

func cleanTags(parsed []domain.Tag) []domain.Tag {
	out := make([]domain.Tag, 0, len(parsed))
	for _, tag := range parsed {
		tag.Name = strings.TrimSpace(tag.Name)
		if tag.Name == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// balancedSpan returns the balanced bracketed prefix of raw, which must
// start at a '['; an unterminated span yields "".
func balancedSpan(raw string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return raw[:i+1]
			}
		}
	}
	return ""
}

func stripFence(raw string) string {
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		raw = raw[idx+len("```json"):]
	} else if idx := strings.Index(raw, "```"); idx >= 0 {
		raw = raw[idx+3:]
	} else {
		return raw
	}
	if end := strings.Index(raw, "```"); end >= 0 {
		raw = raw[:end]
	}
	return raw
}
