// Package aijson extracts JSON payloads from LLM output. Model responses
// wrap JSON in prose or markdown fences and, for free-form prompts, produce
// structurally broken JSON, so parsing here is deliberately lenient.
package aijson

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var ErrNoJSON = errors.New("no parseable JSON found in response")

// StripFences removes a leading ```json / ``` fence and a trailing ```
// fence, if present, and trims surrounding whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// UnmarshalArray parses raw into v, expecting a JSON array. It tries a
// strict parse first, then falls back to extracting the first [...] span.
func UnmarshalArray(raw string, v interface{}) error {
	cleaned := StripFences(raw)

	if json.Unmarshal([]byte(cleaned), v) == nil {
		return nil
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err != nil {
		return ErrNoJSON
	}
	return nil
}

// UnmarshalObject parses raw into v, expecting a JSON object. Same policy
// as UnmarshalArray but for {...} spans.
func UnmarshalObject(raw string, v interface{}) error {
	cleaned := StripFences(raw)

	if json.Unmarshal([]byte(cleaned), v) == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err != nil {
		return ErrNoJSON
	}
	return nil
}

var (
	bareKeyRe     = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	singleQuoteRe = regexp.MustCompile(`'([^']*)'`)
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
)

// UnmarshalArrayRepaired is the aggressive variant used for coding-round
// output: after the normal paths fail it rewrites common LLM JSON defects
// (bare keys, single quotes, trailing commas, unbalanced brackets) and as a
// last resort harvests individual well-formed objects into an array.
func UnmarshalArrayRepaired(raw string, v interface{}) error {
	if err := UnmarshalArray(raw, v); err == nil {
		return nil
	}

	cleaned := StripFences(raw)
	repaired := repair(cleaned)
	if json.Unmarshal([]byte(repaired), v) == nil {
		return nil
	}

	start := strings.Index(repaired, "[")
	end := strings.LastIndex(repaired, "]")
	if start != -1 && end > start {
		if json.Unmarshal([]byte(repaired[start:end+1]), v) == nil {
			return nil
		}
	}

	if fragments := extractObjects(repaired); len(fragments) > 0 {
		assembled := "[" + strings.Join(fragments, ",") + "]"
		if json.Unmarshal([]byte(assembled), v) == nil {
			return nil
		}
	}

	return ErrNoJSON
}

func repair(s string) string {
	s = bareKeyRe.ReplaceAllString(s, `$1"$2":`)
	s = singleQuoteRe.ReplaceAllString(s, `"$1"`)
	s = trailingComma.ReplaceAllString(s, `$1`)
	return balanceBrackets(s)
}

// balanceBrackets appends missing closers for any [ or { left open at the
// end of the string. Quoted sections are skipped so bracket characters in
// string values do not confuse the count.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case '[', '{':
			if !inString {
				stack = append(stack, c)
			}
		case ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		case '}':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			s += "]"
		} else {
			s += "}"
		}
	}
	return s
}

// extractObjects returns every top-level balanced {...} span that parses as
// valid JSON on its own.
func extractObjects(s string) []string {
	var out []string
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					frag := s[start : i+1]
					if json.Valid([]byte(frag)) {
						out = append(out, frag)
					}
					start = -1
				}
			}
		}
	}
	return out
}
