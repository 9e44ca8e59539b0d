package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// errNoJSON is returned when no JSON payload can be located in a response.
var errNoJSON = errors.New("no JSON payload in response")

// unmarshalJSONArray extracts the first JSON array from raw model output and
// unmarshals it into v. Models often wrap the payload in prose or markdown
// fences; everything outside the outermost brackets is ignored.
func unmarshalJSONArray(raw string, v interface{}) error {
	payload := extractDelimited(raw, '[', ']')
	if payload == "" {
		return errNoJSON
	}
	return json.Unmarshal([]byte(payload), v)
}

// unmarshalJSONObject extracts the first JSON object from raw model output
// and unmarshals it into v.
func unmarshalJSONObject(raw string, v interface{}) error {
	payload := extractDelimited(raw, '{', '}')
	if payload == "" {
		return errNoJSON
	}
	return json.Unmarshal([]byte(payload), v)
}

// extractDelimited returns the substring from the first open delimiter to its
// matching close delimiter, tracking nesting and skipping delimiters inside
// string literals.
func extractDelimited(raw string, open, close byte) string {
	start := strings.IndexByte(raw, open)
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
