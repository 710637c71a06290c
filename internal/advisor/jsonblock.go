package advisor

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object found")

// extractJSONObject pulls the first complete JSON object out of model
// output that may be wrapped in markdown fences or surrounded by prose.
func extractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(stripFences(raw))
	if s == "" {
		return "", errNoJSONObject
	}
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return s, nil
	}

	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end := matchBrace(s, start); end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", errNoJSONObject
}

func stripFences(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside string literals, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
