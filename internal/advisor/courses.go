package advisor

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

var (
	courseSeparators = regexp.MustCompile(`[,;\s]+`)
	coursePattern    = regexp.MustCompile(`^([A-Za-z]+)\s*(\d+.*)$`)
)

// NormalizeCourseCode rewrites "comp110" or "Comp 110" as "COMP 110".
// Tokens that do not look like a course code are upper-cased as-is.
func NormalizeCourseCode(token string) string {
	token = strings.TrimSpace(token)
	m := coursePattern.FindStringSubmatch(token)
	if m == nil {
		return strings.ToUpper(token)
	}
	return strings.ToUpper(m[1]) + " " + strings.TrimSpace(m[2])
}

// SplitCourses splits a free-form course list such as "COMP 110, math231;
// STOR 155" into normalized codes. A department token followed by a number
// token is joined back into one code.
func SplitCourses(list string) []string {
	fields := courseSeparators.Split(strings.TrimSpace(list), -1)
	out := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if tok == "" {
			continue
		}
		if isLetters(tok) && i+1 < len(fields) && startsWithDigit(fields[i+1]) {
			tok += " " + fields[i+1]
			i++
		}
		out = append(out, NormalizeCourseCode(tok))
	}
	return out
}

// parseCourseList accepts courses either as a list, whose items are kept
// whole, or as one delimited string. A string that holds a JSON array is
// decoded as a list.
func parseCourseList(field string, v any) ([]string, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		var items []any
		if !strings.HasPrefix(s, "[") || json.Unmarshal([]byte(s), &items) != nil {
			if isBlank(s) {
				return nil, nil
			}
			return SplitCourses(s), nil
		}
		v = items
	}
	items, err := stringList(field, v)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, NormalizeCourseCode(item))
	}
	return out, nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
