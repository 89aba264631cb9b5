package nats

import (
	"strings"
	"unicode"
)

// namespace joins the non-empty parts into a NATS subject under prefix.
func namespace(parts ...string) string {
	formatted := make([]string, 0, len(parts)+1)
	formatted = append(formatted, subjectPrefix)
	for _, part := range parts {
		if part = formatForNamespace(part); part != "" {
			formatted = append(formatted, part)
		}
	}
	return strings.Join(formatted, ".")
}

// formatForNamespace kebab-cases camelCase and snake_case words and drops
// characters that are not valid in a subject token. Dots and wildcards are
// kept so callers can pass hierarchical subjects.
func formatForNamespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	var prev rune
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if unicode.IsLower(prev) {
				sb.WriteByte('-')
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(r)
			}
		case r == '_':
			sb.WriteByte('-')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '*' || r == '>':
			sb.WriteRune(r)
		default:
			continue
		}
		prev = r
	}
	return sb.String()
}
