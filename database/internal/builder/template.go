package builder

import (
	"fmt"
	"regexp"
	"strings"

	dbtypes "github.com/gaborage/go-tiledmap/database/types"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// compactTemplate collapses whitespace runs to one space and trims the result.
// It runs on template text only, before any substitution.
func compactTemplate(tmpl string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(tmpl, " "))
}

// formatTemplate substitutes every {label} in tmpl with resolve(label).
// "{{" and "}}" produce literal braces. A substitution starting with '-'
// is separated by a space from a preceding '-'.
func formatTemplate(tmpl string, resolve func(label string) (string, error)) (string, error) {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl, nil
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(tmpl[i+1:], "{}")
			if end < 0 || tmpl[i+1+end] != '}' {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", dbtypes.ErrMalformedTemplate, i)
			}
			label := tmpl[i+1 : i+1+end]
			if label == "" {
				return "", fmt.Errorf("%w: empty placeholder at offset %d", dbtypes.ErrMalformedTemplate, i)
			}
			sub, err := resolve(label)
			if err != nil {
				return "", err
			}
			// A negative number after a template '-' would open a "--" comment.
			if strings.HasPrefix(sub, "-") && strings.HasSuffix(b.String(), "-") {
				b.WriteByte(' ')
			}
			b.WriteString(sub)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", dbtypes.ErrMalformedTemplate, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
