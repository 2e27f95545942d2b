package builder

import (
	"fmt"
	"strings"

	dbtypes "github.com/gaborage/go-tiledmap/database/types"
)

// allowed is the complete character set that may reach rendered SQL from a binding.
// Everything else is dropped, including every byte of a multi-byte UTF-8 sequence.
var allowed = func() (table [256]bool) {
	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		table[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}
	for _, c := range " -_(),." {
		table[c] = true
	}
	return table
}()

// Sanitize reduces raw to the allow-listed characters: ASCII letters, digits,
// space, '-', '_', '(', ')', ',' and '.'. A run of two or more hyphens is
// dropped entirely so a "--" comment marker cannot be formed. Non-string input
// is converted with fmt.Sprint first.
//
// Sanitize never fails and Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(raw any) string {
	s, ok := raw.(string)
	if !ok {
		s = fmt.Sprint(raw)
	}

	var b strings.Builder
	b.Grow(len(s))
	hyphens := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !allowed[c] {
			continue
		}
		if c == '-' {
			hyphens++
			continue
		}
		if hyphens == 1 {
			b.WriteByte('-')
		}
		hyphens = 0
		b.WriteByte(c)
	}
	if hyphens == 1 {
		b.WriteByte('-')
	}
	return b.String()
}

// QuoteIdentifier renders an identifier as "name" or "qualifier"."name".
func QuoteIdentifier(id dbtypes.Identifier) string {
	if id.Qualified() {
		return `"` + Sanitize(id.Qualifier) + `"."` + Sanitize(id.Name) + `"`
	}
	return `"` + Sanitize(id.Name) + `"`
}

// QuoteLiteral renders raw as a single-quoted string literal.
func QuoteLiteral(raw any) string {
	return "'" + Sanitize(raw) + "'"
}

// isClean reports whether s survives sanitization unchanged.
func isClean(s string) bool {
	return Sanitize(s) == s
}
