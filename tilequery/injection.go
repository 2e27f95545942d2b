package tilequery

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// Finding records a request input that looks like a SQL injection attempt.
// The sanitizer still neutralizes it; findings exist for audit logs.
type Finding struct {
	Field       string
	Value       string
	Fingerprint string
}

// Inspect runs libinjection over every filter value and the full-text query.
// Drawn geometries are skipped because WKT trips the tokenizer.
func Inspect(req Request) []Finding {
	var findings []Finding
	check := func(field, value string) {
		if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
			findings = append(findings, Finding{Field: field, Value: value, Fingerprint: string(fingerprint)})
		}
	}

	for _, f := range req.Filters {
		if f.Field == GeometryField {
			continue
		}
		check(f.Field, f.Field)
		for _, v := range f.Values {
			check(f.Field, v)
		}
	}
	if req.Q != "" {
		check("q", req.Q)
	}
	for _, f := range req.Fields {
		check("fields", f)
	}
	return findings
}

func (g *Generator) screen(req Request) {
	for _, f := range Inspect(req) {
		g.logger.Warn().
			Str("resource_id", req.ResourceID).
			Str("field", f.Field).
			Str("value", f.Value).
			Str("fingerprint", f.Fingerprint).
			Msg("Suspicious map filter input")
	}
}
