// Package database provides the templated SELECT builder used to produce SQL
// for renderers that only accept complete statements.
package database

import (
	"github.com/gaborage/go-tiledmap/database/internal/builder"
	"github.com/gaborage/go-tiledmap/database/types"
)

// Select accumulates the clauses of one SELECT statement.
// See NewSelect for the template syntax.
type Select = builder.Select

// Option configures a Select at construction.
type Option = builder.Option

// NewSelect creates an empty statement. Clause templates reference bindings as
// {label}; "{{" and "}}" are literal braces. A label resolves first against the
// bindings passed with the clause, then against the ones given here.
func NewSelect(opts ...Option) *Select {
	return builder.NewSelect(opts...)
}

// WithCompact collapses whitespace runs in clause templates.
func WithCompact() Option { return builder.WithCompact() }

// WithNewlines puts each rendered section on its own line.
func WithNewlines() Option { return builder.WithNewlines() }

// WithStrict rejects bindings that sanitization would alter.
func WithStrict() Option { return builder.WithStrict() }

// WithIdentifiers sets identifiers visible to every clause.
func WithIdentifiers(ids types.Identifiers) Option { return builder.WithIdentifiers(ids) }

// WithValues sets values visible to every clause.
func WithValues(vals types.Values) Option { return builder.WithValues(vals) }

// Sanitize reduces raw to the characters allowed in rendered SQL.
func Sanitize(raw any) string {
	return builder.Sanitize(raw)
}

// QuoteIdentifier renders a sanitized, double-quoted identifier.
func QuoteIdentifier(id types.Identifier) string {
	return builder.QuoteIdentifier(id)
}

// QuoteLiteral renders a sanitized, single-quoted literal.
func QuoteLiteral(raw any) string {
	return builder.QuoteLiteral(raw)
}

var _ types.Renderer = (*Select)(nil)
