// Package builder implements the templated SELECT builder used to hand SQL text
// to renderers that cannot take bound parameters. Every identifier and literal
// substituted into a template goes through Sanitize.
package builder

import (
	"fmt"
	"strings"

	dbtypes "github.com/gaborage/go-tiledmap/database/types"
)

type section int

const (
	sectionFrom section = iota
	sectionDistinctOn
	sectionSelect
	sectionWhere
	sectionGroupBy
	sectionOrderBy
	sectionCount
)

var sectionNames = [sectionCount]string{"from", "distinct_on", "select", "where", "group_by", "order_by"}

func (s section) String() string {
	return sectionNames[s]
}

// Option configures a Select at construction.
type Option func(*Select)

// WithCompact collapses whitespace runs in clause templates (not in bindings).
func WithCompact() Option {
	return func(s *Select) { s.compact = true }
}

// WithNewlines joins the rendered sections with newlines instead of spaces.
func WithNewlines() Option {
	return func(s *Select) { s.newlines = true }
}

// WithStrict makes rendering fail when sanitization would alter a binding,
// instead of silently dropping the offending characters.
func WithStrict() Option {
	return func(s *Select) { s.strict = true }
}

// WithIdentifiers sets identifiers visible to every clause item.
func WithIdentifiers(ids dbtypes.Identifiers) Option {
	return func(s *Select) { ids.Bind(&s.global) }
}

// WithValues sets values visible to every clause item.
func WithValues(vals dbtypes.Values) Option {
	return func(s *Select) { vals.Bind(&s.global) }
}

type clauseItem struct {
	expr  string
	local dbtypes.Context
}

// Select accumulates the clauses of one SELECT statement.
// Clause methods append and return the receiver; nothing is ever removed.
// A Select is owned by the goroutine building it.
type Select struct {
	compact  bool
	newlines bool
	strict   bool
	global   dbtypes.Context
	items    [sectionCount][]clauseItem
}

// NewSelect creates an empty statement.
func NewSelect(opts ...Option) *Select {
	s := &Select{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectFrom adds a FROM item, e.g. "{table}" or "({query}) AS sub".
func (s *Select) SelectFrom(expr string, bindings ...dbtypes.Binding) *Select {
	return s.add(sectionFrom, expr, bindings)
}

// DistinctOn adds an expression to the DISTINCT ON list.
func (s *Select) DistinctOn(expr string, bindings ...dbtypes.Binding) *Select {
	return s.add(sectionDistinctOn, expr, bindings)
}

// Select adds an expression to the select list.
func (s *Select) Select(expr string, bindings ...dbtypes.Binding) *Select {
	return s.add(sectionSelect, expr, bindings)
}

// Where adds a condition. Conditions are parenthesized and joined with AND;
// an OR belongs inside a single condition.
func (s *Select) Where(expr string, bindings ...dbtypes.Binding) *Select {
	return s.add(sectionWhere, expr, bindings)
}

// GroupBy adds a GROUP BY expression.
func (s *Select) GroupBy(expr string, bindings ...dbtypes.Binding) *Select {
	return s.add(sectionGroupBy, expr, bindings)
}

// OrderBy adds an ORDER BY expression.
func (s *Select) OrderBy(expr string, bindings ...dbtypes.Binding) *Select {
	return s.add(sectionOrderBy, expr, bindings)
}

func (s *Select) add(sec section, expr string, bindings []dbtypes.Binding) *Select {
	s.items[sec] = append(s.items[sec], clauseItem{expr: expr, local: dbtypes.NewContext(bindings...)})
	return s
}

// ToSQL renders the statement. It fails with a *MissingSectionError when FROM
// or SELECT is empty, and with the first binding or template error otherwise.
func (s *Select) ToSQL() (string, error) {
	return s.render(0)
}

// ToSql makes Select a squirrel.Sqlizer. The SQL carries no bind arguments.
//
//nolint:revive // Name fixed by the squirrel.Sqlizer interface.
func (s *Select) ToSql() (string, []any, error) {
	sql, err := s.ToSQL()
	if err != nil {
		return "", nil, err
	}
	return sql, nil, nil
}

func (s *Select) render(depth int) (string, error) {
	if depth > dbtypes.MaxNestingDepth {
		return "", dbtypes.ErrNestingTooDeep
	}
	if len(s.items[sectionFrom]) == 0 {
		return "", &dbtypes.MissingSectionError{Section: sectionFrom.String()}
	}
	if len(s.items[sectionSelect]) == 0 {
		return "", &dbtypes.MissingSectionError{Section: sectionSelect.String()}
	}

	var rendered [sectionCount][]string
	for sec := section(0); sec < sectionCount; sec++ {
		out, err := s.renderSection(sec, depth)
		if err != nil {
			return "", err
		}
		rendered[sec] = out
	}

	head := "SELECT"
	if distinct := rendered[sectionDistinctOn]; len(distinct) > 0 {
		head += " DISTINCT ON (" + strings.Join(distinct, ", ") + ")"
	}
	head += " " + strings.Join(rendered[sectionSelect], ", ")

	parts := []string{head, "FROM " + strings.Join(rendered[sectionFrom], ", ")}
	if where := rendered[sectionWhere]; len(where) > 0 {
		parts = append(parts, "WHERE ("+strings.Join(where, ") AND (")+")")
	}
	if groupBy := rendered[sectionGroupBy]; len(groupBy) > 0 {
		parts = append(parts, "GROUP BY "+strings.Join(groupBy, ", "))
	}
	if orderBy := rendered[sectionOrderBy]; len(orderBy) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(orderBy, ", "))
	}

	sep := " "
	if s.newlines {
		sep = "\n"
	}
	return strings.Join(parts, sep), nil
}

func (s *Select) renderSection(sec section, depth int) ([]string, error) {
	items := s.items[sec]
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		expr := item.expr
		if s.compact {
			expr = compactTemplate(expr)
		}
		sql, err := formatTemplate(expr, func(label string) (string, error) {
			return s.resolve(item.local, label, depth)
		})
		if err != nil {
			return nil, fmt.Errorf("render %s item %d: %w", sec, i+1, err)
		}
		out = append(out, sql)
	}
	return out, nil
}

// resolve looks label up in the item's local bindings, then in the global ones,
// and renders the binding it finds.
func (s *Select) resolve(local dbtypes.Context, label string, depth int) (string, error) {
	id, isIdent := lookup(local.Identifiers, s.global.Identifiers, label)
	val, isValue := lookup(local.Values, s.global.Values, label)

	switch {
	case isIdent && isValue:
		return "", &dbtypes.LabelCollisionError{Label: label}
	case isIdent:
		return s.renderIdentifier(label, id)
	case isValue:
		return s.renderValue(label, val, depth)
	default:
		return "", &dbtypes.UnresolvedPlaceholderError{Label: label}
	}
}

func lookup[T any](local, global map[string]T, label string) (T, bool) {
	if v, ok := local[label]; ok {
		return v, true
	}
	v, ok := global[label]
	return v, ok
}

func (s *Select) renderIdentifier(label string, id dbtypes.Identifier) (string, error) {
	if s.strict && (!isClean(id.Name) || (id.Qualified() && !isClean(id.Qualifier))) {
		return "", &dbtypes.DisallowedCharactersError{Label: label}
	}
	return QuoteIdentifier(id), nil
}

func (s *Select) renderValue(label string, v dbtypes.Value, depth int) (string, error) {
	switch v.Kind() {
	case dbtypes.KindNumber:
		return v.Raw(), nil
	case dbtypes.KindSubquery:
		return renderSubquery(v.Renderer(), depth)
	default:
		if s.strict && !isClean(v.Raw()) {
			return "", &dbtypes.DisallowedCharactersError{Label: label}
		}
		return QuoteLiteral(v.Raw()), nil
	}
}

func renderSubquery(r dbtypes.Renderer, depth int) (string, error) {
	if r == nil {
		return "", dbtypes.ErrNilSubquery
	}
	if sub, ok := r.(*Select); ok {
		if sub == nil {
			return "", dbtypes.ErrNilSubquery
		}
		return sub.render(depth + 1)
	}
	return r.ToSQL()
}
