//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"fmt"
	"math"
	"strconv"
)

// Renderer is anything that renders to a complete SQL statement.
// Select builders implement it, which is how subqueries become values.
type Renderer interface {
	ToSQL() (string, error)
}

// Identifier is a table or column name bound to a template label.
// It is either a bare name ("name") or a qualified pair ("qualifier"."name").
type Identifier struct {
	Qualifier string
	Name      string
	qualified bool
}

// Ident binds a bare identifier. Non-string names are converted with fmt.Sprint.
func Ident(name any) Identifier {
	return Identifier{Name: toText(name)}
}

// QualifiedIdent binds a qualifier.name pair, typically table.column.
func QualifiedIdent(qualifier, name any) Identifier {
	return Identifier{Qualifier: toText(qualifier), Name: toText(name), qualified: true}
}

// Qualified reports whether the identifier renders as "qualifier"."name".
func (i Identifier) Qualified() bool {
	return i.qualified
}

// ValueKind tags the variants of Value.
type ValueKind int

const (
	// KindText renders sanitized and single-quoted.
	KindText ValueKind = iota
	// KindNumber renders unquoted.
	KindNumber
	// KindSubquery renders the nested statement unquoted.
	KindSubquery
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindSubquery:
		return "subquery"
	default:
		return "text"
	}
}

// Value is a literal bound to a template label: a number, a text or a subquery.
// The variant is fixed when the value is constructed, never re-inspected at render time.
type Value struct {
	kind     ValueKind
	text     string
	subquery Renderer
}

// Text binds a literal that renders single-quoted after sanitization.
// Non-string inputs are converted with fmt.Sprint.
func Text(v any) Value {
	return Value{kind: KindText, text: toText(v)}
}

// Int binds an integer literal.
func Int(v int64) Value {
	return Value{kind: KindNumber, text: strconv.FormatInt(v, 10)}
}

// Uint binds an unsigned integer literal.
func Uint(v uint64) Value {
	return Value{kind: KindNumber, text: strconv.FormatUint(v, 10)}
}

// Float binds a floating point literal in its shortest exact decimal form.
// NaN and infinities have no unquoted SQL spelling, so they bind as text and render 'NaN', 'Inf' or '-Inf'.
func Float(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Text(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return Value{kind: KindNumber, text: strconv.FormatFloat(v, 'f', -1, 64)}
}

// Subquery binds a nested statement. Templates wrap it in parentheses themselves.
func Subquery(r Renderer) Value {
	return Value{kind: KindSubquery, subquery: r}
}

// ValueOf picks the variant from the dynamic type of v: Go integers and floats
// become numbers, renderers become subqueries, a Value is kept as is and
// anything else becomes text.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case Renderer:
		return Subquery(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Uint(uint64(x))
	case uint8:
		return Uint(uint64(x))
	case uint16:
		return Uint(uint64(x))
	case uint32:
		return Uint(uint64(x))
	case uint64:
		return Uint(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	default:
		return Text(v)
	}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Raw returns the unescaped text of a text value or the literal of a number.
// It is empty for subqueries.
func (v Value) Raw() string {
	return v.text
}

// Renderer returns the nested statement of a subquery value.
func (v Value) Renderer() Renderer {
	return v.subquery
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
