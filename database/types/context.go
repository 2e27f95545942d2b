//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

// Binding contributes labels to a rendering context.
// Identifiers and Values both implement it, so clause methods accept either.
type Binding interface {
	Bind(ctx *Context)
}

// Identifiers maps template labels to identifiers.
type Identifiers map[string]Identifier

// Values maps template labels to literal values.
type Values map[string]Value

// Bind overlays the identifiers onto ctx; later bindings win.
func (ids Identifiers) Bind(ctx *Context) {
	if len(ids) == 0 {
		return
	}
	if ctx.Identifiers == nil {
		ctx.Identifiers = make(Identifiers, len(ids))
	}
	for label, id := range ids {
		ctx.Identifiers[label] = id
	}
}

// Bind overlays the values onto ctx; later bindings win.
func (vals Values) Bind(ctx *Context) {
	if len(vals) == 0 {
		return
	}
	if ctx.Values == nil {
		ctx.Values = make(Values, len(vals))
	}
	for label, v := range vals {
		ctx.Values[label] = v
	}
}

// IdentifiersOf converts loosely typed bindings. A [2]string or a two-element
// []string becomes a qualified identifier, an Identifier is kept, anything
// else is a bare name.
func IdentifiersOf(m map[string]any) Identifiers {
	ids := make(Identifiers, len(m))
	for label, raw := range m {
		switch x := raw.(type) {
		case Identifier:
			ids[label] = x
		case [2]string:
			ids[label] = QualifiedIdent(x[0], x[1])
		case []string:
			if len(x) == 2 {
				ids[label] = QualifiedIdent(x[0], x[1])
				continue
			}
			ids[label] = Ident(raw)
		default:
			ids[label] = Ident(raw)
		}
	}
	return ids
}

// ValuesOf converts loosely typed bindings with ValueOf.
func ValuesOf(m map[string]any) Values {
	vals := make(Values, len(m))
	for label, raw := range m {
		vals[label] = ValueOf(raw)
	}
	return vals
}

// Context holds the bindings visible to one clause item.
type Context struct {
	Identifiers Identifiers
	Values      Values
}

// NewContext builds a context from bindings applied in order.
func NewContext(bindings ...Binding) Context {
	var ctx Context
	for _, b := range bindings {
		if b != nil {
			b.Bind(&ctx)
		}
	}
	return ctx
}

// Overlay returns a copy of c with the bindings applied on top.
// c itself is never modified, so a global context can be shared by every item.
func (c Context) Overlay(bindings ...Binding) Context {
	out := Context{}
	c.Identifiers.Bind(&out)
	c.Values.Bind(&out)
	for _, b := range bindings {
		if b != nil {
			b.Bind(&out)
		}
	}
	return out
}
