package builder

import (
	"errors"
	"math"
	"testing"

	"github.com/Masterminds/squirrel"
	dbtypes "github.com/gaborage/go-tiledmap/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tableName    = "table"
	fieldName    = "field"
	fieldLabel   = "{field}"
	anotherField = "another_field"
	carrotCake   = "carrot cake"

	allowList = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_ (),."
)

func minimal(opts ...Option) *Select {
	return NewSelect(opts...).SelectFrom(tableName).Select(fieldName)
}

func allSections(opts ...Option) *Select {
	return NewSelect(opts...).
		SelectFrom(tableName).
		DistinctOn(anotherField).
		Select(fieldName).
		Where("number = 1").
		OrderBy("way ASC").
		GroupBy("group")
}

func mustSQL(t *testing.T, s *Select) string {
	t.Helper()
	sql, err := s.ToSQL()
	require.NoError(t, err)
	return sql
}

func TestToSQLRequiresFromAndSelect(t *testing.T) {
	tests := []struct {
		name    string
		sel     *Select
		section string
	}{
		{name: "empty", sel: NewSelect(), section: "from"},
		{name: "from only", sel: NewSelect().SelectFrom(tableName), section: "select"},
		{name: "select only", sel: NewSelect().Select(fieldName), section: "from"},
		{name: "everything but select", sel: NewSelect().SelectFrom(tableName).Where("a = 1").OrderBy("a"), section: "select"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sel.ToSQL()
			require.Error(t, err)
			assert.ErrorIs(t, err, dbtypes.ErrMissingSection)

			var missing *dbtypes.MissingSectionError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.section, missing.Section)
		})
	}

	t.Run("from and select present", func(t *testing.T) {
		_, err := minimal().ToSQL()
		assert.NoError(t, err)
	})
}

func TestToSQLMinimal(t *testing.T) {
	assert.Equal(t, "SELECT field FROM table", mustSQL(t, minimal()))
}

func TestToSQLAllSections(t *testing.T) {
	assert.Equal(t,
		"SELECT DISTINCT ON (another_field) field FROM table WHERE (number = 1) GROUP BY group ORDER BY way ASC",
		mustSQL(t, allSections()))

	sel := NewSelect().
		SelectFrom(tableName).
		DistinctOn("f2").
		Select("f1").
		Where("n = 1").
		GroupBy("g").
		OrderBy("f1 ASC")
	assert.Equal(t, "SELECT DISTINCT ON (f2) f1 FROM table WHERE (n = 1) GROUP BY g ORDER BY f1 ASC", mustSQL(t, sel))
}

func TestToSQLMultipleItemsPerSection(t *testing.T) {
	sel := NewSelect().
		SelectFrom("table1").SelectFrom("table2").
		DistinctOn("fielda").DistinctOn("fieldb").
		Select("field1").Select("field2").
		Where("number1 = 1").Where("number2 = 2").
		OrderBy("way1 ASC").OrderBy("way2 ASC").
		GroupBy("group1").GroupBy("group2")

	assert.Equal(t,
		"SELECT DISTINCT ON (fielda, fieldb) field1, field2 FROM table1, table2 WHERE (number1 = 1) AND (number2 = 2)"+
			" GROUP BY group1, group2 ORDER BY way1 ASC, way2 ASC",
		mustSQL(t, sel))
}

func TestGlobalIdentifiers(t *testing.T) {
	sel := NewSelect(WithIdentifiers(dbtypes.Identifiers{
		"table": dbtypes.Ident("table_name"),
		"field": dbtypes.Ident("field_name"),
	})).
		SelectFrom("{table}").
		DistinctOn(fieldLabel).
		Select(fieldLabel).
		Where("{field} = 1").
		OrderBy("{field} ASC").
		GroupBy(fieldLabel)

	assert.Equal(t,
		`SELECT DISTINCT ON ("field_name") "field_name" FROM "table_name" WHERE ("field_name" = 1) GROUP BY "field_name" ORDER BY "field_name" ASC`,
		mustSQL(t, sel))
}

func TestGlobalValues(t *testing.T) {
	sel := minimal(WithValues(dbtypes.ValuesOf(map[string]any{"val1": carrotCake, "val2": "32"}))).
		Where("f1 = {val1}").
		Where("f2 = {val2}")

	assert.Equal(t, "SELECT field FROM table WHERE (f1 = 'carrot cake') AND (f2 = '32')", mustSQL(t, sel))
}

func TestLocalIdentifiersOverrideGlobal(t *testing.T) {
	other := dbtypes.Identifiers{"field": dbtypes.Ident(anotherField)}
	sel := NewSelect(WithIdentifiers(dbtypes.IdentifiersOf(map[string]any{"table": "table_name", "field": "field_name"}))).
		SelectFrom("{table}").
		DistinctOn(fieldLabel).
		DistinctOn(fieldLabel, other).
		Select(fieldLabel).
		Select(fieldLabel, other).
		Where("{field} = 1").
		Where("{field} = 2", other).
		OrderBy("{field} ASC").
		OrderBy("{field} DESC", other).
		GroupBy(fieldLabel).
		GroupBy(fieldLabel, other)

	assert.Equal(t,
		`SELECT DISTINCT ON ("field_name", "another_field") "field_name", "another_field" FROM "table_name"`+
			` WHERE ("field_name" = 1) AND ("another_field" = 2) GROUP BY "field_name", "another_field"`+
			` ORDER BY "field_name" ASC, "another_field" DESC`,
		mustSQL(t, sel))
}

func TestLocalValuesOverrideGlobal(t *testing.T) {
	sel := minimal(WithValues(dbtypes.Values{"val1": dbtypes.Text(carrotCake)})).
		Where("f1 = {val1}").
		Where("f2 = {val1}", dbtypes.Values{"val1": dbtypes.Text("apple pie")})

	assert.Equal(t, "SELECT field FROM table WHERE (f1 = 'carrot cake') AND (f2 = 'apple pie')", mustSQL(t, sel))
}

func TestQualifiedIdentifiers(t *testing.T) {
	t2 := dbtypes.IdentifiersOf(map[string]any{"field": [2]string{"t2", "f2"}})
	sel := NewSelect(WithIdentifiers(dbtypes.IdentifiersOf(map[string]any{"field": []string{"t1", "f1"}}))).
		SelectFrom(tableName).
		DistinctOn(fieldLabel).
		DistinctOn(fieldLabel, t2).
		Select(fieldLabel).
		Select(fieldLabel, t2).
		Where("{field} = 1").
		Where("{field} = 2", t2).
		OrderBy("{field} ASC").
		OrderBy("{field} DESC", t2).
		GroupBy(fieldLabel).
		GroupBy(fieldLabel, t2)

	assert.Equal(t,
		`SELECT DISTINCT ON ("t1"."f1", "t2"."f2") "t1"."f1", "t2"."f2" FROM table WHERE ("t1"."f1" = 1) AND ("t2"."f2" = 2)`+
			` GROUP BY "t1"."f1", "t2"."f2" ORDER BY "t1"."f1" ASC, "t2"."f2" DESC`,
		mustSQL(t, sel))

	t.Run("local qualified identifier", func(t *testing.T) {
		sel := NewSelect().SelectFrom(tableName).Select(fieldLabel, dbtypes.Identifiers{"field": dbtypes.QualifiedIdent("t1", "f1")})
		assert.Equal(t, `SELECT "t1"."f1" FROM table`, mustSQL(t, sel))
	})
}

func TestIdentifierCast(t *testing.T) {
	sel := NewSelect(WithIdentifiers(dbtypes.IdentifiersOf(map[string]any{"field": 12}))).
		SelectFrom(tableName).
		Select(fieldLabel)

	assert.Equal(t, `SELECT "12" FROM table`, mustSQL(t, sel))
}

func TestValuesQuotedByKind(t *testing.T) {
	sel := minimal(WithValues(dbtypes.ValuesOf(map[string]any{"val1": "12", "val2": 12, "val3": 12.1}))).
		Where("f1 = {val1}").
		Where("f2 = {val2}").
		Where("f3 = {val3}")

	assert.Equal(t, "SELECT field FROM table WHERE (f1 = '12') AND (f2 = 12) AND (f3 = 12.1)", mustSQL(t, sel))

	t.Run("non finite floats are quoted", func(t *testing.T) {
		sel := minimal().Where("f = {v}", dbtypes.Values{"v": dbtypes.Float(math.NaN())})
		assert.Equal(t, "SELECT field FROM table WHERE (f = 'NaN')", mustSQL(t, sel))

		sel = minimal().Where("f = {v}", dbtypes.Values{"v": dbtypes.Float(math.Inf(-1))})
		assert.Equal(t, "SELECT field FROM table WHERE (f = '-Inf')", mustSQL(t, sel))
	})

	t.Run("booleans are text", func(t *testing.T) {
		sel := minimal().Where("f = {v}", dbtypes.ValuesOf(map[string]any{"v": true}))
		assert.Equal(t, "SELECT field FROM table WHERE (f = 'true')", mustSQL(t, sel))
	})
}

func TestNegativeNumberCannotOpenComment(t *testing.T) {
	sel := NewSelect().
		SelectFrom("t").
		Select("a").
		Where("a-{v}", dbtypes.Values{"v": dbtypes.Int(-1)}).
		OrderBy("a")

	got := mustSQL(t, sel)
	assert.Equal(t, "SELECT a FROM t WHERE (a- -1) ORDER BY a", got)
	assert.NotContains(t, got, "--")
}

func TestIdentifierEscape(t *testing.T) {
	dirty := `"'!"%&*;:@#~[]{}\|/?<>` + allowList
	unicode := "ÃÆÔöğ\n" + allowList

	sel := NewSelect(WithIdentifiers(dbtypes.Identifiers{"table": dbtypes.Ident(dirty)})).
		SelectFrom("{table}").
		Select(fieldLabel, dbtypes.Identifiers{"field": dbtypes.Ident(unicode)})

	assert.Equal(t, `SELECT "`+allowList+`" FROM "`+allowList+`"`, mustSQL(t, sel))

	t.Run("comment marker and statement break", func(t *testing.T) {
		sel := NewSelect().SelectFrom("{t}", dbtypes.Identifiers{"t": dbtypes.Ident(`DROP";--TABLE`)}).Select("*")
		assert.Equal(t, `SELECT * FROM "DROPTABLE"`, mustSQL(t, sel))
	})
}

func TestValueEscape(t *testing.T) {
	dirty := "\"'!\"£$%^&*;:@#~[]{}`¬\\|/?<>" + allowList
	unicode := "ÃÆÔöğ\n" + allowList

	sel := minimal(WithValues(dbtypes.Values{"v1": dbtypes.Text(dirty)})).
		Where("f1 = {v1}").
		Where("f2 = {v2}", dbtypes.Values{"v2": dbtypes.Text(unicode)})

	assert.Equal(t, "SELECT field FROM table WHERE (f1 = '"+allowList+"') AND (f2 = '"+allowList+"')", mustSQL(t, sel))
}

func TestSubqueryAsValue(t *testing.T) {
	inner := NewSelect().SelectFrom("t1").Select("f1")
	outer := NewSelect(WithValues(dbtypes.Values{"query": dbtypes.Subquery(inner)})).
		SelectFrom("({query}) AS sub_query").
		Select("*")

	assert.Equal(t, "SELECT * FROM (SELECT f1 FROM t1) AS sub_query", mustSQL(t, outer))

	t.Run("ValueOf detects builders", func(t *testing.T) {
		outer := NewSelect().
			SelectFrom("({query}) AS sub_query", dbtypes.ValuesOf(map[string]any{"query": inner})).
			Select("*")
		assert.Equal(t, "SELECT * FROM (SELECT f1 FROM t1) AS sub_query", mustSQL(t, outer))
	})

	t.Run("nested errors propagate", func(t *testing.T) {
		broken := NewSelect().SelectFrom("t1")
		outer := NewSelect().SelectFrom("({q}) AS s", dbtypes.Values{"q": dbtypes.Subquery(broken)}).Select("*")

		_, err := outer.ToSQL()
		require.Error(t, err)
		assert.ErrorIs(t, err, dbtypes.ErrMissingSection)
		assert.Contains(t, err.Error(), "render from item 1")
	})

	t.Run("nil subquery", func(t *testing.T) {
		var typedNil *Select
		for _, r := range []dbtypes.Renderer{nil, typedNil} {
			outer := NewSelect().SelectFrom("({q})", dbtypes.Values{"q": dbtypes.Subquery(r)}).Select("*")
			_, err := outer.ToSQL()
			assert.ErrorIs(t, err, dbtypes.ErrNilSubquery)
		}
	})

	t.Run("self reference is bounded", func(t *testing.T) {
		loop := NewSelect().Select("*")
		loop.SelectFrom("({q}) AS s", dbtypes.Values{"q": dbtypes.Subquery(loop)})

		_, err := loop.ToSQL()
		assert.ErrorIs(t, err, dbtypes.ErrNestingTooDeep)
	})

	t.Run("unreferenced subquery is not rendered", func(t *testing.T) {
		broken := NewSelect()
		sel := minimal(WithValues(dbtypes.Values{"unused": dbtypes.Subquery(broken)}))
		assert.Equal(t, "SELECT field FROM table", mustSQL(t, sel))
	})
}

func TestOptionNewlines(t *testing.T) {
	assert.Equal(t,
		"SELECT DISTINCT ON (another_field) field\nFROM table\nWHERE (number = 1)\nGROUP BY group\nORDER BY way ASC",
		mustSQL(t, allSections(WithNewlines())))
}

func TestOptionCompact(t *testing.T) {
	const spread = "n = 1 \n  AND   n = 2"

	plain := minimal().Where(spread)
	assert.Equal(t, "SELECT field FROM table WHERE (n = 1 \n  AND   n = 2)", mustSQL(t, plain))

	compact := minimal(WithCompact()).Where(spread)
	assert.Equal(t, "SELECT field FROM table WHERE (n = 1 AND n = 2)", mustSQL(t, compact))

	t.Run("bindings keep their whitespace", func(t *testing.T) {
		vals := dbtypes.Values{"v": dbtypes.Text("carrot   cake")}
		tmpl := "\n  f =\n\t{v}  "

		loose := mustSQL(t, minimal().Where(tmpl, vals))
		tight := mustSQL(t, minimal(WithCompact()).Where(tmpl, vals))

		assert.Equal(t, "SELECT field FROM table WHERE (\n  f =\n\t'carrot   cake'  )", loose)
		assert.Equal(t, "SELECT field FROM table WHERE (f = 'carrot   cake')", tight)
	})
}

func TestUnresolvedPlaceholder(t *testing.T) {
	sel := minimal(WithValues(dbtypes.Values{"known": dbtypes.Int(1)})).
		Where("a = {known}").
		Where("b = {missing}")

	_, err := sel.ToSQL()
	require.Error(t, err)
	assert.ErrorIs(t, err, dbtypes.ErrUnresolvedPlaceholder)

	var unresolved *dbtypes.UnresolvedPlaceholderError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "missing", unresolved.Label)
	assert.Contains(t, err.Error(), "render where item 2")

	t.Run("local binding on another item does not leak", func(t *testing.T) {
		sel := minimal().
			Where("a = {v}", dbtypes.Values{"v": dbtypes.Int(1)}).
			Where("b = {v}")
		_, err := sel.ToSQL()
		assert.ErrorIs(t, err, dbtypes.ErrUnresolvedPlaceholder)
	})
}

func TestLabelCollision(t *testing.T) {
	sel := minimal(
		WithIdentifiers(dbtypes.Identifiers{"x": dbtypes.Ident("col")}),
		WithValues(dbtypes.Values{"x": dbtypes.Int(1)}),
	)

	// unreferenced collisions are harmless
	assert.Equal(t, "SELECT field FROM table", mustSQL(t, sel))

	sel.Where("{x} > 0")
	_, err := sel.ToSQL()
	var collision *dbtypes.LabelCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "x", collision.Label)
}

func TestStrictMode(t *testing.T) {
	t.Run("clean bindings render", func(t *testing.T) {
		sel := minimal(WithStrict()).
			Where("{f} = {v}", dbtypes.Identifiers{"f": dbtypes.QualifiedIdent("t", "f")}, dbtypes.Values{"v": dbtypes.Text(carrotCake)})
		assert.Equal(t, `SELECT field FROM table WHERE ("t"."f" = 'carrot cake')`, mustSQL(t, sel))
	})

	tests := []struct {
		name     string
		bindings []dbtypes.Binding
	}{
		{name: "value", bindings: []dbtypes.Binding{dbtypes.Identifiers{"f": dbtypes.Ident("f")}, dbtypes.Values{"v": dbtypes.Text("x'; DROP TABLE t")}}},
		{name: "identifier", bindings: []dbtypes.Binding{dbtypes.Identifiers{"f": dbtypes.Ident("é")}, dbtypes.Values{"v": dbtypes.Int(1)}}},
		{name: "qualifier", bindings: []dbtypes.Binding{dbtypes.Identifiers{"f": dbtypes.QualifiedIdent(`t"`, "f")}, dbtypes.Values{"v": dbtypes.Int(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := minimal(WithStrict()).Where("{f} = {v}", tt.bindings...)
			_, err := sel.ToSQL()
			assert.ErrorIs(t, err, dbtypes.ErrDisallowedCharacters)
			assert.NotContains(t, err.Error(), "DROP")
		})
	}
}

func TestMalformedTemplateSurfaces(t *testing.T) {
	_, err := minimal().Where("a = {oops").ToSQL()
	assert.ErrorIs(t, err, dbtypes.ErrMalformedTemplate)
}

func TestToSQLIsDeterministic(t *testing.T) {
	inner := NewSelect().SelectFrom("t1").Select("f1").Where("f1 = {v}", dbtypes.Values{"v": dbtypes.Text("a")})
	sel := NewSelect(
		WithIdentifiers(dbtypes.Identifiers{"a": dbtypes.Ident("a"), "b": dbtypes.QualifiedIdent("t", "b")}),
		WithValues(dbtypes.Values{"q": dbtypes.Subquery(inner), "n": dbtypes.Int(3), "s": dbtypes.Text("x")}),
	).
		SelectFrom("({q}) AS sub").
		Select("{a}, {b}").
		Where("{a} = {n} OR {b} = {s}")

	first := mustSQL(t, sel)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, mustSQL(t, sel))
	}
}

func TestSelectIsSqlizer(t *testing.T) {
	var sqlizer squirrel.Sqlizer = minimal()

	sql, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT field FROM table", sql)
	assert.Nil(t, args)

	t.Run("usable inside squirrel expressions", func(t *testing.T) {
		outer := squirrel.Select("id").Column(squirrel.Alias(minimal(), "sub")).From("x")

		sql, _, err := outer.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id, (SELECT field FROM table) AS sub FROM x", sql)
	})

	t.Run("errors surface", func(t *testing.T) {
		_, _, err := NewSelect().ToSql()
		assert.True(t, errors.Is(err, dbtypes.ErrMissingSection))
	})
}
