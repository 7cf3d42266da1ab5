package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/hybridq/internal/schema"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Type
	}{
		{"who is the manager", Unstructured},
		{"Describe the onboarding policy", Unstructured},
		{"how many employees", Structured},
		{"List all departments", Structured},
		{"highest salary", Structured},
		{"tell me about acme corp", Hybrid},
		{"", Hybrid},
		// information words take priority over aggregation words
		{"what is the count of engineers", Unstructured},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
			assert.Equal(t, tt.want, Classify(tt.query), "same input, same output")
		})
	}
}

func TestTypePaths(t *testing.T) {
	assert.True(t, Structured.WantsSQL())
	assert.False(t, Structured.WantsDocs())
	assert.False(t, Unstructured.WantsSQL())
	assert.True(t, Unstructured.WantsDocs())
	assert.True(t, Hybrid.WantsSQL())
	assert.True(t, Hybrid.WantsDocs())
}

func snapshot(tables ...*schema.Table) *schema.Snapshot {
	s := &schema.Snapshot{Tables: map[string]*schema.Table{}}
	for _, t := range tables {
		s.Tables[t.Name] = t
	}
	return s
}

func cols(names ...string) []schema.Column {
	out := make([]schema.Column, len(names))
	for i, n := range names {
		out[i] = schema.Column{Name: n, Type: "TEXT"}
	}
	return out
}

func TestSelectTable_PrefersEmployees(t *testing.T) {
	// repeated to exercise map iteration order
	for i := 0; i < 20; i++ {
		snap := snapshot(
			&schema.Table{Name: "t_staff", Role: schema.RoleEmployees, Columns: cols("id")},
			&schema.Table{Name: "t_misc", Columns: cols("id")},
		)
		require.Equal(t, "t_staff", SelectTable(snap).Name)
	}
}

func TestSelectTable_LexicographicFallback(t *testing.T) {
	snap := snapshot(
		&schema.Table{Name: "zeta"},
		&schema.Table{Name: "alpha"},
		&schema.Table{Name: "mid", Role: schema.RoleProjects},
	)
	assert.Equal(t, "alpha", SelectTable(snap).Name)

	snap = snapshot(
		&schema.Table{Name: "staff_b", Role: schema.RoleEmployees},
		&schema.Table{Name: "employees", Role: schema.RoleEmployees},
	)
	assert.Equal(t, "employees", SelectTable(snap).Name)

	assert.Nil(t, SelectTable(snapshot()))
	assert.Nil(t, SelectTable(nil))
}

func TestGenerate_HowMany(t *testing.T) {
	g := NewGenerator(nil)
	snap := snapshot(&schema.Table{Name: "t_staff", Role: schema.RoleEmployees, Columns: cols("id", "full_name", "name")})

	st, ok := g.Generate(Structured, "How many engineers are there?", snap, 10, 0)
	require.True(t, ok)
	assert.Equal(t, `SELECT COUNT(*) AS count FROM "t_staff" WHERE LOWER("name") LIKE LOWER(:kw)`, st.SQL)
	assert.Equal(t, map[string]any{"kw": "%engineers%"}, st.Params)
	assert.Equal(t, "t_staff", st.Table)

	for _, text := range []string{"how many  engineers", "how many\tengineers", "HOW MANY\n engineers"} {
		st, ok := g.Generate(Structured, text, snap, 10, 0)
		require.True(t, ok, text)
		assert.Contains(t, st.SQL, `LIKE LOWER(:kw)`, text)
		assert.Equal(t, map[string]any{"kw": "%engineers%"}, st.Params, text)
	}
}

func TestGenerate_NameLikeColumn(t *testing.T) {
	g := NewGenerator(nil)
	snap := snapshot(&schema.Table{Name: "people", Columns: cols("id", "FirstName", "last_name")})

	st, ok := g.Generate(Structured, "how many bob", snap, 10, 0)
	require.True(t, ok)
	assert.Contains(t, st.SQL, `LOWER("FirstName")`)

	snap = snapshot(&schema.Table{Name: "orders", Columns: cols("id", "total")})
	st, ok = g.Generate(Structured, "how many orders", snap, 10, 0)
	require.True(t, ok)
	assert.Equal(t, `SELECT COUNT(*) AS count FROM "orders"`, st.SQL)
	assert.Empty(t, st.Params)
}

func TestGenerate_ValuesAreNeverInterpolated(t *testing.T) {
	g := NewGenerator(nil)
	snap := snapshot(&schema.Table{Name: "emp", Role: schema.RoleEmployees, Columns: cols("name")})

	st, ok := g.Generate(Structured, "how many x'; DROP TABLE emp; --", snap, 10, 0)
	require.True(t, ok)
	assert.NotContains(t, st.SQL, "DROP")
	assert.Equal(t, "%x%", st.Params["kw"])
}

func TestGenerate_ListAndTopAreCounts(t *testing.T) {
	g := NewGenerator(nil)
	snap := snapshot(&schema.Table{Name: "emp", Role: schema.RoleEmployees, Columns: cols("name")})

	for _, text := range []string{"list employees", "top earners"} {
		st, ok := g.Generate(Classify(text), text, snap, 25, 50)
		require.True(t, ok)
		assert.Equal(t, `SELECT COUNT(*) AS count FROM "emp"`, st.SQL, text)
		assert.Empty(t, st.Params, text)
	}
}

func TestGenerate_Fallbacks(t *testing.T) {
	g := NewGenerator(nil)

	_, ok := g.Generate(Structured, "how many employees", snapshot(), 10, 0)
	assert.False(t, ok)

	st, ok := g.Generate(Hybrid, "acme corp", snapshot(&schema.Table{Name: `we"ird`}), 10, 0)
	require.True(t, ok)
	assert.Equal(t, `SELECT COUNT(*) AS count FROM "we""ird"`, st.SQL)
}
