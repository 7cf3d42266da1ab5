package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/hybridq/internal/logging"
)

type fakeInspector struct {
	tables     []string
	listErr    error
	columns    map[string][]Column
	pks        map[string][]string
	fks        map[string][]ForeignKey
	samples    map[string][]map[string]any
	sampleErrs map[string]error
	colErrs    map[string]error
}

func (f *fakeInspector) ListTables(context.Context) ([]string, error) {
	return f.tables, f.listErr
}

func (f *fakeInspector) ListColumns(_ context.Context, table string) ([]Column, error) {
	if err := f.colErrs[table]; err != nil {
		return nil, err
	}
	return f.columns[table], nil
}

func (f *fakeInspector) ListPrimaryKeys(_ context.Context, table string) ([]string, error) {
	return f.pks[table], nil
}

func (f *fakeInspector) ListForeignKeys(_ context.Context, table string) ([]ForeignKey, error) {
	return f.fks[table], nil
}

func (f *fakeInspector) SampleRows(_ context.Context, table string, n int) ([]map[string]any, error) {
	if err := f.sampleErrs[table]; err != nil {
		return nil, err
	}
	rows := f.samples[table]
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func TestBuild(t *testing.T) {
	insp := &fakeInspector{
		tables: []string{"staff", "departments", "misc"},
		columns: map[string][]Column{
			"staff":       {{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}, {Name: "dept_id", Type: "INTEGER"}},
			"departments": {{Name: "id", Type: "INTEGER"}, {Name: "title", Type: "TEXT"}},
		},
		pks: map[string][]string{"staff": {"id"}, "departments": {"id"}},
		fks: map[string][]ForeignKey{
			"staff": {{Columns: []string{"dept_id"}, RefTable: "departments", RefColumns: []string{"id"}}},
		},
		samples: map[string][]map[string]any{
			"staff": {{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}, {"id": 5}, {"id": 6}},
		},
	}

	snap, err := NewBuilder(nil).Build(context.Background(), insp)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, []string{"departments", "misc", "staff"}, snap.Names())
	assert.False(t, snap.BuiltAt.IsZero())

	staff, ok := snap.Table("staff")
	require.True(t, ok)
	assert.Equal(t, RoleEmployees, staff.Role)
	assert.Len(t, staff.Samples, DefaultSampleSize)
	assert.Equal(t, []string{"id"}, staff.PrimaryKey)
	require.Len(t, staff.ForeignKeys, 1)
	assert.Equal(t, "departments", staff.ForeignKeys[0].RefTable)

	col, ok := staff.Column("name")
	require.True(t, ok)
	assert.Equal(t, "TEXT", col.Type)

	misc, _ := snap.Table("misc")
	assert.Equal(t, RoleNone, misc.Role)
	assert.NotNil(t, misc.Columns)
	assert.NotNil(t, misc.Samples)

	assert.Len(t, snap.WithRole(RoleDepartments), 1)
}

func TestBuild_PerTableFailureDegradesOnlyThatTable(t *testing.T) {
	tl := logging.NewTestLogger()
	insp := &fakeInspector{
		tables: []string{"a_docs", "b_projects"},
		columns: map[string][]Column{
			"a_docs":     {{Name: "id", Type: "INTEGER"}},
			"b_projects": {{Name: "id", Type: "INTEGER"}},
		},
		sampleErrs: map[string]error{"a_docs": errors.New("permission denied")},
		colErrs:    map[string]error{"b_projects": errors.New("boom")},
		samples:    map[string][]map[string]any{"b_projects": {{"id": 1}}},
	}

	snap, err := NewBuilder(tl.Logger).Build(context.Background(), insp)
	require.NoError(t, err)

	docs, _ := snap.Table("a_docs")
	assert.Empty(t, docs.Samples)
	assert.Len(t, docs.Columns, 1)
	require.Len(t, docs.Errors, 1)
	assert.Contains(t, docs.Errors[0], "samples")
	assert.Equal(t, RoleDocuments, docs.Role)

	projects, _ := snap.Table("b_projects")
	assert.Empty(t, projects.Columns)
	assert.Len(t, projects.Samples, 1)
	assert.Equal(t, RoleProjects, projects.Role)

	tl.AssertLogged(t, zapcore.WarnLevel, "table introspection degraded")
}

func TestBuild_ListTablesFailureFails(t *testing.T) {
	_, err := NewBuilder(nil).Build(context.Background(), &fakeInspector{listErr: errors.New("gone")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing tables")
}

func TestIntrospectionError(t *testing.T) {
	err := error(&IntrospectionError{Table: "t", Stage: "samples", Err: context.DeadlineExceeded})
	assert.True(t, errors.Is(err, ErrIntrospection))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestInferRole(t *testing.T) {
	tests := []struct {
		table string
		want  Role
	}{
		{"employees", RoleEmployees},
		{"t_staff", RoleEmployees},
		{"Personnel", RoleEmployees},
		{"departments", RoleDepartments},
		{"division_map", RoleDepartments},
		{"resumes", RoleDocuments},
		{"documents", RoleDocuments},
		{"project_assignments", RoleProjects},
		{"tasks", RoleProjects},
		{"t_misc", RoleNone},
		// first rule wins
		{"employee_documents", RoleEmployees},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Equal(t, tt.want, InferRole(tt.table))
		})
	}
}

func TestNilSnapshot(t *testing.T) {
	var s *Snapshot
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Names())
	_, ok := s.Table("x")
	assert.False(t, ok)
}
