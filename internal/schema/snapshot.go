// Package schema describes a relational database discovered at runtime.
//
// A Snapshot is built once per connect action by a Builder reading through an
// Inspector. Each table carries its columns, keys, a few sample rows and a
// heuristic Role inferred from its name. Roles are labels, not facts: callers
// must cope with a missing or wrong role.
package schema

import (
	"sort"
	"time"
)

// Role is a coarse semantic label inferred from a table name.
type Role string

const (
	RoleNone        Role = ""
	RoleEmployees   Role = "employees"
	RoleDepartments Role = "departments"
	RoleDocuments   Role = "documents"
	RoleProjects    Role = "projects"
)

// Column is a column name with its declared type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ForeignKey references columns of another table.
type ForeignKey struct {
	Columns    []string `json:"constrained_columns"`
	RefTable   string   `json:"referred_table"`
	RefColumns []string `json:"referred_columns"`
}

// Table is the description of one table.
type Table struct {
	Name        string           `json:"name"`
	Columns     []Column         `json:"columns"`
	PrimaryKey  []string         `json:"primary_key"`
	ForeignKeys []ForeignKey     `json:"foreign_keys"`
	Samples     []map[string]any `json:"sample_data"`
	Role        Role             `json:"inferred_role,omitempty"`
	// Errors lists reflection steps that failed for this table only.
	Errors []string `json:"errors,omitempty"`
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Snapshot is a point-in-time description of a database.
// It is not mutated after Build returns.
type Snapshot struct {
	Tables  map[string]*Table `json:"tables"`
	BuiltAt time.Time         `json:"built_at"`
}

// Len returns the number of tables.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Tables)
}

// Names returns table names in lexicographic order.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the named table.
func (s *Snapshot) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.Tables[name]
	return t, ok
}

// WithRole returns the tables labelled role, in lexicographic order.
func (s *Snapshot) WithRole(role Role) []*Table {
	var out []*Table
	for _, name := range s.Names() {
		if t := s.Tables[name]; t.Role == role {
			out = append(out, t)
		}
	}
	return out
}
