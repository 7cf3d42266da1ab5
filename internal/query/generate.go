package query

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/hybridq/internal/schema"
)

// Statement is a SQL template with named :param placeholders.
type Statement struct {
	SQL    string         `json:"sql"`
	Params map[string]any `json:"params"`
	Table  string         `json:"table"`
}

// Quoter quotes identifiers for a SQL dialect.
type Quoter interface {
	Quote(ident string) string
}

type ansiQuoter struct{}

func (ansiQuoter) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

var howManyPattern = regexp.MustCompile(`how many\s+(\w+)`)

// Generator builds statements. Only identifiers present in the snapshot are
// interpolated; every value is a bound parameter.
type Generator struct {
	quoter Quoter
}

// NewGenerator returns a generator quoting with q. A nil q uses ANSI double
// quotes.
func NewGenerator(q Quoter) *Generator {
	if q == nil {
		q = ansiQuoter{}
	}
	return &Generator{quoter: q}
}

// Generate returns the statement for text, or false when the snapshot has no
// tables.
//
// "how many <word>" counts rows whose name-like column contains word,
// case-insensitively. Anything else counts all rows. typ, limit and offset
// do not change the statement.
func (g *Generator) Generate(typ Type, text string, snap *schema.Snapshot, limit, offset int) (*Statement, bool) {
	table := SelectTable(snap)
	if table == nil {
		return nil, false
	}

	q := strings.ToLower(text)
	from := " FROM " + g.quoter.Quote(table.Name)

	if m := howManyPattern.FindStringSubmatch(q); m != nil {
		if col := nameColumn(table); col != "" {
			return &Statement{
				SQL:    "SELECT COUNT(*) AS count" + from + " WHERE LOWER(" + g.quoter.Quote(col) + ") LIKE LOWER(:kw)",
				Params: map[string]any{"kw": "%" + m[1] + "%"},
				Table:  table.Name,
			}, true
		}
	}
	return g.count(table.Name, from), true
}

func (g *Generator) count(table, from string) *Statement {
	return &Statement{
		SQL:    "SELECT COUNT(*) AS count" + from,
		Params: map[string]any{},
		Table:  table,
	}
}

// SelectTable picks the first employees table by name, falling back to the
// first table by name. It returns nil for an empty snapshot.
func SelectTable(snap *schema.Snapshot) *schema.Table {
	if tables := snap.WithRole(schema.RoleEmployees); len(tables) > 0 {
		return tables[0]
	}
	names := snap.Names()
	if len(names) == 0 {
		return nil
	}
	t, _ := snap.Table(names[0])
	return t
}

// nameColumn returns "name" if present, else the first column whose name
// contains "name", else "".
func nameColumn(t *schema.Table) string {
	if c, ok := t.Column("name"); ok {
		return c.Name
	}
	for _, c := range t.Columns {
		if strings.Contains(strings.ToLower(c.Name), "name") {
			return c.Name
		}
	}
	return ""
}
