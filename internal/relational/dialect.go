package relational

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies a supported SQL backend.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Quote quotes an identifier. Both dialects use ANSI double quotes.
func (d Dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Rebind rewrites :name parameters into the dialect's positional form and
// returns the matching argument list. Text inside single-quoted literals,
// double-quoted identifiers and postgres ::casts is left alone.
//
// Postgres reuses $n for repeated names; SQLite appends one ? per occurrence.
func (d Dialect) Rebind(query string, params map[string]any) (string, []any, error) {
	var (
		b        strings.Builder
		args     []any
		position = map[string]int{}
	)
	b.Grow(len(query))

	inSingle, inDouble := false, false
	for i := 0; i < len(query); i++ {
		c := query[i]

		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		}
		if inSingle || inDouble || c != ':' {
			b.WriteByte(c)
			continue
		}

		// postgres cast: copy both colons
		if i+1 < len(query) && query[i+1] == ':' {
			b.WriteString("::")
			i++
			continue
		}

		j := i + 1
		for j < len(query) && isIdentByte(query[j]) {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}

		name := query[i+1 : j]
		val, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrMissingParam, name)
		}

		if d == Postgres {
			n, seen := position[name]
			if !seen {
				args = append(args, val)
				n = len(args)
				position[name] = n
			}
			b.WriteString(d.placeholder(n))
		} else {
			args = append(args, val)
			b.WriteString(d.placeholder(len(args)))
		}
		i = j - 1
	}

	return b.String(), args, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
