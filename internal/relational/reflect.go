package relational

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/hybridq/internal/schema"
)

var _ schema.Inspector = (*DB)(nil)

// ListTables returns user tables in name order.
func (d *DB) ListTables(ctx context.Context) ([]string, error) {
	var q string
	switch d.dialect {
	case Postgres:
		q = `SELECT table_name AS name FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
			ORDER BY table_name`
	default:
		q = `SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name`
	}

	rows, err := d.Query(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, asString(r["name"]))
	}
	return names, nil
}

// ListColumns returns the table's columns in declared order.
func (d *DB) ListColumns(ctx context.Context, table string) ([]schema.Column, error) {
	var q string
	switch d.dialect {
	case Postgres:
		q = `SELECT column_name AS name, data_type AS type FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = :table
			ORDER BY ordinal_position`
	default:
		q = `SELECT name, type FROM pragma_table_info(:table) ORDER BY cid`
	}

	rows, err := d.Query(ctx, q, map[string]any{"table": table})
	if err != nil {
		return nil, err
	}
	cols := make([]schema.Column, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, schema.Column{Name: asString(r["name"]), Type: asString(r["type"])})
	}
	return cols, nil
}

// ListPrimaryKeys returns the primary-key columns in key order.
func (d *DB) ListPrimaryKeys(ctx context.Context, table string) ([]string, error) {
	var q string
	switch d.dialect {
	case Postgres:
		q = `SELECT kcu.column_name AS name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			 AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = current_schema()
			  AND tc.table_name = :table
			ORDER BY kcu.ordinal_position`
	default:
		q = `SELECT name FROM pragma_table_info(:table) WHERE pk > 0 ORDER BY pk`
	}

	rows, err := d.Query(ctx, q, map[string]any{"table": table})
	if err != nil {
		return nil, err
	}
	pk := make([]string, 0, len(rows))
	for _, r := range rows {
		pk = append(pk, asString(r["name"]))
	}
	return pk, nil
}

// ListForeignKeys returns one entry per foreign-key constraint.
func (d *DB) ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	var q string
	switch d.dialect {
	case Postgres:
		q = `SELECT tc.constraint_name AS fk_id,
			        kcu.column_name AS from_col,
			        ccu.table_name AS ref_table,
			        ccu.column_name AS to_col
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			 AND tc.table_schema = kcu.table_schema
			JOIN information_schema.constraint_column_usage ccu
			  ON ccu.constraint_name = tc.constraint_name
			 AND ccu.table_schema = tc.table_schema
			WHERE tc.constraint_type = 'FOREIGN KEY'
			  AND tc.table_schema = current_schema()
			  AND tc.table_name = :table
			ORDER BY tc.constraint_name, kcu.ordinal_position`
	default:
		q = `SELECT id AS fk_id, "from" AS from_col, "table" AS ref_table, "to" AS to_col
			FROM pragma_foreign_key_list(:table)
			ORDER BY id, seq`
	}

	rows, err := d.Query(ctx, q, map[string]any{"table": table})
	if err != nil {
		return nil, err
	}

	byID := map[string]*schema.ForeignKey{}
	var order []string
	for _, r := range rows {
		id := asString(r["fk_id"])
		fk, ok := byID[id]
		if !ok {
			fk = &schema.ForeignKey{RefTable: asString(r["ref_table"])}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, asString(r["from_col"]))
		fk.RefColumns = append(fk.RefColumns, asString(r["to_col"]))
	}

	fks := make([]schema.ForeignKey, 0, len(order))
	for _, id := range order {
		fks = append(fks, *byID[id])
	}
	return fks, nil
}

// SampleRows returns up to n rows of table.
func (d *DB) SampleRows(ctx context.Context, table string, n int) ([]map[string]any, error) {
	q := fmt.Sprintf("SELECT * FROM %s LIMIT :limit", d.dialect.Quote(table))
	return d.Query(ctx, q, map[string]any{"limit": n})
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
