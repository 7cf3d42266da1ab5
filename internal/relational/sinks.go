package relational

import (
	"context"
	"fmt"
	"strings"
)

// DocumentRow is one chunk of raw text persisted to the documents table.
type DocumentRow struct {
	Content    string
	SourceFile string
}

// EmployeeRow is one extracted structured row persisted to the employees table.
type EmployeeRow struct {
	Name       string
	Role       string
	Department string
	RawText    string
}

// EnsureAuxTables creates the employees and documents tables if missing.
func (d *DB) EnsureAuxTables(ctx context.Context) error {
	idCol := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.dialect == Postgres {
		idCol = "id SERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS employees (
			` + idCol + `,
			name TEXT NOT NULL,
			role TEXT,
			department TEXT,
			raw_text TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (name, role, department)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			` + idCol + `,
			content TEXT NOT NULL,
			source_file TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("creating auxiliary tables: %w", err)
		}
	}
	return nil
}

// InsertDocuments stores rows in one transaction and returns how many were written.
func (d *DB) InsertDocuments(ctx context.Context, rows []DocumentRow) (int64, error) {
	const q = `INSERT INTO documents (content, source_file) VALUES (:content, :source_file)`
	return d.insertAll(ctx, q, len(rows), func(i int) map[string]any {
		return map[string]any{"content": rows[i].Content, "source_file": rows[i].SourceFile}
	})
}

// InsertEmployees stores rows, skipping any (name, role, department) already
// present, and returns how many new rows were written.
func (d *DB) InsertEmployees(ctx context.Context, rows []EmployeeRow) (int64, error) {
	const q = `INSERT INTO employees (name, role, department, raw_text)
		VALUES (:name, :role, :department, :raw_text)
		ON CONFLICT (name, role, department) DO NOTHING`
	return d.insertAll(ctx, q, len(rows), func(i int) map[string]any {
		return map[string]any{
			"name":       strings.TrimSpace(rows[i].Name),
			"role":       strings.TrimSpace(rows[i].Role),
			"department": strings.TrimSpace(rows[i].Department),
			"raw_text":   rows[i].RawText,
		}
	})
}

func (d *DB) insertAll(ctx context.Context, q string, n int, params func(int) map[string]any) (int64, error) {
	if n == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for i := 0; i < n; i++ {
		affected, err := execNamed(ctx, tx, d.dialect, q, params(i))
		if err != nil {
			return 0, fmt.Errorf("inserting row %d: %w", i, err)
		}
		total += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return total, nil
}
