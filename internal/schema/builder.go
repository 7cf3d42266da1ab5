package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/logging"
)

// DefaultSampleSize is the number of rows sampled per table.
const DefaultSampleSize = 5

// ErrIntrospection indicates a reflection step failed for a single table.
var ErrIntrospection = errors.New("schema introspection failed")

// IntrospectionError records which reflection stage failed for which table.
// It matches ErrIntrospection with errors.Is.
type IntrospectionError struct {
	Table string
	Stage string
	Err   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspecting %s (%s): %v", e.Table, e.Stage, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

func (e *IntrospectionError) Is(target error) bool { return target == ErrIntrospection }

// Inspector is the reflection capability of a relational connection.
type Inspector interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]Column, error)
	ListPrimaryKeys(ctx context.Context, table string) ([]string, error)
	ListForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
	SampleRows(ctx context.Context, table string, n int) ([]map[string]any, error)
}

// Builder produces Snapshots.
type Builder struct {
	logger     *logging.Logger
	sampleSize int
	now        func() time.Time
}

// NewBuilder creates a Builder. A nil logger discards output.
func NewBuilder(logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		logger:     logger.Named("schema"),
		sampleSize: DefaultSampleSize,
		now:        time.Now,
	}
}

// Build reflects every table reachable through insp.
//
// Only a failure to list tables fails the build. Failures for a single table
// are logged, recorded in Table.Errors and leave the rest of the snapshot
// intact.
func (b *Builder) Build(ctx context.Context, insp Inspector) (*Snapshot, error) {
	ctx, span := otel.Tracer("hybridq/schema").Start(ctx, "schema.Build")
	defer span.End()

	names, err := insp.ListTables(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	snap := &Snapshot{
		Tables:  make(map[string]*Table, len(names)),
		BuiltAt: b.now(),
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap.Tables[name] = b.describe(ctx, insp, name)
	}

	span.SetAttributes(attribute.Int("schema.tables", len(snap.Tables)))
	b.logger.Info(ctx, "schema snapshot built", zap.Int("tables", len(snap.Tables)))
	return snap, nil
}

func (b *Builder) describe(ctx context.Context, insp Inspector, name string) *Table {
	t := &Table{
		Name:        name,
		Columns:     []Column{},
		PrimaryKey:  []string{},
		ForeignKeys: []ForeignKey{},
		Samples:     []map[string]any{},
		Role:        InferRole(name),
	}

	fail := func(stage string, err error) {
		ierr := &IntrospectionError{Table: name, Stage: stage, Err: err}
		t.Errors = append(t.Errors, ierr.Error())
		b.logger.Warn(ctx, "table introspection degraded",
			zap.String("table", name),
			zap.String("stage", stage),
			zap.Error(err))
	}

	if cols, err := insp.ListColumns(ctx, name); err != nil {
		fail("columns", err)
	} else if cols != nil {
		t.Columns = cols
	}

	if pk, err := insp.ListPrimaryKeys(ctx, name); err != nil {
		fail("primary_key", err)
	} else if pk != nil {
		t.PrimaryKey = pk
	}

	if fks, err := insp.ListForeignKeys(ctx, name); err != nil {
		fail("foreign_keys", err)
	} else if fks != nil {
		t.ForeignKeys = fks
	}

	if rows, err := insp.SampleRows(ctx, name, b.sampleSize); err != nil {
		fail("samples", err)
	} else if rows != nil {
		if len(rows) > b.sampleSize {
			rows = rows[:b.sampleSize]
		}
		t.Samples = rows
	}

	return t
}
