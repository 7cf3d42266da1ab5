// Package ingest turns uploaded files into indexed, mirrored and persisted
// document chunks.
//
// One Ingest call runs these steps in order:
//
//  1. extract text from each file (PDF or UTF-8 text)
//  2. chunk, embed and append to the in-process index
//  3. mirror the new chunks to the persistent vector store
//  4. persist the new chunks and extracted employee rows when a database
//     is connected, then refresh its schema snapshot
//  5. bump the data version, clear the result cache and publish an event
//
// Only steps 2 and 5 are required. A failure in step 1 skips that file; a
// failure in steps 3 or 4 is reported in Report.Warnings.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/engine"
	"github.com/fyrsmithlabs/hybridq/internal/events"
	"github.com/fyrsmithlabs/hybridq/internal/index"
	"github.com/fyrsmithlabs/hybridq/internal/logging"
	"github.com/fyrsmithlabs/hybridq/internal/relational"
	"github.com/fyrsmithlabs/hybridq/internal/vectorstore"
)

// Report summarizes one ingestion.
type Report struct {
	Filenames              []string `json:"filenames"`
	ProcessedChunks        int      `json:"processed_chunks"`
	VectorStoreAdded       int      `json:"vectorstore_added"`
	InsertedDocuments      int64    `json:"inserted_documents"`
	InsertedStructuredRows int64    `json:"inserted_structured_rows"`
	Version                uint64   `json:"data_version"`
	Warnings               []string `json:"warnings,omitempty"`
}

// Pipeline runs ingestion against a Manager's index and active session.
type Pipeline struct {
	manager *engine.Manager
	mirror  vectorstore.Store
	timeout time.Duration
	logger  *logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMirror sets the persistent vector store.
func WithMirror(s vectorstore.Store) Option {
	return func(p *Pipeline) { p.mirror = s }
}

// WithTimeout bounds one Ingest call.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New returns a pipeline. Without WithMirror nothing is mirrored.
func New(m *engine.Manager, opts ...Option) *Pipeline {
	p := &Pipeline{
		manager: m,
		mirror:  vectorstore.NopStore{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("ingest")
	return p
}

// Ingest indexes files. It fails only when embedding or the index append
// fails, in which case nothing was added.
func (p *Pipeline) Ingest(ctx context.Context, files []File) (*Report, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	ctx, span := otel.Tracer("hybridq/ingest").Start(ctx, "ingest.Ingest")
	defer span.End()

	report := &Report{Filenames: make([]string, 0, len(files))}
	docs := make([]index.Document, 0, len(files))
	for _, f := range files {
		report.Filenames = append(report.Filenames, f.Name)
		text, err := ExtractText(f)
		if err != nil {
			p.warn(ctx, report, "file skipped", fmt.Errorf("extracting %s: %w", f.Name, err))
			continue
		}
		docs = append(docs, index.Document{Filename: f.Name, Content: text})
	}

	added, err := p.manager.Indexer().AddDocuments(ctx, docs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "indexing failed")
		return nil, err
	}
	report.ProcessedChunks = len(added.ChunkIDs)
	span.SetAttributes(attribute.Int("ingest.chunks", report.ProcessedChunks))
	if report.ProcessedChunks == 0 {
		return report, nil
	}

	report.VectorStoreAdded = p.mirrorChunks(ctx, report, added)

	if sess, err := p.manager.Session(); err == nil {
		p.persist(ctx, report, sess, added)
	}

	report.Version = p.manager.DataChanged()
	p.manager.Publish(ctx, events.IngestCompleted, report.Version, report)

	p.logger.Info(ctx, "documents ingested",
		zap.Strings("filenames", report.Filenames),
		zap.Int("processed_chunks", report.ProcessedChunks),
		zap.Int("vectorstore_added", report.VectorStoreAdded),
		zap.Int64("inserted_documents", report.InsertedDocuments),
		zap.Int64("inserted_structured_rows", report.InsertedStructuredRows),
		zap.Uint64("version", report.Version))
	return report, nil
}

// mirrorChunks reuses the vectors computed for the index.
func (p *Pipeline) mirrorChunks(ctx context.Context, report *Report, added *index.AddResult) int {
	docs := make([]vectorstore.Document, len(added.Chunks))
	for i, c := range added.Chunks {
		docs[i] = vectorstore.Document{
			ID:       c.ID,
			Content:  c.Text,
			Metadata: map[string]any{"source": c.Source, "chunk_id": c.ID},
		}
		if i < len(added.Vectors) {
			docs[i].Embedding = added.Vectors[i]
		}
	}

	ids, err := p.mirror.AddDocuments(ctx, docs)
	if err != nil {
		p.warn(ctx, report, "vector store mirror failed", err)
		return 0
	}
	return len(ids)
}

// persist writes only the chunks added by this call.
func (p *Pipeline) persist(ctx context.Context, report *Report, sess *engine.Session, added *index.AddResult) {
	db := sess.DB()

	docRows := make([]relational.DocumentRow, len(added.Chunks))
	for i, c := range added.Chunks {
		docRows[i] = relational.DocumentRow{Content: c.Text, SourceFile: c.Source}
	}
	n, err := db.InsertDocuments(ctx, docRows)
	if err != nil {
		p.warn(ctx, report, "persisting documents failed", err)
	}
	report.InsertedDocuments = n

	if len(added.Rows) == 0 {
		return
	}

	empRows := make([]relational.EmployeeRow, len(added.Rows))
	for i, r := range added.Rows {
		empRows[i] = relational.EmployeeRow{Name: r.Name, Role: r.Role, Department: r.Department, RawText: r.RawText}
	}
	n, err = db.InsertEmployees(ctx, empRows)
	if err != nil {
		p.warn(ctx, report, "persisting structured rows failed", err)
		return
	}
	report.InsertedStructuredRows = n

	if _, err := sess.RefreshSchema(ctx); err != nil {
		p.warn(ctx, report, "schema refresh failed", err)
		return
	}
	p.manager.Publish(ctx, events.SchemaRefreshed, sess.Version(), map[string]any{"tables": sess.Snapshot().Names()})
}

func (p *Pipeline) warn(ctx context.Context, report *Report, msg string, err error) {
	p.logger.Warn(ctx, msg, zap.Error(err))
	report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", msg, err))
}
