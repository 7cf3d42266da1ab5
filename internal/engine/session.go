package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/cache"
	"github.com/fyrsmithlabs/hybridq/internal/index"
	"github.com/fyrsmithlabs/hybridq/internal/logging"
	"github.com/fyrsmithlabs/hybridq/internal/query"
	"github.com/fyrsmithlabs/hybridq/internal/relational"
	"github.com/fyrsmithlabs/hybridq/internal/schema"
)

var (
	// ErrEngineNotInitialized indicates a query before any successful connect.
	ErrEngineNotInitialized = errors.New("query engine not initialized: connect to a database first")

	// ErrSQLExecution indicates the generated statement failed. It is
	// recorded in SQLOutcome.Err, never returned from ProcessQuery.
	ErrSQLExecution = errors.New("sql execution failed")
)

// Database is the relational capability a session needs. *relational.DB
// implements it.
type Database interface {
	schema.Inspector
	Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Dialect() relational.Dialect
	InsertDocuments(ctx context.Context, rows []relational.DocumentRow) (int64, error)
	InsertEmployees(ctx context.Context, rows []relational.EmployeeRow) (int64, error)
	Close() error
}

var _ Database = (*relational.DB)(nil)

// Options bounds each retrieval path.
type Options struct {
	SQLTimeout    time.Duration
	DocTimeout    time.Duration
	MaxDocResults int
}

// DefaultOptions returns the limits used when none are configured.
func DefaultOptions() Options {
	return Options{SQLTimeout: 10 * time.Second, DocTimeout: 10 * time.Second, MaxDocResults: 5}
}

// SessionConfig holds a session's collaborators.
type SessionConfig struct {
	DB       Database
	Snapshot *schema.Snapshot
	Indexer  *index.Indexer
	Cache    *cache.Cache
	Builder  *schema.Builder
	Options  Options
	Logger   *logging.Logger

	// Versions is the data version counter. Sessions created by one Manager
	// share it so a cache entry never outlives a reconnect. Nil allocates a
	// private counter.
	Versions *atomic.Uint64
}

// Session is the query engine bound to one connected database.
// It is safe for concurrent use.
type Session struct {
	id        string
	db        Database
	snapshot  atomic.Pointer[schema.Snapshot]
	indexer   *index.Indexer
	cache     *cache.Cache
	builder   *schema.Builder
	generator *query.Generator
	versions  *atomic.Uint64
	opts      Options
	logger    *logging.Logger
}

// NewSession validates cfg and returns a session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.DB == nil {
		return nil, ErrEngineNotInitialized
	}
	if cfg.Indexer == nil {
		return nil, errors.New("engine: indexer is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.New(cache.DefaultTTL)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Builder == nil {
		cfg.Builder = schema.NewBuilder(cfg.Logger)
	}
	if cfg.Versions == nil {
		cfg.Versions = new(atomic.Uint64)
	}
	def := DefaultOptions()
	if cfg.Options.SQLTimeout <= 0 {
		cfg.Options.SQLTimeout = def.SQLTimeout
	}
	if cfg.Options.DocTimeout <= 0 {
		cfg.Options.DocTimeout = def.DocTimeout
	}
	if cfg.Options.MaxDocResults <= 0 {
		cfg.Options.MaxDocResults = def.MaxDocResults
	}
	if cfg.Snapshot == nil {
		cfg.Snapshot = &schema.Snapshot{Tables: map[string]*schema.Table{}, BuiltAt: time.Now()}
	}

	id := uuid.New().String()
	s := &Session{
		id:        id,
		db:        cfg.DB,
		indexer:   cfg.Indexer,
		cache:     cfg.Cache,
		builder:   cfg.Builder,
		generator: query.NewGenerator(cfg.DB.Dialect()),
		versions:  cfg.Versions,
		opts:      cfg.Options,
		logger:    cfg.Logger.Named("engine").With(zap.String("session_id", id)),
	}
	s.snapshot.Store(cfg.Snapshot)
	return s, nil
}

func (s *Session) ID() string { return s.id }
func (s *Session) DB() Database { return s.db }
func (s *Session) Snapshot() *schema.Snapshot { return s.snapshot.Load() }
func (s *Session) Version() uint64 { return s.versions.Load() }
func (s *Session) Cache() *cache.Cache { return s.cache }
func (s *Session) Indexer() *index.Indexer { return s.indexer }

// DataChanged bumps the data version and clears the cache. Entries computed
// before the call are never served afterwards.
func (s *Session) DataChanged() uint64 {
	v := s.versions.Add(1)
	s.cache.Clear()
	return v
}

// RefreshSchema rebuilds the snapshot from the database.
func (s *Session) RefreshSchema(ctx context.Context) (*schema.Snapshot, error) {
	snap, err := s.builder.Build(ctx, s.db)
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(snap)
	return snap, nil
}

// Close closes the database.
func (s *Session) Close() error {
	return s.db.Close()
}

// ProcessQuery answers text.
//
// A valid cache entry computed under the current data version is returned
// as is. Otherwise the query is classified and the relational path runs
// before the document path; a failure in one path is recorded in its outcome
// and never stops the other. The result is cached when either path
// produced a result.
func (s *Session) ProcessQuery(ctx context.Context, text string, limit, offset int) (*Result, error) {
	if s == nil || s.db == nil {
		return nil, ErrEngineNotInitialized
	}

	start := time.Now()
	ctx = logging.WithSessionID(ctx, s.id)
	ctx, span := otel.Tracer("hybridq/engine").Start(ctx, "engine.ProcessQuery")
	defer span.End()

	key := cache.Key(text, limit, offset)
	version := s.Version()

	if e, ok := s.cache.Get(key, version); ok {
		res := e.Value.(Result)
		res.Kind = Cached
		res.CacheStatus = CacheHit
		res.TotalTimeMS = millis(time.Since(start))
		res.CacheStats = s.cache.Stats()
		span.SetAttributes(attribute.String("cache.status", string(CacheHit)))
		observeQuery(res.Type, CacheHit, time.Since(start))
		return &res, nil
	}

	res := &Result{
		Query:   text,
		Type:    query.Classify(text),
		Kind:    Computed,
		Version: version,
	}
	span.SetAttributes(attribute.String("query.type", string(res.Type)))

	if res.Type.WantsSQL() {
		res.SQL = s.runSQL(ctx, res.Type, text, limit, offset)
		if res.SQL != nil && !res.SQL.OK() {
			span.SetStatus(codes.Error, "sql path failed")
		}
	}
	if res.Type.WantsDocs() {
		res.Docs = s.runDocs(ctx, text)
		if res.Docs.OK() {
			res.Answer = answer(res.Docs.Hits)
		} else {
			span.SetStatus(codes.Error, "document path failed")
		}
	}

	res.TotalTimeMS = millis(time.Since(start))
	if res.cacheable() {
		res.CacheStatus = CacheMiss
		s.cache.Set(key, *res, version)
	} else {
		res.CacheStatus = CacheNA
	}
	res.CacheStats = s.cache.Stats()
	span.SetAttributes(attribute.String("cache.status", string(res.CacheStatus)))
	observeQuery(res.Type, res.CacheStatus, time.Since(start))

	s.logger.Info(ctx, "query processed",
		zap.String("query_type", string(res.Type)),
		zap.String("cache_status", string(res.CacheStatus)),
		zap.Float64("total_ms", res.TotalTimeMS))
	return res, nil
}

func (s *Session) runSQL(ctx context.Context, typ query.Type, text string, limit, offset int) *SQLOutcome {
	stmt, ok := s.generator.Generate(typ, text, s.Snapshot(), limit, offset)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.SQLTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.Query(ctx, stmt.SQL, stmt.Params)
	out := &SQLOutcome{Statement: stmt, TimeMS: millis(time.Since(start))}
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrSQLExecution, err).Error()
		s.logger.Warn(ctx, "sql path failed", zap.String("table", stmt.Table), zap.Error(err))
		return out
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	out.Rows = rows
	return out
}

func (s *Session) runDocs(ctx context.Context, text string) *DocOutcome {
	if s.indexer.Len() == 0 {
		return &DocOutcome{Hits: []index.Hit{}, Warning: NoDocumentsWarning}
	}

	// limit pages the relational rows only
	k := s.opts.MaxDocResults

	ctx, cancel := context.WithTimeout(ctx, s.opts.DocTimeout)
	defer cancel()

	start := time.Now()
	hits, err := s.indexer.Search(ctx, text, k)
	out := &DocOutcome{TimeMS: millis(time.Since(start))}
	if err != nil {
		out.Hits = []index.Hit{}
		out.Err = err.Error()
		s.logger.Warn(ctx, "document path failed", zap.Error(err))
		return out
	}
	out.Hits = hits
	return out
}
