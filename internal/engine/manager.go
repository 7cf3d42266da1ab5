package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/cache"
	"github.com/fyrsmithlabs/hybridq/internal/events"
	"github.com/fyrsmithlabs/hybridq/internal/index"
	"github.com/fyrsmithlabs/hybridq/internal/logging"
	"github.com/fyrsmithlabs/hybridq/internal/relational"
	"github.com/fyrsmithlabs/hybridq/internal/schema"
)

// Opener opens a database from a connection string.
type Opener func(ctx context.Context, connStr string) (Database, error)

// RelationalOpener opens a *relational.DB and creates the auxiliary tables
// ingestion writes to.
func RelationalOpener(opts relational.Options) Opener {
	return func(ctx context.Context, connStr string) (Database, error) {
		db, err := relational.Open(ctx, connStr, opts)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureAuxTables(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}

// ManagerConfig holds the process-wide collaborators.
type ManagerConfig struct {
	Indexer *index.Indexer
	Cache   *cache.Cache
	Builder *schema.Builder
	Options Options
	Events  events.Publisher
	Open    Opener
	Logger  *logging.Logger
}

// Manager owns the document index and the cache, which live for the whole
// process, and the active Session, which is replaced by every Connect.
type Manager struct {
	indexer  *index.Indexer
	cache    *cache.Cache
	builder  *schema.Builder
	opts     Options
	events   events.Publisher
	open     Opener
	logger   *logging.Logger
	versions atomic.Uint64

	mu     sync.RWMutex
	active *Session
}

// NewManager returns a manager with no active session.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.New(cache.DefaultTTL)
	}
	if cfg.Builder == nil {
		cfg.Builder = schema.NewBuilder(cfg.Logger)
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.Open == nil {
		cfg.Open = RelationalOpener(relational.Options{})
	}
	return &Manager{
		indexer: cfg.Indexer,
		cache:   cfg.Cache,
		builder: cfg.Builder,
		opts:    cfg.Options,
		events:  cfg.Events,
		open:    cfg.Open,
		logger:  cfg.Logger.Named("engine"),
	}
}

func (m *Manager) Indexer() *index.Indexer { return m.indexer }
func (m *Manager) Cache() *cache.Cache { return m.cache }
func (m *Manager) Events() events.Publisher { return m.events }
func (m *Manager) Version() uint64 { return m.versions.Load() }

// Connect opens connStr, builds its snapshot and makes the new session
// active. The previous session's database is closed. On error the active
// session is left unchanged.
func (m *Manager) Connect(ctx context.Context, connStr string) (*Session, error) {
	ctx, span := otel.Tracer("hybridq/engine").Start(ctx, "engine.Connect")
	defer span.End()

	db, err := m.open(ctx, connStr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return nil, err
	}

	snap, err := m.builder.Build(ctx, db)
	if err != nil {
		_ = db.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "schema build failed")
		return nil, fmt.Errorf("analyzing schema: %w", err)
	}

	sess, err := NewSession(SessionConfig{
		DB:       db,
		Snapshot: snap,
		Indexer:  m.indexer,
		Cache:    m.cache,
		Builder:  m.builder,
		Options:  m.opts,
		Logger:   m.logger,
		Versions: &m.versions,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m.mu.Lock()
	prev := m.active
	m.active = sess
	m.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			m.logger.Warn(ctx, "closing previous session", zap.String("previous_session_id", prev.ID()), zap.Error(err))
		}
	}

	version := sess.DataChanged()
	span.SetAttributes(attribute.Int("schema.tables", snap.Len()))

	ctx = logging.WithSessionID(ctx, sess.ID())
	m.logger.Info(ctx, "database connected",
		zap.String("dialect", string(db.Dialect())),
		zap.Int("tables", snap.Len()),
		zap.Uint64("version", version))
	m.publish(ctx, events.SchemaRefreshed, version, map[string]any{"tables": snap.Names()})
	return sess, nil
}

// Session returns the active session.
func (m *Manager) Session() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil, ErrEngineNotInitialized
	}
	return m.active, nil
}

// ProcessQuery runs text on the active session.
func (m *Manager) ProcessQuery(ctx context.Context, text string, limit, offset int) (*Result, error) {
	sess, err := m.Session()
	if err != nil {
		return nil, err
	}
	return sess.ProcessQuery(ctx, text, limit, offset)
}

// DataChanged bumps the data version and clears the cache whether or not a
// session is active.
func (m *Manager) DataChanged() uint64 {
	v := m.versions.Add(1)
	m.cache.Clear()
	return v
}

func (m *Manager) publish(ctx context.Context, eventType string, version uint64, payload any) {
	if err := m.events.Publish(ctx, eventType, version, payload); err != nil {
		m.logger.Warn(ctx, "event not published", zap.String("event", eventType), zap.Error(err))
	}
}

// Publish sends an event, logging delivery failures.
func (m *Manager) Publish(ctx context.Context, eventType string, version uint64, payload any) {
	m.publish(ctx, eventType, version, payload)
}

// Close closes the active session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	err := m.active.Close()
	m.active = nil
	return err
}
