package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/hybridq/internal/cache"
	"github.com/fyrsmithlabs/hybridq/internal/events"
	"github.com/fyrsmithlabs/hybridq/internal/index"
	"github.com/fyrsmithlabs/hybridq/internal/logging"
	"github.com/fyrsmithlabs/hybridq/internal/query"
	"github.com/fyrsmithlabs/hybridq/internal/relational"
	"github.com/fyrsmithlabs/hybridq/internal/schema"
	"github.com/fyrsmithlabs/hybridq/internal/telemetry"
)

// vocabEmbedder gives every distinct word its own axis.
type vocabEmbedder struct {
	mu    sync.Mutex
	vocab map[string]int
	err   error
}

func (v *vocabEmbedder) vec(text string) []float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.vocab == nil {
		v.vocab = map[string]int{}
	}
	out := make([]float32, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;?!")
		id, ok := v.vocab[w]
		if !ok {
			id = len(v.vocab)
			v.vocab[w] = id
		}
		out[id%64]++
	}
	return out
}

func (v *vocabEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = v.vec(t)
	}
	return out, nil
}

func (v *vocabEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.vec(text), nil
}

type recordedEvent struct {
	Type    string
	Version uint64
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingPublisher) Publish(_ context.Context, typ string, version uint64, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{typ, version})
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// fakeDB serves a fixed schema and fails every query with queryErr.
type fakeDB struct {
	queryErr error
	closed   bool
}

func (f *fakeDB) ListTables(context.Context) ([]string, error) { return []string{"t_staff", "t_misc"}, nil }
func (f *fakeDB) ListColumns(_ context.Context, _ string) ([]schema.Column, error) {
	return []schema.Column{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}}, nil
}
func (f *fakeDB) ListPrimaryKeys(context.Context, string) ([]string, error) { return []string{"id"}, nil }
func (f *fakeDB) ListForeignKeys(context.Context, string) ([]schema.ForeignKey, error) {
	return nil, nil
}
func (f *fakeDB) SampleRows(context.Context, string, int) ([]map[string]any, error) { return nil, nil }
func (f *fakeDB) Query(context.Context, string, map[string]any) ([]map[string]any, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []map[string]any{{"count": int64(2)}}, nil
}
func (f *fakeDB) Dialect() relational.Dialect { return relational.SQLite }
func (f *fakeDB) InsertDocuments(context.Context, []relational.DocumentRow) (int64, error) {
	return 0, nil
}
func (f *fakeDB) InsertEmployees(context.Context, []relational.EmployeeRow) (int64, error) {
	return 0, nil
}
func (f *fakeDB) Close() error { f.closed = true; return nil }

func fakeOpener(dbs ...*fakeDB) Opener {
	i := 0
	return func(context.Context, string) (Database, error) {
		db := dbs[i]
		i++
		return db, nil
	}
}

func newManager(t *testing.T, open Opener) (*Manager, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	m := NewManager(ManagerConfig{
		Indexer: index.New(&vocabEmbedder{}),
		Cache:   cache.New(time.Minute),
		Events:  pub,
		Open:    open,
	})
	t.Cleanup(func() { _ = m.Close() })
	return m, pub
}

// sqliteURL returns a database with a populated employees table.
func sqliteURL(t *testing.T) string {
	t.Helper()
	url := "sqlite:///" + filepath.Join(t.TempDir(), "engine.db")
	ctx := context.Background()
	db, err := relational.Open(ctx, url, relational.Options{})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureAuxTables(ctx))
	_, err = db.InsertEmployees(ctx, []relational.EmployeeRow{
		{Name: "Alice Smith", Role: "Engineer", Department: "Platform"},
		{Name: "Bob Jones", Role: "Analyst", Department: "Finance"},
	})
	require.NoError(t, err)
	return url
}

func TestProcessQuery_NotInitialized(t *testing.T) {
	m, _ := newManager(t, nil)

	_, err := m.ProcessQuery(context.Background(), "how many employees", 10, 0)
	assert.ErrorIs(t, err, ErrEngineNotInitialized)

	_, err = m.Session()
	assert.ErrorIs(t, err, ErrEngineNotInitialized)

	var s *Session
	_, err = s.ProcessQuery(context.Background(), "q", 10, 0)
	assert.ErrorIs(t, err, ErrEngineNotInitialized)
}

func TestConnect_SQLite(t *testing.T) {
	m, pub := newManager(t, nil)

	sess, err := m.Connect(context.Background(), sqliteURL(t))
	require.NoError(t, err)

	snap := sess.Snapshot()
	assert.Equal(t, []string{"documents", "employees"}, snap.Names())
	emp, _ := snap.Table("employees")
	assert.Equal(t, schema.RoleEmployees, emp.Role)
	assert.Len(t, emp.Samples, 2)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.SchemaRefreshed, pub.events[0].Type)
	assert.EqualValues(t, 1, sess.Version())

	active, err := m.Session()
	require.NoError(t, err)
	assert.Same(t, sess, active)
}

func TestConnect_FailureKeepsActiveSession(t *testing.T) {
	m, _ := newManager(t, nil)
	first, err := m.Connect(context.Background(), sqliteURL(t))
	require.NoError(t, err)

	_, err = m.Connect(context.Background(), "mysql://nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, relational.ErrUnsupportedScheme)

	active, err := m.Session()
	require.NoError(t, err)
	assert.Same(t, first, active)
}

func TestConnect_ClosesPreviousSession(t *testing.T) {
	a, b := &fakeDB{}, &fakeDB{}
	m, _ := newManager(t, fakeOpener(a, b))

	_, err := m.Connect(context.Background(), "one")
	require.NoError(t, err)
	_, err = m.Connect(context.Background(), "two")
	require.NoError(t, err)

	assert.True(t, a.closed)
	assert.False(t, b.closed)
}

func TestProcessQuery_StructuredThenCached(t *testing.T) {
	m, _ := newManager(t, nil)
	_, err := m.Connect(context.Background(), sqliteURL(t))
	require.NoError(t, err)

	res, err := m.ProcessQuery(context.Background(), "how many alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, query.Structured, res.Type)
	assert.Equal(t, Computed, res.Kind)
	require.True(t, res.SQL.OK())
	assert.Equal(t, "employees", res.SQL.Statement.Table)
	assert.Equal(t, []map[string]any{{"count": int64(1)}}, res.SQL.Rows)
	assert.Nil(t, res.Docs)
	assert.Equal(t, CacheMiss, res.CacheStatus)

	again, err := m.ProcessQuery(context.Background(), "how many alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, CacheHit, again.CacheStatus)
	assert.Equal(t, Cached, again.Kind)
	assert.Equal(t, res.SQL.Rows, again.SQL.Rows)
	assert.EqualValues(t, 1, again.CacheStats.Hits)
	assert.EqualValues(t, 1, again.CacheStats.Misses)

	// a different page is a different key
	other, err := m.ProcessQuery(context.Background(), "how many alice", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, other.CacheStatus)
}

func TestProcessQuery_ListIsCountedNotPaged(t *testing.T) {
	m, _ := newManager(t, nil)
	_, err := m.Connect(context.Background(), sqliteURL(t))
	require.NoError(t, err)

	res, err := m.ProcessQuery(context.Background(), "list employees", 1, 1)
	require.NoError(t, err)
	require.True(t, res.SQL.OK())
	assert.Equal(t, `SELECT COUNT(*) AS count FROM "employees"`, res.SQL.Statement.SQL)
	assert.Equal(t, []map[string]any{{"count": int64(2)}}, res.SQL.Rows)
}

func TestProcessQuery_HybridWithEmptyIndex(t *testing.T) {
	m, _ := newManager(t, nil)
	_, err := m.Connect(context.Background(), sqliteURL(t))
	require.NoError(t, err)

	res, err := m.ProcessQuery(context.Background(), "tell me about acme corp", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, query.Hybrid, res.Type)
	require.True(t, res.SQL.OK())
	assert.Equal(t, []map[string]any{{"count": int64(2)}}, res.SQL.Rows)
	require.True(t, res.Docs.OK())
	assert.Equal(t, NoDocumentsWarning, res.Docs.Warning)
	assert.NotNil(t, res.Docs.Hits)
	assert.Empty(t, res.Docs.Hits)
	assert.Equal(t, NoRelevantAnswer, res.Answer)
	assert.Equal(t, CacheMiss, res.CacheStatus)
}

func TestProcessQuery_UnstructuredSearch(t *testing.T) {
	m, _ := newManager(t, fakeOpener(&fakeDB{}))
	_, err := m.Connect(context.Background(), "fake")
	require.NoError(t, err)

	_, err = m.Indexer().AddDocuments(context.Background(), []index.Document{{
		Filename: "handbook.txt",
		Content:  "billing handles invoices\n\nsupport handles tickets\n\nsales handles leads\n\nlegal handles contracts\n\nops handles pages\n\nhr handles hiring",
	}})
	require.NoError(t, err)
	m.DataChanged()

	res, err := m.ProcessQuery(context.Background(), "who handles invoices", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, query.Unstructured, res.Type)
	assert.Nil(t, res.SQL)
	require.True(t, res.Docs.OK())
	require.Len(t, res.Docs.Hits, 5, "limit does not shrink the document path")
	assert.Equal(t, "handbook.txt_0", res.Docs.Hits[0].Chunk.ID)
	assert.True(t, strings.HasPrefix(res.Answer, "billing handles invoices\n\n"))

	res, err = m.ProcessQuery(context.Background(), "who handles invoices", 50, 0)
	require.NoError(t, err)
	assert.Len(t, res.Docs.Hits, 5, "capped at five results")
	assert.Equal(t, 3, strings.Count(res.Answer, "handles"), "answer joins the top three hits")
}

func TestProcessQuery_PathFailuresAreIsolated(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("no such table")}
	tl := logging.NewTestLogger()
	emb := &vocabEmbedder{}
	ix := index.New(emb)
	_, err := ix.AddDocuments(context.Background(), []index.Document{{Filename: "a.txt", Content: "acme corp builds rockets"}})
	require.NoError(t, err)

	sess, err := NewSession(SessionConfig{DB: db, Indexer: ix, Logger: tl.Logger})
	require.NoError(t, err)
	_, err = sess.RefreshSchema(context.Background())
	require.NoError(t, err)

	// SQL fails, documents still served
	res, err := sess.ProcessQuery(context.Background(), "tell me about acme corp", 10, 0)
	require.NoError(t, err)
	require.NotNil(t, res.SQL)
	assert.Contains(t, res.SQL.Err, ErrSQLExecution.Error())
	assert.Contains(t, res.SQL.Err, "no such table")
	assert.Equal(t, "t_staff", res.SQL.Statement.Table)
	require.True(t, res.Docs.OK())
	assert.Len(t, res.Docs.Hits, 1)
	assert.Equal(t, CacheMiss, res.CacheStatus)
	tl.AssertLogged(t, zapcore.WarnLevel, "sql path failed")

	// both fail: nothing cached
	emb.err = errors.New("model offline")
	res, err = sess.ProcessQuery(context.Background(), "acme rockets", 10, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, res.SQL.Err)
	require.NotNil(t, res.Docs)
	assert.Contains(t, res.Docs.Err, "embedding failed")
	assert.Equal(t, CacheNA, res.CacheStatus)
	assert.Equal(t, 1, res.CacheStats.Entries)
}

func TestProcessQuery_StaleVersionRecomputed(t *testing.T) {
	sess, err := NewSession(SessionConfig{DB: &fakeDB{}, Indexer: index.New(&vocabEmbedder{})})
	require.NoError(t, err)
	_, err = sess.RefreshSchema(context.Background())
	require.NoError(t, err)

	first, err := sess.ProcessQuery(context.Background(), "count staff", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, first.CacheStatus)

	// version moves without a cache clear
	sess.versions.Add(1)
	second, err := sess.ProcessQuery(context.Background(), "count staff", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, second.CacheStatus)
	assert.Equal(t, Computed, second.Kind)
	assert.EqualValues(t, 1, second.Version)

	third, err := sess.ProcessQuery(context.Background(), "count staff", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, CacheHit, third.CacheStatus)

	sess.DataChanged()
	fourth, err := sess.ProcessQuery(context.Background(), "count staff", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, fourth.CacheStatus)
}

func TestProcessQuery_NoTables(t *testing.T) {
	sess, err := NewSession(SessionConfig{DB: &fakeDB{}, Indexer: index.New(&vocabEmbedder{})})
	require.NoError(t, err)

	res, err := sess.ProcessQuery(context.Background(), "how many employees", 10, 0)
	require.NoError(t, err)
	assert.Nil(t, res.SQL)
	assert.Equal(t, CacheNA, res.CacheStatus)
}

func TestProcessQuery_Spans(t *testing.T) {
	rec := telemetry.RecordSpans(t)
	sess, err := NewSession(SessionConfig{DB: &fakeDB{}, Indexer: index.New(&vocabEmbedder{})})
	require.NoError(t, err)

	_, err = sess.ProcessQuery(context.Background(), "describe acme", 10, 0)
	require.NoError(t, err)
	assert.Contains(t, rec.Names(), "engine.ProcessQuery")
}

func TestAnswer(t *testing.T) {
	assert.Equal(t, NoRelevantAnswer, answer(nil))
	hits := []index.Hit{{Chunk: index.Chunk{Text: "a"}}, {Chunk: index.Chunk{Text: "b"}}}
	assert.Equal(t, "a\n\nb", answer(hits))
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1.23, millis(1234567*time.Nanosecond))
}
