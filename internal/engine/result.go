package engine

import (
	"math"
	"time"

	"github.com/fyrsmithlabs/hybridq/internal/cache"
	"github.com/fyrsmithlabs/hybridq/internal/index"
	"github.com/fyrsmithlabs/hybridq/internal/query"
)

// Kind tells whether a Result was served from the cache or computed.
type Kind string

const (
	Cached   Kind = "cached"
	Computed Kind = "computed"
)

// CacheStatus reports what the cache did for one query.
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
	// CacheNA means neither path produced a result, so nothing was stored.
	CacheNA CacheStatus = "N/A"
)

// Messages for the expected empty states of the document path.
const (
	NoDocumentsWarning = "No documents ingested yet."
	NoRelevantAnswer   = "No relevant documents found."
)

// SQLOutcome is the relational path's result. Exactly one of Rows and Err is
// meaningful: Err is empty on success.
type SQLOutcome struct {
	Statement *query.Statement `json:"statement"`
	Rows      []map[string]any `json:"rows,omitempty"`
	TimeMS    float64          `json:"time_ms"`
	Err       string           `json:"error,omitempty"`
}

// OK reports whether the statement executed.
func (o *SQLOutcome) OK() bool { return o != nil && o.Err == "" }

// DocOutcome is the document path's result. Err is empty on success; an
// empty index is a success with Warning set.
type DocOutcome struct {
	Hits    []index.Hit `json:"hits"`
	TimeMS  float64     `json:"time_ms"`
	Warning string      `json:"warning,omitempty"`
	Err     string      `json:"error,omitempty"`
}

// OK reports whether the search ran.
func (o *DocOutcome) OK() bool { return o != nil && o.Err == "" }

// Result is the merged answer to one query. SQL is nil when the relational
// path did not run or produced no statement; Docs is nil when the document
// path did not run.
type Result struct {
	Query       string      `json:"query"`
	Type        query.Type  `json:"query_type"`
	Kind        Kind        `json:"kind"`
	SQL         *SQLOutcome `json:"sql,omitempty"`
	Docs        *DocOutcome `json:"docs,omitempty"`
	Answer      string      `json:"doc_answer,omitempty"`
	TotalTimeMS float64     `json:"execution_time_ms"`
	CacheStatus CacheStatus `json:"cache_status"`
	CacheStats  cache.Stats `json:"cache_stats"`
	Version     uint64      `json:"data_version"`
}

// cacheable reports whether at least one path produced a result.
func (r *Result) cacheable() bool {
	return r.SQL.OK() || r.Docs.OK()
}

// answer concatenates the top three hits.
func answer(hits []index.Hit) string {
	if len(hits) == 0 {
		return NoRelevantAnswer
	}
	if len(hits) > 3 {
		hits = hits[:3]
	}
	out := hits[0].Chunk.Text
	for _, h := range hits[1:] {
		out += "\n\n" + h.Chunk.Text
	}
	return out
}

func millis(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}
