package http

import (
	"github.com/fyrsmithlabs/hybridq/internal/engine"
	"github.com/fyrsmithlabs/hybridq/internal/ingest"
	"github.com/fyrsmithlabs/hybridq/internal/schema"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Chunks    int    `json:"indexed_chunks"`
	Version   uint64 `json:"data_version"`
}

// ConnectRequest is the request body for POST /api/connect-database.
type ConnectRequest struct {
	ConnectionString string `json:"connection_string"`
}

// ConnectResponse is the response body for POST /api/connect-database.
type ConnectResponse struct {
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	SessionID string           `json:"session_id"`
	Schema    *schema.Snapshot `json:"schema"`
}

// SchemaResponse is the response body for GET /api/schema.
type SchemaResponse struct {
	Schema *schema.Snapshot `json:"schema"`
}

// UploadResponse is the response body for POST /api/upload-documents.
type UploadResponse struct {
	Status string `json:"status"`
	*ingest.Report
}

// QueryRequest is the request body for POST /api/query. Limit defaults to
// the server's configured limit when omitted.
type QueryRequest struct {
	Query  string `json:"query"`
	Limit  *int   `json:"limit,omitempty"`
	Offset int    `json:"offset"`
}

// QueryResponse is the response body for POST /api/query.
type QueryResponse struct {
	Status  string         `json:"status"`
	Results *engine.Result `json:"results"`
}
