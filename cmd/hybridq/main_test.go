package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI against srv and returns stdout.
func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","connected":true,"indexed_chunks":4,"data_version":2}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
	assert.Contains(t, out, "Database Connected: true")
	assert.Contains(t, out, "Indexed Chunks: 4")
}

func TestConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/connect-database", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sqlite:///x.db", body["connection_string"])
		_, _ = w.Write([]byte(`{"status":"ok","message":"connected","session_id":"s-1","schema":{}}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "connect", "sqlite:///x.db")
	require.NoError(t, err)
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "Session: s-1")
}

func TestServerErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"engine not initialized"}`))
	}))
	defer srv.Close()

	_, err := execute(t, srv, "schema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400: engine not initialized")
}

func TestQuery(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"ok","results":{
			"query_type":"structured","cache_status":"MISS","execution_time_ms":1.5,
			"sql":{"statement":{"sql":"SELECT COUNT(*) AS count FROM \"employees\""},"rows":[{"count":2}]}
		}}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "query", "how many employees")
	require.NoError(t, err)
	assert.Equal(t, "how many employees", got["query"])
	_, hasLimit := got["limit"]
	assert.False(t, hasLimit, "limit omitted so the server default applies")
	assert.Contains(t, out, "Type: structured  Cache: MISS")
	assert.Contains(t, out, "Rows: 1")
	assert.Contains(t, out, `{"count":2}`)

	_, err = execute(t, srv, "query", "list employees", "--limit", "5", "--offset", "2")
	require.NoError(t, err)
	assert.EqualValues(t, 5, got["limit"])
	assert.EqualValues(t, 2, got["offset"])
}

func TestQuery_DocsSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","results":{
			"query_type":"hybrid","cache_status":"MISS",
			"docs":{"hits":[],"warning":"No documents ingested yet."}
		}}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "query", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents: No documents ingested yet.")
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.txt")
	require.NoError(t, os.WriteFile(path, []byte("Name: Ann, Role: Lead, Dept: Sales"), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 1)
		assert.Equal(t, "roster.txt", files[0].Filename)
		_, _ = w.Write([]byte(`{"status":"ok","filenames":["roster.txt"],"processed_chunks":1,
			"inserted_documents":1,"inserted_structured_rows":1,"data_version":3}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "upload", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1 chunk(s) from 1 file(s)")
	assert.Contains(t, out, "employee rows: 1")
	assert.Contains(t, out, "Data Version: 3")
}

func TestUpload_MissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	_, err := execute(t, srv, "upload", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}
