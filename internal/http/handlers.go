package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/engine"
	"github.com/fyrsmithlabs/hybridq/internal/ingest"
	"github.com/fyrsmithlabs/hybridq/internal/relational"
)

// errorStatus maps engine errors to HTTP status codes. Missing prerequisites
// and bad connection strings are client errors.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrEngineNotInitialized),
		errors.Is(err, relational.ErrConnection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	_, err := s.manager.Session()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Connected: err == nil,
		Chunks:    s.manager.Indexer().Len(),
		Version:   s.manager.Version(),
	})
}

func (s *Server) handleConnect(c echo.Context) error {
	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ConnectionString == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "connection_string field is required")
	}

	ctx := c.Request().Context()
	sess, err := s.manager.Connect(ctx, req.ConnectionString)
	if err != nil {
		s.logger.Warn(ctx, "connect failed", zap.String("target", relational.RedactDSN(req.ConnectionString)), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "failed to connect or analyze database: "+err.Error())
	}

	return c.JSON(http.StatusOK, ConnectResponse{
		Status:    "ok",
		Message:   "Database connected, schema discovered, and query engine initialized.",
		SessionID: sess.ID(),
		Schema:    sess.Snapshot(),
	})
}

func (s *Server) handleSchema(c echo.Context) error {
	sess, err := s.manager.Session()
	if err != nil {
		return echo.NewHTTPError(errorStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, SchemaResponse{Schema: sess.Snapshot()})
}

func (s *Server) handleUpload(c echo.Context) error {
	r := c.Request()
	r.Body = http.MaxBytesReader(c.Response(), r.Body, s.config.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form: "+err.Error())
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one file is required in field \"files\"")
	}

	files := make([]ingest.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "reading "+h.Filename+": "+err.Error())
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "reading "+h.Filename+": "+err.Error())
		}
		files = append(files, ingest.File{Name: h.Filename, Data: data})
	}

	report, err := s.pipeline.Ingest(r.Context(), files)
	if err != nil {
		s.logger.Error(r.Context(), "ingestion failed", zap.Error(err))
		return echo.NewHTTPError(errorStatus(err), "document ingestion failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, UploadResponse{Status: "ok", Report: report})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	limit := s.config.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 0 || req.Offset < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "limit and offset must not be negative")
	}

	res, err := s.manager.ProcessQuery(c.Request().Context(), req.Query, limit, req.Offset)
	if err != nil {
		return echo.NewHTTPError(errorStatus(err), err.Error())
	}
	c.Set(queryTypeKey, string(res.Type))
	return c.JSON(http.StatusOK, QueryResponse{Status: "ok", Results: res})
}
