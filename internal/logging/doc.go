// Package logging provides structured logging for hybridq.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - stdout, rotating file (lumberjack) and OpenTelemetry outputs
//   - context field injection (trace_id, span_id, session.id, request.id)
//   - redaction of credential fields and connection-string passwords
//   - level-aware sampling where errors are never sampled
//
// Usage:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, "req_42")
//	logger.Info(ctx, "query processed", zap.String("cache_status", "MISS"))
//
// Libraries that want a plain *zap.Logger get one from Underlying.
package logging
