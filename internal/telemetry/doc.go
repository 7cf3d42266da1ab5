// Package telemetry wires OpenTelemetry trace and metric providers for hybridq.
//
// Providers export over OTLP (gRPC or HTTP/protobuf) and are installed as the
// otel globals, so packages instrument themselves with otel.Tracer and
// otel.Meter. Telemetry is disabled by default; exporter failures degrade the
// instance instead of failing startup.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
package telemetry
