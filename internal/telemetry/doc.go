// Package telemetry provides OpenTelemetry tracing and metrics for askd.
//
// Telemetry is off by default. When enabled it exports over OTLP (grpc or
// http/protobuf) and degrades to no-op providers if an exporter cannot be
// created, so a missing collector never stops the engine.
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("askd.engine")
//	meter := tel.Meter("askd.engine")
//
// Configuration lives under the "telemetry" section:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  service_name: "askd"
package telemetry
