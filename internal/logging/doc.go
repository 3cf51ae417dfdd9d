// Package logging provides structured logging for askd.
//
// # Overview
//
// Logging wraps Zap with:
//   - stdout, rotating file and OpenTelemetry outputs
//   - context fields (trace_id, session.id, request.id, answer.mode) on every entry
//   - redaction of credentials and personal data at the encoder
//   - sampling that never drops errors
//
// A "trace" level sits below Debug for configs that want everything.
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "query answered", zap.Duration("duration", d))
//
// Output includes the correlation fields:
//
//	{
//	  "ts": "2026-03-02T10:15:30Z",
//	  "level": "info",
//	  "msg": "query answered",
//	  "session.id": "0195f2d4-8b1e-7c3a-9f10-2b6f3d1e9a77",
//	  "answer.mode": "rag",
//	  "duration": "1.2s"
//	}
//
// User-authored text is never logged. Log sizes, counts and categories.
package logging
