package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ctxKey names a correlation value carried on the context.
type ctxKey string

const (
	sessionKey    ctxKey = "session.id"
	requestKey    ctxKey = "request.id"
	answerModeKey ctxKey = "answer.mode"
)

// correlationKeys fixes the order fields appear in.
var correlationKeys = []ctxKey{sessionKey, requestKey, answerModeKey}

// ContextFields returns the trace, session, request and answer-mode fields
// found on ctx. Absent values produce no field.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2+len(correlationKeys))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	for _, k := range correlationKeys {
		if v := value(ctx, k); v != "" {
			fields = append(fields, zap.String(string(k), v))
		}
	}
	return fields
}

func with(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func value(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithSessionID tags ctx with the active session. Empty ids are ignored.
func WithSessionID(ctx context.Context, id string) context.Context { return with(ctx, sessionKey, id) }

// SessionIDFromContext returns the session id on ctx, if any.
func SessionIDFromContext(ctx context.Context) string { return value(ctx, sessionKey) }

// WithRequestID tags ctx with a per-query correlation id, such as the
// X-Request-ID of an API call.
func WithRequestID(ctx context.Context, id string) context.Context { return with(ctx, requestKey, id) }

// RequestIDFromContext returns the request id on ctx, if any.
func RequestIDFromContext(ctx context.Context) string { return value(ctx, requestKey) }

// WithAnswerMode records the answer mode a query runs under.
func WithAnswerMode(ctx context.Context, m string) context.Context { return with(ctx, answerModeKey, m) }

// AnswerModeFromContext returns the answer mode on ctx, if any.
func AnswerModeFromContext(ctx context.Context) string { return value(ctx, answerModeKey) }
