package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/memory"
	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/fyrsmithlabs/askd/internal/retrieval"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// errorReplyPrefix starts every reply produced for a failed query.
const errorReplyPrefix = "I encountered an error processing your request: "

// Response is the outcome of one query.
type Response struct {
	Answer string `json:"answer"`
	// Sensitive reports that the privacy filter redacted part of the input.
	Sensitive bool `json:"sensitive"`
}

// ProcessQuery answers raw and records the exchange in memory. It never
// fails: errors become an apology reply with Sensitive false.
func (e *Engine) ProcessQuery(ctx context.Context, raw string) Response {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state.Load()
	start := time.Now()
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}
	ctx = logging.WithAnswerMode(ctx, string(st.answerMode))
	ctx, span := e.tracer.Start(ctx, "engine.ProcessQuery", trace.WithAttributes(
		attribute.String("answer.mode", string(st.answerMode)),
		attribute.String("model.provider", string(st.model.Provider())),
	))
	defer span.End()

	if _, ok := ctx.Deadline(); !ok {
		if timeout := e.cfg.Models.RequestTimeout.Duration(); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	scrubbed := e.filter.Scrub(raw)
	e.countRedactions(ctx, scrubbed.Counts)
	span.SetAttributes(attribute.Bool("privacy.redacted", scrubbed.Found))

	answer, err := e.answer(ctx, st, scrubbed.Text)
	outcome := "ok"
	resp := Response{Answer: answer, Sensitive: scrubbed.Found}
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		resp = e.errorReply(ctx, err)
	}

	if e.queryDuration != nil {
		e.queryDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("answer_mode", string(st.answerMode)),
			attribute.String("outcome", outcome),
		))
	}
	e.logger.Debug(ctx, "query processed",
		logging.TextLen("query", raw),
		logging.TextLen("answer", resp.Answer),
		zap.Bool("sensitive", resp.Sensitive),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
	)
	return resp
}

// answer runs the memory and dispatch steps for an already filtered query.
func (e *Engine) answer(ctx context.Context, st *snapshot, query string) (string, error) {
	sessionID := e.ensureSession(ctx)
	ctx = logging.WithSessionID(ctx, sessionID)

	// History for query enhancement excludes the message being answered.
	history := e.memory.ChatHistory()
	if err := e.memory.AddUserMessage(ctx, query, sessionID); err != nil {
		return "", err
	}

	answer, err := e.dispatch(ctx, st, query, history)
	if err != nil {
		return "", err
	}
	if err := e.memory.AddAIMessage(ctx, answer, sessionID); err != nil {
		return "", err
	}
	return answer, nil
}

// ensureSession lazily opens a session for the first query made in
// persistent mode without one.
func (e *Engine) ensureSession(ctx context.Context) string {
	id := e.currentSession()
	if id != "" || e.memory.Mode() != mode.Persistent {
		return id
	}
	id = e.memory.CreateSession()
	e.sessionID.Store(id)
	e.logger.Debug(logging.WithSessionID(ctx, id), "opened session for persistent memory")
	return id
}

func (e *Engine) dispatch(ctx context.Context, st *snapshot, query string, history []memory.Message) (string, error) {
	switch st.answerMode {
	case mode.AnswerRAG:
		return st.corpus.retriever.Answer(ctx, st.model, query, history)
	case mode.AnswerWebSearch:
		answer, err := retrieval.WebAnswer(ctx, st.model, st.searcher, query)
		if err == nil {
			return answer, nil
		}
		e.logger.Warn(ctx, "web search failed, answering without it",
			zap.String("class", classOf(err)),
			zap.Error(err),
		)
	}
	answer, err := st.model.Generate(ctx, retrieval.DefaultPrompt(query))
	if err != nil {
		return "", faults.QueryProcessing("generating answer: %w", err)
	}
	return answer, nil
}

// errorReply logs err, records the apology in memory and returns it.
func (e *Engine) errorReply(ctx context.Context, err error) Response {
	e.logger.Error(ctx, "query failed", zap.String("class", classOf(err)), zap.Error(err))
	if e.failures != nil {
		e.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("class", classOf(err))))
	}
	reply := errorReplyPrefix + err.Error()
	if rerr := e.memory.AddAIMessage(ctx, reply, e.currentSession()); rerr != nil {
		e.logger.Warn(ctx, "recording error reply failed", zap.Error(rerr))
	}
	return Response{Answer: reply}
}

func (e *Engine) countRedactions(ctx context.Context, counts map[string]int) {
	if e.redactions == nil {
		return
	}
	for category, n := range counts {
		e.redactions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("category", category)))
	}
}

// classOf names the error class for logs and metrics.
func classOf(err error) string {
	switch faults.Class(err) {
	case faults.ErrConfiguration:
		return "configuration"
	case faults.ErrBackendUnavailable:
		return "backend_unavailable"
	case faults.ErrStorageIntegrity:
		return "storage_integrity"
	case faults.ErrQueryProcessing:
		return "query_processing"
	}
	return fmt.Sprintf("%T", err)
}
