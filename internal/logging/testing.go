package logging

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that records every entry, at every level, in memory.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns a recording logger with no redaction or sampling, so
// assertions see exactly what callers passed.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{zap: zap.New(core)},
		logs:   logs,
	}
}

// FilterMessage returns the entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.logs.FilterMessageSnippet(msg)
}

func (t *TestLogger) matching(level zapcore.Level, msg string) int {
	return t.logs.FilterLevelExact(level).FilterMessageSnippet(msg).Len()
}

// AssertLogged fails tb unless an entry at level mentions msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if t.matching(level, msg) == 0 {
		tb.Errorf("no %s entry mentioning %q; got %s", level, msg, t.summary())
	}
}

// AssertNotLogged fails tb if any entry at level mentions msg.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if n := t.matching(level, msg); n > 0 {
		tb.Errorf("%d unexpected %s entries mentioning %q", n, level, msg)
	}
}

// AssertField fails tb unless an entry mentioning msg carries key=want.
// Values are compared after zap's own encoding, so zap.Int("n", 3) matches
// int64(3).
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want interface{}) {
	tb.Helper()
	for _, e := range t.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && fmt.Sprint(got) == fmt.Sprint(want) {
			return
		}
	}
	tb.Errorf("no entry mentioning %q with %s=%v; got %s", msg, key, want, t.summary())
}

// AssertNeverContains fails tb if text shows up in any message or string
// field. Engine tests use it to prove user text stayed out of the logs.
func (t *TestLogger) AssertNeverContains(tb testing.TB, text string) {
	tb.Helper()
	for _, e := range t.logs.All() {
		if strings.Contains(e.Message, text) {
			tb.Errorf("log message %q contains %q", e.Message, text)
		}
		for _, f := range e.Context {
			if f.Type == zapcore.StringType && strings.Contains(f.String, text) {
				tb.Errorf("log field %q contains %q", f.Key, text)
			}
		}
	}
}

func (t *TestLogger) summary() string {
	var b strings.Builder
	for _, e := range t.logs.All() {
		fmt.Fprintf(&b, "\n  %s %q %v", e.Level, e.Message, e.ContextMap())
	}
	return b.String()
}
