package engine

import (
	"github.com/fyrsmithlabs/askd/internal/backends"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/memory"
	"github.com/fyrsmithlabs/askd/internal/privacy"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger   *logging.Logger
	meter    metric.Meter
	tracer   trace.Tracer
	registry *backends.Registry
	filter   *privacy.Filter
	store    memory.SessionStore
}

// WithLogger sets the engine logger. It is also handed to the default
// backend registry.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMeter records engine and backend metrics on m.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithTracer sets the tracer used for query spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRegistry replaces the backend registry built from the configuration.
func WithRegistry(r *backends.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithFilter replaces the privacy filter built from the configuration.
func WithFilter(f *privacy.Filter) Option {
	return func(o *options) { o.filter = f }
}

// WithSessionStore replaces the file-backed session store.
func WithSessionStore(s memory.SessionStore) Option {
	return func(o *options) { o.store = s }
}
