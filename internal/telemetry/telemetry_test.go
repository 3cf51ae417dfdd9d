package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips validation", func(c *Config) { c.Endpoint = "" }, ""},
		{"enabled defaults", func(c *Config) { c.Enabled = true }, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, "protocol must be"},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, "insecure connections"},
		{"insecure ipv6 loopback", func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }, ""},
		{"bad rate", func(c *Config) { c.Enabled = true; c.Sampling.Rate = 2 }, "sampling.rate"},
		{"zero shutdown", func(c *Config) { c.Enabled = true; c.Shutdown.Timeout = 0 }, "shutdown.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.ErrorIs(t, err, faults.ErrConfiguration)
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Protocol = "udp"
	cfg.Sampling.Rate = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol must be")
	assert.Contains(t, err.Error(), "sampling.rate")
}

func TestIsLoopback(t *testing.T) {
	for endpoint, want := range map[string]bool{
		"localhost:4317":          true,
		"http://127.0.0.1:4318":   true,
		"[::1]:4317":              true,
		"::1":                     true,
		"otel.example.com:4317":   false,
		"https://10.0.0.5:4318":   false,
		"localhost.example.com:1": false,
	} {
		assert.Equal(t, want, isLoopback(endpoint), endpoint)
	}
}

func TestNewDisabledIsNoop(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, Status{}, tel.Status())
	assert.NotNil(t, tel.Tracer("askd.test"))
	assert.NotNil(t, tel.LoggerProvider())
	assert.NotNil(t, tel.Meter("askd.test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Equal(t, Status{}, tel.Status())
}

func TestEnabledStatusAndDoubleShutdown(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics.Enabled = false
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)

	st := tel.Status()
	assert.True(t, st.Enabled)
	assert.False(t, st.Degraded)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tel.Shutdown(ctx)
	assert.False(t, tel.Status().Enabled)
	assert.NoError(t, tel.Shutdown(ctx), "second shutdown is a no-op")
}

func TestDegradeAccumulatesReasons(t *testing.T) {
	tel := &Telemetry{config: NewDefaultConfig()}
	tel.degrade("traces: %s", "dial failed")
	tel.degrade("metrics: %s", "dial failed")

	st := tel.Status()
	assert.True(t, st.Degraded)
	assert.Equal(t, "traces: dial failed; metrics: dial failed", st.Reason)
}

func TestTestTelemetryRecords(t *testing.T) {
	tel := NewTestTelemetry()
	ctx := context.Background()

	_, span := tel.Tracer("askd.test").Start(ctx, "engine.ProcessQuery")
	span.End()
	tel.AssertSpanExists(t, "engine.ProcessQuery")

	counter, err := tel.Meter("askd.test").Int64Counter("askd.test.count")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	counter.Add(ctx, 3)

	assert.Contains(t, tel.MetricNames(ctx), "askd.test.count")
	assert.Equal(t, int64(5), tel.Int64Sum(ctx, "askd.test.count"))
}

func TestShutdownUsesConfiguredTimeout(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Shutdown.Timeout = config.Duration(10 * time.Millisecond)
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}
