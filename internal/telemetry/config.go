package telemetry

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/faults"
)

// Protocols accepted for the OTLP exporters.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config is the "telemetry" section of the askd config file.
type Config struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	Protocol       string `koanf:"protocol"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	Insecure       bool   `koanf:"insecure"`
	TLSSkipVerify  bool   `koanf:"tls_skip_verify"`
	// Headers are sent with every export, e.g. a hosted collector's API key.
	Headers map[string]string `koanf:"headers"`

	Sampling struct {
		Rate float64 `koanf:"rate"`
	} `koanf:"sampling"`
	Metrics struct {
		Enabled        bool            `koanf:"enabled"`
		ExportInterval config.Duration `koanf:"export_interval"`
	} `koanf:"metrics"`
	Shutdown struct {
		Timeout config.Duration `koanf:"timeout"`
	} `koanf:"shutdown"`
}

// NewDefaultConfig returns a disabled configuration pointing at a local
// collector. Nothing is exported until telemetry.enabled is set.
func NewDefaultConfig() *Config {
	c := &Config{
		Endpoint:       "localhost:4317",
		Protocol:       ProtocolGRPC,
		ServiceName:    "askd",
		ServiceVersion: "0.1.0",
		Insecure:       true,
	}
	c.Sampling.Rate = 1
	c.Metrics.Enabled = true
	c.Metrics.ExportInterval = config.Duration(15 * time.Second)
	c.Shutdown.Timeout = config.Duration(5 * time.Second)
	return c
}

// Validate reports every problem at once as a configuration fault. A
// disabled configuration is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Endpoint == "", "endpoint is required when telemetry is enabled")
	check(c.ServiceName == "", "service_name is required when telemetry is enabled")
	check(c.Protocol != "" && c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP,
		"protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	check(c.Endpoint != "" && c.Insecure && !isLoopback(c.Endpoint),
		"insecure connections are only allowed to a loopback collector, got %s", c.Endpoint)
	check(c.Sampling.Rate < 0 || c.Sampling.Rate > 1, "sampling.rate must be within [0, 1], got %g", c.Sampling.Rate)
	check(c.Metrics.Enabled && c.Metrics.ExportInterval <= 0, "metrics.export_interval must be positive")
	check(c.Shutdown.Timeout <= 0, "shutdown.timeout must be positive")

	if err := errors.Join(errs...); err != nil {
		return faults.Configuration("telemetry: %v", err)
	}
	return nil
}

// isLoopback reports whether endpoint names localhost or a loopback IP.
func isLoopback(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
