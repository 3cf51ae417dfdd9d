package logging

import (
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// dropped counts entries discarded by sampling across all loggers.
var dropped atomic.Uint64

// DroppedEntries returns how many log entries sampling has discarded.
func DroppedEntries() uint64 {
	return dropped.Load()
}

// newSampledCore samples entries below error level. Errors always pass, so a
// burst of chatty debug logs never hides a failure.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	hook := zapcore.SamplerHook(func(_ zapcore.Entry, dec zapcore.SamplingDecision) {
		if dec&zapcore.LogDropped != 0 {
			dropped.Add(1)
		}
	})
	return &splitCore{
		Core:    core,
		sampled: zapcore.NewSamplerWithOptions(core, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter, hook),
	}
}

// splitCore sends errors to the wrapped core and everything else through
// the sampler.
type splitCore struct {
	zapcore.Core
	sampled zapcore.Core
}

func (c *splitCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level >= zapcore.ErrorLevel {
		return c.Core.Check(e, ce)
	}
	return c.sampled.Check(e, ce)
}

func (c *splitCore) With(fields []zapcore.Field) zapcore.Core {
	return &splitCore{
		Core:    c.Core.With(fields),
		sampled: c.sampled.With(fields),
	}
}
