package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with one sampler per configured level.
// Error and above are never sampled; levels without a sampling entry pass
// through unsampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	cores := []zapcore.Core{
		&levelFilterCore{Core: core, accept: func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel }},
		&levelFilterCore{Core: core, accept: func(l zapcore.Level) bool {
			_, sampled := cfg.Levels[l]
			return l < zapcore.ErrorLevel && !sampled
		}},
	}
	for lvl, rate := range cfg.Levels {
		if lvl >= zapcore.ErrorLevel {
			continue
		}
		only := lvl
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&levelFilterCore{Core: core, accept: func(l zapcore.Level) bool { return l == only }},
			cfg.Tick.Duration(),
			rate.Initial,
			rate.Thereafter,
		))
	}
	return zapcore.NewTee(cores...)
}

// levelFilterCore passes through entries whose level is accepted.
type levelFilterCore struct {
	zapcore.Core
	accept func(zapcore.Level) bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.accept(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), accept: c.accept}
}
