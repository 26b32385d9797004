package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// leveledCore filters entries by its own threshold instead of the wrapped
// core's, so a single command can log more or less than the global level.
type leveledCore struct {
	zapcore.Core

	threshold zapcore.Level
}

func (c *leveledCore) Enabled(level zapcore.Level) bool {
	return c.threshold.Enabled(level)
}

//nolint:gocritic // CheckedEntry.AddCore takes the entry by value.
func (c *leveledCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return checked
	}

	return checked.AddCore(entry, c)
}

//nolint:ireturn // zapcore.Core is the interface zap expects back.
func (c *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{Core: c.Core.With(fields), threshold: c.threshold}
}

// WithLevel replaces the minimum level of a logger derived with WithOptions.
// archpack-resolver --diagnose uses it to print debug output regardless of --log-level.
//
//nolint:ireturn // zap.Option is an interface by design of zap.
func WithLevel(level zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &leveledCore{Core: core, threshold: level}
	})
}
