package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Redacted replaces the value of every redacted log field
const Redacted = "[REDACTED]"

// DefaultRedactedFields are masked in every log line
var DefaultRedactedFields = []string{"signature", "private_key", "session_key", "pin", "authorization"}

// NewLogger creates a new logger based on configuration. Fields named in
// DefaultRedactedFields or cfg.RedactFields never reach the output.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		zapConfig.OutputPaths = []string{cfg.OutputPath}
	}

	// sampling is applied on top of redaction so sampled entries are masked too
	sampling := zapConfig.Sampling
	zapConfig.Sampling = nil
	redacted := append(slices.Clone(DefaultRedactedFields), cfg.RedactFields...)

	logger, err := zapConfig.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		core = NewRedactCore(core, redacted...)
		if sampling != nil {
			core = zapcore.NewSamplerWithOptions(core, time.Second, sampling.Initial, sampling.Thereafter)
		}
		return core
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

type redactCore struct {
	zapcore.Core
	names map[string]struct{}
}

// NewRedactCore wraps core so the values of the named fields are replaced
// with Redacted. Names match case-insensitively.
func NewRedactCore(core zapcore.Core, names ...string) zapcore.Core {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			set[n] = struct{}{}
		}
	}
	return &redactCore{Core: core, names: set}
}

func (c *redactCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactCore{Core: c.Core.With(c.redact(fields)), names: c.names}
}

func (c *redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, c.redact(fields))
}

// redact copies fields on the first match; callers' slices are never mutated
func (c *redactCore) redact(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		if _, ok := c.names[strings.ToLower(f.Key)]; !ok {
			continue
		}
		if out == nil {
			out = slices.Clone(fields)
		}
		out[i] = zap.String(f.Key, Redacted)
	}
	if out == nil {
		return fields
	}
	return out
}
