// Package log is a fire-and-forget logging effect backed by zap.
package log

import (
	"context"

	"github.com/on-the-ground/effect_ive_gpcache/effects"
	"github.com/on-the-ground/effect_ive_gpcache/effects/internal/helper"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
	"go.uber.org/zap"
)

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
	LogDebug LogLevel = "debug"
)

// LogPayload is the payload structure for logging effect.
// It contains the log level, message string, and optional structured fields.
type LogPayload struct {
	Level   LogLevel
	Message string
	Fields  map[string]interface{}
}

// WithZapEffectHandler registers a fire-and-forget log effect handler writing
// to logger. Payloads are written in the order they are performed.
//
// The returned end function closes the handler and syncs the logger; use the
// context it returns afterwards.
func WithZapEffectHandler(
	ctx context.Context,
	bufferSize int,
	logger *zap.Logger,
) (context.Context, func() context.Context) {
	return effects.WithFireAndForgetEffectHandler(
		ctx,
		bufferSize,
		effectmodel.EffectLog,
		func(ctx context.Context, payload LogPayload) {
			write(logger, payload)
		},
		func() {
			// stdout and stderr report EINVAL on Sync on some platforms
			_ = logger.Sync()
		},
	)
}

func write(logger *zap.Logger, payload LogPayload) {
	fields := make([]zap.Field, 0, len(payload.Fields))
	for k, v := range payload.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch payload.Level {
	case LogWarn:
		logger.Warn(payload.Message, fields...)
	case LogError:
		logger.Error(payload.Message, fields...)
	case LogDebug:
		logger.Debug(payload.Message, fields...)
	default:
		logger.Info(payload.Message, fields...)
	}
}

// LogEff performs a fire-and-forget log effect using the EffectLog handler in the context.
// Panics if no log handler is registered.
func LogEff(ctx context.Context, level LogLevel, msg string, fields map[string]interface{}) {
	effects.FireAndForgetEffect(ctx, effectmodel.EffectLog, LogPayload{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

// TryLogEff is LogEff for code that may run without a log handler. It
// reports whether a handler was found.
func TryLogEff(ctx context.Context, level LogLevel, msg string, fields map[string]interface{}) bool {
	if _, err := helper.GetHandler(ctx, effectmodel.EffectLog); err != nil {
		return false
	}
	LogEff(ctx, level, msg, fields)
	return true
}
