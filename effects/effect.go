package effects

import (
	"context"

	"github.com/on-the-ground/effect_ive_gpcache/effects/internal/handlers"
	"github.com/on-the-ground/effect_ive_gpcache/effects/internal/helper"
	sharedHelper "github.com/on-the-ground/effect_ive_gpcache/shared/helper"
	"go.uber.org/zap"

	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
)

// ResumableResult is what a resumable effect resumes its performer with.
type ResumableResult[R any] = handlers.ResumableResult[R]

// WithResumablePartitionableEffectHandler registers a resumable effect handler for a given effect enum.
//
// Payloads are dispatched by PartitionKey() over config.NumWorkers workers, so
// payloads sharing a key are handled one at a time, in order.
//
// Usage:
//
//	ctx, end := WithResumablePartitionableEffectHandler(ctx, config, MyEffectEnum, handleFn)
//	defer end()
func WithResumablePartitionableEffectHandler[P effectmodel.Partitionable, R any](
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	enum effectmodel.EffectEnum,
	handleFn func(context.Context, P) (R, error),
	teardown ...func(),
) (context.Context, func() context.Context) {
	td := normalizeTeardown(teardown)
	handler := handlers.NewPartitionableResumableHandler(ctx, config, handleFn, td)
	return register(ctx, enum, handler, handler.EffectId, handler.Close, "resumable")
}

// WithResumableEffectHandler registers a resumable effect handler served by a
// single worker.
func WithResumableEffectHandler[P any, R any](
	ctx context.Context,
	bufferSize int,
	enum effectmodel.EffectEnum,
	handleFn func(context.Context, P) (R, error),
	teardown ...func(),
) (context.Context, func() context.Context) {
	td := normalizeTeardown(teardown)
	handler := handlers.NewResumableHandler(ctx, bufferSize, handleFn, td)
	return register(ctx, enum, handler, handler.EffectId, handler.Close, "resumable")
}

// PerformResumableEffect sends a payload to the resumable effect handler and
// returns the channel it resumes on.
//
// Panics if no handler is registered for the given effect enum.
func PerformResumableEffect[P any, R any](
	ctx context.Context,
	enum effectmodel.EffectEnum,
	payload P,
) <-chan ResumableResult[R] {
	handler := sharedHelper.MustGetTypedValue[handlers.ResumableHandler[P, R]](
		func() (any, error) {
			return helper.GetHandler(ctx, enum)
		},
	)
	return handler.PerformEffect(ctx, payload)
}

// AwaitResumableEffect performs a resumable effect and blocks until it
// resumes or ctx ends.
func AwaitResumableEffect[P any, R any](
	ctx context.Context,
	enum effectmodel.EffectEnum,
	payload P,
) (R, error) {
	var zero R
	select {
	case res, ok := <-PerformResumableEffect[P, R](ctx, enum, payload):
		if ok {
			return res.Value, res.Err
		}
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, effectmodel.ErrEffectScopeClosed
}

// WithFireAndForgetEffectHandler registers a fire-and-forget effect handler for a given effect enum.
//
// Suitable for one-shot effects like logging. The handler executes without
// returning a result. Ending the handler handles every payload it already
// accepted before the teardown runs.
func WithFireAndForgetEffectHandler[P any](
	ctx context.Context,
	bufferSize int,
	enum effectmodel.EffectEnum,
	handleFn func(context.Context, P),
	teardown ...func(),
) (context.Context, func() context.Context) {
	td := normalizeTeardown(teardown)
	handler := handlers.NewFireAndForgetHandler(ctx, bufferSize, handleFn, td)
	return register(ctx, enum, handler, handler.EffectId, handler.Close, "fire/forget")
}

// WithFireAndForgetPartitionableEffectHandler registers a partitioned fire-and-forget handler.
//
// Effects with the same PartitionKey() are handled by the same goroutine.
func WithFireAndForgetPartitionableEffectHandler[P effectmodel.Partitionable](
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	enum effectmodel.EffectEnum,
	handleFn func(context.Context, P),
	teardown ...func(),
) (context.Context, func() context.Context) {
	td := normalizeTeardown(teardown)
	handler := handlers.NewPartitionableFireAndForgetHandler(ctx, config, handleFn, td)
	return register(ctx, enum, handler, handler.EffectId, handler.Close, "fire/forget")
}

// FireAndForgetEffect triggers a fire-and-forget effect for the given enum and payload.
// It reports whether the handler accepted the payload; a payload is dropped
// when ctx ends first or the handler is closed.
//
// Panics if no handler is registered for the given enum.
func FireAndForgetEffect[P any](
	ctx context.Context,
	enum effectmodel.EffectEnum,
	payload P,
) bool {
	handler := sharedHelper.MustGetTypedValue[handlers.FireAndForgetHandler[P]](
		func() (any, error) {
			return helper.GetHandler(ctx, enum)
		},
	)
	if !handler.FireAndForgetEffect(ctx, payload) {
		zap.L().Debug("dropped fire/forget effect",
			zap.String("effectId", handler.EffectId),
			zap.String("enum", string(enum)),
		)
		return false
	}
	return true
}

// register binds handler to enum in a child context. The returned end
// function closes the handler and gives back the parent context.
func register(
	ctx context.Context,
	enum effectmodel.EffectEnum,
	handler any,
	effectId string,
	closeFn func(),
	kind string,
) (context.Context, func() context.Context) {
	logger := zap.L().With(
		zap.String("effectId", effectId),
		zap.String("enum", string(enum)),
	)
	ctxWith := context.WithValue(ctx, enum, handler)
	logger.Debug("created " + kind + " effect handler")

	return ctxWith, func() context.Context {
		closeFn()
		logger.Debug("closed " + kind + " effect handler")
		return ctx
	}
}

// normalizeTeardown flattens optional teardown functions into a single callable.
//
// Accepts either 0 or 1 teardown functions. Panics if more than one is passed.
func normalizeTeardown(teardown []func()) func() {
	switch len(teardown) {
	case 1:
		return teardown[0]
	case 0:
		return func() {}
	default:
		panic("normalizeTeardown: only one or zero teardown functions allowed")
	}
}
