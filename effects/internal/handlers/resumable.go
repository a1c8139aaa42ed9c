package handlers

import (
	"context"
	"fmt"

	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
)

// ErrHandlerPanic wraps a panic raised by a handler function.
var ErrHandlerPanic = fmt.Errorf("effect handler panicked")

// NewResumableHandler serves every payload on a single worker.
func NewResumableHandler[P any, R any](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, P) (R, error),
	teardown func(),
) ResumableHandler[P, R] {
	ctx, cancelFn := context.WithCancel(ctx)
	return ResumableHandler[P, R]{
		effectScope: newEffectScope(
			NewSingleQueue(ctx, bufferSize, resume(handleFn), reject[P, R]),
			func() {
				teardown()
				cancelFn()
			},
		),
	}
}

// NewPartitionableResumableHandler spreads payloads over config.NumWorkers
// workers by PartitionKey.
func NewPartitionableResumableHandler[P effectmodel.Partitionable, R any](
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	handleFn func(context.Context, P) (R, error),
	teardown func(),
) ResumableHandler[P, R] {
	config = effectmodel.NewEffectScopeConfig(config.BufferSize, config.NumWorkers)
	ctx, cancelFn := context.WithCancel(ctx)
	return ResumableHandler[P, R]{
		effectScope: newEffectScope(
			NewPartitionedQueue(
				ctx,
				config.NumWorkers,
				config.BufferSize,
				resume(handleFn),
				reject[P, R],
			),
			func() {
				teardown()
				cancelFn()
			},
		),
	}
}

// resume runs handleFn and sends its outcome on the message's resume channel
// exactly once, then closes it. The channel has room for that one result.
func resume[P any, R any](
	handleFn func(context.Context, P) (R, error),
) func(context.Context, ResumableEffectMessage[P, R]) {
	return func(ctx context.Context, msg ResumableEffectMessage[P, R]) {
		defer close(msg.ResumeCh)
		msg.ResumeCh <- safeHandle(ctx, handleFn, msg.Payload)
	}
}

// reject resumes a message left in the queue of a closed handler.
func reject[P any, R any](_ context.Context, msg ResumableEffectMessage[P, R]) {
	defer close(msg.ResumeCh)
	msg.ResumeCh <- ResumableResult[R]{Err: effectmodel.ErrEffectScopeClosed}
}

func safeHandle[P any, R any](
	ctx context.Context,
	handleFn func(context.Context, P) (R, error),
	payload P,
) (res ResumableResult[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = ResumableResult[R]{Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
	}()
	return ResumableResultFrom(handleFn(ctx, payload))
}

type ResumableHandler[P any, R any] struct {
	*effectScope[ResumableEffectMessage[P, R]]
}

// PerformEffect hands payload to the owning worker and returns the channel
// the worker resumes on. If ctx ends first the channel is never written; if
// the handler is closed before handling payload it carries
// ErrEffectScopeClosed.
func (rh ResumableHandler[P, R]) PerformEffect(ctx context.Context, payload P) (resumeCh <-chan ResumableResult[R]) {
	// buffered to prevent blocking if handler sends without waiting
	ch := make(chan ResumableResult[R], 1)
	resumeCh = ch

	defer func() {
		if r := recover(); r != nil {
			// send on a channel closed by a torn-down worker
			ch <- ResumableResult[R]{Err: fmt.Errorf("%w: %s", effectmodel.ErrEffectScopeClosed, rh.EffectId)}
			close(ch)
		}
	}()

	msg := ResumableEffectMessage[P, R]{
		Payload:  payload,
		ResumeCh: ch,
	}
	select {
	case <-ctx.Done():
	case rh.dispatcher.GetChannelOf(msg) <- msg:
	}
	return
}

// ResumableResult represents the result of handled effects.
type ResumableResult[T any] struct {
	Value T
	Err   error
}

func ResumableResultFrom[R any](res R, err error) ResumableResult[R] {
	return ResumableResult[R]{Value: res, Err: err}
}

var _ effectmodel.Partitionable = ResumableEffectMessage[any, any]{}

type ResumableEffectMessage[P any, R any] struct {
	Payload  P
	ResumeCh chan ResumableResult[R]
}

func (rem ResumableEffectMessage[P, R]) PartitionKey() string {
	if p, ok := any(rem.Payload).(effectmodel.Partitionable); ok {
		return p.PartitionKey()
	}
	return ""
}
