package handlers

import (
	"context"

	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
)

// NewFireAndForgetHandler serves every payload on a single worker.
//
// Closing the handler handles the payloads still queued before teardown
// runs, so Close blocks while a handler call is in flight.
func NewFireAndForgetHandler[T any](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, T),
	teardown func(),
) FireAndForgetHandler[T] {
	ctx, cancelFn := context.WithCancel(ctx)
	dispatcher := NewSingleQueue(ctx, bufferSize, forget(handleFn), forget(handleFn))
	return FireAndForgetHandler[T]{
		effectScope: newEffectScope(dispatcher, flushThen(cancelFn, dispatcher, teardown)),
	}
}

// NewPartitionableFireAndForgetHandler spreads payloads over
// config.NumWorkers workers by PartitionKey.
func NewPartitionableFireAndForgetHandler[T effectmodel.Partitionable](
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	handleFn func(context.Context, T),
	teardown func(),
) FireAndForgetHandler[T] {
	config = effectmodel.NewEffectScopeConfig(config.BufferSize, config.NumWorkers)
	ctx, cancelFn := context.WithCancel(ctx)
	dispatcher := NewPartitionedQueue(ctx, config.NumWorkers, config.BufferSize, forget(handleFn), forget(handleFn))
	return FireAndForgetHandler[T]{
		effectScope: newEffectScope(dispatcher, flushThen(cancelFn, dispatcher, teardown)),
	}
}

// flushThen stops the workers, waits until every accepted payload has been
// handled, then runs teardown.
func flushThen[T any](cancelFn context.CancelFunc, dispatcher WorkerDispatcher[T], teardown func()) func() {
	return func() {
		cancelFn()
		dispatcher.Wait()
		teardown()
	}
}

func forget[T any](handleFn func(context.Context, T)) func(context.Context, fireAndForgetEffectMessage[T]) {
	return func(ctx context.Context, msg fireAndForgetEffectMessage[T]) {
		handleFn(ctx, msg.payload)
	}
}

type FireAndForgetHandler[T any] struct {
	*effectScope[fireAndForgetEffectMessage[T]]
}

// FireAndForgetEffect enqueues payload. It drops the payload if ctx ends
// first or the handler is already closed.
func (ffh FireAndForgetHandler[T]) FireAndForgetEffect(ctx context.Context, payload T) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	msg := fireAndForgetEffectMessage[T]{payload: payload}
	select {
	case <-ctx.Done():
		return false
	case ffh.dispatcher.GetChannelOf(msg) <- msg:
		return true
	}
}

type fireAndForgetEffectMessage[T any] struct {
	payload T
}

func (m fireAndForgetEffectMessage[T]) PartitionKey() string {
	if p, ok := any(m.payload).(effectmodel.Partitionable); ok {
		return p.PartitionKey()
	}
	return ""
}
