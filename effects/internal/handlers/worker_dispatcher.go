package handlers

import (
	"context"
	"sync"

	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
)

// WorkerDispatcher routes a message to the channel of the worker that owns it.
type WorkerDispatcher[T any] interface {
	GetChannelOf(msg T) chan T
	// Wait blocks until every worker has stopped and drained its channel.
	Wait()
}

// --- single queue ---

type singleQueue[T any] struct {
	effectCh chan T
	done     *sync.WaitGroup
}

func (q singleQueue[T]) GetChannelOf(_ T) chan T {
	return q.effectCh
}

func (q singleQueue[T]) Wait() {
	q.done.Wait()
}

// NewSingleQueue starts one worker. Messages are handled in send order.
//
// Once ctx is done the channel is closed and every message still buffered is
// passed to drainFn, or dropped if drainFn is nil.
func NewSingleQueue[T any](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, T),
	drainFn func(context.Context, T),
) WorkerDispatcher[T] {
	effCh := make(chan T, bufferSize)
	done := &sync.WaitGroup{}
	done.Add(1)

	ready := make(chan struct{})
	go func(ch chan T) {
		defer done.Done()
		close(ready)
		runWorker(ctx, ch, handleFn, drainFn)
	}(effCh)

	<-ready

	return singleQueue[T]{effectCh: effCh, done: done}
}

// --- partitioned queue ---

type partitionedQueue[T effectmodel.Partitionable] struct {
	effectChs []chan T
	done      *sync.WaitGroup
}

func (pq partitionedQueue[T]) GetChannelOf(msg T) chan T {
	idx := getIndexByHash(msg, len(pq.effectChs))
	return pq.effectChs[idx]
}

func (pq partitionedQueue[T]) Wait() {
	pq.done.Wait()
}

// NewPartitionedQueue starts numWorkers workers. Messages with equal
// PartitionKey always reach the same worker, so they are handled in send
// order; other keys may proceed in parallel.
//
// Stopping follows NewSingleQueue.
func NewPartitionedQueue[T effectmodel.Partitionable](
	ctx context.Context,
	numWorkers, bufferSize int,
	handleFn func(context.Context, T),
	drainFn func(context.Context, T),
) WorkerDispatcher[T] {
	channels := make([]chan T, numWorkers)
	done := &sync.WaitGroup{}
	ready := sync.WaitGroup{}
	for i := 0; i < numWorkers; i++ {
		ready.Add(1)
		done.Add(1)
		ch := make(chan T, bufferSize)
		go func(ch chan T) {
			defer done.Done()
			ready.Done()
			runWorker(ctx, ch, handleFn, drainFn)
		}(ch)
		channels[i] = ch
	}
	ready.Wait()
	return partitionedQueue[T]{effectChs: channels, done: done}
}

func runWorker[T any](
	ctx context.Context,
	ch chan T,
	handleFn func(context.Context, T),
	drainFn func(context.Context, T),
) {
	defer func() {
		// senders racing the close recover from the send panic
		close(ch)
		for msg := range ch {
			if drainFn != nil {
				drainFn(ctx, msg)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case msg := <-ch:
			handleFn(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}
