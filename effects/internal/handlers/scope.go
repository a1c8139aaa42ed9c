package handlers

import (
	"github.com/google/uuid"
)

// effectScope owns the workers behind one registered handler.
//
// It is NOT thread-safe: Close must be called once, from the goroutine that
// registered the handler. Performers may run on any goroutine; they only
// touch the dispatcher channels.
type effectScope[T any] struct {
	EffectId   string
	dispatcher WorkerDispatcher[T]
	closeFn    func()
	closed     bool
}

func (es *effectScope[T]) Close() {
	if !es.closed {
		es.closeFn()
		es.closed = true
	}
}

func newEffectScope[T any](
	dispatcher WorkerDispatcher[T],
	teardown func(),
) *effectScope[T] {
	return &effectScope[T]{
		EffectId:   uuid.New().String(),
		dispatcher: dispatcher,
		closeFn:    teardown,
		closed:     false,
	}
}
