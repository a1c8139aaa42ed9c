package memo

import "fmt"

// Result is the value a cache call resumes with.
type Result struct {
	Value float64
	Err   error
}

func ResultFrom(v float64, err error) Result {
	return Result{Value: v, Err: err}
}

// Continuation receives the outcome of a cache call. The cache invokes it
// exactly once per call.
type Continuation func(value float64, err error)

// perform runs eval and delivers its outcome on a buffered channel that
// receives exactly one Result and is then closed. A panic in eval is
// delivered as ErrExternalPanic.
func perform(eval func() (float64, error)) <-chan Result {
	resumeCh := make(chan Result, 1)
	go func() {
		defer close(resumeCh)
		defer func() {
			if r := recover(); r != nil {
				resumeCh <- ResultFrom(0, fmt.Errorf("%w: %v", ErrExternalPanic, r))
			}
		}()
		resumeCh <- ResultFrom(eval())
	}()
	return resumeCh
}
