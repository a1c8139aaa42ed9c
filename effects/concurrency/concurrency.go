// Package concurrency is a fire-and-forget effect that runs functions on
// supervised goroutines.
package concurrency

import (
	"context"
	"fmt"
	"sync"

	"github.com/on-the-ground/effect_ive_gpcache/effects"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
	"github.com/on-the-ground/effect_ive_gpcache/effects/log"
)

// ErrNotAccepted is returned by Go when the handler dropped the routines.
var ErrNotAccepted = fmt.Errorf("routines not accepted by concurrency handler")

// Payload is the set of functions to run, one goroutine each.
type Payload []func(context.Context)

// WithEffectHandler installs a concurrency effect handler.
//
//   - Children run under a context derived from ctx, so they see the handlers
//     registered above this one and are cancelled with ctx.
//   - Ending the handler waits until every child has returned.
//   - A panicking child is logged through the log effect, when one is
//     registered, and does not affect its siblings.
func WithEffectHandler(
	ctx context.Context,
	bufferSize int,
) (context.Context, func() context.Context) {
	sv := &supervisor{parent: ctx}

	return effects.WithFireAndForgetEffectHandler(
		ctx,
		bufferSize,
		effectmodel.EffectConcurrency,
		func(_ context.Context, fns Payload) {
			sv.spawn(fns)
		},
		sv.wait,
	)
}

// Effect runs every fn concurrently. It returns once the handler has
// accepted them, not when they finish, and reports false if none will run
// because ctx ended or the handler is closed.
//
// Panics if no concurrency handler is registered.
func Effect(ctx context.Context, fns ...func(context.Context)) bool {
	return effects.FireAndForgetEffect(ctx, effectmodel.EffectConcurrency, Payload(fns))
}

// Go runs fns under the concurrency handler and blocks until all of them
// have returned. It returns ErrNotAccepted, without running any fn, if the
// handler did not take them.
func Go(ctx context.Context, fns ...func(context.Context)) error {
	var wg sync.WaitGroup
	wg.Add(len(fns))
	wrapped := make(Payload, len(fns))
	for i, fn := range fns {
		wrapped[i] = func(ctx context.Context) {
			defer wg.Done()
			fn(ctx)
		}
	}
	if !Effect(ctx, wrapped...) {
		return fmt.Errorf("%w: %d routines", ErrNotAccepted, len(fns))
	}
	wg.Wait()
	return nil
}

// supervisor tracks the goroutines spawned by one handler.
type supervisor struct {
	parent context.Context
	wg     sync.WaitGroup
}

func (s *supervisor) spawn(fns Payload) {
	for _, fn := range fns {
		s.wg.Add(1)
		go func(f func(context.Context)) {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.TryLogEff(s.parent, log.LogError, "panic in child routine", map[string]interface{}{
						"error": fmt.Sprint(r),
					})
				}
			}()
			f(s.parent)
		}(fn)
	}
}

func (s *supervisor) wait() {
	log.TryLogEff(s.parent, log.LogDebug, "waiting for all routines to finish", nil)
	s.wg.Wait()
	log.TryLogEff(s.parent, log.LogDebug, "all routines finished", nil)
}
