// Package effects is the handler runtime the cache is served through.
//
// A handler is registered in a context with one of the WithXxxEffectHandler
// functions and performed with PerformResumableEffect, AwaitResumableEffect
// or FireAndForgetEffect. Every registration returns an end function that
// closes the handler and gives back the parent context.
//
// Resumable handlers resume each performer exactly once through a buffered
// channel carrying a ResumableResult. Payloads still queued when the handler
// ends are resumed with ErrEffectScopeClosed. Partitionable handlers hash the
// payload's PartitionKey onto a fixed set of workers, so payloads sharing a
// key are handled in order while other keys run in parallel.
//
// Built-in effects live in sub-packages:
//   - binding: nested key/value configuration lookup
//   - log: zap-backed structured logging
//   - concurrency: supervised goroutines
//   - gpcache: the Gaussian Process memoizing cache
//
// Example:
//
//	func handler(ctx context.Context) error {
//	    ctx, end := gpcache.WithEffectHandler(ctx, effectmodel.NewEffectScopeConfig(8, 4), simulate)
//	    defer end()
//
//	    y, err := gpcache.Effect(ctx, []float64{0.5}, "scenario-a")
//	    ...
//	}
package effects
