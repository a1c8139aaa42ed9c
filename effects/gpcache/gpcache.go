// Package gpcache serves a memo.Keyed cache as a resumable effect.
//
// Calls are partitioned by context key: every call for one key is handled in
// order by the same worker, while other keys proceed on other workers.
//
// Example:
//
//	ctx, end := gpcache.WithEffectHandler(ctx, effectmodel.NewEffectScopeConfig(16, 4), simulate,
//	    memo.WithVarianceThreshold(0.5))
//	defer end()
//
//	y, err := gpcache.Effect(ctx, []float64{0.3}, "scenario-a")
package gpcache

import (
	"context"

	"github.com/on-the-ground/effect_ive_gpcache/effects"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
	"github.com/on-the-ground/effect_ive_gpcache/memo"
	"go.uber.org/zap"
)

type op int

const (
	opEvaluate op = iota
	opStats
)

// Payload is one cache request.
type Payload struct {
	Key         string
	X           []float64
	ContextArgs []any
	op          op
}

func (p Payload) PartitionKey() string {
	return p.Key
}

// Reply is what the handler resumes with.
type Reply struct {
	Value float64
	Stats memo.Stats
	Found bool
}

// WithEffectHandler registers a Keyed cache of f under the gpcache effect.
//
// The cache logs through zap's global logger unless opts override it. The
// returned end function closes the handler; use the context it returns
// afterwards.
func WithEffectHandler(
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	f memo.KeyedFunc,
	opts ...memo.Option,
) (context.Context, func() context.Context) {
	opts = append([]memo.Option{memo.WithLogger(zap.L().Named("gpcache"))}, opts...)
	cache := memo.NewKeyed(f, opts...)
	return effects.WithResumablePartitionableEffectHandler(
		ctx,
		config,
		effectmodel.EffectGPCache,
		func(ctx context.Context, p Payload) (Reply, error) {
			return handle(ctx, cache, p)
		},
	)
}

func handle(ctx context.Context, cache *memo.Keyed, p Payload) (Reply, error) {
	switch p.op {
	case opStats:
		st, ok := cache.StatsKey(p.Key)
		return Reply{Stats: st, Found: ok}, nil
	default:
		v, err := cache.EvaluateKey(ctx, p.Key, p.X, p.ContextArgs...)
		return Reply{Value: v, Found: true}, err
	}
}

// Effect evaluates x under contextArgs through the cache registered in ctx
// and waits for the value or for ctx to end.
//
// Panics if no gpcache handler is registered.
func Effect(ctx context.Context, x []float64, contextArgs ...any) (float64, error) {
	p, err := newPayload(opEvaluate, x, contextArgs)
	if err != nil {
		return 0, err
	}
	reply, err := effects.AwaitResumableEffect[Payload, Reply](ctx, effectmodel.EffectGPCache, p)
	return reply.Value, err
}

// PerformEffect is the non-blocking form of Effect: the returned channel
// receives exactly one result unless ctx ends before the handler accepts the
// call.
func PerformEffect(ctx context.Context, x []float64, contextArgs ...any) (<-chan effects.ResumableResult[Reply], error) {
	p, err := newPayload(opEvaluate, x, contextArgs)
	if err != nil {
		return nil, err
	}
	return effects.PerformResumableEffect[Payload, Reply](ctx, effectmodel.EffectGPCache, p), nil
}

// StatsEffect reports the counters of the cache instance for contextArgs.
// ok is false if no call has used that context yet.
func StatsEffect(ctx context.Context, contextArgs ...any) (st memo.Stats, ok bool, err error) {
	p, err := newPayload(opStats, nil, contextArgs)
	if err != nil {
		return memo.Stats{}, false, err
	}
	reply, err := effects.AwaitResumableEffect[Payload, Reply](ctx, effectmodel.EffectGPCache, p)
	return reply.Stats, reply.Found, err
}

func newPayload(o op, x []float64, contextArgs []any) (Payload, error) {
	key, err := memo.Key(contextArgs...)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Key:         key,
		X:           append([]float64(nil), x...),
		ContextArgs: append([]any(nil), contextArgs...),
		op:          o,
	}, nil
}
