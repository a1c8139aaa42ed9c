package memo

import (
	"context"
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// KeyedFunc is an expensive function of a real vector and fixed context
// arguments.
type KeyedFunc func(ctx context.Context, x []float64, contextArgs ...any) (float64, error)

// Keyed routes each call to an Adaptive chosen by the Key of its context
// arguments. Instances are created on first use with a fresh kernel and are
// fully independent; calls on different keys may run concurrently.
type Keyed struct {
	fn  KeyedFunc
	cfg config

	mu        sync.Mutex
	instances registry
}

func NewKeyed(fn KeyedFunc, opts ...Option) *Keyed {
	cfg := applyOptions(opts)
	return &Keyed{
		fn:        fn,
		cfg:       cfg,
		instances: newRegistry(cfg.maxContexts, cfg.logger),
	}
}

// MakeCache returns a Keyed cache of fn with the given variance threshold.
func MakeCache(fn KeyedFunc, varianceThreshold float64, opts ...Option) *Keyed {
	return NewKeyed(fn, append([]Option{WithVarianceThreshold(varianceThreshold)}, opts...)...)
}

func (c *Keyed) Evaluate(ctx context.Context, x []float64, contextArgs ...any) (float64, error) {
	key, err := Key(contextArgs...)
	if err != nil {
		return 0, err
	}
	return c.EvaluateKey(ctx, key, x, contextArgs...)
}

// EvaluateKey is Evaluate with the context key already computed. key must be
// Key(contextArgs...); it selects the instance, and contextArgs are only
// passed to the function when the instance is created.
func (c *Keyed) EvaluateKey(ctx context.Context, key string, x []float64, contextArgs ...any) (float64, error) {
	return c.instance(key, contextArgs).Evaluate(ctx, x)
}

// Perform starts Evaluate and returns a channel that receives exactly one
// Result and is then closed.
func (c *Keyed) Perform(ctx context.Context, x []float64, contextArgs ...any) <-chan Result {
	return perform(func() (float64, error) { return c.Evaluate(ctx, x, contextArgs...) })
}

// Call evaluates x under contextArgs and resumes k exactly once.
func (c *Keyed) Call(ctx context.Context, k Continuation, x []float64, contextArgs ...any) {
	k(c.Evaluate(ctx, x, contextArgs...))
}

// Len returns the number of live context instances.
func (c *Keyed) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instances.len()
}

// Stats returns the counters of the instance for contextArgs, if it exists.
func (c *Keyed) Stats(contextArgs ...any) (Stats, bool, error) {
	key, err := Key(contextArgs...)
	if err != nil {
		return Stats{}, false, err
	}
	st, ok := c.StatsKey(key)
	return st, ok, nil
}

// StatsKey is Stats for a key computed with Key.
func (c *Keyed) StatsKey(key string) (Stats, bool) {
	c.mu.Lock()
	a, ok := c.instances.get(key)
	c.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return a.Stats(), true
}

func (c *Keyed) instance(key string, contextArgs []any) *Adaptive {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.instances.get(key); ok {
		return a
	}

	fixed := append([]any(nil), contextArgs...)
	logger := c.cfg.logger.With(zap.String("context_key", hex.EncodeToString([]byte(key))))
	a := newAdaptive(func(ctx context.Context, x []float64) (float64, error) {
		return c.fn(ctx, x, fixed...)
	}, c.cfg, logger)
	c.instances.add(key, a)
	logger.Debug("created context instance", zap.Any("context", fixed), zap.Int("contexts", c.instances.len()))
	return a
}

type registry interface {
	get(key string) (*Adaptive, bool)
	add(key string, a *Adaptive)
	len() int
}

func newRegistry(maxContexts int, logger *zap.Logger) registry {
	if maxContexts <= 0 {
		return mapRegistry{}
	}
	cache, err := lru.NewWithEvict(maxContexts, func(key string, _ *Adaptive) {
		logger.Debug("evicted context instance", zap.String("context_key", hex.EncodeToString([]byte(key))))
	})
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	return lruRegistry{cache: cache}
}

type mapRegistry map[string]*Adaptive

func (r mapRegistry) get(key string) (*Adaptive, bool) {
	a, ok := r[key]
	return a, ok
}

func (r mapRegistry) add(key string, a *Adaptive) { r[key] = a }

func (r mapRegistry) len() int { return len(r) }

type lruRegistry struct {
	cache *lru.Cache[string, *Adaptive]
}

func (r lruRegistry) get(key string) (*Adaptive, bool) { return r.cache.Get(key) }

func (r lruRegistry) add(key string, a *Adaptive) { r.cache.Add(key, a) }

func (r lruRegistry) len() int { return r.cache.Len() }
