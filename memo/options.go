package memo

import (
	"math"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/kernel"
	"go.uber.org/zap"
)

// DefaultVarianceThreshold is the predictive variance above which a call is
// computed instead of predicted.
const DefaultVarianceThreshold = 1.0

type config struct {
	varianceThreshold float64
	newKernel         func() *kernel.Kernel
	logger            *zap.Logger
	timeout           time.Duration
	maxContexts       int
}

// Option configures an Adaptive or Keyed cache.
type Option func(*config)

func defaultConfig() config {
	return config{
		varianceThreshold: DefaultVarianceThreshold,
		newKernel:         kernel.Default,
		logger:            zap.NewNop(),
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithVarianceThreshold sets the variance above which the expensive function
// is called. Lower is more exact, higher avoids more calls. NaN is ignored;
// +Inf predicts every call after the first.
func WithVarianceThreshold(v float64) Option {
	return func(c *config) {
		if !math.IsNaN(v) {
			c.varianceThreshold = v
		}
	}
}

// WithKernel sets the kernel factory. It is called once per cache instance,
// so every context key gets its own parameters.
func WithKernel(newKernel func() *kernel.Kernel) Option {
	return func(c *config) {
		if newKernel != nil {
			c.newKernel = newKernel
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds each call to the expensive function. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxContexts bounds the number of context keys a Keyed cache keeps,
// evicting the least recently used. Zero keeps every key.
func WithMaxContexts(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxContexts = n
		}
	}
}
