package gpcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/effects/binding"
	"github.com/on-the-ground/effect_ive_gpcache/effects/configkeys"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
	"github.com/on-the-ground/effect_ive_gpcache/memo"
	"github.com/on-the-ground/effect_ive_gpcache/shared/helper"
)

// Config is the handler and cache configuration read from bindings.
type Config struct {
	Scope             effectmodel.EffectScopeConfig
	VarianceThreshold float64
	Timeout           time.Duration
	MaxContexts       int
}

// Options turns the cache part of c into memo options.
func (c Config) Options() []memo.Option {
	return []memo.Option{
		memo.WithVarianceThreshold(c.VarianceThreshold),
		memo.WithTimeout(c.Timeout),
		memo.WithMaxContexts(c.MaxContexts),
	}
}

// ConfigFromBindings reads the config.effect.gpcache.* keys through the
// binding effect. Unbound keys take their defaults. If no binding handler is
// registered at all, every key is unbound.
//
// The timeout may be bound as a duration string ("250ms") or a number of
// seconds.
func ConfigFromBindings(ctx context.Context) (Config, error) {
	bufferSize, err := binding.GetIntOr(ctx, configkeys.ConfigEffectGPCacheHandlerBufferSize, 1)
	if err != nil {
		return Config{}, err
	}
	numWorkers, err := binding.GetIntOr(ctx, configkeys.ConfigEffectGPCacheHandlerNumWorkers, 1)
	if err != nil {
		return Config{}, err
	}
	threshold, err := binding.GetFloat64Or(ctx, configkeys.ConfigEffectGPCacheVarianceThreshold, memo.DefaultVarianceThreshold)
	if err != nil {
		return Config{}, err
	}
	maxContexts, err := binding.GetIntOr(ctx, configkeys.ConfigEffectGPCacheMaxContexts, 0)
	if err != nil {
		return Config{}, err
	}
	timeout, err := timeoutFromBindings(ctx)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Scope:             effectmodel.NewEffectScopeConfig(bufferSize, numWorkers),
		VarianceThreshold: threshold,
		Timeout:           timeout,
		MaxContexts:       maxContexts,
	}, nil
}

func timeoutFromBindings(ctx context.Context) (time.Duration, error) {
	key := configkeys.ConfigEffectGPCacheTimeout
	v, err := binding.Effect(ctx, key)
	if errors.Is(err, binding.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	default:
		secs, ok := helper.ToFloat64(v)
		if !ok {
			return 0, fmt.Errorf("%w: %s is %T, want duration", helper.ErrUnexpectedType, key, v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
}
