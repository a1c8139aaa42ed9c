// Package binding is a resumable key/value lookup effect. Scopes nest: a key
// missing from the innermost binding map is looked up in the enclosing one.
package binding

import (
	"context"
	"fmt"

	"github.com/on-the-ground/effect_ive_gpcache/effects"
	"github.com/on-the-ground/effect_ive_gpcache/effects/internal/helper"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
)

var ErrKeyNotFound = fmt.Errorf("key not found")

// Payload is the key to look up.
type Payload string

func (bp Payload) PartitionKey() string {
	return string(bp)
}

// WithEffectHandler registers a resumable, partitionable effect handler for bindings.
//
//   - Lookups for one key are served by one worker.
//   - Keys missing locally are delegated to the enclosing binding scope.
//   - The returned end function closes the handler; use the context it
//     returns afterwards.
func WithEffectHandler(
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	bindingMap map[string]any,
) (context.Context, func() context.Context) {
	bindingHandler := &bindingHandler{
		bindingMap: normalizeBindingMap(bindingMap),
		upper:      ctx,
	}
	return effects.WithResumablePartitionableEffectHandler[Payload, any](
		ctx,
		config,
		effectmodel.EffectBinding,
		bindingHandler.handle,
	)
}

// Effect performs a key-based lookup using the Binding effect handler.
//
// Returns ErrKeyNotFound if neither this scope nor any enclosing one binds key.
func Effect(ctx context.Context, key string) (any, error) {
	if _, err := helper.GetHandler(ctx, effectmodel.EffectBinding); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyNotFound, key, err)
	}
	return effects.AwaitResumableEffect[Payload, any](ctx, effectmodel.EffectBinding, Payload(key))
}

func normalizeBindingMap(bm map[string]any) map[string]any {
	copied := make(map[string]any, len(bm))
	for k, v := range bm {
		copied[k] = v
	}
	return copied
}

type bindingHandler struct {
	bindingMap map[string]any
	upper      context.Context
}

// handle looks up the key in the local bindingMap.
// - If found: returns the value.
// - If not found: delegates to the enclosing scope, which reports
//   ErrKeyNotFound once no scope is left.
func (bh bindingHandler) handle(ctx context.Context, payload Payload) (any, error) {
	key := string(payload)
	v, ok := bh.bindingMap[key]
	if !ok {
		return Effect(bh.upper, key)
	}
	return v, nil
}
