// Package effectmodel exposes the effect scope types that callers outside the
// effects tree need to configure handlers.
package effectmodel

import effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"

type EffectEnum = effectmodel.EffectEnum

type EffectScopeConfig = effectmodel.EffectScopeConfig

type Partitionable = effectmodel.Partitionable

var (
	ErrNoEffectHandler   = effectmodel.ErrNoEffectHandler
	ErrEffectScopeClosed = effectmodel.ErrEffectScopeClosed
)

// NewEffectScopeConfig clamps non-positive sizes to 1.
func NewEffectScopeConfig(bufferSize int, numWorkers int) EffectScopeConfig {
	return effectmodel.NewEffectScopeConfig(bufferSize, numWorkers)
}
