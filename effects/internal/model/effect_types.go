package effectmodel

import "fmt"

type EffectEnum string

const (
	EffectLog         EffectEnum = "effect_ive_gpcache_effect_enum_log"
	EffectBinding     EffectEnum = "effect_ive_gpcache_effect_enum_binding"
	EffectConcurrency EffectEnum = "effect_ive_gpcache_effect_enum_concurrency"
	EffectGPCache     EffectEnum = "effect_ive_gpcache_effect_enum_gpcache"
)

var (
	ErrNoEffectHandler = fmt.Errorf("no effect handler registered for this effect")

	// ErrEffectScopeClosed is delivered to a performer whose handler was
	// torn down before it could accept the payload.
	ErrEffectScopeClosed = fmt.Errorf("effect scope is closed")
)

type EffectScopeConfig struct {
	BufferSize int // default: 1
	NumWorkers int // default: 1
}

func NewEffectScopeConfig(bufferSize int, numWorkers int) EffectScopeConfig {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return EffectScopeConfig{
		BufferSize: bufferSize,
		NumWorkers: numWorkers,
	}
}

type Partitionable interface {
	PartitionKey() string
}
