// Package configkeys names the binding keys the built-in handlers read their
// configuration from.
package configkeys

const (
	delimiter = "."

	ConfigPrefix = "config"

	ConfigEffectPrefix = ConfigPrefix + delimiter + "effect"

	ConfigEffectBindingPrefix = ConfigEffectPrefix + delimiter + "binding"

	ConfigEffectBindingHandlerPrefix     = ConfigEffectBindingPrefix + delimiter + "handler"
	ConfigEffectBindingHandlerBufferSize = ConfigEffectBindingHandlerPrefix + delimiter + "buffer_size"
	ConfigEffectBindingHandlerNumWorkers = ConfigEffectBindingHandlerPrefix + delimiter + "num_workers"

	ConfigEffectLogPrefix = ConfigEffectPrefix + delimiter + "log"

	ConfigEffectLogHandlerPrefix     = ConfigEffectLogPrefix + delimiter + "handler"
	ConfigEffectLogHandlerBufferSize = ConfigEffectLogHandlerPrefix + delimiter + "buffer_size"

	ConfigEffectConcurrencyPrefix = ConfigEffectPrefix + delimiter + "concurrency"

	ConfigEffectConcurrencyHandlerPrefix     = ConfigEffectConcurrencyPrefix + delimiter + "handler"
	ConfigEffectConcurrencyHandlerBufferSize = ConfigEffectConcurrencyHandlerPrefix + delimiter + "buffer_size"

	ConfigEffectGPCachePrefix = ConfigEffectPrefix + delimiter + "gpcache"

	ConfigEffectGPCacheHandlerPrefix     = ConfigEffectGPCachePrefix + delimiter + "handler"
	ConfigEffectGPCacheHandlerBufferSize = ConfigEffectGPCacheHandlerPrefix + delimiter + "buffer_size"
	ConfigEffectGPCacheHandlerNumWorkers = ConfigEffectGPCacheHandlerPrefix + delimiter + "num_workers"

	ConfigEffectGPCacheVarianceThreshold = ConfigEffectGPCachePrefix + delimiter + "variance_threshold"
	ConfigEffectGPCacheTimeout           = ConfigEffectGPCachePrefix + delimiter + "timeout"
	ConfigEffectGPCacheMaxContexts       = ConfigEffectGPCachePrefix + delimiter + "max_contexts"
)
