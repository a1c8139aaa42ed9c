package handlers

import (
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"

	"github.com/cespare/xxhash/v2"
)

func partitionOf(key string, numChs int) int {
	return int(xxhash.Sum64String(key) % uint64(numChs))
}

func getIndexByHash(payload effectmodel.Partitionable, numChs int) int {
	switch numChs {
	case 0:
		panic("number of channels cannot be 0")
	case 1:
		return 0
	default:
		return partitionOf(payload.PartitionKey(), numChs)
	}
}
