// Package controller adapts the fast/PCIe split ratio over time from
// observed execution statistics. Grounded on
// original_source/libampccl/controller/{algo_base,algo_tcp,algo_dcqcn,
// algo_factory,controller}.h.
package controller

import (
	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// Policy is the adaptive-algorithm interface every split strategy
// implements: the Go analogue of the original's AdaptiveAlgo abstract
// class.
type Policy interface {
	// Suggest returns the next alpha (fast-backend fraction, in [0,1])
	// given the cache's current parameters for this operation shape.
	Suggest(current cache.ParamValue) float64
	// Update folds one completed launch's statistics into the policy's
	// internal state.
	Update(stat telemetry.ExecStat)
	// Reset returns the policy to its construction-time state.
	Reset()
}
