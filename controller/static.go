package controller

import (
	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// StaticPolicy never adapts: it always suggests a fixed alpha. Grounded on
// the original's StaticAlgo, which the C++ header leaves as a fallback
// default (AlgoFactory.Create defaults unknown algorithm codes to TCP, but
// common.AlgoStatic is itself the module's default Config.Algo).
type StaticPolicy struct {
	alpha float64
}

// NewStaticPolicy returns a policy fixed at the given alpha.
func NewStaticPolicy(alpha float64) *StaticPolicy {
	return &StaticPolicy{alpha: alpha}
}

func (p *StaticPolicy) Suggest(cache.ParamValue) float64 { return p.alpha }

func (p *StaticPolicy) Update(telemetry.ExecStat) {}

func (p *StaticPolicy) Reset() {}
