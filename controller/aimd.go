package controller

import (
	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// AIMDPolicy is the TCP-style additive-increase/multiplicative-decrease
// policy, grounded on original_source/libampccl/controller/algo_tcp.h: on
// backend failure or PCIe lagging fast by more than 10%, multiply alpha
// down; when PCIe is comfortably ahead, step alpha up; otherwise nudge up
// by half a step.
type AIMDPolicy struct {
	alpha          float64
	increaseFactor float64
	decreaseFactor float64
	minAlpha       float64
	maxAlpha       float64
}

// NewAIMDPolicy returns a policy with the original's tuned constants:
// 0.01 additive increase, 0.5 multiplicative decrease, alpha clamped to
// [0.1, 0.9].
func NewAIMDPolicy() *AIMDPolicy {
	return &AIMDPolicy{
		alpha:          0.5,
		increaseFactor: 0.01,
		decreaseFactor: 0.5,
		minAlpha:       0.1,
		maxAlpha:       0.9,
	}
}

func (p *AIMDPolicy) Suggest(current cache.ParamValue) float64 {
	p.alpha = current.Alpha
	if p.alpha < p.minAlpha {
		p.alpha = p.minAlpha
	}
	if p.alpha > p.maxAlpha {
		p.alpha = p.maxAlpha
	}
	return p.alpha
}

func (p *AIMDPolicy) Update(stat telemetry.ExecStat) {
	if !stat.FastSuccess || !stat.PCIeSuccess {
		p.alpha *= p.decreaseFactor
		if p.alpha < p.minAlpha {
			p.alpha = p.minAlpha
		}
		return
	}

	fastTime := stat.FastTime
	pcieTime := stat.PCIeTime

	switch {
	case pcieTime > fastTime*1.1:
		p.alpha *= p.decreaseFactor
		if p.alpha < p.minAlpha {
			p.alpha = p.minAlpha
		}
	case pcieTime < fastTime*0.9:
		p.alpha += p.increaseFactor
		if p.alpha > p.maxAlpha {
			p.alpha = p.maxAlpha
		}
	default:
		p.alpha += p.increaseFactor * 0.5
		if p.alpha > p.maxAlpha {
			p.alpha = p.maxAlpha
		}
	}
}

func (p *AIMDPolicy) Reset() {
	p.alpha = 0.5
}
