package controller

import (
	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// PIDPolicy is the DCQCN-style policy, grounded on
// original_source/libampccl/controller/algo_dcqcn.h: a PID loop driving
// the observed pcie/fast bandwidth ratio toward targetRatio, with integral
// windup clamped to [-1, 1] and alpha clamped to [0.1, 0.9].
type PIDPolicy struct {
	alpha          float64
	targetRatio    float64
	kp, ki, kd     float64
	integralError  float64
	lastError      float64
}

// NewPIDPolicy returns a policy with the original's tuned gains: kp=0.1,
// ki=0.01, kd=0.001, targeting an equal pcie/fast bandwidth ratio.
func NewPIDPolicy() *PIDPolicy {
	return &PIDPolicy{
		alpha:       0.5,
		targetRatio: 1.0,
		kp:          0.1,
		ki:          0.01,
		kd:          0.001,
	}
}

func (p *PIDPolicy) Suggest(current cache.ParamValue) float64 {
	p.alpha = current.Alpha
	return p.alpha
}

func (p *PIDPolicy) Update(stat telemetry.ExecStat) {
	if !stat.FastSuccess || !stat.PCIeSuccess {
		p.alpha *= 0.8
		if p.alpha < 0.1 {
			p.alpha = 0.1
		}
		return
	}

	fastBW := stat.FastBandwidth()
	pcieBW := stat.PCIeBandwidth()
	if fastBW <= 0.0 || pcieBW <= 0.0 {
		return
	}

	currentRatio := pcieBW / fastBW
	errVal := p.targetRatio - currentRatio

	p.integralError += errVal
	if p.integralError > 1.0 {
		p.integralError = 1.0
	}
	if p.integralError < -1.0 {
		p.integralError = -1.0
	}

	derivative := errVal - p.lastError
	p.lastError = errVal

	output := p.kp*errVal + p.ki*p.integralError + p.kd*derivative
	p.alpha += output

	if p.alpha < 0.1 {
		p.alpha = 0.1
	}
	if p.alpha > 0.9 {
		p.alpha = 0.9
	}
}

func (p *PIDPolicy) Reset() {
	p.alpha = 0.5
	p.integralError = 0.0
	p.lastError = 0.0
}
