package controller

import "github.com/adaptive-ccl/ampccl/common"

// NewPolicy builds the Policy named by algo, grounded on
// original_source/libampccl/controller/algo_factory.h's AlgoFactory::Create
// switch. Unlike the original (which defaults unknown codes to TCP), an
// unrecognized AdaptiveAlgorithm value falls back to StaticPolicy, matching
// common.Config's own AlgoStatic zero value and parseLogLevel-style
// default-to-safe posture elsewhere in this module.
func NewPolicy(algo common.AdaptiveAlgorithm) Policy {
	switch algo {
	case common.AlgoTCP:
		return NewAIMDPolicy()
	case common.AlgoDCQCN:
		return NewPIDPolicy()
	case common.AlgoStatic:
		return NewStaticPolicy(0.5)
	default:
		return NewStaticPolicy(0.5)
	}
}
