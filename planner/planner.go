// Package planner derives a byte split (Plan) from an adaptive ratio, the
// total payload size, and the minimum-chunk configuration — spec.md §4.3.
package planner

import "github.com/adaptive-ccl/ampccl/common"

// Plan is the split decision for one collective launch: how many bytes go
// to the fast backend, how many to PCIe, and whether PCIe is used at all.
// Invariant: FastBytes+PCIeBytes <= total, and any non-zero chunk is >=
// MinChunkSize and 4-byte aligned.
type Plan struct {
	FastBytes uint64
	PCIeBytes uint64
	UsePCIe   bool
}

// align4 rounds n up to the next multiple of 4.
func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}

// CreatePlan builds the split for totalBytes given a suggested alpha (the
// fast-backend fraction, already expected to be clamped to the policy's
// bounds by the caller) and useePCIeHint (ParamValue.UsePCIe from the
// cache). cfg supplies the MinMsgSize/MinChunkSize/PCIeEnabled thresholds.
//
// This is a pure function of its four inputs: same inputs always produce
// the same Plan (spec.md §8, "Planner is deterministic").
func CreatePlan(totalBytes uint64, alpha float64, usePCIeHint bool, cfg *common.Config) Plan {
	if !cfg.PCIeEnabled || totalBytes < cfg.MinMsgSize || !usePCIeHint {
		return Plan{FastBytes: totalBytes, PCIeBytes: 0, UsePCIe: false}
	}

	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	fast := uint64(float64(totalBytes) * alpha)
	pcie := totalBytes - fast

	minChunk := cfg.MinChunkSize

	if fast > 0 && fast < minChunk {
		pcie += fast
		fast = 0
	}
	if pcie > 0 && pcie < minChunk {
		fast += pcie
		pcie = 0
	}

	var plan Plan
	switch {
	case pcie < minChunk:
		plan = Plan{FastBytes: totalBytes, PCIeBytes: 0, UsePCIe: false}
	case fast < minChunk:
		plan = Plan{FastBytes: 0, PCIeBytes: totalBytes, UsePCIe: true}
	default:
		plan = Plan{FastBytes: fast, PCIeBytes: pcie, UsePCIe: true}
	}

	if plan.FastBytes > 0 {
		plan.FastBytes = align4(plan.FastBytes)
	}
	if plan.PCIeBytes > 0 {
		plan.PCIeBytes = align4(plan.PCIeBytes)
	}
	// Alignment can push the sum past totalBytes; restore the invariant by
	// shrinking PCIe first (per spec.md §4.3 step 5) — down to a 4-byte
	// boundary when it shares the payload with a fast chunk, so both chunks
	// of a split stay aligned and up to 3 trailing bytes of an unaligned
	// total fall outside the split — and — on the
	// unresolved corner the spec flags as an open question (§9.b), where
	// alignment alone pushes a solo fast_bytes=total_bytes chunk past
	// total_bytes — shrinking fast back down to total_bytes too, so the
	// "fast+pcie <= total" invariant holds unconditionally rather than only
	// in the common case. See DESIGN.md for the rationale.
	if plan.FastBytes > totalBytes {
		plan.FastBytes = totalBytes
		plan.PCIeBytes = 0
	} else if plan.FastBytes+plan.PCIeBytes > totalBytes {
		plan.PCIeBytes = totalBytes - plan.FastBytes
		if plan.FastBytes > 0 {
			plan.PCIeBytes &^= 3
		}
	}

	return plan
}
