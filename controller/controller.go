package controller

import (
	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/cmn/nlog"
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// Controller owns one Policy and drives a ParamCache from it, grounded on
// original_source/libampccl/controller/controller.h's AdaptiveController.
// disk is the SPEC_FULL.md §4 supplemented persistence path: when non-nil,
// every Update also writes through to disk so the next process on this
// host warm-starts from it (see cache.DiskStore).
type Controller struct {
	policy Policy
	disk   *cache.DiskStore
}

// NewController wraps policy. disk may be nil to disable persistence.
func NewController(policy Policy, disk *cache.DiskStore) *Controller {
	return &Controller{policy: policy, disk: disk}
}

// SuggestAlpha returns the policy's alpha suggestion for opKey given the
// cache's current parameters.
func (c *Controller) SuggestAlpha(opKey common.OpKey, params *cache.ParamCache) float64 {
	current := params.Lookup(opKey)
	return c.policy.Suggest(current)
}

// Update folds stat into the policy, recomputes alpha and the use-PCIe
// decision, and writes the result back into params (and to disk, if
// persistence is enabled).
func (c *Controller) Update(opKey common.OpKey, stat telemetry.ExecStat, params *cache.ParamCache, cfg *common.Config) {
	c.policy.Update(stat)

	current := params.Lookup(opKey)
	newAlpha := c.policy.Suggest(current)

	fastBW := stat.FastBandwidth()
	pcieBW := stat.PCIeBandwidth()

	usePCIe := cfg.PCIeEnabled && stat.PCIeSuccess && pcieBW > 0.0

	updated := cache.ParamValue{
		Alpha:   newAlpha,
		UsePCIe: usePCIe,
		FastBW:  fastBW,
		PCIeBW:  pcieBW,
	}
	params.Update(opKey, updated)

	if c.disk != nil {
		if err := c.disk.Save(opKey, updated); err != nil {
			nlog.Warningf("persist param for %s: %v", opKey.String(), err)
		}
	}
}

// Reset returns the wrapped policy to its initial state.
func (c *Controller) Reset() {
	c.policy.Reset()
}

// WarmStart loads every entry disk holds into params, used once at Domain
// construction when AMPCCL_PERSIST_PARAMS is set.
func WarmStart(params *cache.ParamCache, disk *cache.DiskStore) {
	if disk == nil {
		return
	}
	entries, err := disk.LoadAll()
	if err != nil {
		nlog.Warningf("param warm-start scan: %v", err)
		return
	}
	params.SetFrom(entries)
}
