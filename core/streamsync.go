package core

import (
	"github.com/adaptive-ccl/ampccl/cmn/debug"
	"github.com/adaptive-ccl/ampccl/cmn/nlog"
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// HandleStreamSync implements spec.md §4.9: run by the hook layer after
// the vendor's own stream-synchronize call has already returned success.
// It retires whatever collective was pending on stream, folding the
// measured timings into an ExecStat and either publishing it straight to
// the Controller (single-rank / no-shm case) or writing it into shm for
// rank 0 to aggregate on the next collective (multi-rank PCIe case,
// spec.md §4.2 step 2). metrics may be nil; Observe is a no-op on a nil
// receiver, so callers that don't care about Prometheus export can pass
// nil unconditionally.
func HandleStreamSync(mgr *DomainManager, stream common.RawStream, cfg *common.Config, metrics *telemetry.Metrics) {
	pending, ok := mgr.TakeStreamPending(stream)
	if !ok {
		return
	}
	debug.Assert(pending.Domain != nil, "core: pending collective without a domain")

	pcieUsed := pending.Plan.UsePCIe && pending.Plan.PCIeBytes > 0 && pending.PCIeStream != 0

	// Mirrors spec.md §4.9's literal step order: the PCIe timer's
	// Synchronize stands in for step 2's PCIe-stream sync, then timer_fast
	// and timer_pcie again (step 3).
	// Timer.Synchronize is idempotent, so the repeated PCIe sync is a
	// harmless no-op by the time step 3 reaches it.
	if pcieUsed {
		pending.TimerPCIe.Synchronize()
	}
	pending.TimerFast.Synchronize()
	if pcieUsed {
		pending.TimerPCIe.Synchronize()
	}

	stat := telemetry.ExecStat{
		FastTime:    pending.TimerFast.ElapsedSeconds(),
		FastBytes:   pending.Plan.FastBytes,
		FastSuccess: pending.FastOK,
		// PCIe wasn't part of this launch, so it can't have failed — leaving
		// this at the zero value would spuriously trip the controller's
		// "either backend failed" decay path on every fast-only collective.
		PCIeSuccess: true,
	}
	if pcieUsed {
		stat.PCIeTime = pending.TimerPCIe.ElapsedSeconds()
		stat.PCIeBytes = pending.Plan.PCIeBytes
		stat.PCIeSuccess = pending.PCIeOK
	}

	domain := pending.Domain
	if domain.PCIeNranks > 1 && domain.Shm() != nil && domain.Shm().IsAttached() {
		if err := domain.Shm().WriteMyStat(pending.OpKey, stat); err != nil {
			nlog.Warningf("core: %s: WriteMyStat: %v", domain.Alias, err)
		}
	} else {
		domain.Controller.Update(pending.OpKey, stat, domain.Params, cfg)
	}

	metrics.Observe(pending.OpKey.Op, domain.Params.Lookup(pending.OpKey).Alpha, stat)
}
