// Package hook is the vendor-facing facade described in spec.md §6: the
// entry points a collective library's own functions get intercepted into.
// The original (original_source/libampccl/hook/{nccl,hccl}_hook.cc) resolves
// the real vendor symbols itself via dlopen/dlsym and LD_PRELOAD. Go offers
// no equivalent of either without cgo, so this package inverts the
// dependency instead: every method takes the vendor's original function as
// an explicit callback argument, and the actual symbol resolution (however
// the embedding program wants to do it — LD_PRELOAD shim written in C,
// cgo, a vendored Go binding) lives entirely outside this package.
package hook

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/cmn/nlog"
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/core"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// Hook owns the process-wide registry and dispatcher every intercepted
// entry point shares, plus the live Config snapshot those entry points were
// built against. One Hook is enough for an entire process: both the NCCL-
// and HCCL-style adapters in this package can share it, since DomainManager
// keys by DomainKey rather than by which vendor library produced the
// handle.
type Hook struct {
	Manager *core.DomainManager
	VC      *core.VirtualCollective
	Metrics *telemetry.Metrics
	cfg     *common.Config
}

// New builds a Hook from cfg (nil loads from the environment per spec.md
// §6's AMPCCL_* variables) and an optional disk-persistence store. It sets
// the process-wide nlog level from cfg.LogLevel, raised to nlog.Debug when
// cfg.Debug is on. Metrics
// are registered against a fresh prometheus.Registry private to this Hook
// (never the global default registry), so constructing more than one Hook
// in the same process — as the test suite does — never collides on a
// duplicate metric registration.
func New(cfg *common.Config, disk *cache.DiskStore) *Hook {
	if cfg == nil {
		cfg = common.GCO.Get()
	}
	lvl := nlog.Level(cfg.LogLevel)
	if cfg.Debug {
		lvl = nlog.Debug
	}
	nlog.SetLevel(lvl)
	mgr := core.NewDomainManager(disk)
	return &Hook{
		Manager: mgr,
		VC:      core.NewVirtualCollective(mgr),
		Metrics: telemetry.NewMetrics(prometheus.NewRegistry()),
		cfg:     cfg,
	}
}

// Enabled reports whether the master switch (AMPCCL_ENABLE) is on. Every
// entry point below checks this before touching the registry — disabled
// means pure passthrough, matching spec.md §6's "default off ⇒ passthrough".
func (h *Hook) Enabled() bool { return h.cfg.Enabled }

// GetUniqueIdFunc is the vendor's id-generation call (ncclGetUniqueId /
// hcclGetUniqueId): no AMP-CCL state depends on it, so every adapter just
// delegates.
type GetUniqueIdFunc func() (uniqueID []byte, rc int)

// CommInitRankFunc is the vendor's communicator-construction call. rc is
// the vendor's own success/failure code (0 == success, by convention
// matched in the nccl/hccl adapters below).
type CommInitRankFunc func(nranks int, uniqueID []byte, rank int) (comm common.RawComm, rc int)

// CommDestroyFunc is the vendor's communicator-teardown call.
type CommDestroyFunc func(comm common.RawComm) int

// CollectiveFunc is the shape shared by all four intercepted collectives
// once their vendor-specific arguments have been normalized to common
// types: extra carries the reduce-op code for AllReduce/ReduceScatter, the
// root rank for Broadcast, and is unused for AllGather.
type CollectiveFunc func(send, recv []byte, count uint64, dt common.DataType, extra int, comm common.RawComm, stream common.RawStream) int

// SyncStreamFunc is the vendor's stream-synchronize call.
type SyncStreamFunc func(stream common.RawStream) int

// toRC maps a common.Result back to a vendor-style 0/-1 return code, the
// same collapsing the original hook functions do at their "return result ==
// Success ? 0 : -1" lines.
func toRC(r common.Result) int {
	if r.OK() {
		return 0
	}
	return -1
}

// GetUniqueId always delegates: spec.md §6 lists it as intercepted only so
// the hook layer can see the unique-id bytes pass by, but it never alters
// vendor behavior on this call.
func (h *Hook) GetUniqueId(orig GetUniqueIdFunc) ([]byte, int) {
	return orig()
}

// CommInitRank calls orig first — exactly the original's "delegate, then
// react only on success" ordering — and on success (and only when the
// master switch is on) registers a Domain for the resulting handle, keyed
// by world size and the unique-id bytes (common.BuildDomainKey), matching
// domain_manager.cc's BuildKeyFromNcclInit.
func (h *Hook) CommInitRank(orig CommInitRankFunc, nranks int, uniqueID []byte, rank int) (common.RawComm, int) {
	comm, rc := orig(nranks, uniqueID, rank)
	if rc != 0 || comm == 0 || !h.Enabled() {
		return comm, rc
	}
	key := common.BuildDomainKey(int32(nranks), uniqueID)
	domain := h.Manager.RegisterRawComm(comm, key, h.cfg)
	domain.SetTopology(rank, nranks)
	nlog.Infof("hook: registered domain %s for comm %v (nranks=%d rank=%d)", domain.Alias, comm, nranks, rank)
	return comm, rc
}

// CommDestroy unregisters the handle-to-key mapping before delegating —
// the Domain itself survives under its key (core.DomainManager.
// UnregisterRawComm), ready for the next CommInitRank that derives the same
// key to pick its learned parameters back up.
func (h *Hook) CommDestroy(orig CommDestroyFunc, comm common.RawComm) int {
	h.Manager.UnregisterRawComm(comm)
	return orig(comm)
}

// lookupEnabledDomain returns the domain registered for comm, but only when
// the master switch is on — this is the shared miss/disabled check every
// collective adapter runs before deciding whether to call orig or route
// through VirtualCollective (spec.md §7, "domain-lookup miss ... falls back
// to the original vendor function unchanged").
func (h *Hook) lookupEnabledDomain(comm common.RawComm) *core.Domain {
	if !h.Enabled() {
		return nil
	}
	return h.Manager.GetDomainByRawComm(comm)
}
