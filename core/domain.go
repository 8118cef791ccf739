// Package core owns the process-wide registry of Domains and the dispatch
// logic (VirtualCollective) that splits a collective across the fast and
// PCIe backends. Grounded on original_source/libampccl/core/{domain,
// domain_manager,virtual_collective}.{h,cc}.
package core

import (
	"strings"

	"github.com/teris-io/shortid"
	"golang.org/x/sync/singleflight"

	"github.com/adaptive-ccl/ampccl/backend"
	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/cmn/nlog"
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/controller"
	"github.com/adaptive-ccl/ampccl/shm"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// Domain is the unit of learned adaptive state for one logical
// communicator: its Controller, ParamCache, and (once a PCIe-capable
// multi-rank group is observed) the ShmParamStore used to exchange stats
// and parameters with peer ranks. A Domain survives vendor handle churn —
// DomainManager keys it by DomainKey, not by the raw communicator handle
// that owns it at any given moment.
type Domain struct {
	Key   common.DomainKey
	Alias string // short human-readable debug tag, e.g. "dom-k3j2a"

	Controller *controller.Controller
	Params     *cache.ParamCache

	Fast *backend.FastBackend
	PCIe *backend.PCIeBackend

	Rank       int
	PCIeNranks int

	shmStore   *shm.ShmParamStore
	attachOnce singleflight.Group
}

// newDomain constructs a Domain for key using cfg's configured algorithm
// and persistence settings. Grounded on domain_manager.cc's
// GetOrCreateByKey: "new Controller per configured policy, empty cache, no
// PCIe handles yet."
func newDomain(key common.DomainKey, cfg *common.Config, disk *cache.DiskStore) *Domain {
	alias, err := shortid.Generate()
	if err != nil {
		alias = "unknown"
	}
	params := cache.NewParamCache()
	if cfg.PersistParams {
		controller.WarmStart(params, disk)
	}
	d := &Domain{
		Key:        key,
		Alias:      "dom-" + alias,
		Controller: controller.NewController(controller.NewPolicy(cfg.Algo), disk),
		Params:     params,
		Fast:       &backend.FastBackend{},
		PCIe:       &backend.PCIeBackend{},
	}
	nlog.Infof("core: created domain %s (%s) for key %s", d.Alias, cfg.Algo, key.String())
	return d
}

// EnsureShmAttached lazily attaches this domain's shared-memory segment
// the first time it is observed with pcie_nranks > 1 (spec.md §4.2 step 2,
// §4.6 "created/attached lazily the first time a domain has pcie_nranks >
// 1"). Subsequent calls with the same rank/nranks are no-ops.
//
// Concurrent first-touch callers (e.g. two collectives launched back to
// back before the first one's Attach returns) collapse into a single
// shm.Attach via attachOnce, so only one of them actually creates/joins the
// segment and the rest observe its result — the attach/field-write isn't
// otherwise synchronized, so letting two callers race here would silently
// drop one of their shm.Attach results.
func (d *Domain) EnsureShmAttached(rank, nranks int) error {
	if nranks <= 1 {
		return nil
	}
	_, err, _ := d.attachOnce.Do("attach", func() (interface{}, error) {
		if d.shmStore != nil && d.shmStore.IsAttached() {
			return nil, nil
		}
		store, err := shm.Attach(strings.TrimPrefix(common.ShmName(d.Key), "/"), rank, nranks)
		if err != nil {
			return nil, err
		}
		d.Rank = rank
		d.PCIeNranks = nranks
		d.shmStore = store
		return nil, nil
	})
	return err
}

// Shm returns the attached shared-memory store, or nil if this domain has
// never seen pcie_nranks > 1.
func (d *Domain) Shm() *shm.ShmParamStore { return d.shmStore }

// SetTopology records this process's rank and the domain's world size as
// soon as the hook layer learns them at CommInitRank time, ahead of
// whatever later call first observes pcieNranks > 1 and triggers
// EnsureShmAttached. Safe to call repeatedly; EnsureShmAttached overwrites
// the same fields once it actually attaches shm.
func (d *Domain) SetTopology(rank, nranks int) {
	d.Rank = rank
	d.PCIeNranks = nranks
}

// PublishAndRefresh runs the rank-0 aggregation-then-publish step
// described in spec.md §4.2 step 2: rank 0 aggregates peer stats out of
// shm and writes the parameter table back; every rank (including rank 0)
// then reads the parameter table into its local cache. A no-op if shm
// isn't attached.
func (d *Domain) PublishAndRefresh() {
	if d.shmStore == nil || !d.shmStore.IsAttached() {
		return
	}
	if d.shmStore.IsRank0() {
		if agg, ok := d.shmStore.ReadAllStatsAndAggregate(); ok {
			stat := telemetry.ExecStat{
				FastTime:    agg.FastTimeMS,
				PCIeTime:    agg.PCIeTimeMS,
				FastBytes:   agg.FastBytes,
				PCIeBytes:   agg.PCIeBytes,
				FastSuccess: agg.FastSuccess,
				PCIeSuccess: agg.PCIeSuccess,
			}
			d.Controller.Update(agg.Key, stat, d.Params, common.GCO.Get())
		}
		if err := d.shmStore.WriteParams(d.Params.GetAll()); err != nil {
			nlog.Warningf("core: %s: WriteParams: %v", d.Alias, err)
		}
	}
	for _, e := range d.shmStore.ReadParams() {
		d.Params.Update(e.Key, e.Value)
	}
}
