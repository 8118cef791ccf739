package core

import (
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adaptive-ccl/ampccl/cmn/nlog"
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/planner"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// VirtualCollective is the dispatch layer described in spec.md §4.2: for
// every intercepted collective it builds an OpKey, consults the shared
// parameter state, plans a byte split, launches both backend halves
// concurrently, and registers a PendingCollective for the stream-sync
// handler to retire later. Grounded on
// original_source/libampccl/core/virtual_collective.{h,cc}.
type VirtualCollective struct {
	Manager *DomainManager
}

// NewVirtualCollective returns a dispatcher backed by mgr.
func NewVirtualCollective(mgr *DomainManager) *VirtualCollective {
	return &VirtualCollective{Manager: mgr}
}

// launchPlan is the outcome of spec.md §4.2 steps 1-4, shared by every
// collective entry point below.
type launchPlan struct {
	opKey common.OpKey
	plan  planner.Plan
}

// prepare runs steps 1-4: build the OpKey, refresh shm-backed parameters
// when this domain spans more than one PCIe rank, look up the cached
// ParamValue, ask the controller for alpha, and build the Plan.
func (vc *VirtualCollective) prepare(domain *Domain, op common.CollectiveType, count uint64, dt common.DataType, rank, pcieNranks int, cfg *common.Config) launchPlan {
	opKey := common.NewOpKey(op, count, dt)
	nlog.Debugf("core: %s: dispatch %s launch=%s", domain.Alias, opKey.String(), uuid.NewString())

	if pcieNranks > 1 {
		if err := domain.EnsureShmAttached(rank, pcieNranks); err == nil {
			domain.PublishAndRefresh()
		}
	}

	param := domain.Params.Lookup(opKey)
	alpha := domain.Controller.SuggestAlpha(opKey, domain.Params)
	plan := planner.CreatePlan(opKey.Bytes, alpha, param.UsePCIe, cfg)

	return launchPlan{opKey: opKey, plan: plan}
}

// retire runs steps 6-7: register the pending record on callerStream and
// report overall success.
func (vc *VirtualCollective) retire(domain *Domain, lp launchPlan, callerStream, pcieStream common.RawStream, timerFast, timerPCIe *telemetry.Timer, fastOK, pcieOK bool) common.Result {
	vc.Manager.RegisterStreamPending(callerStream, PendingCollective{
		Domain:     domain,
		OpKey:      lp.opKey,
		Plan:       lp.plan,
		FastOK:     fastOK,
		PCIeOK:     pcieOK,
		TimerFast:  timerFast,
		TimerPCIe:  timerPCIe,
		PCIeStream: pcieStream,
	})
	if fastOK && pcieOK {
		return common.Success
	}
	return common.UnhandledError
}

// AllReduce implements the full AllReduce dispatch path. reduceOp is the
// vendor reduce-operation code, passed straight through to the fast
// backend. rank/pcieNranks describe this domain's PCIe topology (0/1 when
// PCIe is not in play for this comm).
func (vc *VirtualCollective) AllReduce(domain *Domain, send, recv []byte, count uint64, dt common.DataType, reduceOp int, comm, pcieComm common.RawComm, callerStream, pcieStream common.RawStream, rank, pcieNranks int, cfg *common.Config) common.Result {
	lp := vc.prepare(domain, common.AllReduce, count, dt, rank, pcieNranks, cfg)
	timerFast, timerPCIe := &telemetry.Timer{}, &telemetry.Timer{}

	fastOK, pcieOK := true, true

	if lp.plan.UsePCIe && lp.plan.PCIeBytes > 0 && pcieStream != 0 {
		var g errgroup.Group
		g.Go(func() error {
			timerFast.Start(callerStream)
			res := domain.Fast.AllReduce(send[:lp.plan.FastBytes], recv[:lp.plan.FastBytes], lp.plan.FastBytes/common.DataTypeSize(dt), dt, reduceOp, comm, callerStream)
			timerFast.Stop(callerStream)
			fastOK = res.OK()
			return nil
		})
		g.Go(func() error {
			timerPCIe.Start(pcieStream)
			res := domain.PCIe.AllReduce(pcieComm, rank, pcieNranks, pcieStream, send[lp.plan.FastBytes:], recv[lp.plan.FastBytes:], lp.plan.PCIeBytes/common.DataTypeSize(dt))
			timerPCIe.Stop(pcieStream)
			pcieOK = res.OK()
			return nil
		})
		_ = g.Wait()
	} else {
		timerFast.Start(callerStream)
		res := domain.Fast.AllReduce(send, recv, count, dt, reduceOp, comm, callerStream)
		timerFast.Stop(callerStream)
		fastOK = res.OK()
	}

	return vc.retire(domain, lp, callerStream, pcieStream, timerFast, timerPCIe, fastOK, pcieOK)
}

// AllGather implements the full AllGather dispatch path.
func (vc *VirtualCollective) AllGather(domain *Domain, send, recv []byte, sendcount uint64, dt common.DataType, comm, pcieComm common.RawComm, callerStream, pcieStream common.RawStream, rank, pcieNranks int, cfg *common.Config) common.Result {
	lp := vc.prepare(domain, common.AllGather, sendcount, dt, rank, pcieNranks, cfg)
	timerFast, timerPCIe := &telemetry.Timer{}, &telemetry.Timer{}

	fastOK, pcieOK := true, true

	if lp.plan.UsePCIe && lp.plan.PCIeBytes > 0 && pcieStream != 0 {
		var g errgroup.Group
		g.Go(func() error {
			timerFast.Start(callerStream)
			res := domain.Fast.AllGather(send[:lp.plan.FastBytes], recv[:lp.plan.FastBytes], lp.plan.FastBytes/common.DataTypeSize(dt), dt, comm, callerStream)
			timerFast.Stop(callerStream)
			fastOK = res.OK()
			return nil
		})
		g.Go(func() error {
			timerPCIe.Start(pcieStream)
			// recvbuff holds 2 chunks for PCCL's 2-rank AllGather; per-chunk
			// element count is pcie_bytes/(2*elem_size).
			res := domain.PCIe.AllGather(pcieComm, rank, pcieNranks, pcieStream, send[lp.plan.FastBytes:], recv[lp.plan.FastBytes:], lp.plan.PCIeBytes/(2*common.DataTypeSize(dt)))
			timerPCIe.Stop(pcieStream)
			pcieOK = res.OK()
			return nil
		})
		_ = g.Wait()
	} else {
		timerFast.Start(callerStream)
		res := domain.Fast.AllGather(send, recv, sendcount, dt, comm, callerStream)
		timerFast.Stop(callerStream)
		fastOK = res.OK()
	}

	return vc.retire(domain, lp, callerStream, pcieStream, timerFast, timerPCIe, fastOK, pcieOK)
}

// ReduceScatter implements the full ReduceScatter dispatch path. The PCIe
// backend is a stub for this collective (spec.md §4.5) — PCIeBackend.
// ReduceScatter always returns Success with no effect, but dispatch still
// calls it on the PCIe half of the split so the pending record's timers
// and plan stay consistent with every other collective.
func (vc *VirtualCollective) ReduceScatter(domain *Domain, send, recv []byte, recvcount uint64, dt common.DataType, reduceOp int, comm, pcieComm common.RawComm, callerStream, pcieStream common.RawStream, rank, pcieNranks int, cfg *common.Config) common.Result {
	lp := vc.prepare(domain, common.ReduceScatter, recvcount, dt, rank, pcieNranks, cfg)
	timerFast, timerPCIe := &telemetry.Timer{}, &telemetry.Timer{}

	fastOK, pcieOK := true, true

	if lp.plan.UsePCIe && lp.plan.PCIeBytes > 0 && pcieStream != 0 {
		var g errgroup.Group
		g.Go(func() error {
			timerFast.Start(callerStream)
			res := domain.Fast.ReduceScatter(send[:lp.plan.FastBytes], recv[:lp.plan.FastBytes], lp.plan.FastBytes/common.DataTypeSize(dt), dt, reduceOp, comm, callerStream)
			timerFast.Stop(callerStream)
			fastOK = res.OK()
			return nil
		})
		g.Go(func() error {
			timerPCIe.Start(pcieStream)
			res := domain.PCIe.ReduceScatter(pcieComm, rank, pcieNranks, pcieStream, send[lp.plan.FastBytes:], recv[lp.plan.FastBytes:], lp.plan.PCIeBytes/common.DataTypeSize(dt))
			timerPCIe.Stop(pcieStream)
			pcieOK = res.OK()
			return nil
		})
		_ = g.Wait()
	} else {
		timerFast.Start(callerStream)
		res := domain.Fast.ReduceScatter(send, recv, recvcount, dt, reduceOp, comm, callerStream)
		timerFast.Stop(callerStream)
		fastOK = res.OK()
	}

	return vc.retire(domain, lp, callerStream, pcieStream, timerFast, timerPCIe, fastOK, pcieOK)
}

// Broadcast implements the full Broadcast dispatch path. Same PCIe-stub
// caveat as ReduceScatter.
func (vc *VirtualCollective) Broadcast(domain *Domain, send, recv []byte, count uint64, dt common.DataType, root int, comm, pcieComm common.RawComm, callerStream, pcieStream common.RawStream, rank, pcieNranks int, cfg *common.Config) common.Result {
	lp := vc.prepare(domain, common.Broadcast, count, dt, rank, pcieNranks, cfg)
	timerFast, timerPCIe := &telemetry.Timer{}, &telemetry.Timer{}

	fastOK, pcieOK := true, true

	if lp.plan.UsePCIe && lp.plan.PCIeBytes > 0 && pcieStream != 0 {
		var g errgroup.Group
		g.Go(func() error {
			timerFast.Start(callerStream)
			res := domain.Fast.Broadcast(send[:lp.plan.FastBytes], recv[:lp.plan.FastBytes], lp.plan.FastBytes/common.DataTypeSize(dt), dt, root, comm, callerStream)
			timerFast.Stop(callerStream)
			fastOK = res.OK()
			return nil
		})
		g.Go(func() error {
			timerPCIe.Start(pcieStream)
			res := domain.PCIe.Broadcast(pcieComm, rank, pcieNranks, pcieStream, send[lp.plan.FastBytes:], recv[lp.plan.FastBytes:], lp.plan.PCIeBytes/common.DataTypeSize(dt))
			timerPCIe.Stop(pcieStream)
			pcieOK = res.OK()
			return nil
		})
		_ = g.Wait()
	} else {
		timerFast.Start(callerStream)
		res := domain.Fast.Broadcast(send, recv, count, dt, root, comm, callerStream)
		timerFast.Stop(callerStream)
		fastOK = res.OK()
	}

	return vc.retire(domain, lp, callerStream, pcieStream, timerFast, timerPCIe, fastOK, pcieOK)
}
