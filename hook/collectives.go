package hook

import (
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/core"
)

// AllReduce adapts ncclAllReduce/hcclAllReduce. reduceOp is the vendor
// reduce-operation code, already normalized to the int convention
// VirtualCollective expects by the nccl/hccl adapter that calls this.
func (h *Hook) AllReduce(orig CollectiveFunc, send, recv []byte, count uint64, dt common.DataType, reduceOp int, comm common.RawComm, stream common.RawStream) int {
	domain := h.lookupEnabledDomain(comm)
	if domain == nil {
		return orig(send, recv, count, dt, reduceOp, comm, stream)
	}
	res := h.VC.AllReduce(domain, send, recv, count, dt, reduceOp, comm, 0, stream, 0, domain.Rank, domain.PCIeNranks, h.cfg)
	return toRC(res)
}

// AllGather adapts ncclAllGather/hcclAllGather.
func (h *Hook) AllGather(orig CollectiveFunc, send, recv []byte, sendcount uint64, dt common.DataType, comm common.RawComm, stream common.RawStream) int {
	domain := h.lookupEnabledDomain(comm)
	if domain == nil {
		return orig(send, recv, sendcount, dt, 0, comm, stream)
	}
	res := h.VC.AllGather(domain, send, recv, sendcount, dt, comm, 0, stream, 0, domain.Rank, domain.PCIeNranks, h.cfg)
	return toRC(res)
}

// ReduceScatter adapts ncclReduceScatter/hcclReduceScatter.
func (h *Hook) ReduceScatter(orig CollectiveFunc, send, recv []byte, recvcount uint64, dt common.DataType, reduceOp int, comm common.RawComm, stream common.RawStream) int {
	domain := h.lookupEnabledDomain(comm)
	if domain == nil {
		return orig(send, recv, recvcount, dt, reduceOp, comm, stream)
	}
	res := h.VC.ReduceScatter(domain, send, recv, recvcount, dt, reduceOp, comm, 0, stream, 0, domain.Rank, domain.PCIeNranks, h.cfg)
	return toRC(res)
}

// Broadcast adapts ncclBroadcast/hcclBroadcast. root is the broadcasting
// rank, carried in CollectiveFunc's extra slot.
func (h *Hook) Broadcast(orig CollectiveFunc, send, recv []byte, count uint64, dt common.DataType, root int, comm common.RawComm, stream common.RawStream) int {
	domain := h.lookupEnabledDomain(comm)
	if domain == nil {
		return orig(send, recv, count, dt, root, comm, stream)
	}
	res := h.VC.Broadcast(domain, send, recv, count, dt, root, comm, 0, stream, 0, domain.Rank, domain.PCIeNranks, h.cfg)
	return toRC(res)
}

// SynchronizeStream adapts cudaStreamSynchronize/aclrtSynchronizeStream.
// It calls orig first and only retires the pending collective (spec.md
// §4.9) once the vendor's own sync has reported success — a failed vendor
// sync means whatever the collective did is unobserved, and stream-sync
// has nothing safe to measure.
func (h *Hook) SynchronizeStream(orig SyncStreamFunc, stream common.RawStream) int {
	rc := orig(stream)
	if rc != 0 || !h.Enabled() {
		return rc
	}
	core.HandleStreamSync(h.Manager, stream, h.cfg, h.Metrics)
	return rc
}
