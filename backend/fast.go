// Package backend wraps the two collective transports VirtualCollective
// dispatches to: the vendor's own fast collectives (NCCL/HCCL) and the
// PCIe host-staged path built from ir.IRProgram. Grounded on
// original_source/libampccl/backend/{backend_base,fast_backend,
// pcie_backend}.{h,cc}. spec.md §9 models the original's compile-time
// template specialization as "one concrete type per backend and a runtime
// selection inside the dispatcher" — FastAPI/PCIeRuntime below are that
// runtime-selected seam, both out-of-scope external collaborators per
// spec.md's OUT OF SCOPE list.
package backend

import "github.com/adaptive-ccl/ampccl/common"

// FastAPI is the vendor collective library's own entry points, bound by
// whatever bridges this package to the real NCCL/HCCL symbols (the hook
// layer). send/recv are the byte ranges VirtualCollective already sliced
// out of the caller's buffers.
type FastAPI interface {
	AllReduce(send, recv []byte, count uint64, datatype common.DataType, op int, comm common.RawComm, stream common.RawStream) common.Result
	AllGather(send, recv []byte, sendcount uint64, datatype common.DataType, comm common.RawComm, stream common.RawStream) common.Result
	ReduceScatter(send, recv []byte, recvcount uint64, datatype common.DataType, op int, comm common.RawComm, stream common.RawStream) common.Result
	Broadcast(send, recv []byte, count uint64, datatype common.DataType, root int, comm common.RawComm, stream common.RawStream) common.Result
}

// FastBackend dispatches to API. A nil API is the original's current
// placeholder state (fast_backend.cc's TODOs never call into real
// NCCL/HCCL) — every call is a clean Success no-op until a real FastAPI is
// wired in.
type FastBackend struct {
	API FastAPI
}

func (b *FastBackend) AllReduce(send, recv []byte, count uint64, datatype common.DataType, op int, comm common.RawComm, stream common.RawStream) common.Result {
	if b.API == nil {
		return common.Success
	}
	return b.API.AllReduce(send, recv, count, datatype, op, comm, stream)
}

func (b *FastBackend) AllGather(send, recv []byte, sendcount uint64, datatype common.DataType, comm common.RawComm, stream common.RawStream) common.Result {
	if b.API == nil {
		return common.Success
	}
	return b.API.AllGather(send, recv, sendcount, datatype, comm, stream)
}

func (b *FastBackend) ReduceScatter(send, recv []byte, recvcount uint64, datatype common.DataType, op int, comm common.RawComm, stream common.RawStream) common.Result {
	if b.API == nil {
		return common.Success
	}
	return b.API.ReduceScatter(send, recv, recvcount, datatype, op, comm, stream)
}

func (b *FastBackend) Broadcast(send, recv []byte, count uint64, datatype common.DataType, root int, comm common.RawComm, stream common.RawStream) common.Result {
	if b.API == nil {
		return common.Success
	}
	return b.API.Broadcast(send, recv, count, datatype, root, comm, stream)
}
