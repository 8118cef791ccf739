package backend

import (
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/ir"
)

// PCIeRuntime is the out-of-scope PCIe CCL runtime collaborator that
// actually executes an IRProgram against send/recv for count elements.
type PCIeRuntime interface {
	Submit(comm common.RawComm, program ir.IRProgram, send, recv []byte, count uint64, stream common.RawStream) error
}

// PCIeBackend builds the fixed 2-rank IR programs and hands them to
// Runtime. A nil Runtime, a zero comm handle, or a rank count other than
// two all degrade to a clean Success no-op, matching pcie_backend.cc's
// "stub when no PCCL or not 2-rank" comment.
type PCIeBackend struct {
	Runtime PCIeRuntime
}

func (b *PCIeBackend) AllReduce(comm common.RawComm, rank, nranks int, stream common.RawStream, send, recv []byte, count uint64) common.Result {
	if b.Runtime == nil || comm == 0 || nranks != 2 {
		return common.Success
	}
	if stream == 0 {
		return common.UnhandledError
	}
	program := ir.BuildAllReduceIR(rank)
	if err := b.Runtime.Submit(comm, program, send, recv, count, stream); err != nil {
		return common.UnhandledError
	}
	return common.Success
}

func (b *PCIeBackend) AllGather(comm common.RawComm, rank, nranks int, stream common.RawStream, send, recv []byte, sendcount uint64) common.Result {
	if b.Runtime == nil || comm == 0 || nranks != 2 {
		return common.Success
	}
	if stream == 0 {
		return common.UnhandledError
	}
	program := ir.BuildAllGatherIR(rank)
	if err := b.Runtime.Submit(comm, program, send, recv, sendcount, stream); err != nil {
		return common.UnhandledError
	}
	return common.Success
}

// ReduceScatter and Broadcast are stubs that always succeed — the PCIe
// backend is never exercised for them (spec.md §9 open question a).
func (b *PCIeBackend) ReduceScatter(common.RawComm, int, int, common.RawStream, []byte, []byte, uint64) common.Result {
	return common.Success
}

func (b *PCIeBackend) Broadcast(common.RawComm, int, int, common.RawStream, []byte, []byte, uint64) common.Result {
	return common.Success
}
