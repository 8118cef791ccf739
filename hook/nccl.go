package hook

import "github.com/adaptive-ccl/ampccl/common"

// NCCLDataType mirrors ncclDataType_t's handful of values (nccl_hook.cc's
// forward declaration) closely enough to convert. An embedder linked
// against the real NCCL headers would use the vendor's own enum here — this
// package only needs the numeric codes.
type NCCLDataType int

const (
	NCCLFloat32 NCCLDataType = iota
	NCCLFloat64
	NCCLFloat16
	NCCLInt32
	NCCLInt64
)

// NCCLReduceOp mirrors ncclRedOp_t; passed straight through to FastAPI as an
// int, same as the original's static_cast<int>(op).
type NCCLReduceOp int

const (
	NCCLSum NCCLReduceOp = iota
	NCCLProd
	NCCLMax
	NCCLMin
)

func ncclToCommonDataType(dt NCCLDataType) common.DataType {
	switch dt {
	case NCCLFloat64:
		return common.Float64
	case NCCLFloat16:
		return common.Float16
	case NCCLInt32:
		return common.Int32
	case NCCLInt64:
		return common.Int64
	default:
		return common.Float32
	}
}

// NCCL is the NCCL-flavored view of Hook: its methods take NCCL's own
// datatype/reduce-op codes and convert them before delegating to the
// shared Hook methods, matching nccl_hook.cc's entry-point signatures
// (arguments renamed to Go convention, buffers as byte slices instead of
// void*/size_t pairs).
type NCCL struct {
	*Hook
}

// NewNCCL wraps hook for NCCL-style call sites.
func NewNCCL(hook *Hook) *NCCL { return &NCCL{Hook: hook} }

func (n *NCCL) GetUniqueId(orig GetUniqueIdFunc) ([]byte, int) {
	return n.Hook.GetUniqueId(orig)
}

func (n *NCCL) CommInitRank(orig CommInitRankFunc, nranks int, uniqueID []byte, rank int) (common.RawComm, int) {
	return n.Hook.CommInitRank(orig, nranks, uniqueID, rank)
}

func (n *NCCL) CommDestroy(orig CommDestroyFunc, comm common.RawComm) int {
	return n.Hook.CommDestroy(orig, comm)
}

func (n *NCCL) AllReduce(orig CollectiveFunc, send, recv []byte, count uint64, dt NCCLDataType, op NCCLReduceOp, comm common.RawComm, stream common.RawStream) int {
	return n.Hook.AllReduce(orig, send, recv, count, ncclToCommonDataType(dt), int(op), comm, stream)
}

func (n *NCCL) AllGather(orig CollectiveFunc, send, recv []byte, sendcount uint64, dt NCCLDataType, comm common.RawComm, stream common.RawStream) int {
	return n.Hook.AllGather(orig, send, recv, sendcount, ncclToCommonDataType(dt), comm, stream)
}

func (n *NCCL) ReduceScatter(orig CollectiveFunc, send, recv []byte, recvcount uint64, dt NCCLDataType, op NCCLReduceOp, comm common.RawComm, stream common.RawStream) int {
	return n.Hook.ReduceScatter(orig, send, recv, recvcount, ncclToCommonDataType(dt), int(op), comm, stream)
}

func (n *NCCL) Broadcast(orig CollectiveFunc, send, recv []byte, count uint64, dt NCCLDataType, root int, comm common.RawComm, stream common.RawStream) int {
	return n.Hook.Broadcast(orig, send, recv, count, ncclToCommonDataType(dt), root, comm, stream)
}

func (n *NCCL) SynchronizeStream(orig SyncStreamFunc, stream common.RawStream) int {
	return n.Hook.SynchronizeStream(orig, stream)
}
