package hook

import "github.com/adaptive-ccl/ampccl/common"

// HCCLDataType mirrors HcclDataType (hccl_hook.cc's forward declaration).
type HCCLDataType int

const (
	HCCLDataFloat HCCLDataType = iota
	HCCLDataFloat16
	HCCLDataInt32
)

// HCCLReduceOp mirrors HcclReduceOp.
type HCCLReduceOp int

const (
	HCCLReduceSum HCCLReduceOp = iota
	HCCLReduceMax
	HCCLReduceMin
)

func hcclToCommonDataType(dt HCCLDataType) common.DataType {
	switch dt {
	case HCCLDataFloat16:
		return common.Float16
	case HCCLDataInt32:
		return common.Int32
	default:
		return common.Float32
	}
}

// HCCL is the HCCL-flavored view of Hook, the Ascend-stack counterpart to
// NCCL above. Same conversion-then-delegate shape as nccl.go; kept as a
// separate type rather than a shared generic adapter because the two
// vendor enums don't line up numerically (HCCL has no float64/int64 code in
// hccl_hook.cc's forward declarations) and collapsing them would hide that.
type HCCL struct {
	*Hook
}

// NewHCCL wraps hook for HCCL-style call sites.
func NewHCCL(hook *Hook) *HCCL { return &HCCL{Hook: hook} }

func (c *HCCL) GetUniqueId(orig GetUniqueIdFunc) ([]byte, int) {
	return c.Hook.GetUniqueId(orig)
}

func (c *HCCL) CommInitRank(orig CommInitRankFunc, nranks int, uniqueID []byte, rank int) (common.RawComm, int) {
	return c.Hook.CommInitRank(orig, nranks, uniqueID, rank)
}

func (c *HCCL) CommDestroy(orig CommDestroyFunc, comm common.RawComm) int {
	return c.Hook.CommDestroy(orig, comm)
}

func (c *HCCL) AllReduce(orig CollectiveFunc, send, recv []byte, count uint64, dt HCCLDataType, op HCCLReduceOp, comm common.RawComm, stream common.RawStream) int {
	return c.Hook.AllReduce(orig, send, recv, count, hcclToCommonDataType(dt), int(op), comm, stream)
}

func (c *HCCL) AllGather(orig CollectiveFunc, send, recv []byte, sendcount uint64, dt HCCLDataType, comm common.RawComm, stream common.RawStream) int {
	return c.Hook.AllGather(orig, send, recv, sendcount, hcclToCommonDataType(dt), comm, stream)
}

func (c *HCCL) ReduceScatter(orig CollectiveFunc, send, recv []byte, recvcount uint64, dt HCCLDataType, op HCCLReduceOp, comm common.RawComm, stream common.RawStream) int {
	return c.Hook.ReduceScatter(orig, send, recv, recvcount, hcclToCommonDataType(dt), int(op), comm, stream)
}

func (c *HCCL) Broadcast(orig CollectiveFunc, send, recv []byte, count uint64, root int, dt HCCLDataType, comm common.RawComm, stream common.RawStream) int {
	return c.Hook.Broadcast(orig, send, recv, count, hcclToCommonDataType(dt), root, comm, stream)
}

func (c *HCCL) SynchronizeStream(orig SyncStreamFunc, stream common.RawStream) int {
	return c.Hook.SynchronizeStream(orig, stream)
}
