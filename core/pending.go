package core

import (
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/planner"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// PendingCollective is the record VirtualCollective registers on the
// caller stream after launching both halves of a split collective, and
// that the stream-sync handler retires once the vendor sync call
// succeeds. Grounded on spec.md §4.2 step 6 and §4.9.
type PendingCollective struct {
	Domain  *Domain
	OpKey   common.OpKey
	Plan    planner.Plan
	FastOK  bool
	PCIeOK  bool

	TimerFast *telemetry.Timer
	TimerPCIe *telemetry.Timer

	// PCIeStream is the stream the PCIe half was launched on, so
	// stream-sync can decide whether a second synchronize is needed
	// (spec.md §4.9 step 2: "if PCIe was used, synchronize the PCIe
	// stream").
	PCIeStream common.RawStream
}
