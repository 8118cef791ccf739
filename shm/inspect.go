package shm

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/common"
)

// StatSlotView is one rank's stat slot, decoded for read-only inspection —
// the same fields WriteMyStat/ReadAllStatsAndAggregate work with, but
// exposed per-rank rather than folded into one AggregatedStat, for a human
// or a CLI deciding whether a segment looks healthy.
type StatSlotView struct {
	Rank        int
	Valid       bool
	Op          common.CollectiveType
	Bytes       uint64
	Datatype    common.DataType
	FastTimeMS  float64
	PCIeTimeMS  float64
	FastBytes   uint64
	PCIeBytes   uint64
	FastSuccess bool
	PCIeSuccess bool
}

// Snapshot is a read-only point-in-time view of a segment, built without
// joining it as a participant (no rank/nranks negotiation, no validation
// against an expected nranks) — the read-only inspection path used by
// cmd/ampcclctl.
type Snapshot struct {
	Name         string
	Nranks       int
	ParamVersion uint32
	LockOwnerPID int32
	LockOwnerUp  bool
	Stats        []StatSlotView
	Params       []cache.Entry
}

// Inspect opens the segment named name under dir read-only and decodes its
// full contents. It never creates, truncates, or mutates the segment, and
// never requires the caller to already know nranks — it reads that off the
// header, unlike Attach.
func Inspect(dir, name string) (Snapshot, error) {
	path := dir + "/" + name
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "shm: inspect: open %s", path)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "shm: inspect: stat")
	}

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "shm: inspect: mmap")
	}
	defer region.Unmap()

	if int64(len(region)) < headerSize {
		return Snapshot{}, errors.Errorf("shm: inspect: %s is too small (%d bytes) to hold a header", path, fi.Size())
	}
	h := decodeHeader(region[:headerSize])
	if h.Magic != magic {
		return Snapshot{}, errors.Errorf("shm: inspect: %s: bad magic %x", path, h.Magic)
	}

	snap := Snapshot{
		Name:         name,
		Nranks:       int(h.Nranks),
		ParamVersion: h.ParamVersion,
		LockOwnerPID: h.LockOwnerPID,
		LockOwnerUp:  h.LockOwnerPID != 0 && processAlive(h.LockOwnerPID),
	}

	for r := 0; r < snap.Nranks && r < maxRanks; r++ {
		off := statSlotOffset(r)
		slot := decodeStatSlot(region[off : off+statSlotSize])
		snap.Stats = append(snap.Stats, StatSlotView{
			Rank:        r,
			Valid:       slot.Valid,
			Op:          common.CollectiveType(slot.Op),
			Bytes:       slot.Bytes,
			Datatype:    common.DataType(slot.Datatype),
			FastTimeMS:  slot.FastTime,
			PCIeTimeMS:  slot.PCIeTime,
			FastBytes:   slot.FastBytes,
			PCIeBytes:   slot.PCIeBytes,
			FastSuccess: slot.FastSuccess,
			PCIeSuccess: slot.PCIeSuccess,
		})
	}

	n := int(binary.LittleEndian.Uint32(region[paramNumOff : paramNumOff+4]))
	if n > maxParamEntries {
		n = maxParamEntries
	}
	for i := 0; i < n; i++ {
		off := paramEntryOffset(i)
		e := decodeParamEntry(region[off : off+paramEntrySize])
		snap.Params = append(snap.Params, cache.Entry{
			Key: common.OpKey{Op: common.CollectiveType(e.Op), Bytes: e.Bytes, Datatype: common.DataType(e.Datatype)},
			Value: cache.ParamValue{
				Alpha:   e.Alpha,
				UsePCIe: e.UsePCIe,
				FastBW:  e.FastBW,
				PCIeBW:  e.PCIeBW,
			},
		})
	}

	return snap, nil
}

// String renders a one-line summary, for log lines and CLI headers.
func (s Snapshot) String() string {
	return fmt.Sprintf("shm.Snapshot{name=%s nranks=%d paramVersion=%d lockOwner=%d(up=%v) stats=%d params=%d}",
		s.Name, s.Nranks, s.ParamVersion, s.LockOwnerPID, s.LockOwnerUp, len(s.Stats), len(s.Params))
}
