// Package shm implements the cross-process ShmParamStore: a POSIX shared
// memory segment carrying per-rank execution stats and the shared
// parameter table, mmap'd via github.com/edsrzf/mmap-go (ProbeChain's
// dependency — the teacher carries no mmap library of its own). Grounded
// on original_source/libampccl/core/shm_store.{h,cc}.
//
// Every structure here is packed and fixed-width, encoded by hand with
// encoding/binary rather than cast from a Go struct: Go gives no pragma-
// pack guarantee, and the layout must match byte-for-byte across
// independently compiled processes (spec.md §9, "Shared-memory structs").
package shm

import (
	"encoding/binary"
	"math"
)

// magic identifies a segment as ours; read back by every attacher before
// trusting the rest of the layout. Same bit pattern as the original's
// 0x414d5043434c5f53 ("AMPCCL_S").
const magic uint64 = 0x414d5043434c5f53

const (
	maxRanks        = 128
	maxParamEntries = 512

	headerSize     = 20 // magic(8) + nranks(4) + param_version(4) + lock_owner_pid(4)
	statSlotSize   = 56
	paramTableHdr  = 12 // version(8) + num_entries(4)
	paramEntrySize = 48
)

// segmentSize returns the fixed total size of an ampccl shm segment. Two
// processes attaching the same DomainKey always compute the same value,
// since it depends on nothing but these compile-time constants (spec.md
// §8, "two processes attaching the same DomainKey see identical sizes").
func segmentSize() int64 {
	return headerSize + maxRanks*statSlotSize + paramTableHdr + maxParamEntries*paramEntrySize
}

// offsets into the segment for each region.
const (
	statSlotsOffset  = headerSize
	paramTableOffset = statSlotsOffset + maxRanks*statSlotSize
	paramVersionOff  = paramTableOffset
	paramNumOff      = paramVersionOff + 8
	paramEntriesOff  = paramNumOff + 4
)

func statSlotOffset(rank int) int64 {
	return statSlotsOffset + int64(rank)*statSlotSize
}

func paramEntryOffset(i int) int64 {
	return paramEntriesOff + int64(i)*paramEntrySize
}

// header is the decoded form of the segment's fixed leading bytes.
type header struct {
	Magic        uint64
	Nranks       int32
	ParamVersion uint32
	// LockOwnerPID is the SPEC_FULL.md §4 supplemented janitor field: the
	// pid of the process currently holding an advisory claim on this
	// segment, checked with a non-blocking kill(pid, 0) by shm.Sweep. It
	// takes the place of the original's unused `pad uint32` field — same
	// offset, same width, no other field moves.
	LockOwnerPID int32
}

func decodeHeader(buf []byte) header {
	return header{
		Magic:        binary.LittleEndian.Uint64(buf[0:8]),
		Nranks:       int32(binary.LittleEndian.Uint32(buf[8:12])),
		ParamVersion: binary.LittleEndian.Uint32(buf[12:16]),
		LockOwnerPID: int32(binary.LittleEndian.Uint32(buf[16:20])),
	}
}

func encodeHeader(buf []byte, h header) {
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Nranks))
	binary.LittleEndian.PutUint32(buf[12:16], h.ParamVersion)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.LockOwnerPID))
}

// statSlot is the decoded form of one rank's stat record.
type statSlot struct {
	Op          int32
	Bytes       uint64
	Datatype    int32
	FastTime    float64
	PCIeTime    float64
	FastBytes   uint64
	PCIeBytes   uint64
	FastSuccess bool
	PCIeSuccess bool
	Valid       bool
}

func decodeStatSlot(buf []byte) statSlot {
	return statSlot{
		Op:          int32(binary.LittleEndian.Uint32(buf[0:4])),
		Bytes:       binary.LittleEndian.Uint64(buf[4:12]),
		Datatype:    int32(binary.LittleEndian.Uint32(buf[12:16])),
		FastTime:    decodeFloat64(buf[16:24]),
		PCIeTime:    decodeFloat64(buf[24:32]),
		FastBytes:   binary.LittleEndian.Uint64(buf[32:40]),
		PCIeBytes:   binary.LittleEndian.Uint64(buf[40:48]),
		FastSuccess: buf[48] != 0,
		PCIeSuccess: buf[49] != 0,
		Valid:       buf[50] != 0,
	}
}

// encodeStatSlot writes every field but Valid; encodeStatSlotValid sets
// the trailing valid byte last, giving WriteMyStat its release-ordering
// shape (spec.md §9, "writers use release-style ordering for the trailing
// valid byte").
func encodeStatSlot(buf []byte, s statSlot) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.Op))
	binary.LittleEndian.PutUint64(buf[4:12], s.Bytes)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(s.Datatype))
	encodeFloat64(buf[16:24], s.FastTime)
	encodeFloat64(buf[24:32], s.PCIeTime)
	binary.LittleEndian.PutUint64(buf[32:40], s.FastBytes)
	binary.LittleEndian.PutUint64(buf[40:48], s.PCIeBytes)
	putBool(buf[48:49], s.FastSuccess)
	putBool(buf[49:50], s.PCIeSuccess)
}

func encodeStatSlotValid(buf []byte, valid bool) {
	putBool(buf[50:51], valid)
}

// paramEntry is the decoded form of one cached OpKey/ParamValue pair.
type paramEntry struct {
	Op       int32
	Bytes    uint64
	Datatype int32
	Alpha    float64
	UsePCIe  bool
	FastBW   float64
	PCIeBW   float64
}

func decodeParamEntry(buf []byte) paramEntry {
	return paramEntry{
		Op:       int32(binary.LittleEndian.Uint32(buf[0:4])),
		Bytes:    binary.LittleEndian.Uint64(buf[4:12]),
		Datatype: int32(binary.LittleEndian.Uint32(buf[12:16])),
		Alpha:    decodeFloat64(buf[16:24]),
		UsePCIe:  buf[24] != 0,
		FastBW:   decodeFloat64(buf[32:40]),
		PCIeBW:   decodeFloat64(buf[40:48]),
	}
}

func encodeParamEntry(buf []byte, e paramEntry) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.Op))
	binary.LittleEndian.PutUint64(buf[4:12], e.Bytes)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(e.Datatype))
	encodeFloat64(buf[16:24], e.Alpha)
	putBool(buf[24:25], e.UsePCIe)
	encodeFloat64(buf[32:40], e.FastBW)
	encodeFloat64(buf[40:48], e.PCIeBW)
}

func putBool(b []byte, v bool) {
	if v {
		b[0] = 1
	} else {
		b[0] = 0
	}
}

func decodeFloat64(buf []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}

func encodeFloat64(buf []byte, f float64) {
	binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
}
