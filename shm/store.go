package shm

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/cmn/nlog"
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

// shmDir is where Linux keeps POSIX shared memory objects. Name, not path:
// shm_open(3) takes a leading-slash name and the kernel resolves it under
// this tmpfs mount — we open the backing file directly rather than calling
// shm_open, since Go exposes no such syscall wrapper. Tests point this at
// a t.TempDir() instead of the real tmpfs mount.
var shmDir = "/dev/shm"

// SetDir points future Attach calls at dir instead of /dev/shm and returns
// a restore func (Sweep takes its directory as an explicit argument and
// needs no override). For tests only — production callers never need it.
func SetDir(dir string) (restore func()) {
	prev := shmDir
	shmDir = dir
	return func() { shmDir = prev }
}

// pathFor returns the backing file for a segment identified by name. The
// core package passes common.ShmName with its leading "/" trimmed:
// "ampccl_" followed by the hex xxhash of DomainKey.String() (ported from
// shm_store.cc's SegmentName()).
func pathFor(name string) string {
	return shmDir + "/" + name
}

// ShmParamStore is one process's attachment to the shared segment for a
// single domain. Grounded on shm_store.h's ShmParamStore class: a thin
// mmap'd view plus the rank/attachment bookkeeping needed to know whether
// this process created the segment (rank 0) or merely attached to it.
type ShmParamStore struct {
	mu       sync.Mutex
	name     string
	rank     int
	nranks   int
	file     *os.File
	region   mmap.MMap
	attached bool
}

// Attach creates (if rank == 0 and the segment does not yet exist) or
// opens the shm segment for name, sized for nranks participants, and mmaps
// it into this process. Matches shm_store.cc's Attach(): rank 0 creates
// and ftruncates, every rank mmaps, rank 0 writes a fresh header and every
// other rank validates the header's magic and nranks.
func Attach(name string, rank, nranks int) (*ShmParamStore, error) {
	if nranks <= 0 || nranks > maxRanks {
		return nil, errors.Errorf("shm: nranks %d out of range (1..%d)", nranks, maxRanks)
	}
	path := pathFor(name)
	size := segmentSize()

	var f *os.File
	var err error
	if rank == 0 {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	} else {
		f, err = os.OpenFile(path, os.O_RDWR, 0o600)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "shm: open %s", path)
	}

	if rank == 0 {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "shm: truncate %s", path)
		}
	}

	region, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "shm: mmap %s", path)
	}

	s := &ShmParamStore{
		name:     name,
		rank:     rank,
		nranks:   nranks,
		file:     f,
		region:   region,
		attached: true,
	}

	if rank == 0 {
		encodeHeader(s.region[:headerSize], header{Magic: magic, Nranks: int32(nranks), LockOwnerPID: int32(os.Getpid())})
	} else if err := s.validateHeader(nranks); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *ShmParamStore) validateHeader(wantNranks int) error {
	h := decodeHeader(s.region[:headerSize])
	if h.Magic != magic {
		return errors.Errorf("shm: %s: bad magic %x", s.name, h.Magic)
	}
	if int(h.Nranks) != wantNranks {
		return errors.Errorf("shm: %s: nranks mismatch, segment has %d, want %d", s.name, h.Nranks, wantNranks)
	}
	return nil
}

// IsAttached reports whether this store still owns a live mapping.
func (s *ShmParamStore) IsAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// Nranks returns the participant count recorded when the segment was
// created.
func (s *ShmParamStore) Nranks() int { return s.nranks }

// IsRank0 reports whether this attachment created the segment.
func (s *ShmParamStore) IsRank0() bool { return s.rank == 0 }

// Close unmaps and closes the backing file. It does not unlink the
// segment — that is shm.Sweep's job, run out-of-band once every rank has
// exited (SPEC_FULL.md §4 supplemented feature 2).
func (s *ShmParamStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return nil
	}
	s.attached = false
	err := s.region.Unmap()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteMyStat writes this rank's statSlot, setting the trailing valid
// byte last so a concurrent reader never observes a slot with stale
// trailing metadata but fresh leading fields (shm_store.cc's
// WriteMyStat()).
func (s *ShmParamStore) WriteMyStat(key common.OpKey, stat telemetry.ExecStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return errors.New("shm: store not attached")
	}
	off := statSlotOffset(s.rank)
	buf := s.region[off : off+statSlotSize]
	encodeStatSlot(buf, statSlot{
		Op:          int32(key.Op),
		Bytes:       key.Bytes,
		Datatype:    int32(key.Datatype),
		FastTime:    stat.FastTime,
		PCIeTime:    stat.PCIeTime,
		FastBytes:   stat.FastBytes,
		PCIeBytes:   stat.PCIeBytes,
		FastSuccess: stat.FastSuccess,
		PCIeSuccess: stat.PCIeSuccess,
	})
	encodeStatSlotValid(buf, true)
	return nil
}

// AggregatedStat is what ReadAllStatsAndAggregate returns: FastTimeMS/
// PCIeTimeMS are the max observed across valid rank slots, the success
// flags are ANDed, and FastBytes/PCIeBytes come from the last valid slot
// scanned rather than any aggregate of the others. The last part mirrors
// shm_store.cc literally and is intended, not a bug (spec.md §9 open
// question c) — every rank sends the same per-op byte count, so the last
// writer's figure is as representative as any other rank's would be, and
// the original never reconciles it against the rest. Despite the MS suffix,
// FastTimeMS/PCIeTimeMS carry the ExecStat times unchanged, in seconds.
type AggregatedStat struct {
	FastTimeMS  float64
	PCIeTimeMS  float64
	FastBytes   uint64
	PCIeBytes   uint64
	FastSuccess bool
	PCIeSuccess bool
	SeenRanks   int
	Key         common.OpKey
}

// ReadAllStatsAndAggregate scans every rank's current slot — each rank
// holds exactly one live stat slot at a time, for whichever op it last
// executed — and folds the valid ones into a single AggregatedStat,
// exactly as shm_store.cc's ReadAllStatsAndAggregate does: FastTimeMS/
// PCIeTimeMS are the max observed across ranks (the slowest rank sets the
// apparent latency), FastBytes/PCIeBytes come from the last valid slot
// scanned (spec.md §9 open question c, not a sum), the success flags are
// ANDed across ranks, and Key is read from the first valid slot seen —
// callers only call this when every rank is in lockstep on the same
// collective, so any valid slot's key is representative. Returns
// found=false if no rank has a valid slot yet.
func (s *ShmParamStore) ReadAllStatsAndAggregate() (AggregatedStat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := AggregatedStat{FastSuccess: true, PCIeSuccess: true}
	found := false
	for r := 0; r < s.nranks; r++ {
		off := statSlotOffset(r)
		slot := decodeStatSlot(s.region[off : off+statSlotSize])
		if !slot.Valid {
			continue
		}
		if !found {
			agg.Key = common.OpKey{Op: common.CollectiveType(slot.Op), Bytes: slot.Bytes, Datatype: common.DataType(slot.Datatype)}
		}
		found = true
		agg.SeenRanks++
		if slot.FastTime > agg.FastTimeMS {
			agg.FastTimeMS = slot.FastTime
		}
		if slot.PCIeTime > agg.PCIeTimeMS {
			agg.PCIeTimeMS = slot.PCIeTime
		}
		agg.FastBytes = slot.FastBytes
		agg.PCIeBytes = slot.PCIeBytes
		agg.FastSuccess = agg.FastSuccess && slot.FastSuccess
		agg.PCIeSuccess = agg.PCIeSuccess && slot.PCIeSuccess
	}
	if !found {
		return AggregatedStat{}, false
	}
	return agg, true
}

// ReadParams loads every entry currently in the shared parameter table.
func (s *ShmParamStore) ReadParams() []cache.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int(binary.LittleEndian.Uint32(s.region[paramNumOff : paramNumOff+4]))
	if n > maxParamEntries {
		n = maxParamEntries
	}
	out := make([]cache.Entry, 0, n)
	for i := 0; i < n; i++ {
		off := paramEntryOffset(i)
		e := decodeParamEntry(s.region[off : off+paramEntrySize])
		out = append(out, cache.Entry{
			Key: common.OpKey{Op: common.CollectiveType(e.Op), Bytes: e.Bytes, Datatype: common.DataType(e.Datatype)},
			Value: cache.ParamValue{
				Alpha:   e.Alpha,
				UsePCIe: e.UsePCIe,
				FastBW:  e.FastBW,
				PCIeBW:  e.PCIeBW,
			},
		})
	}
	return out
}

// WriteParams replaces the shared parameter table with entries, truncated
// to maxParamEntries with a warning — the original's fixed-size table has
// the same ceiling (shm_store.h's kMaxParamEntries).
func (s *ShmParamStore) WriteParams(entries []cache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return errors.New("shm: store not attached")
	}
	if len(entries) > maxParamEntries {
		nlog.Warningf("shm: %s: truncating param table from %d to %d entries", s.name, len(entries), maxParamEntries)
		entries = entries[:maxParamEntries]
	}
	for i, e := range entries {
		off := paramEntryOffset(i)
		encodeParamEntry(s.region[off:off+paramEntrySize], paramEntry{
			Op:       int32(e.Key.Op),
			Bytes:    e.Key.Bytes,
			Datatype: int32(e.Key.Datatype),
			Alpha:    e.Value.Alpha,
			UsePCIe:  e.Value.UsePCIe,
			FastBW:   e.Value.FastBW,
			PCIeBW:   e.Value.PCIeBW,
		})
	}
	binary.LittleEndian.PutUint32(s.region[paramNumOff:paramNumOff+4], uint32(len(entries)))
	h := decodeHeader(s.region[:headerSize])
	h.ParamVersion++
	encodeHeader(s.region[:headerSize], h)
	return nil
}

// String implements fmt.Stringer for log lines.
func (s *ShmParamStore) String() string {
	return fmt.Sprintf("shm.Store{name=%s rank=%d nranks=%d}", s.name, s.rank, s.nranks)
}
