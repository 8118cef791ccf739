package shm

import (
	"testing"

	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

func TestInspect_ReadsHeaderStatsAndParams(t *testing.T) {
	withTempShmDir(t)
	s, err := Attach("ampccl_test_inspect", 0, 2)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer s.Close()

	key := common.NewOpKey(common.AllReduce, 4096, common.Float32)
	if err := s.WriteMyStat(key, telemetry.ExecStat{FastTime: 0.01, FastBytes: 4096, FastSuccess: true}); err != nil {
		t.Fatalf("WriteMyStat() error = %v", err)
	}
	if err := s.WriteParams([]cache.Entry{{Key: key, Value: cache.ParamValue{Alpha: 0.75, UsePCIe: true}}}); err != nil {
		t.Fatalf("WriteParams() error = %v", err)
	}

	snap, err := Inspect(shmDir, "ampccl_test_inspect")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if snap.Nranks != 2 {
		t.Fatalf("snap.Nranks = %d, want 2", snap.Nranks)
	}
	if len(snap.Stats) != 2 || !snap.Stats[0].Valid || snap.Stats[1].Valid {
		t.Fatalf("expected rank 0 valid and rank 1 invalid, got %+v", snap.Stats)
	}
	if len(snap.Params) != 1 || snap.Params[0].Value.Alpha != 0.75 {
		t.Fatalf("unexpected params: %+v", snap.Params)
	}
	if !snap.LockOwnerUp {
		t.Fatalf("expected LockOwnerUp=true for our own live process")
	}
}

func TestInspect_RejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	writeFakeSegment(t, dir, "ampccl_test_badmagic", header{Magic: 0xdeadbeef, Nranks: 1})

	if _, err := Inspect(dir, "ampccl_test_badmagic"); err == nil {
		t.Fatalf("expected an error for a segment with the wrong magic")
	}
}
