package shm

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFakeSegment(t *testing.T, dir, name string, h header) string {
	t.Helper()
	path := filepath.Join(dir, name)
	buf := make([]byte, segmentSize())
	encodeHeader(buf, h)
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestSweep_RemovesSegmentWithDeadOwner(t *testing.T) {
	dir := t.TempDir()
	// pid 0 is never a real process for kill(pid,0) purposes on this path,
	// and processAlive treats FindProcess failure / ESRCH as dead; using a
	// pid far outside any plausible live range keeps this deterministic.
	const deadPID = 1 << 30
	path := writeFakeSegment(t, dir, "ampccl_dead", header{Magic: magic, Nranks: 2, LockOwnerPID: deadPID})

	res, err := Sweep(dir)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(res.Removed) != 1 || res.Removed[0] != path {
		t.Fatalf("Removed = %v, want [%s]", res.Removed, path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed", path)
	}
}

func TestSweep_KeepsSegmentWithLiveOwner(t *testing.T) {
	dir := t.TempDir()
	path := writeFakeSegment(t, dir, "ampccl_live", header{Magic: magic, Nranks: 2, LockOwnerPID: int32(os.Getpid())})

	res, err := Sweep(dir)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(res.Removed) != 0 {
		t.Fatalf("Removed = %v, want none", res.Removed)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to still exist: %v", path, err)
	}
}

func TestSweep_IgnoresNonAmpcclFiles(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "some_other_app_segment")
	if err := os.WriteFile(other, []byte("not ours"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := Sweep(dir)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Scanned != 0 {
		t.Fatalf("Scanned = %d, want 0 for a file outside the ampccl_ namespace", res.Scanned)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("expected unrelated file to remain untouched: %v", err)
	}
}

func TestSweep_SkipsFileWithBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ampccl_corrupt")
	if err := os.WriteFile(path, make([]byte, headerSize), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := Sweep(dir)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(res.Removed) != 0 || res.Skipped != 1 {
		t.Fatalf("res = %+v, want 0 removed, 1 skipped", res)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected corrupt segment to remain untouched: %v", err)
	}
}

func TestSweep_EndToEndWithRealAttach(t *testing.T) {
	withTempShmDir(t)
	s, err := Attach("ampccl_test_e2e_sweep", 0, 1)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	res, err := Sweep(shmDir)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	// The creating process (this test binary) is still alive, so a real
	// rank-0-created segment is never swept just because its mapping was
	// closed — only a dead owner pid makes it eligible.
	if len(res.Removed) != 0 {
		t.Fatalf("Removed = %v, want none: owner pid is still alive", res.Removed)
	}
}
