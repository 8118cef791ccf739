package shm

import (
	"os"
	"strings"
	"syscall"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/adaptive-ccl/ampccl/cmn/nlog"
)

// segmentPrefix is the leading substring of every ampccl shm segment's
// filename, matching the "/ampccl_<hex>" naming scheme pathFor produces.
const segmentPrefix = "ampccl_"

// SweepResult reports what one Sweep pass did, for logging and metrics.
type SweepResult struct {
	Scanned int
	Removed []string
	Skipped int
}

// Sweep walks dir (callers pass shmDir in production, a temp dir in tests)
// looking for ampccl_* segments whose header round-trips a valid magic but
// whose LockOwnerPID no longer names a live process, and unlinks them.
// This is the SPEC_FULL.md §4 supplemented janitor: the original never
// reclaims these segments at all. A segment that fails to open or decode
// is left alone and counted as skipped — Sweep only ever removes what it
// can positively identify as ours and orphaned.
func Sweep(dir string) (SweepResult, error) {
	var res SweepResult
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !strings.HasPrefix(de.Name(), segmentPrefix) {
				return nil
			}
			res.Scanned++
			removed, err := sweepOne(path)
			if err != nil {
				nlog.Warningf("shm: sweep: %s: %v", path, err)
				res.Skipped++
				return nil
			}
			if removed {
				res.Removed = append(res.Removed, path)
			} else {
				res.Skipped++
			}
			return nil
		},
	})
	if err != nil {
		return res, errors.Wrapf(err, "shm: sweep %s", dir)
	}
	return res, nil
}

// sweepOne inspects a single candidate segment file and removes it if its
// header is valid and its lock owner is dead.
func sweepOne(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false, errors.Wrap(err, "open")
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return false, errors.Wrap(err, "read header")
	}
	h := decodeHeader(buf)
	if h.Magic != magic {
		return false, nil
	}
	if h.LockOwnerPID == 0 || processAlive(h.LockOwnerPID) {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, errors.Wrap(err, "remove")
	}
	return true, nil
}

// processAlive reports whether pid names a running process, using the
// standard kill(pid, 0) idiom: sending signal 0 performs existence and
// permission checks without actually signaling the process. EPERM still
// means the process exists (just owned by someone else); only ESRCH, or
// Go's "already finished" short-circuit for a process this program
// already Wait'd on, mean it's gone.
func processAlive(pid int32) bool {
	proc, err := os.FindProcess(int(pid))
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrProcessDone) || strings.Contains(err.Error(), "already finished") {
		return false
	}
	if errors.Is(err, syscall.ESRCH) {
		return false
	}
	return true
}
