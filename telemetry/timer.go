package telemetry

import (
	"sync"

	"github.com/adaptive-ccl/ampccl/cmn/mono"
	"github.com/adaptive-ccl/ampccl/common"
)

// EventRecorder is the device-runtime collaborator a Timer defers to when
// one is available: recording start/end events on a stream, blocking until
// the end event fires, and reading the elapsed time between them. It is the
// interface boundary spec.md §1 calls out of scope ("device runtimes:
// stream sync, event recording, elapsed time"); this package only consumes
// it. A nil EventRecorder means "no device runtime attached", and Timer
// transparently falls back to a host monotonic clock.
type EventRecorder interface {
	RecordStart(stream common.RawStream)
	RecordEnd(stream common.RawStream)
	Synchronize()
	ElapsedSeconds() float64
}

// Timer owns one start/end event pair. It is reusable: a later Start
// overwrites whatever the previous Start/Stop pair recorded, matching the
// original telemetry/timer.h contract. When Device is nil it times with the
// host monotonic clock instead of device events.
type Timer struct {
	Device EventRecorder

	mu        sync.Mutex
	hostStart int64
	hostEnd   int64
	useHost   bool
}

// Start records the start event on stream (or, with no device recorder,
// takes a host monotonic reading). Never blocks.
func (t *Timer) Start(stream common.RawStream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Device != nil {
		t.useHost = false
		t.Device.RecordStart(stream)
		return
	}
	t.useHost = true
	t.hostStart = mono.NR()
}

// Stop records the end event on stream. Never blocks.
func (t *Timer) Stop(stream common.RawStream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Device != nil && !t.useHost {
		t.Device.RecordEnd(stream)
		return
	}
	t.hostEnd = mono.NR()
}

// Synchronize blocks until the end event has signaled. With a host-clock
// fallback this is a no-op — the Stop reading already happened on the
// caller's own thread.
func (t *Timer) Synchronize() {
	t.mu.Lock()
	dev, useHost := t.Device, t.useHost
	t.mu.Unlock()
	if dev != nil && !useHost {
		dev.Synchronize()
	}
}

// ElapsedSeconds returns the time between the last Start and the last Stop,
// valid only after Synchronize has returned.
func (t *Timer) ElapsedSeconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Device != nil && !t.useHost {
		return t.Device.ElapsedSeconds()
	}
	if t.hostEnd <= t.hostStart {
		return 0
	}
	return float64(t.hostEnd-t.hostStart) / 1e9
}
