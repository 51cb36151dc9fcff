package compute

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/interpose/native"
)

// reportWindow is the number of frames of marker history kept.
const reportWindow = 64

// Tracker is an in-process latency backend.
//
// It derives the frame timeline from markers and from submission and
// presentation notifications instead of querying the GPU, which makes
// it usable with any driver. Fences are software timeline fences:
// SignalFence advances them and WaitCPUFence blocks on the advance.
type Tracker struct {
	mu   sync.Mutex
	mode SleepMode

	fences map[native.FenceID]*fenceState

	reports   [reportWindow]FrameReport
	epoch     time.Time
	nextSleep time.Time

	finished atomic.Uint32
}

// fenceState is one software timeline fence.
// waiters is closed and replaced on every signal.
type fenceState struct {
	value   uint64
	waiters chan struct{}
}

// NewTracker creates a tracker with pacing disabled.
func NewTracker() *Tracker {
	return &Tracker{
		fences: make(map[native.FenceID]*fenceState),
		epoch:  time.Now(),
	}
}

func (t *Tracker) now() uint64 {
	return uint64(time.Since(t.epoch).Microseconds())
}

// FinishedFrameIndex returns the newest presented frame.
func (t *Tracker) FinishedFrameIndex() uint32 {
	return t.finished.Load()
}

// NotePresent records that frame finished presenting. Frame indices
// only move forward; stale notifications are ignored.
func (t *Tracker) NotePresent(frame uint32) {
	for {
		cur := t.finished.Load()
		if frame <= cur {
			return
		}
		if t.finished.CompareAndSwap(cur, frame) {
			return
		}
	}
}

// SignalFence advances a timeline fence to value and wakes waiters.
// Fence values only move forward; a lower value is ignored.
func (t *Tracker) SignalFence(fence native.FenceID, value uint64) {
	if !fence.IsValid() {
		return
	}

	t.mu.Lock()
	fs, ok := t.fences[fence]
	if !ok {
		fs = &fenceState{waiters: make(chan struct{})}
		t.fences[fence] = fs
	}
	if value > fs.value {
		fs.value = value
		close(fs.waiters)
		fs.waiters = make(chan struct{})
	}
	t.mu.Unlock()
}

// CompletedValue returns the fence's last signaled value.
// An unknown fence reads as zero.
func (t *Tracker) CompletedValue(fence native.FenceID) (uint64, native.Result) {
	if !fence.IsValid() {
		return 0, native.ErrInvalidRequest
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if fs, ok := t.fences[fence]; ok {
		return fs.value, native.Success
	}
	return 0, native.Success
}

// WaitCPUFence blocks until the fence reaches value.
func (t *Tracker) WaitCPUFence(fence native.FenceID, value uint64) native.Result {
	if !fence.IsValid() {
		return native.ErrInvalidRequest
	}

	for {
		t.mu.Lock()
		fs, ok := t.fences[fence]
		if !ok {
			fs = &fenceState{waiters: make(chan struct{})}
			t.fences[fence] = fs
		}
		if fs.value >= value {
			t.mu.Unlock()
			return native.Success
		}
		ch := fs.waiters
		t.mu.Unlock()

		<-ch
	}
}

// Sleep paces the frame per the configured mode. With no frame rate
// cap configured, Sleep returns immediately.
func (t *Tracker) Sleep(frame uint32) native.Result {
	t.mu.Lock()
	interval := time.Duration(t.mode.MinIntervalMicros) * time.Microsecond
	if interval <= 0 {
		t.mu.Unlock()
		return native.Success
	}

	now := time.Now()
	target := t.nextSleep
	if target.Before(now) {
		target = now
	}
	t.nextSleep = target.Add(interval)
	t.mu.Unlock()

	if d := time.Until(target); d > 0 {
		time.Sleep(d)
	}
	return native.Success
}

// SetSleepMode reconfigures pacing.
func (t *Tracker) SetSleepMode(mode SleepMode) native.Result {
	t.mu.Lock()
	t.mode = mode
	t.nextSleep = time.Time{}
	t.mu.Unlock()
	return native.Success
}

// SetMarker records a timeline marker for a frame.
// A present-end marker also advances FinishedFrameIndex.
func (t *Tracker) SetMarker(marker Marker, frame uint32) native.Result {
	if marker >= markerCount {
		return native.ErrInvalidRequest
	}

	ts := t.now()

	t.mu.Lock()
	slot := &t.reports[frame%reportWindow]
	if slot.FrameID != uint64(frame) {
		*slot = FrameReport{FrameID: uint64(frame)}
	}
	switch marker {
	case MarkerInputSample:
		slot.InputSampleTime = ts
	case MarkerSimulationStart:
		slot.SimStartTime = ts
	case MarkerSimulationEnd:
		slot.SimEndTime = ts
	case MarkerRenderSubmitStart:
		slot.RenderSubmitStart = ts
	case MarkerRenderSubmitEnd:
		slot.RenderSubmitEnd = ts
	case MarkerPresentStart:
		slot.PresentStart = ts
	case MarkerPresentEnd:
		slot.PresentEnd = ts
	}
	t.mu.Unlock()

	if marker == MarkerPresentEnd {
		t.NotePresent(frame)
	}
	return native.Success
}

// State reports tracker availability. The tracker never controls a
// flash indicator.
func (t *Tracker) State() State {
	return State{
		LowLatencyAvailable:            true,
		FlashIndicatorDriverControlled: false,
	}
}

// Report returns recorded frames oldest first.
func (t *Tracker) Report() LatencyReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	frames := make([]FrameReport, 0, reportWindow)
	newest := uint64(t.finished.Load())
	for i := 0; i < reportWindow; i++ {
		// Walk the ring oldest to newest relative to the last present.
		idx := (newest + 1 + uint64(i)) % reportWindow
		if t.reports[idx].FrameID != 0 || t.reports[idx].SimStartTime != 0 {
			frames = append(frames, t.reports[idx])
		}
	}
	return LatencyReport{Frames: frames}
}

var _ Interface = (*Tracker)(nil)
