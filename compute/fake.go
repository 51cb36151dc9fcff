package compute

import (
	"sync"

	"github.com/gogpu/interpose/native"
)

// MarkerRecord is one SetMarker call observed by a Fake.
type MarkerRecord struct {
	Marker Marker
	Frame  uint32
}

// FenceWait is one WaitCPUFence call observed by a Fake.
type FenceWait struct {
	Fence native.FenceID
	Value uint64
}

// Fake is an Interface implementation for tests. It records every call
// and returns canned values; waits never block.
type Fake struct {
	mu sync.Mutex

	// Finished is returned by FinishedFrameIndex.
	Finished uint32

	// FenceValues maps fences to the value CompletedValue returns.
	FenceValues map[native.FenceID]uint64

	// FlashControlled is reported via State.
	FlashControlled bool

	// Recorded calls.
	Mode       SleepMode
	ModeSets   int
	Markers    []MarkerRecord
	SleepCalls []uint32
	Waits      []FenceWait
}

// NewFake creates an empty fake.
func NewFake() *Fake {
	return &Fake{FenceValues: make(map[native.FenceID]uint64)}
}

func (f *Fake) FinishedFrameIndex() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Finished
}

func (f *Fake) CompletedValue(fence native.FenceID) (uint64, native.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FenceValues[fence], native.Success
}

func (f *Fake) WaitCPUFence(fence native.FenceID, value uint64) native.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Waits = append(f.Waits, FenceWait{Fence: fence, Value: value})
	if f.FenceValues[fence] < value {
		f.FenceValues[fence] = value
	}
	return native.Success
}

func (f *Fake) Sleep(frame uint32) native.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SleepCalls = append(f.SleepCalls, frame)
	return native.Success
}

func (f *Fake) SetSleepMode(mode SleepMode) native.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Mode = mode
	f.ModeSets++
	return native.Success
}

func (f *Fake) SetMarker(marker Marker, frame uint32) native.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Markers = append(f.Markers, MarkerRecord{Marker: marker, Frame: frame})
	return native.Success
}

func (f *Fake) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		LowLatencyAvailable:            true,
		FlashIndicatorDriverControlled: f.FlashControlled,
	}
}

func (f *Fake) Report() LatencyReport {
	return LatencyReport{}
}

// MarkerCount returns how many times marker was recorded.
func (f *Fake) MarkerCount(marker Marker) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.Markers {
		if r.Marker == marker {
			n++
		}
	}
	return n
}

var _ Interface = (*Fake)(nil)
