package latency

import (
	"log/slog"
	"sync"
	"time"
)

// TimeoutPolicy returns how long a camera data lookup for a frame may
// block before giving up.
type TimeoutPolicy func(frame uint32) time.Duration

// DefaultTimeoutPolicy waits up to 100ms for camera data, except during
// the first few frames: at startup the application is still warming up
// its marker loop and blocking there would stall swapchain creation
// paths, so early lookups fail fast instead.
func DefaultTimeoutPolicy(frame uint32) time.Duration {
	if frame < 5 {
		return 0
	}
	return 100 * time.Millisecond
}

// cameraSlot is one ring entry.
type cameraSlot[T any] struct {
	frame uint32
	data  T
	valid bool
}

// cameraRing stores per-frame camera data for in-flight frames and
// lets consumers briefly wait for a producer that has not caught up.
//
// Waiting uses a broadcast channel that is closed and replaced on every
// insert; a waiter re-checks its frame after each wakeup and gives up
// when its policy deadline passes.
type cameraRing[T any] struct {
	mu      sync.Mutex
	slots   []cameraSlot[T]
	updated chan struct{}

	policy TimeoutPolicy
	log    *slog.Logger
}

func newCameraRing[T any](size int, policy TimeoutPolicy, log *slog.Logger) *cameraRing[T] {
	if policy == nil {
		policy = DefaultTimeoutPolicy
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &cameraRing[T]{
		slots:   make([]cameraSlot[T], size),
		updated: make(chan struct{}),
		policy:  policy,
		log:     log,
	}
}

// Insert stores camera data for a frame and wakes waiters.
//
// Frame 0 is reserved (no valid frame token has index 0) and is
// dropped. Duplicate inserts overwrite with a warning; an insert older
// than what the slot already holds is dropped, the producer fell behind
// the ring.
func (r *cameraRing[T]) Insert(frame uint32, data T) {
	if frame == 0 {
		r.log.Warn("latency: camera data for frame 0 dropped")
		return
	}

	r.mu.Lock()
	slot := &r.slots[frame%uint32(len(r.slots))]
	if slot.valid {
		if slot.frame == frame {
			r.log.Warn("latency: duplicate camera data", "frame", frame)
		} else if slot.frame > frame {
			r.log.Warn("latency: out-of-order camera data dropped",
				"frame", frame, "have", slot.frame)
			r.mu.Unlock()
			return
		}
	}
	slot.frame = frame
	slot.data = data
	slot.valid = true

	close(r.updated)
	r.updated = make(chan struct{})
	r.mu.Unlock()
}

// Get returns the camera data for a frame, waiting up to the policy's
// timeout for the producer.
func (r *cameraRing[T]) Get(frame uint32) (T, bool) {
	var zero T
	idx := frame % uint32(len(r.slots))
	deadline := time.Now().Add(r.policy(frame))

	for {
		r.mu.Lock()
		slot := r.slots[idx]
		ch := r.updated
		r.mu.Unlock()

		if slot.valid && slot.frame == frame {
			return slot.data, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ch:
			timer.Stop()
		case <-timer.C:
			// Deadline passed; one final re-check on the next loop.
		}
	}
}

// Reset drops all stored data.
func (r *cameraRing[T]) Reset() {
	r.mu.Lock()
	for i := range r.slots {
		r.slots[i] = cameraSlot[T]{}
	}
	close(r.updated)
	r.updated = make(chan struct{})
	r.mu.Unlock()
}
