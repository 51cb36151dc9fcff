// Package tag implements the frame-indexed resource tag store.
//
// Applications tag GPU resources (depth, motion vectors, color buffers)
// per frame and per viewport; feature plugins look the tags up while
// processing that frame. Because the application may run several frames
// ahead of the GPU, tags are kept in a ring of per-frame slots indexed
// by frame modulo the ring size, and old slots are recycled as frames
// finish presenting.
//
// # Locking
//
// Each slot has its own RWMutex, so tagging frame N never blocks a
// plugin reading frame N-1. Recycling is serialized by a dedicated
// mutex taken with TryLock: if another thread is already recycling, the
// caller skips the pass instead of queueing. The recycling path locks
// the recycle mutex before any slot lock; nothing locks in the other
// order.
//
// # Lifecycles
//
// A tag declares how long its resource stays valid: only while the
// tagging call runs ([LifecycleFrameOnly]), until the frame presents
// ([LifecycleUntilPresent]), or until the feature evaluates
// ([LifecycleUntilEvaluate]). When a frame-only tag is required by a
// feature beyond the call, the store clones the resource through the
// configured [Cloner] so the copy outlives the original.
package tag
