package tag

import (
	"log/slog"
	"sync"

	"github.com/gogpu/interpose/native"
)

// ringSize is the number of per-frame slots. The application can run at
// most ringSize frames ahead of recycling before slots are reused.
const ringSize = 32

// invalidFrame marks a slot that holds no frame.
const invalidFrame = ^uint32(0)

// slot holds the tags of one in-flight frame.
type slot struct {
	mu         sync.RWMutex
	frameIndex uint32
	entries    map[uint64]CommonResource
}

// entryKey packs tag type and viewport into the container key.
func entryKey(typ Type, viewport uint32) uint64 {
	return uint64(typ)<<32 | uint64(viewport)
}

// requiredKey identifies one recorded tag requirement.
type requiredKey struct {
	viewport  uint32
	typ       Type
	lifecycle Lifecycle
}

// FrameSource reports the most recently presented frame index.
// The second result is false while no frame has been presented.
type FrameSource func() (uint32, bool)

// Store is the frame-indexed resource tag container.
type Store struct {
	slots [ringSize]slot

	// recycleMu serializes recycling passes. Always taken before any
	// slot lock on the recycling path.
	recycleMu sync.Mutex
	prevSeen  uint32

	requiredMu   sync.Mutex
	requiredTags map[requiredKey]struct{}

	cloner      Cloner
	frameSource FrameSource
	log         *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCloner sets the resource cloner used for volatile tags.
// Without a cloner, volatile tags keep the application's reference.
func WithCloner(c Cloner) Option {
	return func(s *Store) { s.cloner = c }
}

// WithFrameSource sets where recycling reads the present frame from.
func WithFrameSource(fs FrameSource) Option {
	return func(s *Store) { s.frameSource = fs }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore creates an empty tag store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		prevSeen:     invalidFrame,
		requiredTags: make(map[requiredKey]struct{}),
		log:          slog.New(slog.DiscardHandler),
	}
	for i := range s.slots {
		s.slots[i].frameIndex = invalidFrame
		s.slots[i].entries = make(map[uint64]CommonResource)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// setFrameIndexLocked retargets a slot to a new frame.
// The slot must be drained first; live tags at retarget mean a
// lifecycle violation upstream.
func (s *Store) setFrameIndexLocked(sl *slot, frame uint32) {
	if len(sl.entries) != 0 {
		panic("tag: retargeting slot with live tags")
	}
	sl.frameIndex = frame
}

// drainLocked releases every tag in a slot. Caller holds the slot lock.
func (s *Store) drainLocked(sl *slot) {
	for _, entry := range sl.entries {
		if entry.Clone.IsValid() && s.cloner != nil {
			s.cloner.Recycle(entry.Clone)
		}
	}
	clear(sl.entries)
}

func (s *Store) recordRequired(viewport uint32, typ Type, lifecycle Lifecycle) {
	s.requiredMu.Lock()
	s.requiredTags[requiredKey{viewport: viewport, typ: typ, lifecycle: lifecycle}] = struct{}{}
	s.requiredMu.Unlock()
}

func (s *Store) isRequired(viewport uint32, typ Type, lifecycle Lifecycle) bool {
	s.requiredMu.Lock()
	_, ok := s.requiredTags[requiredKey{viewport: viewport, typ: typ, lifecycle: lifecycle}]
	s.requiredMu.Unlock()
	return ok
}

// SetTag stores a tag for a frame and viewport, replacing any previous
// tag of the same type.
//
// A nil resource clears the tag. For volatile tags required beyond the
// call, the resource is cloned through the configured Cloner, which
// needs a valid command buffer.
func (s *Store) SetTag(frame, viewport uint32, t ResourceTag, cmd native.CommandBufferID, local bool) native.Result {
	// Recycle old frames before taking the slot lock.
	s.RecycleTags()

	key := entryKey(t.Type, viewport)
	sl := &s.slots[frame%ringSize]

	sl.mu.Lock()
	defer sl.mu.Unlock()

	// A mismatched frame index means the slot still holds an old frame.
	if sl.frameIndex != frame {
		s.drainLocked(sl)
		s.setFrameIndexLocked(sl, frame)
	}

	// Release the tag being replaced.
	if old, ok := sl.entries[key]; ok && old.Clone.IsValid() && s.cloner != nil {
		s.cloner.Recycle(old.Clone)
	}

	entry := CommonResource{Local: local}

	if t.Resource.IsValid() {
		entry.Resource = t.Resource

		// Output tags are never cloned: features write into the
		// application's resource.
		if !t.Type.IsOutput() && t.Lifecycle != LifecycleUntilPresent {
			// Copy when a feature needs the tag on present, or needs it
			// on evaluate and the resource is only valid right now.
			makeCopy := s.isRequired(viewport, t.Type, LifecycleUntilPresent) ||
				(s.isRequired(viewport, t.Type, LifecycleUntilEvaluate) &&
					t.Lifecycle == LifecycleFrameOnly && !local)

			if makeCopy {
				if !cmd.IsValid() {
					s.log.Error("tag: command buffer required when tagging volatile resources",
						"type", t.Type, "viewport", viewport, "frame", frame)
					return native.ErrMissingInput
				}
				if s.cloner == nil {
					s.log.Warn("tag: no cloner configured, keeping volatile reference",
						"type", t.Type, "viewport", viewport)
				} else {
					clone, err := s.cloner.Clone(cmd, t.Resource)
					if err != nil {
						s.log.Error("tag: resource clone failed",
							"type", t.Type, "viewport", viewport, "error", err)
						return native.ErrInitializationFailed
					}
					entry.Clone = clone
					// The original may become invalid at any point; drop
					// the reference so nobody reads it through the store.
					entry.Resource = Resource{}
				}
			}
		}
	}

	entry.Extent = t.Extent
	if t.Precision != nil {
		entry.Precision = *t.Precision
	}

	sl.entries[key] = entry
	return native.Success
}

// GetTag looks up a tag for a frame and viewport.
//
// Per-call fallback tags are consulted first; their presence also marks
// the lookup as coming from feature evaluation. Tags set as local by
// another plugin are not surfaced. A missing non-optional tag returns
// [native.ErrNotFound].
func (s *Store) GetTag(typ Type, frame, viewport uint32, fallback []ResourceTag, optional bool) (CommonResource, native.Result) {
	// Inline tags supplied with the call win over the store.
	for i := range fallback {
		ft := &fallback[i]
		if ft.Type != typ {
			continue
		}
		res := CommonResource{Resource: ft.Resource, Extent: ft.Extent}
		if ft.Precision != nil {
			res.Precision = *ft.Precision
		}
		s.recordRequired(viewport, typ, LifecycleUntilEvaluate)
		return res, native.Success
	}

	key := entryKey(typ, viewport)
	sl := &s.slots[frame%ringSize]

	sl.mu.RLock()
	match := sl.frameIndex == frame
	var entry CommonResource
	var found bool
	if match {
		entry, found = sl.entries[key]
		if found && entry.Local {
			found = false
			entry = CommonResource{}
		}
	}
	sl.mu.RUnlock()

	// Fallback tags present means this lookup happens during feature
	// evaluation, otherwise it came from a hook such as present.
	lifecycle := LifecycleUntilPresent
	if fallback != nil {
		lifecycle = LifecycleUntilEvaluate
	}
	s.recordRequired(viewport, typ, lifecycle)

	if !match {
		s.log.Info("tag: resource tags not set yet", "frame", frame)
		if optional {
			return CommonResource{}, native.Success
		}
		return CommonResource{}, native.ErrNotFound
	}
	if !found {
		if optional {
			return CommonResource{}, native.Success
		}
		s.log.Error("tag: tag not set",
			"type", typ, "frame", frame, "viewport", viewport)
		return CommonResource{}, native.ErrNotFound
	}
	return entry, native.Success
}

// RecycleTags runs one recycling pass if no other thread is already
// recycling and the present frame moved since the last pass.
func (s *Store) RecycleTags() {
	if !s.recycleMu.TryLock() {
		// Another thread is already recycling.
		return
	}
	defer s.recycleMu.Unlock()

	cur := invalidFrame
	if s.frameSource != nil {
		if f, ok := s.frameSource(); ok {
			cur = f
		}
	}

	// Run the walk once per observed present frame. With no frame
	// source the walk runs every call and terminates on the first
	// non-matching slot.
	if s.prevSeen != cur || cur == invalidFrame {
		s.prevSeen = cur
		s.recycleFrom(cur)
	}
}

// recycleFrom walks backward from two frames behind the present frame,
// draining slots until it hits one that was already recycled or belongs
// to a different frame. Wrapping below zero is fine: the walk
// terminates on the frame index check.
func (s *Store) recycleFrom(presentFrame uint32) {
	for f := presentFrame - 2; ; f-- {
		sl := &s.slots[f%ringSize]
		sl.mu.Lock()
		if sl.frameIndex != f {
			sl.mu.Unlock()
			return
		}
		s.drainLocked(sl)
		// Mark the slot recycled with a frame index no lookup can hit.
		sl.frameIndex = f - ringSize
		sl.mu.Unlock()
	}
}

// Flush drains every slot. Used when the device goes idle and all
// in-flight frames are known to be finished.
func (s *Store) Flush() {
	s.recycleMu.Lock()
	defer s.recycleMu.Unlock()

	for i := range s.slots {
		sl := &s.slots[i]
		sl.mu.Lock()
		s.drainLocked(sl)
		sl.frameIndex = invalidFrame
		sl.mu.Unlock()
	}
}

// Close drains every slot and clears the requirement records.
func (s *Store) Close() {
	s.requiredMu.Lock()
	clear(s.requiredTags)
	s.requiredMu.Unlock()

	s.Flush()
}

// Len returns the total number of stored tags across all slots.
func (s *Store) Len() int {
	total := 0
	for i := range s.slots {
		sl := &s.slots[i]
		sl.mu.RLock()
		total += len(sl.entries)
		sl.mu.RUnlock()
	}
	return total
}
