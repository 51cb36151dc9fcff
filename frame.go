package interpose

import "sync"

// MaxFramesInFlight is the number of distinct frame tokens kept live.
// It bounds how far ahead of presentation an application can run.
const MaxFramesInFlight = 16

// FrameToken identifies one application frame. Tokens for the same
// frame index are pointer-identical, so plugins can key per-frame
// state on the token itself.
type FrameToken struct {
	index uint32
}

// Index returns the frame index the token stands for.
func (t *FrameToken) Index() uint32 { return t.index }

// frameTokens hands out tokens from a fixed ring.
type frameTokens struct {
	mu   sync.Mutex
	ring [MaxFramesInFlight]*FrameToken
	next uint32
}

// token returns the token for index, or for the next frame when index
// is nil. Requesting an index already in the ring returns the same
// token; a new index recycles the oldest slot.
func (f *frameTokens) token(index *uint32) *FrameToken {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.next + 1
	if index != nil {
		idx = *index
	}

	slot := &f.ring[idx%MaxFramesInFlight]
	if *slot == nil || (*slot).index != idx {
		*slot = &FrameToken{index: idx}
	}
	if idx > f.next {
		f.next = idx
	}
	return *slot
}

// NewFrameToken returns the token for the given frame index. Passing
// nil advances to the next frame. Tokens are shared: every caller
// asking for the same live index gets the same token.
func (r *Runtime) NewFrameToken(index *uint32) *FrameToken {
	return r.tokens.token(index)
}
