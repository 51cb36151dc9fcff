package hook

import (
	"sync"
)

// Registration pairs a callback with its owner and priority.
type Registration struct {
	// Owner names the plugin that registered the callback.
	Owner string

	// Priority orders callbacks within a phase; lower runs first.
	Priority int

	// Callback is the typed callback to invoke.
	Callback Callback
}

// slotKey indexes the per-entry-point, per-phase hook lists.
type slotKey struct {
	fn    FunctionID
	phase Phase
}

// Table holds registered hooks for all entry points.
//
// Hook lists are copy-on-write: Register and Unregister build a new
// slice and swap it in under the write lock, while Hooks returns the
// current slice without copying. Callers iterate their snapshot freely
// while registrations change underneath.
type Table struct {
	mu    sync.RWMutex
	slots map[slotKey][]Registration
}

// NewTable creates an empty hook table.
func NewTable() *Table {
	return &Table{
		slots: make(map[slotKey][]Registration),
	}
}

// Register adds a callback for its entry point and phase.
//
// Callbacks are kept sorted by ascending priority; a new callback with
// a priority equal to existing ones is placed after them, so equal
// priorities preserve registration order. A second registration by the
// same owner for the same entry point and phase is silently ignored.
func (t *Table) Register(owner string, priority int, cb Callback) {
	if cb == nil {
		return
	}
	key := slotKey{fn: cb.Function(), phase: cb.Phase()}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.slots[key]
	for _, r := range current {
		if r.Owner == owner {
			return
		}
	}

	// Find the insertion point: after the last entry with priority <= new.
	idx := len(current)
	for i, r := range current {
		if r.Priority > priority {
			idx = i
			break
		}
	}

	next := make([]Registration, 0, len(current)+1)
	next = append(next, current[:idx]...)
	next = append(next, Registration{Owner: owner, Priority: priority, Callback: cb})
	next = append(next, current[idx:]...)
	t.slots[key] = next
}

// Unregister removes every callback registered by owner.
func (t *Table) Unregister(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, current := range t.slots {
		removed := false
		for _, r := range current {
			if r.Owner == owner {
				removed = true
				break
			}
		}
		if !removed {
			continue
		}

		next := make([]Registration, 0, len(current))
		for _, r := range current {
			if r.Owner != owner {
				next = append(next, r)
			}
		}
		if len(next) == 0 {
			delete(t.slots, key)
		} else {
			t.slots[key] = next
		}
	}
}

// Hooks returns the callbacks for an entry point and phase in dispatch
// order. The returned slice is a shared snapshot; callers must not
// modify it.
func (t *Table) Hooks(fn FunctionID, phase Phase) []Registration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slots[slotKey{fn: fn, phase: phase}]
}

// Before returns the before-phase callbacks for an entry point.
func (t *Table) Before(fn FunctionID) []Registration {
	return t.Hooks(fn, PhaseBefore)
}

// After returns the after-phase callbacks for an entry point.
func (t *Table) After(fn FunctionID) []Registration {
	return t.Hooks(fn, PhaseAfter)
}

// Len returns the total number of registered callbacks.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, regs := range t.slots {
		n += len(regs)
	}
	return n
}
