// Package history implements a linear undo/redo log over a single value.
//
// Two kinds of writes exist. A checkpoint discards any redo tail and appends
// a new step; an amendment replaces the current step in place, so continuous
// input (typing) does not produce one undo step per change.
package history

// Mode selects how Write records a value.
type Mode int

const (
	// ModeAmend replaces the value at the cursor.
	ModeAmend Mode = iota
	// ModeCheckpoint truncates the redo tail and appends a new step.
	ModeCheckpoint
)

func (m Mode) String() string {
	switch m {
	case ModeAmend:
		return "amend"
	case ModeCheckpoint:
		return "checkpoint"
	default:
		return "unknown"
	}
}

// History is a cursor over an ordered sequence of snapshots. The sequence
// only shrinks on Reset or when a checkpoint drops the redo tail.
//
// The zero value is an empty history: Current returns the zero T and the
// first write of either mode seeds step 0. History is not safe for
// concurrent use.
type History[T any] struct {
	entries []T
	cursor  int
}

// New returns a history holding only initial.
func New[T any](initial T) *History[T] {
	return &History[T]{entries: []T{initial}}
}

// Current returns the value at the cursor, or the zero T when nothing has
// been recorded.
func (h *History[T]) Current() T {
	if !h.valid() {
		var zero T
		return zero
	}
	return h.entries[h.cursor]
}

func (h *History[T]) valid() bool {
	return h.cursor >= 0 && h.cursor < len(h.entries)
}

// Cursor returns the current index.
func (h *History[T]) Cursor() int { return h.cursor }

// Len returns the number of recorded steps.
func (h *History[T]) Len() int { return len(h.entries) }

// CanUndo reports whether Undo would move the cursor.
func (h *History[T]) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether Redo would move the cursor.
func (h *History[T]) CanRedo() bool { return h.cursor < len(h.entries)-1 }

// Checkpoint records v as a new step after the cursor.
func (h *History[T]) Checkpoint(v T) {
	if !h.valid() {
		h.Reset(v)
		return
	}
	h.entries = append(h.entries[:h.cursor+1], v)
	h.cursor = len(h.entries) - 1
}

// Amend overwrites the current step with v.
func (h *History[T]) Amend(v T) {
	if !h.valid() {
		h.Reset(v)
		return
	}
	h.entries[h.cursor] = v
}

// Write dispatches to Checkpoint or Amend. It reports false, and changes
// nothing, for an unknown mode.
func (h *History[T]) Write(v T, mode Mode) bool {
	switch mode {
	case ModeCheckpoint:
		h.Checkpoint(v)
	case ModeAmend:
		h.Amend(v)
	default:
		return false
	}
	return true
}

// Undo moves the cursor one step back. It is a no-op at the first step.
func (h *History[T]) Undo() bool {
	if !h.CanUndo() {
		return false
	}
	h.cursor--
	return true
}

// Redo moves the cursor one step forward. It is a no-op at the last step.
func (h *History[T]) Redo() bool {
	if !h.CanRedo() {
		return false
	}
	h.cursor++
	return true
}

// Reset drops every step and starts over from initial.
func (h *History[T]) Reset(initial T) {
	h.entries = []T{initial}
	h.cursor = 0
}

// Snapshot returns a copy of the recorded steps and the cursor.
func (h *History[T]) Snapshot() ([]T, int) {
	out := make([]T, len(h.entries))
	copy(out, h.entries)
	return out, h.cursor
}
