package sim

// History is a bounded list of per-step entries, oldest first. Pushing past
// the capacity drops the oldest entry.
type History[T any] struct {
	capacity int
	entries  []T
}

// NewHistory creates an empty History holding at most capacity entries.
func NewHistory[T any](capacity int) *History[T] {
	return &History[T]{capacity: capacity}
}

// Push appends an entry, trimming from the front to the capacity.
func (h *History[T]) Push(v T) {
	h.entries = append(h.entries, v)
	if over := len(h.entries) - h.capacity; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

// Len returns the number of retained entries.
func (h *History[T]) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the retained entries, oldest first.
func (h *History[T]) Entries() []T {
	out := make([]T, len(h.entries))
	copy(out, h.entries)
	return out
}
