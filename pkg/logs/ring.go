package logs

// Ring is a fixed-capacity circular buffer. Entries are evicted in FIFO
// order when capacity is reached. It is not safe for concurrent use.
type Ring[T any] struct {
	entries  []T
	capacity int
	head     int // Index where the next write goes
}

// NewRing creates a ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an entry, overwriting the oldest one when full.
func (r *Ring[T]) Push(entry T) {
	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, entry)
	} else {
		r.entries[r.head] = entry
	}
	r.head = (r.head + 1) % r.capacity
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int { return len(r.entries) }

// All returns a copy of the stored entries, oldest first.
func (r *Ring[T]) All() []T {
	out := make([]T, 0, len(r.entries))
	if len(r.entries) < r.capacity {
		return append(out, r.entries...)
	}
	out = append(out, r.entries[r.head:]...)
	return append(out, r.entries[:r.head]...)
}
