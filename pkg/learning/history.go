package learning

// Ring is a fixed-capacity event buffer. Appending beyond capacity drops
// the oldest entry.
type Ring struct {
	capacity int
	events   []AdjustmentEvent
	head     int
	size     int
}

// NewRing creates a ring seeded with existing events. If the seed exceeds
// the capacity only the newest entries are kept.
func NewRing(capacity int, seed []AdjustmentEvent) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring{
		capacity: capacity,
		events:   make([]AdjustmentEvent, capacity),
	}
	start := 0
	if len(seed) > capacity {
		start = len(seed) - capacity
	}
	for _, ev := range seed[start:] {
		r.Append(ev)
	}
	return r
}

// Append adds an event, evicting the oldest when full.
func (r *Ring) Append(ev AdjustmentEvent) {
	idx := (r.head + r.size) % r.capacity
	r.events[idx] = ev
	if r.size < r.capacity {
		r.size++
		return
	}
	r.head = (r.head + 1) % r.capacity
}

// Items returns the buffered events oldest first.
func (r *Ring) Items() []AdjustmentEvent {
	out := make([]AdjustmentEvent, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.events[(r.head+i)%r.capacity])
	}
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	return r.size
}
