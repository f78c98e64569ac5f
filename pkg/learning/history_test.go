package learning

import (
	"fmt"
	"testing"
)

func eventN(n int) AdjustmentEvent {
	return AdjustmentEvent{FeedbackType: fmt.Sprintf("ev-%d", n)}
}

func TestRingAppendWithinCapacity(t *testing.T) {
	r := NewRing(5, nil)
	for i := 0; i < 3; i++ {
		r.Append(eventN(i))
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	items := r.Items()
	for i, ev := range items {
		if ev.FeedbackType != fmt.Sprintf("ev-%d", i) {
			t.Errorf("Items()[%d] = %q, want ev-%d", i, ev.FeedbackType, i)
		}
	}
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3, nil)
	for i := 0; i < 5; i++ {
		r.Append(eventN(i))
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	items := r.Items()
	want := []string{"ev-2", "ev-3", "ev-4"}
	for i, ev := range items {
		if ev.FeedbackType != want[i] {
			t.Errorf("Items()[%d] = %q, want %q", i, ev.FeedbackType, want[i])
		}
	}
}

func TestRingSeedTruncation(t *testing.T) {
	seed := make([]AdjustmentEvent, 6)
	for i := range seed {
		seed[i] = eventN(i)
	}

	r := NewRing(4, seed)
	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}
	if got := r.Items()[0].FeedbackType; got != "ev-2" {
		t.Errorf("oldest seeded event = %q, want ev-2", got)
	}
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing(0, nil)
	r.Append(eventN(1))
	r.Append(eventN(2))

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if got := r.Items()[0].FeedbackType; got != "ev-2" {
		t.Errorf("Items()[0] = %q, want ev-2", got)
	}
}
