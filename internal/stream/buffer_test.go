package stream

import (
	"testing"

	"labelstream/pkg/models"
)

func TestBufferTakeIsOldestFirst(t *testing.T) {
	b := newLabelBuffer()
	b.offer("a", 0, models.Features{})
	b.offer("b", 1, models.Features{})
	b.offer("c", 2, models.Features{})

	got := b.take(2)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
	// take must not remove anything.
	if b.size() != 3 {
		t.Fatalf("take must leave the buffer intact, size=%d", b.size())
	}

	all := b.take(10)
	if len(all) != 3 {
		t.Fatalf("take above size should return everything, got %v", all)
	}
}

func TestBufferOfferIsLastWriteWins(t *testing.T) {
	b := newLabelBuffer()
	b.offer("a", 0, models.Features{"v": 1})
	b.offer("b", 1, models.Features{})
	b.offer("a", 5, models.Features{"v": 2})

	if b.size() != 2 {
		t.Fatalf("reused key must not grow the buffer, size=%d", b.size())
	}
	// The original offer position is kept.
	if got := b.take(1); got[0] != "a" {
		t.Fatalf("expected a to keep its slot, got %v", got)
	}

	e, ok := b.remove("a")
	if !ok {
		t.Fatalf("a should be present")
	}
	if e.index != 5 {
		t.Fatalf("last write wins: expected index 5, got %d", e.index)
	}
}

func TestBufferRemove(t *testing.T) {
	b := newLabelBuffer()
	b.offer("a", 0, models.Features{})
	b.offer("b", 1, models.Features{})

	if _, ok := b.remove("missing"); ok {
		t.Fatalf("removing an absent key must report false")
	}
	if _, ok := b.remove("a"); !ok {
		t.Fatalf("a should be removable")
	}
	if b.size() != 1 {
		t.Fatalf("size should drop to 1, got %d", b.size())
	}
	if got := b.take(10); len(got) != 1 || got[0] != "b" {
		t.Fatalf("order must forget removed keys, got %v", got)
	}
	if _, ok := b.remove("a"); ok {
		t.Fatalf("a was already removed")
	}
}
