package stream

import (
	"labelstream/pkg/models"
)

type bufferEntry struct {
	index int
	x     models.Features
}

// labelBuffer holds due observations whose labels have not been fetched
// yet, keyed by id and ordered by first offer. Offering a key twice keeps
// its original position and overwrites the entry (last write wins).
type labelBuffer struct {
	entries map[string]bufferEntry
	order   []string
}

func newLabelBuffer() *labelBuffer {
	return &labelBuffer{entries: make(map[string]bufferEntry)}
}

func (b *labelBuffer) offer(key string, index int, x models.Features) {
	if _, ok := b.entries[key]; !ok {
		b.order = append(b.order, key)
	}
	b.entries[key] = bufferEntry{index: index, x: x}
}

func (b *labelBuffer) size() int {
	return len(b.entries)
}

// take returns up to max keys, oldest offer first. Entries stay in the
// buffer until removed after the fetch resolves.
func (b *labelBuffer) take(max int) []string {
	n := max
	if n > len(b.order) {
		n = len(b.order)
	}
	out := make([]string, n)
	copy(out, b.order[:n])
	return out
}

func (b *labelBuffer) remove(key string) (bufferEntry, bool) {
	e, ok := b.entries[key]
	if !ok {
		return bufferEntry{}, false
	}
	delete(b.entries, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return e, true
}
