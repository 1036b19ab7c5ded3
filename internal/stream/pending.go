package stream

import (
	"sort"

	"labelstream/pkg/models"
)

// memento is the snapshot of an observation waiting for its label.
type memento struct {
	key   string
	index int
	x     models.Features
	dueAt float64
}

// pendingQueue holds not-yet-due mementos ordered by (dueAt, arrival).
// When the delay is fixed, due times are monotonic with arrival order and
// plain append keeps the queue sorted; a dynamic delay needs an ordered
// insert.
type pendingQueue struct {
	items  []memento
	sorted bool
}

func newPendingQueue(sorted bool) *pendingQueue {
	return &pendingQueue{sorted: sorted}
}

func (q *pendingQueue) insert(m memento) {
	if !q.sorted {
		q.items = append(q.items, m)
		return
	}
	// First position strictly after every equal dueAt, so ties keep
	// arrival order.
	pos := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].dueAt > m.dueAt
	})
	q.items = append(q.items, memento{})
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = m
}

// popDue removes and returns the earliest memento if it is due at ref.
func (q *pendingQueue) popDue(ref float64) (memento, bool) {
	if len(q.items) == 0 || q.items[0].dueAt > ref {
		return memento{}, false
	}
	return q.pop()
}

// pop removes and returns the earliest memento unconditionally.
func (q *pendingQueue) pop() (memento, bool) {
	if len(q.items) == 0 {
		return memento{}, false
	}
	m := q.items[0]
	q.items[0] = memento{}
	q.items = q.items[1:]
	return m, true
}

func (q *pendingQueue) len() int {
	return len(q.items)
}
