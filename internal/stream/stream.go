// Package stream turns a feed of timestamped events into a stream of
// (index, features, label) triples for online supervised learning. Labels
// arrive with a configurable delay and are retrieved from the source in
// batches; observations whose labels never materialize are surfaced once,
// unlabeled, and then dropped silently.
package stream

import (
	"context"
	"fmt"

	"labelstream/internal/connector"
	"labelstream/internal/metrics"
	"labelstream/pkg/models"
)

const (
	defaultMinBatchSize = 25
	defaultMaxBatchSize = 100
)

// Options configures a Stream.
type Options struct {
	// Moment, Delay and Key are resolved once at construction; see the
	// selector types in this package.
	Moment MomentSelector
	Delay  DelaySelector
	Key    KeySelector

	// MinBatchSize is the number of due observations required before a
	// label fetch is triggered. MaxBatchSize caps the ids per fetch call.
	MinBatchSize int
	MaxBatchSize int

	// CopyOnEmit deep-copies features on the unlabeled emission so consumer
	// mutation cannot corrupt the snapshot still held for the labeled pass.
	CopyOnEmit bool
}

// Stream is a pull-based iterator over triples. A single goroutine drives
// it; the pending queue and label buffer are owned exclusively by the
// instance, so independent streams never share state.
type Stream struct {
	conn connector.Connector
	pol  *policy

	minBatch   int
	maxBatch   int
	copyOnEmit bool

	pending *pendingQueue
	buf     *labelBuffer
	ready   []models.Triple
	index   int
	err     error
}

// New builds a stream over conn. The selector configuration is resolved
// here, once; a zero Options value yields the arrival index as moment, no
// delay and the "id" key field.
func New(conn connector.Connector, opts Options) (*Stream, error) {
	pol, err := resolvePolicy(opts)
	if err != nil {
		return nil, err
	}

	minBatch := opts.MinBatchSize
	if minBatch <= 0 {
		minBatch = defaultMinBatchSize
	}
	maxBatch := opts.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	if maxBatch < minBatch {
		return nil, fmt.Errorf("max batch size %d below min batch size %d", maxBatch, minBatch)
	}

	return &Stream{
		conn:       conn,
		pol:        pol,
		minBatch:   minBatch,
		maxBatch:   maxBatch,
		copyOnEmit: opts.CopyOnEmit,
		pending:    newPendingQueue(pol.dynamicDelay),
		buf:        newLabelBuffer(),
	}, nil
}

// Next returns the next triple. Unlabeled triples come out strictly in
// arrival order; labeled triples come out as their batches resolve. The
// error is io.EOF once the raw sequence ends and all ready triples have
// been drained; any other error is fatal and sticky.
func (s *Stream) Next(ctx context.Context) (models.Triple, error) {
	for {
		if len(s.ready) > 0 {
			t := s.ready[0]
			s.ready[0] = models.Triple{}
			s.ready = s.ready[1:]
			if t.Labeled() {
				metrics.LabeledOut.Inc()
			} else {
				metrics.UnlabeledOut.Inc()
			}
			return t, nil
		}
		if s.err != nil {
			return models.Triple{}, s.err
		}
		if err := s.advance(ctx); err != nil {
			s.err = err
		}
	}
}

// Pending reports how many observations are waiting for their due time.
func (s *Stream) Pending() int {
	return s.pending.len()
}

// Buffered reports how many due observations await the next label fetch.
func (s *Stream) Buffered() int {
	return s.buf.size()
}

// advance consumes one raw event: drains everything due at its moment into
// the label buffer, enqueues it and stages its unlabeled triple.
func (s *Stream) advance(ctx context.Context) error {
	x, err := s.conn.Next(ctx)
	if err != nil {
		return err
	}
	metrics.EventsIn.Inc()

	t, err := s.pol.moment(s.index, x)
	if err != nil {
		return err
	}
	d, err := s.pol.delay(s.index, x)
	if err != nil {
		return err
	}
	key, err := s.pol.key(x)
	if err != nil {
		return err
	}

	// The current event's moment is the reference time: anything that came
	// due before it leaves the pending queue now.
	for {
		m, ok := s.pending.popDue(t)
		if !ok {
			break
		}
		s.buf.offer(m.key, m.index, m.x)
		if err := s.fetchWhileFull(ctx); err != nil {
			return err
		}
	}

	s.pending.insert(memento{key: key, index: s.index, x: x, dueAt: t + d})

	out := x
	if s.copyOnEmit {
		out = x.Clone()
	}
	s.ready = append(s.ready, models.Triple{Index: s.index, Features: out})
	s.index++

	metrics.PendingSize.Set(float64(s.pending.len()))
	metrics.BufferSize.Set(float64(s.buf.size()))
	return nil
}

// fetchWhileFull issues batch fetches for as long as the buffer holds at
// least the trigger threshold.
func (s *Stream) fetchWhileFull(ctx context.Context) error {
	for s.buf.size() >= s.minBatch {
		if err := s.fetchBatch(ctx); err != nil {
			return err
		}
	}
	return nil
}

// fetchBatch resolves one batch of up to maxBatch ids, oldest offer first.
// Every requested id leaves the buffer: resolved ones become labeled
// triples, absent ones are dropped without a trace in the labeled stream.
func (s *Stream) fetchBatch(ctx context.Context) error {
	keys := s.buf.take(s.maxBatch)
	if len(keys) == 0 {
		return nil
	}

	labels, err := s.conn.FetchLabels(ctx, keys)
	if err != nil {
		return fmt.Errorf("fetch labels: %w", err)
	}
	metrics.FetchCalls.Inc()
	metrics.FetchBatchSize.Observe(float64(len(keys)))

	for _, k := range keys {
		e, ok := s.buf.remove(k)
		if !ok {
			continue
		}
		// An explicit null label counts as "no label available": emitting it
		// would surface the index a second time as unlabeled.
		y, found := labels[k]
		if !found || y == nil {
			metrics.LabelsDropped.Inc()
			continue
		}
		s.ready = append(s.ready, models.Triple{Index: e.index, Features: e.x, Label: y})
	}
	metrics.BufferSize.Set(float64(s.buf.size()))
	return nil
}

// Flush force-drains the pending queue and the label buffer, fetching in
// maxBatch chunks regardless of the trigger threshold. Resolved triples
// surface through Next. The stream never flushes implicitly: without an
// explicit call, entries still pending when the raw sequence ends are
// simply never labeled.
func (s *Stream) Flush(ctx context.Context) error {
	for {
		m, ok := s.pending.pop()
		if !ok {
			break
		}
		s.buf.offer(m.key, m.index, m.x)
	}
	metrics.PendingSize.Set(0)
	for s.buf.size() > 0 {
		if err := s.fetchBatch(ctx); err != nil {
			return err
		}
	}
	return nil
}
