package connector

import (
	"context"

	"labelstream/pkg/models"
)

// Connector joins the two halves of a delayed-feedback source: the unbounded
// raw event sequence and the batched ground-truth lookup.
type Connector interface {
	// Next blocks until the next raw event arrives. It returns io.EOF when
	// the sequence ends; any other error is fatal and ends the stream.
	Next(ctx context.Context) (models.Features, error)

	// FetchLabels resolves labels for a bounded set of ids in one call.
	// Ids absent from the result have no label available; that is not an
	// error. Retry and backoff are the connector's concern.
	FetchLabels(ctx context.Context, ids []string) (map[string]interface{}, error)
}

// Matcher decides whether a raw event enters the stream.
type Matcher interface {
	Match(x models.Features) bool
}

// Filtered wraps c so that only events accepted by m are surfaced. Label
// lookups pass through untouched.
func Filtered(c Connector, m Matcher) Connector {
	return &filtered{inner: c, matcher: m}
}

type filtered struct {
	inner   Connector
	matcher Matcher
}

func (f *filtered) Next(ctx context.Context) (models.Features, error) {
	for {
		x, err := f.inner.Next(ctx)
		if err != nil {
			return nil, err
		}
		if f.matcher.Match(x) {
			return x, nil
		}
	}
}

func (f *filtered) FetchLabels(ctx context.Context, ids []string) (map[string]interface{}, error) {
	return f.inner.FetchLabels(ctx, ids)
}
