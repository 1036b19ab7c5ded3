package connector

import (
	"context"
	"io"
	"testing"

	"labelstream/pkg/models"
)

type stubConnector struct {
	events []models.Features
	pos    int
}

func (s *stubConnector) Next(ctx context.Context) (models.Features, error) {
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	x := s.events[s.pos]
	s.pos++
	return x, nil
}

func (s *stubConnector) FetchLabels(ctx context.Context, ids []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(ids))
	for _, id := range ids {
		out[id] = "label-" + id
	}
	return out, nil
}

type langMatcher struct{ lang string }

func (m langMatcher) Match(x models.Features) bool {
	return x.Field("lang") == m.lang
}

func TestFilteredSkipsNonMatchingEvents(t *testing.T) {
	stub := &stubConnector{events: []models.Features{
		{"id": "1", "lang": "fr"},
		{"id": "2", "lang": "en"},
		{"id": "3", "lang": "fr"},
	}}
	c := Filtered(stub, langMatcher{lang: "fr"})

	x, err := c.Next(context.Background())
	if err != nil || x.Field("id") != "1" {
		t.Fatalf("first match should be id 1, got %v (%v)", x, err)
	}
	x, err = c.Next(context.Background())
	if err != nil || x.Field("id") != "3" {
		t.Fatalf("second match should be id 3, got %v (%v)", x, err)
	}
	if _, err := c.Next(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF after the last match, got %v", err)
	}
}

func TestFilteredPassesLookupsThrough(t *testing.T) {
	c := Filtered(&stubConnector{}, langMatcher{lang: "fr"})
	labels, err := c.FetchLabels(context.Background(), []string{"7"})
	if err != nil {
		t.Fatalf("FetchLabels: %v", err)
	}
	if labels["7"] != "label-7" {
		t.Fatalf("lookup should be untouched by the filter, got %v", labels)
	}
}
