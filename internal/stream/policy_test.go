package stream

import (
	"testing"
	"time"

	"labelstream/pkg/models"
)

func TestResolvePolicyDefaults(t *testing.T) {
	p, err := resolvePolicy(Options{})
	if err != nil {
		t.Fatalf("resolvePolicy: %v", err)
	}
	if p.dynamicDelay {
		t.Fatalf("zero options must not mark the delay dynamic")
	}

	x := models.Features{"id": "abc"}
	m, err := p.moment(7, x)
	if err != nil || m != 7 {
		t.Fatalf("unset moment should be the arrival index, got %v (%v)", m, err)
	}
	d, err := p.delay(7, x)
	if err != nil || d != 0 {
		t.Fatalf("unset delay should be zero, got %v (%v)", d, err)
	}
	k, err := p.key(x)
	if err != nil || k != "abc" {
		t.Fatalf("default key field should read id, got %q (%v)", k, err)
	}
}

func TestResolvePolicyIsIdempotent(t *testing.T) {
	opts := Options{
		Moment: MomentSelector{Field: "created_at"},
		Delay:  DelaySelector{Fixed: 20},
	}
	x := models.Features{"created_at": "2026-03-01T12:00:00Z", "id": "1"}

	for run := 0; run < 2; run++ {
		p, err := resolvePolicy(opts)
		if err != nil {
			t.Fatalf("resolvePolicy run %d: %v", run, err)
		}
		m1, err := p.moment(0, x)
		if err != nil {
			t.Fatalf("moment: %v", err)
		}
		m2, err := p.moment(0, x)
		if err != nil {
			t.Fatalf("moment: %v", err)
		}
		if m1 != m2 {
			t.Fatalf("moment resolution is not stable: %v vs %v", m1, m2)
		}
		want := float64(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano()) / float64(time.Second)
		if m1 != want {
			t.Fatalf("moment = %v, want %v", m1, want)
		}
	}
}

func TestDelayFuncReceivesArrivalIndex(t *testing.T) {
	p, err := resolvePolicy(Options{
		Delay: DelaySelector{Func: func(i int, x models.Features) (interface{}, error) {
			return i * 2, nil
		}},
	})
	if err != nil {
		t.Fatalf("resolvePolicy: %v", err)
	}
	if !p.dynamicDelay {
		t.Fatalf("computed delay must mark the delay dynamic")
	}

	d, err := p.delay(3, models.Features{})
	if err != nil || d != 6 {
		t.Fatalf("delay(3) = %v (%v), want 6", d, err)
	}
	d, err = p.delay(5, models.Features{})
	if err != nil || d != 10 {
		t.Fatalf("delay(5) = %v (%v), want 10", d, err)
	}
}

func TestMomentUnits(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := momentUnits(ts)
	if err != nil {
		t.Fatalf("time.Time moment: %v", err)
	}
	if want := float64(ts.UnixNano()) / float64(time.Second); got != want {
		t.Fatalf("time.Time moment = %v, want %v", got, want)
	}

	if got, err := momentUnits(42.5); err != nil || got != 42.5 {
		t.Fatalf("numeric moment = %v (%v)", got, err)
	}

	for _, raw := range []string{
		"2026-01-02T03:04:05Z",
		"2026-01-02T03:04:05",
		"2026-01-02 03:04:05",
	} {
		got, err := momentUnits(raw)
		if err != nil {
			t.Fatalf("string moment %q: %v", raw, err)
		}
		if want := float64(ts.UnixNano()) / float64(time.Second); got != want {
			t.Fatalf("string moment %q = %v, want %v", raw, got, want)
		}
	}

	if _, err := momentUnits("yesterday-ish"); err == nil {
		t.Fatalf("malformed timestamp must be a parse error")
	}
	if _, err := momentUnits([]string{"no"}); err == nil {
		t.Fatalf("unsupported moment type must be an error")
	}
}

func TestDelayUnits(t *testing.T) {
	if got, err := delayUnits(20 * time.Second); err != nil || got != 20 {
		t.Fatalf("duration delay = %v (%v)", got, err)
	}
	if got, err := delayUnits("1m30s"); err != nil || got != 90 {
		t.Fatalf("duration string delay = %v (%v)", got, err)
	}
	if got, err := delayUnits("12.5"); err != nil || got != 12.5 {
		t.Fatalf("numeric string delay = %v (%v)", got, err)
	}
	if got, err := delayUnits(3); err != nil || got != 3 {
		t.Fatalf("int delay = %v (%v)", got, err)
	}
	if _, err := delayUnits("soon"); err == nil {
		t.Fatalf("unparseable delay must be an error")
	}
}

func TestKeyString(t *testing.T) {
	if got, err := keyString("tweet-1"); err != nil || got != "tweet-1" {
		t.Fatalf("string key = %q (%v)", got, err)
	}
	if got, err := keyString(float64(1234567890)); err != nil || got != "1234567890" {
		t.Fatalf("integral float key = %q (%v)", got, err)
	}
	if got, err := keyString(int64(42)); err != nil || got != "42" {
		t.Fatalf("int64 key = %q (%v)", got, err)
	}
	if _, err := keyString(map[string]interface{}{}); err == nil {
		t.Fatalf("unsupported key type must be an error")
	}
}

func TestMissingFieldsAreErrors(t *testing.T) {
	p, err := resolvePolicy(Options{
		Moment: MomentSelector{Field: "created_at"},
		Delay:  DelaySelector{Field: "wait"},
		Key:    KeySelector{Field: "uid"},
	})
	if err != nil {
		t.Fatalf("resolvePolicy: %v", err)
	}
	if !p.dynamicDelay {
		t.Fatalf("field delay must mark the delay dynamic")
	}

	empty := models.Features{}
	if _, err := p.moment(0, empty); err == nil {
		t.Fatalf("missing moment field must error")
	}
	if _, err := p.delay(0, empty); err == nil {
		t.Fatalf("missing delay field must error")
	}
	if _, err := p.key(empty); err == nil {
		t.Fatalf("missing key field must error")
	}
}
