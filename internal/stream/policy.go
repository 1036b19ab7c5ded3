package stream

import (
	"fmt"
	"strconv"
	"time"

	"labelstream/pkg/models"
)

// Due times live on a single float64 timeline. Wall-clock values are
// converted to fractional Unix seconds so that durations and numeric field
// delays compose with them; numeric moments pass through unchanged and an
// unset moment falls back to the arrival index.

// MomentSelector picks the moment value for an event. Exactly one of Field
// and Func may be set; the zero value means "use the arrival index".
type MomentSelector struct {
	Field string
	Func  func(x models.Features) (interface{}, error)
}

// DelaySelector picks the delay added to the moment. Field and Func yield a
// per-event delay; Func also receives the arrival index so a delay can be
// computed from it. Fixed is a constant in timeline units. The zero value
// means no delay.
type DelaySelector struct {
	Field string
	Func  func(i int, x models.Features) (interface{}, error)
	Fixed float64
}

// KeySelector picks the unique identifier used to retrieve the label later.
// The zero value reads the "id" field.
type KeySelector struct {
	Field string
	Func  func(x models.Features) (string, error)
}

// FixedDelay builds a constant delay selector from a wall-clock duration.
func FixedDelay(d time.Duration) DelaySelector {
	return DelaySelector{Fixed: d.Seconds()}
}

// dynamic reports whether the delay varies per event, in which case due
// times are not monotonic with arrival order.
func (s DelaySelector) dynamic() bool {
	return s.Field != "" || s.Func != nil
}

const defaultKeyField = "id"

// policy holds the three selector funcs, resolved once at stream setup so
// the per-event path never dispatches on configuration again.
type policy struct {
	moment func(i int, x models.Features) (float64, error)
	delay  func(i int, x models.Features) (float64, error)
	key    func(x models.Features) (string, error)

	dynamicDelay bool
}

func resolvePolicy(opts Options) (*policy, error) {
	p := &policy{dynamicDelay: opts.Delay.dynamic()}

	switch {
	case opts.Moment.Func != nil:
		fn := opts.Moment.Func
		p.moment = func(_ int, x models.Features) (float64, error) {
			v, err := fn(x)
			if err != nil {
				return 0, fmt.Errorf("moment func: %w", err)
			}
			return momentUnits(v)
		}
	case opts.Moment.Field != "":
		field := opts.Moment.Field
		p.moment = func(_ int, x models.Features) (float64, error) {
			v, ok := x[field]
			if !ok {
				return 0, fmt.Errorf("moment field %q missing from event", field)
			}
			return momentUnits(v)
		}
	default:
		p.moment = func(i int, _ models.Features) (float64, error) {
			return float64(i), nil
		}
	}

	switch {
	case opts.Delay.Func != nil:
		fn := opts.Delay.Func
		p.delay = func(i int, x models.Features) (float64, error) {
			v, err := fn(i, x)
			if err != nil {
				return 0, fmt.Errorf("delay func: %w", err)
			}
			return delayUnits(v)
		}
	case opts.Delay.Field != "":
		field := opts.Delay.Field
		p.delay = func(_ int, x models.Features) (float64, error) {
			v, ok := x[field]
			if !ok {
				return 0, fmt.Errorf("delay field %q missing from event", field)
			}
			return delayUnits(v)
		}
	default:
		fixed := opts.Delay.Fixed
		p.delay = func(int, models.Features) (float64, error) {
			return fixed, nil
		}
	}

	switch {
	case opts.Key.Func != nil:
		p.key = opts.Key.Func
	default:
		field := opts.Key.Field
		if field == "" {
			field = defaultKeyField
		}
		p.key = func(x models.Features) (string, error) {
			v, ok := x[field]
			if !ok {
				return "", fmt.Errorf("key field %q missing from event", field)
			}
			return keyString(v)
		}
	}

	return p, nil
}

// timestampLayouts are tried in order when a moment field arrives as text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// momentUnits converts a moment value to timeline units. A malformed
// timestamp is a fatal parse error; no default is guessed.
func momentUnits(v interface{}) (float64, error) {
	switch val := v.(type) {
	case time.Time:
		return float64(val.UnixNano()) / float64(time.Second), nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return float64(t.UnixNano()) / float64(time.Second), nil
			}
		}
		return 0, fmt.Errorf("unparseable moment timestamp %q", val)
	default:
		return 0, fmt.Errorf("unsupported moment type %T", v)
	}
}

// delayUnits converts a delay value to timeline units. Durations become
// seconds to match wall-clock moments; plain numbers pass through.
func delayUnits(v interface{}) (float64, error) {
	switch val := v.(type) {
	case time.Duration:
		return val.Seconds(), nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d.Seconds(), nil
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, nil
		}
		return 0, fmt.Errorf("unparseable delay %q", val)
	default:
		return 0, fmt.Errorf("unsupported delay type %T", v)
	}
}

func keyString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported key type %T", v)
	}
}
