package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidTimeFormat marks raw time values the schedule source supplied
// that cannot be normalized. Callers must surface it, never treat it as
// past or future.
var ErrInvalidTimeFormat = errors.New("invalid time format")

var (
	bareTimeRe = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
	offsetRe   = regexp.MustCompile(`([Zz]|[+-]\d{2}:?\d{2})$`)
)

// Normalizer converts the heterogeneous time representations of the
// schedule source into instants in a single reference zone. Trainers and
// members may sit in different zones; slot semantics are defined in the
// gym's zone, so the reference zone is fixed per deployment, not taken
// from the caller.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

func NewNormalizer(timezone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load reference timezone %q: %w", timezone, err)
	}
	return &Normalizer{loc: loc, now: time.Now}, nil
}

// Location returns the reference zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize parses a raw time value into an instant in the reference zone.
// Bare "HH:mm" values are combined with fallbackDate. Values carrying an
// explicit offset are trusted and converted; values without one are
// interpreted as already being in the reference zone.
func (n *Normalizer) Normalize(raw string, fallbackDate time.Time) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTimeFormat)
	}

	if bareTimeRe.MatchString(value) {
		if fallbackDate.IsZero() {
			return time.Time{}, fmt.Errorf("%w: bare time %q without fallback date", ErrInvalidTimeFormat, raw)
		}
		layout := "15:04"
		if len(value) == 8 {
			layout = "15:04:05"
		}
		clock, err := time.Parse(layout, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
		}
		y, m, d := fallbackDate.Date()
		return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), 0, n.loc), nil
	}

	normalized := value
	if !strings.Contains(normalized, "T") {
		normalized = strings.Replace(normalized, " ", "T", 1)
	}

	if offsetRe.MatchString(normalized) {
		// Offsets come in colon-less and minute-precision variants too.
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05-0700",
			"2006-01-02T15:04Z07:00",
			"2006-01-02T15:04-0700",
		} {
			if t, err := time.Parse(layout, normalized); err == nil {
				return t.In(n.loc), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}

	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, normalized, n.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
}

// IsPast reports whether t is strictly before now. Evaluated against the
// wall clock on every call; the answer goes stale the moment it returns.
func (n *Normalizer) IsPast(t time.Time) bool {
	return t.Before(n.now())
}

// Now exposes the normalizer's clock so callers stamp transitions with
// the same time source the classifier uses.
func (n *Normalizer) Now() time.Time {
	return n.now()
}
