// Package schedule defines the normalized schedule descriptor: a tagged
// union of "run every N seconds" and "run at cron-style minute/hour/
// day-of-month/month/day-of-week patterns". It is a pure value type;
// translation into the external recurring-job store lives in internal/beat.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind discriminates the two descriptor variants.
type Kind string

// Descriptor kinds.
const (
	KindInterval Kind = "interval"
	KindCrontab  Kind = "crontab"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindInterval || k == KindCrontab
}

// InvalidScheduleError reports a schedule field that failed validation.
type InvalidScheduleError struct {
	Field   string
	Value   string
	Message string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("schedule: invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// Descriptor is the normalized schedule. Exactly one variant is populated,
// selected by Kind: Seconds for KindInterval, the five pattern fields for
// KindCrontab.
type Descriptor struct {
	Kind Kind

	// Interval variant.
	Seconds uint

	// Crontab variant. Pattern strings over the standard cron alphabet
	// ("*", "*/n", ranges, lists).
	Minute     string
	Hour       string
	DayOfMonth string
	Month      string
	DayOfWeek  string
}

// Input carries the raw fields of an operator-supplied schedule before
// normalization. Unused fields of the other variant are ignored.
type Input struct {
	Kind       Kind
	Seconds    uint
	Minute     string
	Hour       string
	DayOfMonth string
	Month      string
	DayOfWeek  string
}

// cronFieldPattern accepts the syntactic cron alphabet: "*", numbers,
// lists, ranges, and step suffixes. Numeric range checking (e.g. minute
// 0-59) is deliberately left to the external scheduler's own parser and
// surfaces as a registration failure, not a validation error here.
var cronFieldPattern = regexp.MustCompile(`^(\*|\d+(-\d+)?)(/\d+)?(,(\*|\d+(-\d+)?)(/\d+)?)*$`)

// Normalize validates in and produces a Descriptor. Interval schedules
// require Seconds > 0. Crontab fields must be well-formed patterns; an
// empty crontab field defaults to "*". The returned error is an
// *InvalidScheduleError naming the offending field.
func Normalize(in Input) (Descriptor, error) {
	switch in.Kind {
	case KindInterval:
		if in.Seconds == 0 {
			return Descriptor{}, &InvalidScheduleError{
				Field:   "seconds",
				Value:   "0",
				Message: "interval must be greater than zero",
			}
		}
		return Descriptor{Kind: KindInterval, Seconds: in.Seconds}, nil

	case KindCrontab:
		d := Descriptor{
			Kind:       KindCrontab,
			Minute:     defaultStar(in.Minute),
			Hour:       defaultStar(in.Hour),
			DayOfMonth: defaultStar(in.DayOfMonth),
			Month:      defaultStar(in.Month),
			DayOfWeek:  defaultStar(in.DayOfWeek),
		}
		fields := []struct {
			name  string
			value string
		}{
			{"minute", d.Minute},
			{"hour", d.Hour},
			{"day_of_month", d.DayOfMonth},
			{"month", d.Month},
			{"day_of_week", d.DayOfWeek},
		}
		for _, f := range fields {
			if !cronFieldPattern.MatchString(f.value) {
				return Descriptor{}, &InvalidScheduleError{
					Field:   f.name,
					Value:   f.value,
					Message: "not a valid cron pattern",
				}
			}
		}
		return d, nil

	default:
		return Descriptor{}, &InvalidScheduleError{
			Field:   "kind",
			Value:   string(in.Kind),
			Message: "must be interval or crontab",
		}
	}
}

func defaultStar(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "*"
	}
	return s
}

// Spec renders the descriptor as an expression understood by the external
// recurring-job store: "@every Ns" for intervals, the 5-field cron line
// otherwise.
func (d Descriptor) Spec() string {
	if d.Kind == KindInterval {
		return fmt.Sprintf("@every %ds", d.Seconds)
	}
	return strings.Join([]string{d.Minute, d.Hour, d.DayOfMonth, d.Month, d.DayOfWeek}, " ")
}

// Display renders the human-facing schedule summary: "every Ns" for
// intervals, the ":"-joined non-empty cron fields otherwise.
func (d Descriptor) Display() string {
	if d.Kind == KindInterval {
		return fmt.Sprintf("every %ds", d.Seconds)
	}
	var parts []string
	for _, p := range []string{d.Minute, d.Hour, d.DayOfMonth, d.Month, d.DayOfWeek} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}
