// Package schedule normalizes strategy execution schedules and converts
// them to cron specs for the in-process scheduler.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/collectline/dunlin/internal/domain"
)

var (
	// ErrInvalidTime marks an execution time that is not HH:MM.
	ErrInvalidTime = errors.New("invalid execution time")

	// ErrNoDays marks a weekly schedule with an empty day selection.
	ErrNoDays = errors.New("weekly schedule requires at least one day")

	// ErrInvalidFrequency marks an unrecognized frequency.
	ErrInvalidFrequency = errors.New("invalid schedule frequency")
)

// Input is the raw schedule as submitted: frequency plus whichever of the
// day fields the frequency reads. Fields the frequency does not read are
// ignored, not rejected.
type Input struct {
	Frequency  domain.Frequency `json:"frequency"`
	Days       []domain.Weekday `json:"days,omitempty"`
	DayOfMonth int              `json:"dayOfMonth,omitempty"`
	Time       string           `json:"time"`
}

// Normalize produces a canonical schedule. DAILY expands to the working
// week, WEEKLY keeps the submitted days, MONTHLY clamps the day-of-month
// into [1,31]. The unused day field is always zeroed so two schedules with
// equal effect compare equal.
func Normalize(in Input) (*domain.Schedule, error) {
	if _, err := time.Parse("15:04", in.Time); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTime, in.Time)
	}

	s := &domain.Schedule{
		Frequency: in.Frequency,
		Time:      in.Time,
	}

	switch in.Frequency {
	case domain.FreqDaily:
		s.Days = append([]domain.Weekday(nil), domain.WorkingWeek...)
	case domain.FreqWeekly:
		if len(in.Days) == 0 {
			return nil, ErrNoDays
		}
		s.Days = append([]domain.Weekday(nil), in.Days...)
	case domain.FreqMonthly:
		dom := in.DayOfMonth
		if dom < 1 {
			dom = 1
		}
		if dom > 31 {
			dom = 31
		}
		s.DayOfMonth = dom
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, in.Frequency)
	}

	return s, nil
}

// CronSpec renders a normalized schedule as a standard five-field cron spec.
func CronSpec(s *domain.Schedule) string {
	hhmm := strings.SplitN(s.Time, ":", 2)
	hour, minute := hhmm[0], hhmm[1]

	if s.Frequency == domain.FreqMonthly {
		return fmt.Sprintf("%s %s %d * *", minute, hour, s.DayOfMonth)
	}

	days := make([]string, 0, len(s.Days))
	for _, d := range s.Days {
		days = append(days, string(d))
	}
	return fmt.Sprintf("%s %s * * %s", minute, hour, strings.Join(days, ","))
}

// NextRun computes the next execution after the given instant.
func NextRun(s *domain.Schedule, after time.Time) (time.Time, error) {
	spec, err := cron.ParseStandard(CronSpec(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse cron spec: %w", err)
	}
	return spec.Next(after), nil
}
