package recurrence

import (
	"time"

	"example.com/backstage/invoicing/internal/models"

	"github.com/pkg/errors"
)

// AddPeriods moves t forward by n units. Month and year steps keep the day of
// month when it exists and clamp to the last day otherwise, so Jan 31 plus one
// month is Feb 28 (or 29) rather than early March.
func AddPeriods(t time.Time, unit models.FrequencyUnit, n int) (time.Time, error) {
	switch unit {
	case models.FrequencyDaily:
		return t.AddDate(0, 0, n), nil
	case models.FrequencyWeekly:
		return t.AddDate(0, 0, 7*n), nil
	case models.FrequencyMonthly:
		return addClampedMonths(t, n), nil
	case models.FrequencyYearly:
		return addClampedMonths(t, 12*n), nil
	default:
		return t, errors.Wrapf(models.ErrInvalidSchedule, "unknown frequency unit %q", unit)
	}
}

func addClampedMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hour, min, sec := t.Clock()

	// Normalise via the first of the month so AddDate cannot overflow
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}

	return time.Date(first.Year(), first.Month(), d, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// OccurrenceAt returns occurrence number index (0 is the anchor itself).
// Every occurrence is computed from the anchor, never from the previous
// occurrence, so a clamped Feb 28 is still followed by Mar 31.
func OccurrenceAt(anchor time.Time, unit models.FrequencyUnit, interval, index int) (time.Time, error) {
	if interval < 1 {
		return anchor, errors.Wrap(models.ErrInvalidSchedule, "interval must be at least 1")
	}
	if index < 0 {
		return anchor, errors.Errorf("occurrence index must not be negative, got %d", index)
	}
	return AddPeriods(anchor, unit, interval*index)
}

// occurrenceOf is OccurrenceAt for a template
func occurrenceOf(t *models.RecurrenceTemplate, index int) (time.Time, error) {
	return OccurrenceAt(t.AnchorDate.UTC(), t.Unit, t.Interval, index)
}
