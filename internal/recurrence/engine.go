package recurrence

import (
	"context"
	"time"

	"example.com/backstage/invoicing/internal/models"

	"github.com/pkg/errors"
)

var (
	// ErrNotDue is returned when a template has no occurrence at or before asOf
	ErrNotDue = errors.New("recurrence template is not due")
	// ErrTerminal is returned when a template's end strategy is satisfied
	ErrTerminal = errors.New("recurrence template has ended")
)

// CatchUpPolicy decides what happens to occurrences missed while no pass ran
type CatchUpPolicy string

const (
	// CatchUpLatest invoices only the most recent missed occurrence
	CatchUpLatest CatchUpPolicy = "latest"
	// CatchUpBackfill invoices every missed occurrence, oldest first
	CatchUpBackfill CatchUpPolicy = "backfill"
)

// ParseCatchUpPolicy validates a configured policy name
func ParseCatchUpPolicy(s string) (CatchUpPolicy, error) {
	switch p := CatchUpPolicy(s); p {
	case CatchUpLatest, CatchUpBackfill:
		return p, nil
	case "":
		return CatchUpLatest, nil
	default:
		return "", errors.Errorf("unknown catch-up policy %q", s)
	}
}

// DueTemplateStore lists templates due at a point in time
type DueTemplateStore interface {
	FindDue(ctx context.Context, asOf time.Time) ([]models.RecurrenceTemplate, error)
}

// Engine owns the schedule arithmetic of recurrence templates. It never
// touches invoices; the materializer persists what the engine decides.
type Engine struct {
	store   DueTemplateStore
	catchUp CatchUpPolicy
}

// NewEngine creates a recurrence engine
func NewEngine(store DueTemplateStore, catchUp CatchUpPolicy) *Engine {
	if catchUp == "" {
		catchUp = CatchUpLatest
	}
	return &Engine{store: store, catchUp: catchUp}
}

// CatchUp returns the configured catch-up policy
func (e *Engine) CatchUp() CatchUpPolicy {
	return e.catchUp
}

// FindDue returns every non-terminal template whose next run is at or before
// asOf, ordered by next run then id
func (e *Engine) FindDue(ctx context.Context, asOf time.Time) ([]models.RecurrenceTemplate, error) {
	templates, err := e.store.FindDue(ctx, asOf.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to find due templates")
	}
	return templates, nil
}

// DueOccurrence returns the occurrence a run at asOf has to invoice. Under
// CatchUpLatest that is the newest occurrence not after asOf (and not after
// the end date); under CatchUpBackfill it is always the template's next run.
func (e *Engine) DueOccurrence(t *models.RecurrenceTemplate, asOf time.Time) (time.Time, error) {
	if t.Terminal() {
		return time.Time{}, ErrTerminal
	}
	next := t.NextRunAt.UTC()
	if next.After(asOf) {
		return time.Time{}, errors.Wrapf(ErrNotDue, "next run %s is after %s", next.Format(time.RFC3339), asOf.UTC().Format(time.RFC3339))
	}
	if e.catchUp == CatchUpBackfill {
		return next, nil
	}

	limit := asOf.UTC()
	if t.EndStrategy == models.EndOnDate && t.EndDate != nil && t.EndDate.Before(limit) {
		limit = t.EndDate.UTC()
	}

	latest := next
	for index := t.ScheduleIndex + 1; ; index++ {
		occurrence, err := occurrenceOf(t, index)
		if err != nil {
			return time.Time{}, err
		}
		if occurrence.After(limit) {
			break
		}
		latest = occurrence
	}
	return latest, nil
}

// Advance records one generated invoice against the template and moves its
// next run past every occurrence the run covered: past asOf under
// CatchUpLatest, past the invoiced occurrence under CatchUpBackfill. When the
// end strategy is satisfied NextRunAt becomes nil and the template is terminal.
func (e *Engine) Advance(t *models.RecurrenceTemplate, asOf time.Time) error {
	occurrence, err := e.DueOccurrence(t, asOf)
	if err != nil {
		return err
	}

	horizon := asOf.UTC()
	if e.catchUp == CatchUpBackfill {
		horizon = occurrence
	}

	index := t.ScheduleIndex + 1
	next, err := occurrenceOf(t, index)
	if err != nil {
		return err
	}
	for !next.After(horizon) {
		index++
		if next, err = occurrenceOf(t, index); err != nil {
			return err
		}
	}

	t.OccurrenceCount++
	t.LastRunAt = &occurrence
	t.ScheduleIndex = index
	t.NextRunAt = &next

	if ended(t) {
		t.NextRunAt = nil
	}
	return nil
}

func ended(t *models.RecurrenceTemplate) bool {
	switch t.EndStrategy {
	case models.EndAfterCount:
		return t.MaxOccurrences != nil && t.OccurrenceCount >= *t.MaxOccurrences
	case models.EndOnDate:
		return t.EndDate != nil && t.NextRunAt.After(t.EndDate.UTC())
	default:
		return false
	}
}
