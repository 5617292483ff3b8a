package recurrence

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"example.com/backstage/invoicing/internal/metrics"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DueFinder lists the templates a pass has to look at
type DueFinder interface {
	FindDue(ctx context.Context, asOf time.Time) ([]models.RecurrenceTemplate, error)
}

// SeedMaterializer generates the invoice for one due occurrence
type SeedMaterializer interface {
	Materialize(ctx context.Context, template *models.RecurrenceTemplate, asOf time.Time) (*models.Invoice, error)
}

// PassLocker keeps two passes for the same day from running side by side.
// The database guards correctness on its own; the lock only saves the work.
type PassLocker interface {
	AcquirePassLock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// Failure is one template that could not be materialized
type Failure struct {
	SeedID uuid.UUID
	Err    error
}

// PassResult summarises one recurrence pass
type PassResult struct {
	AsOf      time.Time
	Generated int
	Skipped   int
	Numbers   []string
	Failures  []Failure
	// Locked is set when another pass held the lock and nothing was done.
	Locked bool
}

// RunnerOptions tunes a Runner
type RunnerOptions struct {
	Workers       int
	CatchUp       CatchUpPolicy
	BackfillLimit int
	LockTTL       time.Duration
}

// Runner drives one recurrence pass over every due template
type Runner struct {
	finder       DueFinder
	materializer SeedMaterializer
	locker       PassLocker
	opts         RunnerOptions
	metrics      *metrics.Metrics
	tracer       tracing.Tracer
}

// NewRunner creates a pass runner. locker and collector may be nil.
func NewRunner(
	finder DueFinder,
	materializer SeedMaterializer,
	locker PassLocker,
	opts RunnerOptions,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.CatchUp == "" {
		opts.CatchUp = CatchUpLatest
	}
	if opts.BackfillLimit < 1 {
		opts.BackfillLimit = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}
	return &Runner{
		finder:       finder,
		materializer: materializer,
		locker:       locker,
		opts:         opts,
		metrics:      collector,
		tracer:       tracer,
	}
}

// RunRecurrencePass materializes every template due at asOf. A failing
// template is logged and reported in the result; it never stops the others.
// The pass ignores cancellation of ctx once started so no template is left
// half-way through its batch; each template commits on its own.
func (r *Runner) RunRecurrencePass(ctx context.Context, asOf time.Time) (*PassResult, error) {
	ctx = context.WithoutCancel(ctx)
	asOf = asOf.UTC()
	start := time.Now()

	ctx, txn, end := tracing.JoinOrStart(ctx, r.tracer, "recurrence-pass")
	defer end()
	r.tracer.AddAttribute(txn, "as_of", asOf.Format(time.RFC3339))

	result := &PassResult{AsOf: asOf}

	if r.locker != nil {
		release, acquired, err := r.locker.AcquirePassLock(ctx, PassLockKey(asOf), r.opts.LockTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Failed to acquire recurrence pass lock, running unguarded")
		case !acquired:
			log.Info().Time("as_of", asOf).Msg("Another recurrence pass holds the lock, skipping")
			result.Locked = true
			r.metrics.RecordPass(0, 0, 0, true, time.Since(start))
			return result, nil
		default:
			defer release()
		}
	}

	span := r.tracer.StartSpan("find-due-templates", txn)
	due, err := r.finder.FindDue(ctx, asOf)
	span.End()
	if err != nil {
		r.tracer.RecordError(txn, err)
		return nil, err
	}

	log.Info().
		Time("as_of", asOf).
		Int("due", len(due)).
		Str("catch_up", string(r.opts.CatchUp)).
		Msg("Starting recurrence pass")

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)

	for i := range due {
		template := &due[i]
		g.Go(func() error {
			generated, skipped, numbers, err := r.runSeed(ctx, template, asOf)

			mu.Lock()
			defer mu.Unlock()
			result.Generated += generated
			result.Skipped += skipped
			result.Numbers = append(result.Numbers, numbers...)
			if err != nil {
				result.Failures = append(result.Failures, Failure{SeedID: template.ID, Err: err})
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range result.Failures {
		r.tracer.RecordError(txn, f.Err)
	}
	r.metrics.RecordPass(result.Generated, result.Skipped, len(result.Failures), false, time.Since(start))

	log.Info().
		Time("as_of", asOf).
		Int("generated", result.Generated).
		Int("skipped", result.Skipped).
		Int("failures", len(result.Failures)).
		Dur("duration", time.Since(start)).
		Msg("Recurrence pass finished")

	return result, nil
}

// runSeed materializes one template: once under CatchUpLatest, and under
// CatchUpBackfill until it is caught up or the backfill limit is reached.
func (r *Runner) runSeed(ctx context.Context, template *models.RecurrenceTemplate, asOf time.Time) (generated, skipped int, numbers []string, err error) {
	attempts := 1
	if r.opts.CatchUp == CatchUpBackfill {
		attempts = r.opts.BackfillLimit
	}

	for i := 0; i < attempts; i++ {
		if template.Terminal() || template.NextRunAt.After(asOf) {
			break
		}

		invoice, err := r.materializer.Materialize(ctx, template, asOf)
		switch {
		case err == nil:
			generated++
			numbers = append(numbers, invoice.Number)
		case stderrors.Is(err, ErrOccurrenceAlreadyGenerated), stderrors.Is(err, ErrNotDue), stderrors.Is(err, ErrTerminal):
			log.Debug().Str("seed_id", template.ID.String()).Err(err).Msg("Skipping recurrence template")
			skipped++
			return generated, skipped, numbers, nil
		default:
			log.Error().
				Err(err).
				Str("seed_id", template.ID.String()).
				Msg("Failed to materialize recurring invoice")
			return generated, skipped, numbers, err
		}
	}

	if r.opts.CatchUp == CatchUpBackfill && !template.Terminal() && !template.NextRunAt.After(asOf) {
		log.Warn().
			Str("seed_id", template.ID.String()).
			Int("limit", r.opts.BackfillLimit).
			Msg("Backfill limit reached, remaining occurrences wait for the next pass")
	}

	return generated, skipped, numbers, nil
}

// PassLockKey names the lock for passes at asOf's date
func PassLockKey(asOf time.Time) string {
	return "recurrence:pass:" + asOf.UTC().Format("2006-01-02")
}
