package services

import (
	"context"
	"time"

	"example.com/backstage/invoicing/internal/messaging"
	"example.com/backstage/invoicing/internal/recurrence"
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PassRunner runs one recurrence pass
type PassRunner interface {
	RunRecurrencePass(ctx context.Context, asOf time.Time) (*recurrence.PassResult, error)
}

// RecurrenceService is the runRecurrencePass entry point shared by the API,
// the CLI and the command consumer
type RecurrenceService struct {
	runner PassRunner
	tracer tracing.Tracer
}

// NewRecurrenceService creates a new recurrence service
func NewRecurrenceService(runner PassRunner, tracer tracing.Tracer) *RecurrenceService {
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}
	return &RecurrenceService{
		runner: runner,
		tracer: tracer,
	}
}

// RunRecurrencePass materializes every occurrence due at asOf
func (s *RecurrenceService) RunRecurrencePass(ctx context.Context, asOf time.Time) (*recurrence.PassResult, error) {
	ctx, txn, end := tracing.JoinOrStart(ctx, s.tracer, "recurrence-pass")
	defer end()
	s.tracer.AddAttribute(txn, "as_of", asOf.UTC().Format(time.RFC3339))

	result, err := s.runner.RunRecurrencePass(ctx, asOf)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.tracer.AddAttribute(txn, "generated", result.Generated)
	s.tracer.AddAttribute(txn, "failures", len(result.Failures))
	return result, nil
}

// HandleCommand is the messaging.Handler for queued pass requests. Per-template
// failures are reported in the pass result and do not fail the command; only a
// pass that could not run at all is handed back for redelivery.
func (s *RecurrenceService) HandleCommand(ctx context.Context, cmd messaging.Command) error {
	if cmd.Type != messaging.CommandRunRecurrence {
		return errors.Wrapf(messaging.ErrUnknownCommand, "%q", cmd.Type)
	}

	asOf := cmd.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	result, err := s.RunRecurrencePass(ctx, asOf)
	if err != nil {
		return errors.Wrapf(err, "recurrence pass for command %s", cmd.ID)
	}

	log.Info().
		Str("command_id", cmd.ID).
		Str("source", cmd.Source).
		Int("generated", result.Generated).
		Int("skipped", result.Skipped).
		Int("failures", len(result.Failures)).
		Bool("locked", result.Locked).
		Msg("Recurrence command handled")
	return nil
}
