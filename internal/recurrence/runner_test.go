package recurrence

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/invoicing/internal/metrics"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDueFinder struct {
	mock.Mock
}

func (m *MockDueFinder) FindDue(ctx context.Context, asOf time.Time) ([]models.RecurrenceTemplate, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).([]models.RecurrenceTemplate), args.Error(1)
}

type MockSeedMaterializer struct {
	mock.Mock
}

func (m *MockSeedMaterializer) Materialize(ctx context.Context, template *models.RecurrenceTemplate, asOf time.Time) (*models.Invoice, error) {
	args := m.Called(ctx, template, asOf)
	invoice, _ := args.Get(0).(*models.Invoice)
	return invoice, args.Error(1)
}

type MockPassLocker struct {
	mock.Mock
}

func (m *MockPassLocker) AcquirePassLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	args := m.Called(ctx, key, ttl)
	release, _ := args.Get(0).(func())
	return release, args.Bool(1), args.Error(2)
}

func dueTemplate(next time.Time) models.RecurrenceTemplate {
	tmpl := monthlyTemplate(next)
	tmpl.ID = uuid.New()
	return *tmpl
}

func seedID(id uuid.UUID) interface{} {
	return mock.MatchedBy(func(t *models.RecurrenceTemplate) bool { return t.ID == id })
}

func TestRunRecurrencePassContinuesPastFailures(t *testing.T) {
	asOf := day(2026, 1, 15)
	first, broken, third := dueTemplate(asOf), dueTemplate(asOf), dueTemplate(asOf)

	finder := new(MockDueFinder)
	finder.On("FindDue", mock.Anything, asOf).Return([]models.RecurrenceTemplate{first, broken, third}, nil)

	materializer := new(MockSeedMaterializer)
	materializer.On("Materialize", mock.Anything, seedID(first.ID), asOf).Return(&models.Invoice{Number: "INV-2026-000001"}, nil)
	materializer.On("Materialize", mock.Anything, seedID(broken.ID), asOf).Return(nil, errors.New("customer archived"))
	materializer.On("Materialize", mock.Anything, seedID(third.ID), asOf).Return(&models.Invoice{Number: "INV-2026-000002"}, nil)

	collector := metrics.NewMetrics()
	runner := NewRunner(finder, materializer, nil, RunnerOptions{}, collector, nil)

	result, err := runner.RunRecurrencePass(context.Background(), asOf)
	require.NoError(t, err)

	require.Equal(t, 2, result.Generated)
	require.ElementsMatch(t, []string{"INV-2026-000001", "INV-2026-000002"}, result.Numbers)
	require.Len(t, result.Failures, 1)
	require.Equal(t, broken.ID, result.Failures[0].SeedID)
	require.EqualError(t, result.Failures[0].Err, "customer archived")
	require.Equal(t, int64(1), collector.GetCounters()[metrics.RecurrenceFailures])

	materializer.AssertExpectations(t)
}

func TestRunRecurrencePassCountsAlreadyGeneratedAsSkipped(t *testing.T) {
	asOf := day(2026, 1, 15)
	seed := dueTemplate(asOf)

	finder := new(MockDueFinder)
	finder.On("FindDue", mock.Anything, asOf).Return([]models.RecurrenceTemplate{seed}, nil)
	materializer := new(MockSeedMaterializer)
	materializer.On("Materialize", mock.Anything, mock.Anything, asOf).Return(nil, ErrOccurrenceAlreadyGenerated)

	result, err := NewRunner(finder, materializer, nil, RunnerOptions{}, nil, nil).RunRecurrencePass(context.Background(), asOf)
	require.NoError(t, err)
	require.Zero(t, result.Generated)
	require.Equal(t, 1, result.Skipped)
	require.Empty(t, result.Failures)
}

func TestRunRecurrencePassIgnoresCancellation(t *testing.T) {
	asOf := day(2026, 1, 15)
	seed := dueTemplate(asOf)

	finder := new(MockDueFinder)
	finder.On("FindDue", mock.Anything, asOf).Return([]models.RecurrenceTemplate{seed}, nil)
	materializer := new(MockSeedMaterializer)
	materializer.On("Materialize", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything, asOf).
		Return(&models.Invoice{Number: "INV-2026-000001"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(finder, materializer, nil, RunnerOptions{}, nil, nil).RunRecurrencePass(ctx, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)
}

func TestRunRecurrencePassReturnsFinderError(t *testing.T) {
	finder := new(MockDueFinder)
	finder.On("FindDue", mock.Anything, mock.Anything).Return([]models.RecurrenceTemplate(nil), errors.New("db down"))

	_, err := NewRunner(finder, new(MockSeedMaterializer), nil, RunnerOptions{}, nil, nil).RunRecurrencePass(context.Background(), day(2026, 1, 15))
	require.EqualError(t, err, "db down")
}

func TestRunRecurrencePassSkipsWhenLockHeld(t *testing.T) {
	asOf := day(2026, 1, 15)
	locker := new(MockPassLocker)
	locker.On("AcquirePassLock", mock.Anything, "recurrence:pass:2026-01-15", 30*time.Minute).Return(nil, false, nil)

	finder := new(MockDueFinder)
	result, err := NewRunner(finder, new(MockSeedMaterializer), locker, RunnerOptions{}, nil, nil).RunRecurrencePass(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, result.Locked)
	finder.AssertNotCalled(t, "FindDue", mock.Anything, mock.Anything)
}

func TestRunRecurrencePassReleasesLock(t *testing.T) {
	asOf := day(2026, 1, 15)
	released := false

	locker := new(MockPassLocker)
	locker.On("AcquirePassLock", mock.Anything, mock.Anything, mock.Anything).Return(func() { released = true }, true, nil)
	finder := new(MockDueFinder)
	finder.On("FindDue", mock.Anything, asOf).Return([]models.RecurrenceTemplate{}, nil)

	_, err := NewRunner(finder, new(MockSeedMaterializer), locker, RunnerOptions{}, nil, nil).RunRecurrencePass(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, released)
}

func TestRunRecurrencePassRunsSeedsInParallel(t *testing.T) {
	asOf := day(2026, 1, 15)
	var seeds []models.RecurrenceTemplate
	for i := 0; i < 20; i++ {
		seeds = append(seeds, dueTemplate(asOf))
	}

	finder := new(MockDueFinder)
	finder.On("FindDue", mock.Anything, asOf).Return(seeds, nil)
	materializer := new(MockSeedMaterializer)
	materializer.On("Materialize", mock.Anything, mock.Anything, asOf).Return(&models.Invoice{Number: "INV"}, nil)

	result, err := NewRunner(finder, materializer, nil, RunnerOptions{Workers: 4}, nil, nil).RunRecurrencePass(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 20, result.Generated)
	materializer.AssertNumberOfCalls(t, "Materialize", 20)
}

type countingTracer struct {
	*tracing.NewRelicTracer
	started int
}

func (c *countingTracer) StartTransaction(name string) *newrelic.Transaction {
	c.started++
	return &newrelic.Transaction{}
}

func TestRunRecurrencePassJoinsCallerTransaction(t *testing.T) {
	asOf := day(2026, 1, 15)
	outer := &newrelic.Transaction{}

	var carried *newrelic.Transaction
	finder := new(MockDueFinder)
	finder.On("FindDue", mock.Anything, asOf).
		Run(func(args mock.Arguments) {
			carried = tracing.FromContext(args.Get(0).(context.Context))
		}).
		Return([]models.RecurrenceTemplate{}, nil)

	tracer := &countingTracer{NewRelicTracer: tracing.NewNoopTracer()}
	runner := NewRunner(finder, new(MockSeedMaterializer), nil, RunnerOptions{}, nil, tracer)

	_, err := runner.RunRecurrencePass(tracing.NewContext(context.Background(), outer), asOf)
	require.NoError(t, err)
	require.Same(t, outer, carried)
	require.Zero(t, tracer.started)

	_, err = runner.RunRecurrencePass(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, tracer.started)
}
