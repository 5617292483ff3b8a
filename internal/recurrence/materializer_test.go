package recurrence

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/database"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/numbering"
	"example.com/backstage/invoicing/internal/repositories"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db           *gorm.DB
	templates    *repositories.TemplateRepository
	invoices     *repositories.InvoiceRepository
	engine       *Engine
	materializer *Materializer
	runner       *Runner
}

func newFixture(t *testing.T, policy CatchUpPolicy) *fixture {
	t.Helper()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "recurrence.db")
	db, _, err := database.Open(config.DatabaseConfig{DSN: dsn, AutoMigrate: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	templates := repositories.NewTemplateRepository(db, db)
	invoices := repositories.NewInvoiceRepository(db, db)
	allocator := numbering.NewDocumentNumberAllocator(
		repositories.NewSequenceRepository(db),
		config.NumberingConfig{
			FiscalYearStartMonth: 1,
			Formats: map[string]config.DocumentFormat{
				"invoice": {Prefix: "INV", Padding: 6},
			},
		},
	)

	engine := NewEngine(templates, policy)
	materializer := NewMaterializer(db, engine, templates, invoices, allocator, nil, nil)
	runner := NewRunner(engine, materializer, nil, RunnerOptions{CatchUp: policy, BackfillLimit: 12, Workers: 2}, nil, nil)

	return &fixture{
		db:           db,
		templates:    templates,
		invoices:     invoices,
		engine:       engine,
		materializer: materializer,
		runner:       runner,
	}
}

func (f *fixture) seed(t *testing.T, mutate func(p *models.TemplateParams)) *models.RecurrenceTemplate {
	t.Helper()

	consulting, err := models.NewLineAmounts("Consulting", decimal.NewFromInt(10), decimal.NewFromInt(120), decimal.NewFromInt(19))
	require.NoError(t, err)
	hosting, err := models.NewLineAmounts("Hosting", decimal.NewFromInt(1), decimal.RequireFromString("49.90"), decimal.NewFromInt(19))
	require.NoError(t, err)

	p := models.TemplateParams{
		CustomerID:      uuid.New(),
		Name:            "Monthly retainer",
		Currency:        "EUR",
		Unit:            models.FrequencyMonthly,
		Interval:        1,
		AnchorDate:      day(2026, 1, 15),
		EndStrategy:     models.EndNever,
		PaymentTermDays: 14,
		Lines:           []models.LineAmounts{consulting, hosting},
	}
	if mutate != nil {
		mutate(&p)
	}

	tmpl, err := models.NewRecurrenceTemplate(p)
	require.NoError(t, err)
	require.NoError(t, f.templates.Create(context.Background(), tmpl))
	return tmpl
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.RecurrenceTemplate {
	t.Helper()
	tmpl, err := f.templates.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tmpl
}

func TestRecurrencePassGeneratesNumberedInvoices(t *testing.T) {
	f := newFixture(t, CatchUpLatest)
	seed := f.seed(t, nil)
	ctx := context.Background()

	result, err := f.runner.RunRecurrencePass(ctx, day(2026, 1, 15))
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)
	require.Empty(t, result.Failures)
	require.Equal(t, []string{"INV-2026-000001"}, result.Numbers)

	stored := f.reload(t, seed.ID)
	require.True(t, day(2026, 2, 15).Equal(*stored.NextRunAt))
	require.Equal(t, 1, stored.OccurrenceCount)

	invoice, err := f.invoices.GetByNumber(ctx, "INV-2026-000001")
	require.NoError(t, err)
	require.Equal(t, seed.CustomerID, invoice.CustomerID)
	require.True(t, day(2026, 1, 15).Equal(invoice.IssueDate))
	require.True(t, day(2026, 1, 29).Equal(invoice.DueDate))
	require.Len(t, invoice.Lines, 2)
	require.True(t, decimal.RequireFromString("1249.90").Equal(invoice.NetTotal), invoice.NetTotal.String())
	require.True(t, decimal.RequireFromString("237.48").Equal(invoice.TaxTotal), invoice.TaxTotal.String())
	require.True(t, decimal.RequireFromString("1487.38").Equal(invoice.GrossTotal), invoice.GrossTotal.String())

	result, err = f.runner.RunRecurrencePass(ctx, day(2026, 2, 15))
	require.NoError(t, err)
	require.Equal(t, []string{"INV-2026-000002"}, result.Numbers)
}

func TestRecurrencePassIsIdempotent(t *testing.T) {
	f := newFixture(t, CatchUpLatest)
	seed := f.seed(t, nil)
	ctx := context.Background()

	_, err := f.runner.RunRecurrencePass(ctx, day(2026, 1, 15))
	require.NoError(t, err)

	result, err := f.runner.RunRecurrencePass(ctx, day(2026, 1, 15))
	require.NoError(t, err)
	require.Zero(t, result.Generated)
	require.Empty(t, result.Failures)

	generated, err := f.invoices.ListByTemplate(ctx, seed.ID)
	require.NoError(t, err)
	require.Len(t, generated, 1)
}

func TestConcurrentPassesGenerateOneInvoicePerOccurrence(t *testing.T) {
	f := newFixture(t, CatchUpLatest)
	seed := f.seed(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.runner.RunRecurrencePass(ctx, day(2026, 1, 15))
			assert.NoError(t, err)
			assert.Empty(t, result.Failures)
		}()
	}
	wg.Wait()

	generated, err := f.invoices.ListByTemplate(ctx, seed.ID)
	require.NoError(t, err)
	require.Len(t, generated, 1)
	require.Equal(t, 1, f.reload(t, seed.ID).OccurrenceCount)
}

func TestStaleTemplateIsReportedAsAlreadyGenerated(t *testing.T) {
	f := newFixture(t, CatchUpLatest)
	seed := f.seed(t, nil)
	ctx := context.Background()

	stale := f.reload(t, seed.ID)
	_, err := f.materializer.Materialize(ctx, f.reload(t, seed.ID), day(2026, 1, 15))
	require.NoError(t, err)

	_, err = f.materializer.Materialize(ctx, stale, day(2026, 1, 15))
	require.True(t, errors.Is(err, ErrOccurrenceAlreadyGenerated), "got %v", err)
}

func TestAfterCountTemplateStopsGenerating(t *testing.T) {
	f := newFixture(t, CatchUpLatest)
	limit := 2
	seed := f.seed(t, func(p *models.TemplateParams) {
		p.EndStrategy = models.EndAfterCount
		p.MaxOccurrences = &limit
	})
	ctx := context.Background()

	for _, asOf := range []time.Time{day(2026, 1, 15), day(2026, 2, 15), day(2026, 3, 15)} {
		_, err := f.runner.RunRecurrencePass(ctx, asOf)
		require.NoError(t, err)
	}

	generated, err := f.invoices.ListByTemplate(ctx, seed.ID)
	require.NoError(t, err)
	require.Len(t, generated, 2)
	require.True(t, f.reload(t, seed.ID).Terminal())

	due, err := f.engine.FindDue(ctx, day(2027, 1, 1))
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestLatestCatchUpGeneratesOneInvoiceForMissedPeriods(t *testing.T) {
	f := newFixture(t, CatchUpLatest)
	seed := f.seed(t, nil)
	ctx := context.Background()

	result, err := f.runner.RunRecurrencePass(ctx, day(2026, 4, 20))
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)

	generated, err := f.invoices.ListByTemplate(ctx, seed.ID)
	require.NoError(t, err)
	require.Len(t, generated, 1)
	require.True(t, day(2026, 4, 15).Equal(*generated[0].OccurrenceAt))
	require.True(t, day(2026, 5, 15).Equal(*f.reload(t, seed.ID).NextRunAt))
}

func TestBackfillCatchUpGeneratesEveryMissedOccurrence(t *testing.T) {
	f := newFixture(t, CatchUpBackfill)
	seed := f.seed(t, nil)
	ctx := context.Background()

	result, err := f.runner.RunRecurrencePass(ctx, day(2026, 4, 20))
	require.NoError(t, err)
	require.Equal(t, 4, result.Generated)
	require.Equal(t, []string{"INV-2026-000001", "INV-2026-000002", "INV-2026-000003", "INV-2026-000004"}, result.Numbers)

	generated, err := f.invoices.ListByTemplate(ctx, seed.ID)
	require.NoError(t, err)
	require.Len(t, generated, 4)
	require.True(t, day(2026, 1, 15).Equal(*generated[0].OccurrenceAt))
	require.True(t, day(2026, 4, 15).Equal(*generated[3].OccurrenceAt))
}

func TestGeneratedInvoiceCarriesInstallmentPlan(t *testing.T) {
	f := newFixture(t, CatchUpLatest)
	f.seed(t, func(p *models.TemplateParams) {
		p.Installments = []models.InstallmentTerm{
			{Percentage: decimal.NewFromInt(50), OffsetDays: 0},
			{Percentage: decimal.NewFromInt(50), OffsetDays: 30},
		}
	})
	ctx := context.Background()

	_, err := f.runner.RunRecurrencePass(ctx, day(2026, 1, 15))
	require.NoError(t, err)

	invoice, err := f.invoices.GetByNumber(ctx, "INV-2026-000001")
	require.NoError(t, err)
	require.Len(t, invoice.Installments, 2)
	require.True(t, day(2026, 2, 14).Equal(invoice.DueDate))
	require.True(t, invoice.Installments[0].Amount.Add(invoice.Installments[1].Amount).Equal(invoice.GrossTotal))
}

func TestFindDueBoundary(t *testing.T) {
	f := newFixture(t, CatchUpLatest)
	seed := f.seed(t, nil)
	ctx := context.Background()

	due, err := f.engine.FindDue(ctx, day(2026, 1, 15))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, seed.ID, due[0].ID)

	due, err = f.engine.FindDue(ctx, day(2026, 1, 14))
	require.NoError(t, err)
	require.Empty(t, due)
}
