package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/database"
	"example.com/backstage/invoicing/internal/metrics"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/numbering"
	"example.com/backstage/invoicing/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	metrics   *metrics.Metrics
	sequences *repositories.SequenceRepository
	numbers   *NumberingService
	customers *CustomerService
	invoices  *InvoiceService
	quotes    *QuoteService
	templates *TemplateService
	users     *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "services.db")
	db, readOnlyDB, err := database.Open(config.DatabaseConfig{DSN: dsn, AutoMigrate: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	collector := metrics.NewMetrics()
	sequences := repositories.NewSequenceRepository(db)
	allocator := numbering.NewDocumentNumberAllocator(sequences, config.NumberingConfig{
		FiscalYearStartMonth: 1,
		Formats: map[string]config.DocumentFormat{
			"invoice": {Prefix: "INV", Padding: 6},
			"quote":   {Prefix: "QUO", Padding: 6},
		},
	})

	numbers := NewNumberingService(allocator, collector, nil)
	customers := NewCustomerService(db, readOnlyDB, nil)
	invoices := NewInvoiceService(db, readOnlyDB, customers, numbers, nil, nil, nil)
	users := NewUserService(db, readOnlyDB)
	users.cost = 4

	return &testEnv{
		db:        db,
		metrics:   collector,
		sequences: sequences,
		numbers:   numbers,
		customers: customers,
		invoices:  invoices,
		quotes:    NewQuoteService(db, readOnlyDB, customers, numbers, invoices, nil),
		templates: NewTemplateService(db, readOnlyDB, customers),
		users:     users,
	}
}

func (e *testEnv) customer(t *testing.T) *models.Customer {
	t.Helper()
	c := &models.Customer{Name: "Acme GmbH", Email: "billing@acme.test"}
	require.NoError(t, e.customers.CreateCustomer(context.Background(), c))
	return c
}

func line(t *testing.T, desc string, qty, rate, tax int64) models.LineAmounts {
	t.Helper()
	l, err := models.NewLineAmounts(desc, decimal.NewFromInt(qty), decimal.NewFromInt(rate), decimal.NewFromInt(tax))
	require.NoError(t, err)
	return l
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
