package numbering

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSequenceStore struct {
	mock.Mock
}

func (m *MockSequenceStore) Reserve(ctx context.Context, docType models.DocumentType, year int) (int64, error) {
	args := m.Called(ctx, docType, year)
	return args.Get(0).(int64), args.Error(1)
}

func testConfig(startMonth int) config.NumberingConfig {
	return config.NumberingConfig{
		FiscalYearStartMonth: startMonth,
		Formats: map[string]config.DocumentFormat{
			"invoice": {Prefix: "INV", Padding: 6},
			"quote":   {Prefix: "QUO", Padding: 6},
		},
	}
}

func TestNextFormatsNumber(t *testing.T) {
	store := new(MockSequenceStore)
	store.On("Reserve", mock.Anything, models.DocumentTypeInvoice, 2026).Return(int64(1), nil).Once()
	store.On("Reserve", mock.Anything, models.DocumentTypeQuote, 2026).Return(int64(42), nil).Once()

	allocator := NewDocumentNumberAllocator(store, testConfig(1))
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	number, err := allocator.Next(context.Background(), models.DocumentTypeInvoice, date)
	require.NoError(t, err)
	require.Equal(t, "INV-2026-000001", number)

	number, err = allocator.Next(context.Background(), models.DocumentTypeQuote, date)
	require.NoError(t, err)
	require.Equal(t, "QUO-2026-000042", number)

	store.AssertExpectations(t)
}

func TestNextUsesFiscalYear(t *testing.T) {
	store := new(MockSequenceStore)
	store.On("Reserve", mock.Anything, models.DocumentTypeInvoice, 2025).Return(int64(7), nil).Once()

	allocator := NewDocumentNumberAllocator(store, testConfig(4))

	number, err := allocator.Next(context.Background(), models.DocumentTypeInvoice, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "INV-2025-000007", number)

	store.AssertExpectations(t)
}

func TestNextPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := new(MockSequenceStore)
	store.On("Reserve", mock.Anything, models.DocumentTypeInvoice, 2026).Return(int64(0), storeErr)

	allocator := NewDocumentNumberAllocator(store, testConfig(1))

	_, err := allocator.Next(context.Background(), models.DocumentTypeInvoice, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	require.True(t, errors.Is(err, storeErr))
}

func TestNextRejectsUnknownType(t *testing.T) {
	allocator := NewDocumentNumberAllocator(new(MockSequenceStore), testConfig(1))

	_, err := allocator.Next(context.Background(), models.DocumentType("receipt"), time.Now())
	require.True(t, errors.Is(err, ErrUnknownDocumentType))
}

func TestFiscalYear(t *testing.T) {
	require.Equal(t, 2026, FiscalYear(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.January))
	require.Equal(t, 2026, FiscalYear(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), time.January))
	require.Equal(t, 2025, FiscalYear(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), time.July))
	require.Equal(t, 2026, FiscalYear(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), time.July))
}

func TestFormatNumberKeepsWideValues(t *testing.T) {
	require.Equal(t, "INV-2026-1234567", FormatNumber(Format{Prefix: "INV", Padding: 6}, 2026, 1234567))
}
