package services

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/invoicing/internal/metrics"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/numbering"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) Next(ctx context.Context, docType models.DocumentType, referenceDate time.Time) (string, error) {
	args := m.Called(ctx, docType, referenceDate)
	return args.String(0), args.Error(1)
}

func TestAllocateNumberRecordsMetrics(t *testing.T) {
	allocator := new(MockAllocator)
	collector := metrics.NewMetrics()
	service := NewNumberingService(allocator, collector, nil)

	date := day(2026, 4, 2)
	allocator.On("Next", mock.Anything, models.DocumentTypeInvoice, date).Return("INV-2026-000042", nil).Once()
	allocator.On("Next", mock.Anything, models.DocumentType("credit_note"), date).
		Return("", errors.Wrap(numbering.ErrUnknownDocumentType, `"credit_note"`)).Once()

	number, err := service.AllocateNumber(context.Background(), models.DocumentTypeInvoice, date)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000042", number)

	_, err = service.AllocateNumber(context.Background(), models.DocumentType("credit_note"), date)
	assert.ErrorIs(t, err, numbering.ErrUnknownDocumentType)

	assert.Equal(t, int64(1), collector.GetCounters()[metrics.NumbersAllocated])
	rates := collector.GetErrorRates()[metrics.NumberAllocation]
	assert.Equal(t, int64(2), rates.Total)
	assert.Equal(t, int64(1), rates.Errors)
	allocator.AssertExpectations(t)
}

func TestNumberingServiceIsAnAllocator(t *testing.T) {
	var _ numbering.Allocator = (*NumberingService)(nil)

	env := newTestEnv(t)
	first, err := env.numbers.Next(context.Background(), models.DocumentTypeQuote, day(2026, 1, 1))
	require.NoError(t, err)
	second, err := env.numbers.AllocateNumber(context.Background(), models.DocumentTypeQuote, day(2026, 12, 31))
	require.NoError(t, err)
	next, err := env.numbers.AllocateNumber(context.Background(), models.DocumentTypeQuote, day(2027, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, "QUO-2026-000001", first)
	assert.Equal(t, "QUO-2026-000002", second)
	assert.Equal(t, "QUO-2027-000001", next)
}
