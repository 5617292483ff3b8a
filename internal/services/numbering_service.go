package services

import (
	"context"
	"time"

	"example.com/backstage/invoicing/internal/metrics"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/numbering"
	"example.com/backstage/invoicing/internal/tracing"
)

// NumberingService is the allocateNumber entry point. It also satisfies
// numbering.Allocator so every caller is measured the same way.
type NumberingService struct {
	allocator numbering.Allocator
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
}

// NewNumberingService creates a new numbering service
func NewNumberingService(allocator numbering.Allocator, collector *metrics.Metrics, tracer tracing.Tracer) *NumberingService {
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}
	return &NumberingService{
		allocator: allocator,
		metrics:   collector,
		tracer:    tracer,
	}
}

// AllocateNumber reserves the next document number for docType in the
// fiscal year containing date
func (s *NumberingService) AllocateNumber(ctx context.Context, docType models.DocumentType, date time.Time) (string, error) {
	span := s.tracer.StartSpan("allocate-number", tracing.FromContext(ctx))
	defer span.End()

	start := time.Now()
	number, err := s.allocator.Next(ctx, docType, date)
	s.metrics.RecordTimer(metrics.NumberAllocation, time.Since(start))
	s.metrics.RecordOutcome(metrics.NumberAllocation, err)
	if err != nil {
		return "", err
	}

	s.metrics.IncrementCounter(metrics.NumbersAllocated)
	return number, nil
}

// Next implements numbering.Allocator
func (s *NumberingService) Next(ctx context.Context, docType models.DocumentType, referenceDate time.Time) (string, error) {
	return s.AllocateNumber(ctx, docType, referenceDate)
}
