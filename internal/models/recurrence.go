package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidSchedule is returned when a recurrence configuration can never run correctly
var ErrInvalidSchedule = errors.New("invalid recurrence schedule")

// FrequencyUnit is the calendar unit a recurrence steps by
type FrequencyUnit string

const (
	FrequencyDaily   FrequencyUnit = "daily"
	FrequencyWeekly  FrequencyUnit = "weekly"
	FrequencyMonthly FrequencyUnit = "monthly"
	FrequencyYearly  FrequencyUnit = "yearly"
)

// EndStrategy decides when a recurrence stops producing invoices
type EndStrategy string

const (
	EndNever      EndStrategy = "never"
	EndOnDate     EndStrategy = "on_date"
	EndAfterCount EndStrategy = "after_count"
)

// RecurrenceTemplate (a "seed") periodically materializes invoices.
//
// NextRunAt is the occurrence that has to be generated next, or nil once the
// end strategy is satisfied. It always equals the anchor advanced by
// ScheduleIndex*Interval units, so month-end clamping never accumulates.
type RecurrenceTemplate struct {
	ID              uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID      uuid.UUID             `gorm:"type:uuid;not null;index" json:"customer_id"`
	Name            string                `gorm:"size:255;not null" json:"name"`
	Currency        string                `gorm:"size:3;not null" json:"currency"`
	Unit            FrequencyUnit         `gorm:"size:16;not null" json:"unit"`
	Interval        int                   `gorm:"column:interval_count;not null;check:chk_recurrence_templates_interval,interval_count >= 1" json:"interval"`
	AnchorDate      time.Time             `gorm:"not null" json:"anchor_date"`
	EndStrategy     EndStrategy           `gorm:"size:16;not null" json:"end_strategy"`
	EndDate         *time.Time            `json:"end_date,omitempty"`
	MaxOccurrences  *int                  `json:"max_occurrences,omitempty"`
	OccurrenceCount int                   `gorm:"not null;default:0" json:"occurrence_count"`
	ScheduleIndex   int                   `gorm:"not null;default:0" json:"schedule_index"`
	NextRunAt       *time.Time            `gorm:"index" json:"next_run_at"`
	LastRunAt       *time.Time            `json:"last_run_at,omitempty"`
	PaymentTermDays int                   `gorm:"not null;default:0" json:"payment_term_days"`
	Lines           []TemplateLine        `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"lines"`
	Installments    []TemplateInstallment `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
	Timestamps
	Archivable
}

// Terminal reports whether the template will never produce another invoice
func (t *RecurrenceTemplate) Terminal() bool {
	return t.NextRunAt == nil
}

// InstallmentTerms converts the stored plan into pricing terms
func (t *RecurrenceTemplate) InstallmentTerms() []InstallmentTerm {
	terms := make([]InstallmentTerm, len(t.Installments))
	for i, inst := range t.Installments {
		terms[i] = InstallmentTerm{Percentage: inst.Percentage, OffsetDays: inst.OffsetDays}
	}
	return terms
}

// TemplateLine is the line configuration copied onto each generated invoice
type TemplateLine struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID uuid.UUID `gorm:"type:uuid;not null;index" json:"template_id"`
	Position   int       `gorm:"not null" json:"position"`
	LineAmounts
}

// TemplateInstallment is one step of a template's installment plan
type TemplateInstallment struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID uuid.UUID       `gorm:"type:uuid;not null;index" json:"template_id"`
	Sequence   int             `gorm:"not null" json:"sequence"`
	Percentage decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"percentage"`
	OffsetDays int             `gorm:"not null" json:"offset_days"`
}

// TemplateParams is everything needed to set up a recurrence template
type TemplateParams struct {
	CustomerID      uuid.UUID
	Name            string
	Currency        string
	Unit            FrequencyUnit
	Interval        int
	AnchorDate      time.Time
	EndStrategy     EndStrategy
	EndDate         *time.Time
	MaxOccurrences  *int
	PaymentTermDays int
	Lines           []LineAmounts
	Installments    []InstallmentTerm
}

// NewRecurrenceTemplate builds a template whose first occurrence is the anchor.
// Malformed configuration is rejected here so the scheduler never sees it.
func NewRecurrenceTemplate(p TemplateParams) (*RecurrenceTemplate, error) {
	switch p.Unit {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return nil, errors.Wrapf(ErrInvalidSchedule, "unknown frequency unit %q", p.Unit)
	}
	if p.Interval < 1 {
		return nil, errors.Wrap(ErrInvalidSchedule, "interval must be at least 1")
	}
	if p.AnchorDate.IsZero() {
		return nil, errors.Wrap(ErrInvalidSchedule, "anchor date is required")
	}
	if p.PaymentTermDays < 0 {
		return nil, errors.Wrap(ErrInvalidSchedule, "payment terms must not be negative")
	}
	if len(p.Lines) == 0 {
		return nil, errors.Wrap(ErrInvalidSchedule, "at least one line is required")
	}

	anchor := p.AnchorDate.UTC()
	t := &RecurrenceTemplate{
		CustomerID:      p.CustomerID,
		Name:            p.Name,
		Currency:        p.Currency,
		Unit:            p.Unit,
		Interval:        p.Interval,
		AnchorDate:      anchor,
		EndStrategy:     p.EndStrategy,
		PaymentTermDays: p.PaymentTermDays,
		NextRunAt:       &anchor,
	}

	switch p.EndStrategy {
	case EndNever:
	case EndOnDate:
		if p.EndDate == nil {
			return nil, errors.Wrap(ErrInvalidSchedule, "end date is required for on_date")
		}
		end := p.EndDate.UTC()
		if end.Before(anchor) {
			return nil, errors.Wrap(ErrInvalidSchedule, "end date is before the anchor date")
		}
		t.EndDate = &end
	case EndAfterCount:
		if p.MaxOccurrences == nil || *p.MaxOccurrences < 1 {
			return nil, errors.Wrap(ErrInvalidSchedule, "after_count needs at least one occurrence")
		}
		n := *p.MaxOccurrences
		t.MaxOccurrences = &n
	default:
		return nil, errors.Wrapf(ErrInvalidSchedule, "unknown end strategy %q", p.EndStrategy)
	}

	// Run the plan once against a nominal total so a broken plan fails now.
	if _, err := ScheduleInstallments(anchor, hundred, p.Installments); err != nil {
		return nil, err
	}

	for i, l := range p.Lines {
		t.Lines = append(t.Lines, TemplateLine{Position: i + 1, LineAmounts: l})
	}
	for i, term := range p.Installments {
		t.Installments = append(t.Installments, TemplateInstallment{
			Sequence:   i + 1,
			Percentage: term.Percentage,
			OffsetDays: term.OffsetDays,
		})
	}

	return t, nil
}
