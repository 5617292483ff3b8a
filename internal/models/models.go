package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DocumentType scopes a number sequence
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "invoice"
	DocumentTypeQuote   DocumentType = "quote"
)

// Timestamps is embedded in every persisted entity and maintained by gorm on save
type Timestamps struct {
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Archivable marks an entity as soft-deletable; archived rows drop out of default queries
type Archivable struct {
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// NumberSequence is the durable counter behind document numbers
type NumberSequence struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentType DocumentType `gorm:"size:32;not null;uniqueIndex:ux_number_sequences_type_year,priority:1" json:"document_type"`
	Year         int          `gorm:"column:fiscal_year;not null;uniqueIndex:ux_number_sequences_type_year,priority:2" json:"year"`
	NextValue    int64        `gorm:"not null;check:chk_number_sequences_next_value,next_value >= 1" json:"next_value"`
	Timestamps
}

// User is an account that can sign in to the backoffice
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Timestamps
	Archivable
}

// Customer is the party documents are addressed to
type Customer struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string    `gorm:"size:255;not null" json:"name"`
	Email   string    `gorm:"size:255" json:"email"`
	Address string    `gorm:"size:1024" json:"address"`
	VATID   string    `gorm:"column:vat_id;size:64" json:"vat_id"`
	Timestamps
	Archivable
}

// QuoteStatus tracks where a quote is in its lifecycle
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "draft"
	QuoteStatusSent      QuoteStatus = "sent"
	QuoteStatusAccepted  QuoteStatus = "accepted"
	QuoteStatusConverted QuoteStatus = "converted"
)

// Quote is an offer that can be turned into an invoice
type Quote struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Number     string          `gorm:"size:64;not null;uniqueIndex" json:"number"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Status     QuoteStatus     `gorm:"size:32;not null" json:"status"`
	IssueDate  time.Time       `gorm:"not null" json:"issue_date"`
	ValidUntil time.Time       `gorm:"not null" json:"valid_until"`
	Currency   string          `gorm:"size:3;not null" json:"currency"`
	NetTotal   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"net_total"`
	TaxTotal   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"tax_total"`
	GrossTotal decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"gross_total"`
	InvoiceID  *uuid.UUID      `gorm:"type:uuid" json:"invoice_id"`
	Lines      []QuoteLine     `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"lines"`
	Timestamps
	Archivable
}

// QuoteLine is one priced position on a quote
type QuoteLine struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuoteID  uuid.UUID `gorm:"type:uuid;not null;index" json:"quote_id"`
	Position int       `gorm:"not null" json:"position"`
	LineAmounts
}

// InvoiceStatus tracks where an invoice is in its lifecycle
type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusPaid   InvoiceStatus = "paid"
	InvoiceStatusVoid   InvoiceStatus = "void"
)

// Invoice is a numbered, point-in-time billing document
type Invoice struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Number     string          `gorm:"size:64;not null;uniqueIndex" json:"number"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Status     InvoiceStatus   `gorm:"size:32;not null" json:"status"`
	IssueDate  time.Time       `gorm:"not null" json:"issue_date"`
	DueDate    time.Time       `gorm:"not null" json:"due_date"`
	Currency   string          `gorm:"size:3;not null" json:"currency"`
	NetTotal   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"net_total"`
	TaxTotal   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"tax_total"`
	GrossTotal decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"gross_total"`
	QuoteID    *uuid.UUID      `gorm:"type:uuid" json:"quote_id,omitempty"`
	// RecurrenceTemplateID and OccurrenceAt identify the generated occurrence;
	// the pair is unique so one occurrence can never produce two invoices.
	RecurrenceTemplateID *uuid.UUID           `gorm:"type:uuid;uniqueIndex:ux_invoices_template_occurrence,priority:1" json:"recurrence_template_id,omitempty"`
	OccurrenceAt         *time.Time           `gorm:"uniqueIndex:ux_invoices_template_occurrence,priority:2" json:"occurrence_at,omitempty"`
	Lines                []InvoiceLine        `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"lines"`
	Installments         []InvoiceInstallment `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
	Timestamps
	Archivable
}

// InvoiceLine is a copied, immutable line on an invoice
type InvoiceLine struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID uuid.UUID `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position  int       `gorm:"not null" json:"position"`
	LineAmounts
}

// InvoiceInstallment is one scheduled partial payment of an invoice
type InvoiceInstallment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Sequence  int             `gorm:"not null" json:"sequence"`
	DueDate   time.Time       `gorm:"not null" json:"due_date"`
	Amount    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&NumberSequence{},
		&User{},
		&Customer{},
		&Quote{},
		&QuoteLine{},
		&RecurrenceTemplate{},
		&TemplateLine{},
		&TemplateInstallment{},
		&Invoice{},
		&InvoiceLine{},
		&InvoiceInstallment{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
