package dto

import (
	"encoding/json"
	"testing"
	"time"

	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/recurrence"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(body), v))
}

func TestCreateInvoiceRequest(t *testing.T) {
	customerID := uuid.New()
	var req CreateInvoiceRequest
	decode(t, `{
		"customer_id": "`+customerID.String()+`",
		"issue_date": "2026-03-05",
		"currency": "EUR",
		"payment_term_days": 14,
		"lines": [{"description": "Workshop", "quantity": "2", "rate": "800", "tax_rate": "19"}],
		"installments": [{"percentage": "50", "offset_days": 0}, {"percentage": "50", "offset_days": 30}]
	}`, &req)

	require.NoError(t, req.Validate())
	params, err := req.ToInvoiceParams()
	require.NoError(t, err)
	assert.Equal(t, customerID, params.CustomerID)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), params.IssueDate)
	require.Len(t, params.Lines, 1)
	assert.Equal(t, "304", params.Lines[0].Tax.String())
	assert.Len(t, params.Installments, 2)
}

func TestCreateInvoiceRequestValidation(t *testing.T) {
	var req CreateInvoiceRequest
	decode(t, `{"customer_id": "nope", "currency": "eur", "lines": []}`, &req)

	err := req.Validate()
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	assert.ElementsMatch(t, []string{"CustomerID", "Currency", "Lines"}, fields)
}

func TestLinePricingErrorsSurfaceOnConversion(t *testing.T) {
	var req CreateInvoiceRequest
	decode(t, `{
		"customer_id": "`+uuid.NewString()+`",
		"currency": "EUR",
		"lines": [{"description": "Refund", "quantity": "-1", "rate": "10", "tax_rate": "0"}]
	}`, &req)

	require.NoError(t, req.Validate())
	_, err := req.ToInvoiceParams()
	assert.ErrorIs(t, err, models.ErrInvalidLine)
}

func TestCreateTemplateRequest(t *testing.T) {
	var req CreateTemplateRequest
	decode(t, `{
		"customer_id": "`+uuid.NewString()+`",
		"name": "Retainer",
		"currency": "EUR",
		"unit": "monthly",
		"interval": 1,
		"anchor_date": "2026-01-31",
		"end_strategy": "after_count",
		"max_occurrences": 12,
		"lines": [{"description": "Retainer", "quantity": "1", "rate": "1000", "tax_rate": "19"}]
	}`, &req)

	require.NoError(t, req.Validate())
	params, err := req.ToTemplateParams()
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyMonthly, params.Unit)
	require.NotNil(t, params.MaxOccurrences)
	assert.Equal(t, 12, *params.MaxOccurrences)
	assert.Nil(t, params.EndDate)

	req.EndStrategy = "on_date"
	assert.Error(t, req.Validate())

	req.EndDate = "2026-12-31"
	require.NoError(t, req.Validate())

	req.Unit = "hourly"
	assert.Error(t, req.Validate())
}

func TestAllocateNumberRequest(t *testing.T) {
	req := AllocateNumberRequest{DocumentType: "invoice", Date: "2026-07-01"}
	require.NoError(t, req.Validate())
	docType, date, err := req.ToAllocation()
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTypeInvoice, docType)
	assert.Equal(t, 2026, date.Year())

	req.Date = "01/07/2026"
	assert.Error(t, req.Validate())

	req = AllocateNumberRequest{DocumentType: "quote"}
	_, date, err = req.ToAllocation()
	require.NoError(t, err)
	assert.False(t, date.IsZero())
}

func TestRunRecurrenceRequest(t *testing.T) {
	asOf, err := (&RunRecurrenceRequest{AsOf: "2026-05-01"}).ToAsOf()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), asOf)

	asOf, err = (&RunRecurrenceRequest{AsOf: "2026-05-01T10:30:00+02:00"}).ToAsOf()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC), asOf)

	_, err = (&RunRecurrenceRequest{AsOf: "yesterday"}).ToAsOf()
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNewPassResultResponse(t *testing.T) {
	seed := uuid.New()
	resp := NewPassResultResponse(&recurrence.PassResult{
		Generated: 1,
		Numbers:   []string{"INV-2026-000001"},
		Failures:  []recurrence.Failure{{SeedID: seed, Err: errors.New("no lines")}},
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"seed_id":"`+seed.String()+`"`)
	assert.Contains(t, string(raw), `"error":"no lines"`)

	empty := NewPassResultResponse(&recurrence.PassResult{})
	assert.NotNil(t, empty.Numbers)
	assert.NotNil(t, empty.Failures)
}
