package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testInvoice() *models.Invoice {
	return &models.Invoice{
		ID:         uuid.MustParse("5f6b1c39-8f3e-4a55-9c4e-0d6f4d0c1a11"),
		Number:     "INV-2026-000001",
		CustomerID: uuid.MustParse("0b7e8a52-8c55-4a40-8d0f-3d0f7d1e9b22"),
		Status:     models.InvoiceStatusIssued,
		IssueDate:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC),
		Currency:   "EUR",
		GrossTotal: decimal.RequireFromString("119.00"),
		Lines:      []models.InvoiceLine{{LineAmounts: models.LineAmounts{Description: "Hosting"}}},
	}
}

func TestInvoiceDocument(t *testing.T) {
	doc := InvoiceDocument(testInvoice())

	require.Equal(t, "INV-2026-000001", doc["number"])
	require.Equal(t, "2026-01-15", doc["issue_date"])
	require.Equal(t, "119", doc["gross_total"])
	require.Equal(t, []string{"Hosting"}, doc["lines"])
	require.NotContains(t, doc, "recurrence_template_id")
}

func TestBuildInvoiceQuery(t *testing.T) {
	customer := uuid.New()
	q := BuildInvoiceQuery(InvoiceQuery{Text: "hosting", CustomerID: &customer, Limit: 500})

	raw, err := json.Marshal(q)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"multi_match"`)
	require.Contains(t, string(raw), customer.String())
	require.Equal(t, 20, q["size"])

	raw, err = json.Marshal(BuildInvoiceQuery(InvoiceQuery{}))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"match_all"`)
}

func TestDisabledClient(t *testing.T) {
	c, err := NewElasticClient(config.ElasticConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.IndexInvoice(context.Background(), testInvoice()))
	_, err = c.SearchInvoices(context.Background(), InvoiceQuery{Text: "x"})
	require.True(t, errors.Is(err, ErrSearchDisabled))
}

func TestIndexAndSearchAgainstServer(t *testing.T) {
	var indexedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		switch {
		case r.Method == http.MethodPut || (r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/_doc/")):
			indexedPath = r.URL.Path
			_, _ = w.Write([]byte(`{"result":"created"}`))
		case strings.HasSuffix(r.URL.Path, "/_search"):
			_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"number":"INV-2026-000001"}}]}}`))
		default:
			_, _ = w.Write([]byte(`{"version":{"number":"7.17.10"},"tagline":"You Know, for Search"}`))
		}
	}))
	defer server.Close()

	c, err := NewElasticClient(config.ElasticConfig{Enabled: true, URL: server.URL, Prefix: "test", Index: "invoices"})
	require.NoError(t, err)

	require.NoError(t, c.IndexInvoice(context.Background(), testInvoice()))
	require.Equal(t, "/test-invoices/_doc/5f6b1c39-8f3e-4a55-9c4e-0d6f4d0c1a11", indexedPath)

	docs, err := c.SearchInvoices(context.Background(), InvoiceQuery{Text: "INV"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "INV-2026-000001", docs[0]["number"])
}
