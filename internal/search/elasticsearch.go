package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrSearchDisabled is returned by searches when Elasticsearch is not configured
var ErrSearchDisabled = errors.New("search is disabled")

// InvoiceQuery filters an invoice search
type InvoiceQuery struct {
	Text       string
	CustomerID *uuid.UUID
	Status     string
	Limit      int
}

// ElasticClient indexes and searches invoices
type ElasticClient struct {
	client  *elasticsearch.Client
	config  config.ElasticConfig
	enabled bool
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		return &ElasticClient{config: cfg}, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client:  client,
		config:  cfg,
		enabled: true,
	}, nil
}

// Enabled reports whether indexing and search are active
func (c *ElasticClient) Enabled() bool {
	return c != nil && c.enabled
}

func (c *ElasticClient) indexName() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// InvoiceDocument is the indexed form of an invoice
func InvoiceDocument(invoice *models.Invoice) map[string]interface{} {
	descriptions := make([]string, 0, len(invoice.Lines))
	for _, l := range invoice.Lines {
		descriptions = append(descriptions, l.Description)
	}

	doc := map[string]interface{}{
		"id":          invoice.ID.String(),
		"number":      invoice.Number,
		"customer_id": invoice.CustomerID.String(),
		"status":      string(invoice.Status),
		"issue_date":  invoice.IssueDate.Format("2006-01-02"),
		"due_date":    invoice.DueDate.Format("2006-01-02"),
		"currency":    invoice.Currency,
		"net_total":   invoice.NetTotal.String(),
		"tax_total":   invoice.TaxTotal.String(),
		"gross_total": invoice.GrossTotal.String(),
		"lines":       descriptions,
	}
	if invoice.RecurrenceTemplateID != nil {
		doc["recurrence_template_id"] = invoice.RecurrenceTemplateID.String()
	}
	if invoice.QuoteID != nil {
		doc["quote_id"] = invoice.QuoteID.String()
	}
	return doc
}

// IndexInvoice indexes an invoice under its ID. It is a no-op when disabled.
func (c *ElasticClient) IndexInvoice(ctx context.Context, invoice *models.Invoice) error {
	if !c.Enabled() {
		return nil
	}

	docJSON, err := json.Marshal(InvoiceDocument(invoice))
	if err != nil {
		return errors.Wrap(err, "failed to marshal invoice document")
	}

	req := esapi.IndexRequest{
		Index:      c.indexName(),
		DocumentID: invoice.ID.String(),
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res.Body)
	}

	log.Debug().Str("invoice_id", invoice.ID.String()).Str("number", invoice.Number).Msg("Invoice indexed")
	return nil
}

// BuildInvoiceQuery renders q as an Elasticsearch bool query
func BuildInvoiceQuery(q InvoiceQuery) map[string]interface{} {
	var must []interface{}
	var filter []interface{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"number^3", "lines"},
			},
		})
	}
	if q.CustomerID != nil {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"customer_id": q.CustomerID.String()},
		})
	}
	if q.Status != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"status": q.Status},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	if len(boolQuery) == 0 {
		boolQuery["must"] = []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}}
	}

	size := q.Limit
	if size <= 0 || size > 100 {
		size = 20
	}

	return map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{map[string]interface{}{"issue_date": "desc"}},
	}
}

// SearchInvoices returns the indexed documents matching q
func (c *ElasticClient) SearchInvoices(ctx context.Context, q InvoiceQuery) ([]map[string]interface{}, error) {
	if !c.Enabled() {
		return nil, ErrSearchDisabled
	}

	queryJSON, err := json.Marshal(BuildInvoiceQuery(q))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.indexName()},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res.Body)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]map[string]interface{}, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

func responseError(op string, body io.Reader) error {
	var e map[string]interface{}
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		return errors.Wrap(err, "failed to parse Elasticsearch error response")
	}
	return errors.Errorf("Elasticsearch %s error: %v", op, e)
}
