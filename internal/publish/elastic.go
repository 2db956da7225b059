package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tender-cli/internal/model"
)

// ReportDocument is the archived form of a processed tender.
type ReportDocument struct {
	RegNumber   string    `json:"reg_number"`
	Name        string    `json:"name"`
	Region      string    `json:"region,omitempty"`
	Price       float64   `json:"price"`
	Customers   []string  `json:"customers,omitempty"`
	Report      string    `json:"report"`
	Analyses    []string  `json:"analyses"`
	Items       []string  `json:"items"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewReportDocument flattens rec for indexing.
func NewReportDocument(rec *model.TenderRecord, processedAt time.Time) ReportDocument {
	doc := ReportDocument{
		RegNumber:   rec.RegNumber,
		Name:        rec.Metadata.Name,
		Region:      rec.Metadata.Region,
		Price:       rec.Metadata.BeginPrice,
		Analyses:    rec.ProductAnalyses(),
		Items:       []string{},
		ProcessedAt: processedAt,
	}
	if doc.Analyses == nil {
		doc.Analyses = []string{}
	}
	if rec.FinalReport != nil {
		doc.Report = *rec.FinalReport
	}
	for _, c := range rec.Metadata.Customers {
		doc.Customers = append(doc.Customers, c.ShortName)
	}
	for _, it := range rec.Items() {
		doc.Items = append(doc.Items, it.Name)
	}
	return doc
}

// Elastic indexes reports into Elasticsearch with the registration number
// as document id, so republishing overwrites.
type Elastic struct {
	es    *elasticsearch.Client
	index string
	now   func() time.Time
}

// NewElastic creates an Elasticsearch client for addresses and returns the
// publisher.
func NewElastic(addresses []string, username, password, index string) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, eris.Wrap(err, "elastic: create client")
	}
	if index == "" {
		index = "tender-reports"
	}
	return &Elastic{es: es, index: index, now: time.Now}, nil
}

// Name implements Publisher.
func (e *Elastic) Name() string { return "elasticsearch" }

// Publish implements Publisher.
func (e *Elastic) Publish(ctx context.Context, rec *model.TenderRecord) error {
	payload, err := json.Marshal(NewReportDocument(rec, e.now().UTC()))
	if err != nil {
		return eris.Wrap(err, "elastic: marshal report")
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: rec.RegNumber,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, e.es)
	if err != nil {
		return eris.Wrap(err, "elastic: index report")
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return eris.Errorf("elastic: index report: %s: %s", res.Status(), strings.TrimSpace(string(body)))
	}
	return nil
}
