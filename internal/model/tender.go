package model

import (
	"strings"
	"time"
)

// Customer is a purchasing organization attached to a tender lot.
type Customer struct {
	ShortName string `json:"lotCustomerShortName"`
}

// TenderMetadata holds the descriptive fields captured on first encounter.
// It is written once on record creation and never updated.
type TenderMetadata struct {
	Name          string     `json:"name"`
	BeginPrice    float64    `json:"beginPrice"`
	PublishDate   string     `json:"publishDate,omitempty"`
	EndDate       string     `json:"endDate,omitempty"`
	Region        string     `json:"region,omitempty"`
	TypeName      string     `json:"typeName,omitempty"`
	LotCategories []string   `json:"lotCategories,omitempty"`
	FilesURL      string     `json:"files"`
	Module        string     `json:"module,omitempty"`
	EtpLink       string     `json:"etpLink,omitempty"`
	Customers     []Customer `json:"customers,omitempty"`
}

// SiteResult is the outcome of fetching and analyzing one candidate site.
// Content is empty when the fetch or the analysis failed.
type SiteResult struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Content string `json:"content"`
}

// NewSiteResult seeds a result from a search hit with empty content.
func NewSiteResult(hit SearchHit) SiteResult {
	return SiteResult{Link: hit.Link, Title: hit.Title, Snippet: hit.Snippet}
}

// ParsedRequest holds the site results gathered for one search query.
type ParsedRequest struct {
	RequestName          string       `json:"requestName"`
	ResponseFromWebsites []SiteResult `json:"responseFromWebsites"`
}

// FindRequest is the enrichment slot for one extracted item. Slot i always
// belongs to items[i].
type FindRequest struct {
	ItemName        string          `json:"itemName"`
	SearchQueries   []string        `json:"findRequest"`
	ParsedRequest   []ParsedRequest `json:"parsedRequest"`
	ProductAnalysis *string         `json:"productAnalysis"`
}

// NewFindRequest returns an empty slot for the named item.
func NewFindRequest(itemName string) FindRequest {
	return FindRequest{
		ItemName:      itemName,
		SearchQueries: []string{},
		ParsedRequest: []ParsedRequest{},
	}
}

// ResultsFor returns the result set recorded for query. Result sets are
// appended in completion order, so lookups go by query text.
func (f FindRequest) ResultsFor(query string) ([]SiteResult, bool) {
	for _, pr := range f.ParsedRequest {
		if pr.RequestName == query {
			return pr.ResponseFromWebsites, true
		}
	}
	return nil, false
}

// AnalyzedSites returns every site result with non-empty content across all
// queries of the slot.
func (f FindRequest) AnalyzedSites() []SiteResult {
	var out []SiteResult
	for _, pr := range f.ParsedRequest {
		for _, s := range pr.ResponseFromWebsites {
			if strings.TrimSpace(s.Content) != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// TenderRecord is the root aggregate, keyed by registration number. It
// accumulates every stage's output and doubles as the pipeline checkpoint.
type TenderRecord struct {
	RegNumber         string            `json:"regNumber"`
	Metadata          TenderMetadata    `json:"metadata"`
	ExtractedAnalysis *TenderExtraction `json:"extractedAnalysis"`
	FindRequests      []FindRequest     `json:"findRequests"`
	IsProcessed       bool              `json:"isProcessed"`
	FinalReport       *string           `json:"finalReport"`
	CreatedAt         time.Time         `json:"createdAt,omitzero"`
	UpdatedAt         time.Time         `json:"updatedAt,omitzero"`
}

// NewTenderRecord returns a record in the New stage.
func NewTenderRecord(regNumber string, meta TenderMetadata) *TenderRecord {
	return &TenderRecord{
		RegNumber:    regNumber,
		Metadata:     meta,
		FindRequests: []FindRequest{},
	}
}

// Items returns the extracted line items, or nil before extraction.
func (r *TenderRecord) Items() []Item {
	if r.ExtractedAnalysis == nil {
		return nil
	}
	return r.ExtractedAnalysis.Items
}

// ProductAnalyses returns the per-item analyses in item order, skipping
// items that have none.
func (r *TenderRecord) ProductAnalyses() []string {
	var out []string
	for _, fr := range r.FindRequests {
		if fr.ProductAnalysis != nil && *fr.ProductAnalysis != "" {
			out = append(out, *fr.ProductAnalysis)
		}
	}
	return out
}

// Enriched reports whether every item has a slot and every slot has been
// through synthesis or was abandoned without queries.
func (r *TenderRecord) Enriched() bool {
	items := r.Items()
	if len(items) == 0 || len(r.FindRequests) != len(items) {
		return false
	}
	for _, fr := range r.FindRequests {
		if fr.ProductAnalysis == nil && len(fr.SearchQueries) > 0 {
			return false
		}
	}
	return true
}

// Stage derives the record's pipeline stage from the committed fields.
func (r *TenderRecord) Stage() Stage {
	switch {
	case r.IsProcessed && r.FinalReport != nil:
		return StageReportGenerated
	case r.Enriched():
		return StageItemsEnriched
	case r.ExtractedAnalysis != nil:
		return StageExtracted
	default:
		return StageNew
	}
}
