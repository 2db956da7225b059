package model

// CrawledPage represents a page fetched by a scraper.
type CrawledPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Markdown   string `json:"markdown"`
	HTML       string `json:"html,omitempty"`
	StatusCode int    `json:"status_code"`
}

// Content returns the richest body the scraper produced. Local fetches keep
// cleaned HTML; API scrapers return markdown only.
func (p CrawledPage) Content() string {
	if p.HTML != "" {
		return p.HTML
	}
	return p.Markdown
}

// SearchHit is one candidate web page returned by a search backend.
type SearchHit struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
}
