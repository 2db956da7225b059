package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewTenderRecord_MarshalsEmptyArrays(t *testing.T) {
	t.Parallel()

	rec := NewTenderRecord("0373200001224000001", TenderMetadata{Name: "Поставка бумаги"})
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["findRequests"])
	assert.Nil(t, raw["extractedAnalysis"])
	assert.Nil(t, raw["finalReport"])
	assert.Equal(t, false, raw["isProcessed"])
}

func TestSiteResult_ContentAlwaysPresent(t *testing.T) {
	t.Parallel()

	res := NewSiteResult(SearchHit{Link: "https://a.ru", Title: "A", Snippet: "s"})
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"link":"https://a.ru","title":"A","snippet":"s","content":""}`, string(data))
}

func TestFindRequest_ResultsFor(t *testing.T) {
	t.Parallel()

	fr := NewFindRequest("Бумага")
	fr.ParsedRequest = []ParsedRequest{
		{RequestName: "q2", ResponseFromWebsites: []SiteResult{{Link: "b"}}},
		{RequestName: "q1", ResponseFromWebsites: []SiteResult{{Link: "a"}}},
	}

	got, ok := fr.ResultsFor("q1")
	require.True(t, ok)
	assert.Equal(t, "a", got[0].Link)

	_, ok = fr.ResultsFor("missing")
	assert.False(t, ok)
}

func TestFindRequest_AnalyzedSites(t *testing.T) {
	t.Parallel()

	fr := FindRequest{ParsedRequest: []ParsedRequest{
		{RequestName: "q1", ResponseFromWebsites: []SiteResult{{Link: "a", Content: "price 10"}, {Link: "b"}}},
		{RequestName: "q2", ResponseFromWebsites: []SiteResult{{Link: "c", Content: "  "}, {Link: "d", Content: "price 12"}}},
	}}

	sites := fr.AnalyzedSites()
	require.Len(t, sites, 2)
	assert.Equal(t, "a", sites[0].Link)
	assert.Equal(t, "d", sites[1].Link)
}

func TestTenderRecord_Stage(t *testing.T) {
	t.Parallel()

	items := []Item{{Name: "A"}, {Name: "B"}}

	tests := []struct {
		name string
		rec  TenderRecord
		want Stage
	}{
		{name: "new", rec: TenderRecord{}, want: StageNew},
		{
			name: "extracted without slots",
			rec:  TenderRecord{ExtractedAnalysis: &TenderExtraction{Items: items}},
			want: StageExtracted,
		},
		{
			name: "extracted with pending synthesis",
			rec: TenderRecord{
				ExtractedAnalysis: &TenderExtraction{Items: items},
				FindRequests: []FindRequest{
					{ItemName: "A", SearchQueries: []string{"q"}, ProductAnalysis: strPtr("ok")},
					{ItemName: "B", SearchQueries: []string{"q"}},
				},
			},
			want: StageExtracted,
		},
		{
			name: "enriched with abandoned slot",
			rec: TenderRecord{
				ExtractedAnalysis: &TenderExtraction{Items: items},
				FindRequests: []FindRequest{
					{ItemName: "A", SearchQueries: []string{"q"}, ProductAnalysis: strPtr("ok")},
					{ItemName: "B"},
				},
			},
			want: StageItemsEnriched,
		},
		{
			name: "report generated",
			rec:  TenderRecord{IsProcessed: true, FinalReport: strPtr("report")},
			want: StageReportGenerated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rec.Stage())
		})
	}
}

func TestTenderRecord_ProductAnalyses(t *testing.T) {
	t.Parallel()

	rec := TenderRecord{FindRequests: []FindRequest{
		{ProductAnalysis: strPtr("first")},
		{},
		{ProductAnalysis: strPtr("")},
		{ProductAnalysis: strPtr("third")},
	}}
	assert.Equal(t, []string{"first", "third"}, rec.ProductAnalyses())
	assert.Nil(t, (&TenderRecord{}).Items())
}

func TestStage_Reached(t *testing.T) {
	t.Parallel()

	assert.True(t, StageExtracted.Reached(StageFilesNormalized))
	assert.True(t, StageExtracted.Reached(StageExtracted))
	assert.False(t, StageExtracted.Reached(StageItemsEnriched))
	assert.True(t, StageNew.Valid())
	assert.False(t, Stage("bogus").Valid())
	assert.Len(t, AllStages(), 5)
}
