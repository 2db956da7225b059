package notion

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFindPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		f, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && f.Property == "Reg Number" && f.RichText.Equals == "0373100000124000001" && req.PageSize == 1
	})).Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "page-7"}}}, nil)

	page, err := FindPage(ctx, mc, "db-1", "Reg Number", "0373100000124000001")

	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, notionapi.ObjectID("page-7"), page.ID)
	mc.AssertExpectations(t)
}

func TestFindPage_NoneAndError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(nil, assert.AnError).Once()

	page, err := FindPage(ctx, mc, "db-1", "Reg Number", "x")
	require.NoError(t, err)
	assert.Nil(t, page)

	_, err = FindPage(ctx, mc, "db-1", "Reg Number", "x")
	require.Error(t, err)
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{"short", "Итог", 10, []string{"Итог"}},
		{"line break", "первая строка\nвторая", 16, []string{"первая строка", "вторая"}},
		{"space", "один два три", 8, []string{"один", "два три"}},
		{"hard", "абвгдежз", 3, []string{"абв", "где", "жз"}},
		{"empty", "", 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitText(tt.in, tt.limit))
		})
	}
}

func TestParagraphs_RespectsLimit(t *testing.T) {
	long := strings.Repeat("слово ", 700)
	blocks := Paragraphs("Вступление\n\n\n\n" + long)

	require.Len(t, blocks, 4)
	for _, b := range blocks {
		p, ok := b.(*notionapi.ParagraphBlock)
		require.True(t, ok)
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Paragraph.RichText[0].Text.Content), MaxTextLen)
	}
	assert.Equal(t, "Вступление", blocks[0].(*notionapi.ParagraphBlock).Paragraph.RichText[0].Text.Content)
}

func TestProperties(t *testing.T) {
	assert.Equal(t, MaxTextLen, utf8.RuneCountInString(Title(strings.Repeat("я", 3000)).Title[0].Text.Content))
	assert.Equal(t, "Москва", Text("Москва").RichText[0].Text.Content)
	assert.Equal(t, 1500000.5, Number(1500000.5).Number)

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d := Date(ts)
	require.NotNil(t, d.Date.Start)
	assert.True(t, time.Time(*d.Date.Start).Equal(ts))

	h, ok := Heading("Позиции").(*notionapi.Heading2Block)
	require.True(t, ok)
	assert.Equal(t, "Позиции", h.Heading2.RichText[0].Text.Content)
}
