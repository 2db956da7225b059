package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/pkg/notion"
)

// Notion report database property names.
const (
	PropName        = "Name"
	PropRegNumber   = "Reg Number"
	PropRegion      = "Region"
	PropPrice       = "Price"
	PropProcessedAt = "Processed At"
)

// Notion writes one page per tender into a report database. A page left
// from an earlier publish is archived and replaced.
type Notion struct {
	client notion.Client
	dbID   string
	now    func() time.Time
}

// NewNotion creates a Notion publisher for the database dbID.
func NewNotion(client notion.Client, dbID string) *Notion {
	return &Notion{client: client, dbID: dbID, now: time.Now}
}

// Name implements Publisher.
func (n *Notion) Name() string { return "notion" }

// Publish implements Publisher.
func (n *Notion) Publish(ctx context.Context, rec *model.TenderRecord) error {
	if rec.FinalReport == nil {
		return eris.Errorf("notion: %s has no final report", rec.RegNumber)
	}

	old, err := notion.FindPage(ctx, n.client, n.dbID, PropRegNumber, rec.RegNumber)
	if err != nil {
		return err
	}
	if old != nil {
		if _, err := n.client.UpdatePage(ctx, string(old.ID), &notionapi.PageUpdateRequest{
			Properties: notionapi.Properties{},
			Archived:   true,
		}); err != nil {
			return eris.Wrap(err, "notion: archive previous report")
		}
	}

	blocks := reportBlocks(rec)
	first := blocks[:min(len(blocks), notion.MaxBlocksPerRequest)]
	page, err := n.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(n.dbID),
		},
		Properties: n.properties(rec),
		Children:   first,
	})
	if err != nil {
		return err
	}
	if len(blocks) > len(first) {
		return n.client.AppendBlocks(ctx, string(page.ID), blocks[len(first):])
	}
	return nil
}

func (n *Notion) properties(rec *model.TenderRecord) notionapi.Properties {
	props := notionapi.Properties{
		PropName:        notion.Title(fmt.Sprintf("%s %s", rec.RegNumber, rec.Metadata.Name)),
		PropRegNumber:   notion.Text(rec.RegNumber),
		PropProcessedAt: notion.Date(n.now()),
	}
	if rec.Metadata.Region != "" {
		props[PropRegion] = notion.Text(rec.Metadata.Region)
	}
	if rec.Metadata.BeginPrice > 0 {
		props[PropPrice] = notion.Number(rec.Metadata.BeginPrice)
	}
	return props
}

func reportBlocks(rec *model.TenderRecord) []notionapi.Block {
	blocks := []notionapi.Block{notion.Heading("Итоговый отчёт")}
	blocks = append(blocks, notion.Paragraphs(*rec.FinalReport)...)
	for _, fr := range rec.FindRequests {
		if fr.ProductAnalysis == nil || *fr.ProductAnalysis == "" {
			continue
		}
		blocks = append(blocks, notion.Heading(fr.ItemName))
		blocks = append(blocks, notion.Paragraphs(*fr.ProductAnalysis)...)
	}
	return blocks
}
