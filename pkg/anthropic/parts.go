package anthropic

import (
	"bytes"
	"encoding/base64"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
)

// PartKind tags the variant held by a ContentPart.
type PartKind int

const (
	PartText PartKind = iota
	PartDocument
	PartHTML
)

func (k PartKind) String() string {
	switch k {
	case PartText:
		return "text"
	case PartDocument:
		return "document"
	case PartHTML:
		return "html"
	}
	return "unknown"
}

// ContentPart is one block of a user message: plain text, a PDF document, or
// a text document (HTML, CSV, TXT) sent as a titled plain-text source.
type ContentPart struct {
	Kind  PartKind
	Text  string
	Data  []byte
	Title string
}

// TextPart returns a plain text block.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// PDFPart returns a document block for raw PDF bytes.
func PDFPart(data []byte, title string) (ContentPart, error) {
	if len(data) == 0 {
		return ContentPart{}, eris.New("anthropic: empty pdf")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return ContentPart{}, eris.Errorf("anthropic: %q is not a pdf", title)
	}
	return ContentPart{Kind: PartDocument, Data: data, Title: title}, nil
}

// DocumentTextPart returns a titled plain-text document block, used for
// HTML, CSV and TXT inputs.
func DocumentTextPart(text, title string) (ContentPart, error) {
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return ContentPart{}, eris.Errorf("anthropic: %q has no text", title)
	}
	return ContentPart{Kind: PartHTML, Text: text, Title: title}, nil
}

func (p ContentPart) toSDK() sdk.ContentBlockParamUnion {
	switch p.Kind {
	case PartDocument:
		block := sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{
			Data: base64.StdEncoding.EncodeToString(p.Data),
		})
		if p.Title != "" && block.OfDocument != nil {
			block.OfDocument.Title = sdk.String(p.Title)
		}
		return block
	case PartHTML:
		block := sdk.NewDocumentBlock(sdk.PlainTextSourceParam{Data: p.Text})
		if p.Title != "" && block.OfDocument != nil {
			block.OfDocument.Title = sdk.String(p.Title)
		}
		return block
	default:
		return sdk.NewTextBlock(p.Text)
	}
}
