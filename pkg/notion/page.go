package notion

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

const (
	// MaxTextLen is Notion's limit for a single rich text object.
	MaxTextLen = 2000
	// MaxBlocksPerRequest is Notion's limit for children in one request.
	MaxBlocksPerRequest = 100
)

// FindPage returns the first page of dbID whose rich text property equals
// value, or nil when none does.
func FindPage(ctx context.Context, c Client, dbID, property, value string) (*notionapi.Page, error) {
	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			RichText: &notionapi.TextFilterCondition{Equals: value},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: find page %s=%s", property, value)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

// Title builds a title property.
func Title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: richText(truncate(s, MaxTextLen))}
}

// Text builds a rich text property.
func Text(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(truncate(s, MaxTextLen))}
}

// Number builds a number property.
func Number(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: v}
}

// Date builds a date property.
func Date(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Type: notionapi.PropertyTypeDate, Date: &notionapi.DateObject{Start: &d}}
}

// Heading builds a level-2 heading block.
func Heading(s string) notionapi.Block {
	return &notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading2},
		Heading2:   notionapi.Heading{RichText: richText(truncate(s, MaxTextLen))},
	}
}

// Paragraphs turns text into paragraph blocks. Blank lines separate
// paragraphs; a paragraph longer than MaxTextLen is split on line breaks,
// then on spaces, then hard.
func Paragraphs(text string) []notionapi.Block {
	var blocks []notionapi.Block
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, chunk := range SplitText(para, MaxTextLen) {
			blocks = append(blocks, &notionapi.ParagraphBlock{
				BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
				Paragraph:  notionapi.Paragraph{RichText: richText(chunk)},
			})
		}
	}
	return blocks
}

// SplitText cuts s into chunks of at most limit runes, preferring to break
// after a newline or a space.
func SplitText(s string, limit int) []string {
	var out []string
	for utf8.RuneCountInString(s) > limit {
		cut := byteOffset(s, limit)
		head := s[:cut]
		if i := strings.LastIndexByte(head, '\n'); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndexByte(head, ' '); i > 0 {
			cut = i + 1
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func byteOffset(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return s[:byteOffset(s, limit)]
}
