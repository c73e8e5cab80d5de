package analyses

import (
	"context"
	"fmt"
	"strings"

	"patentvision-backend/internal/extract"
)

// Bundle is the aggregated input for the generation pipeline.
type Bundle struct {
	Text   string
	Images []string
}

// Document is an optional uploaded document to aggregate.
type Document struct {
	Data     []byte
	FileName string
	MimeType string
}

// Aggregate merges the optional document and the pre-scraped links into one
// input bundle. Document text comes first, then each link's text separated by
// a blank line; image URLs are flattened in order of first appearance and not
// deduplicated. An empty combined text is reported as ErrNoText.
func Aggregate(ctx context.Context, doc *Document, links []LinkItem) (Bundle, error) {
	var parts []string

	if doc != nil && len(doc.Data) > 0 {
		text, err := extract.TextFromBytes(ctx, doc.Data, doc.MimeType, doc.FileName)
		if err != nil {
			return Bundle{}, fmt.Errorf("extract document text: %w", err)
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	var images []string
	for _, link := range links {
		if trimmed := strings.TrimSpace(link.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
		images = append(images, link.Images...)
	}

	combined := strings.Join(parts, "\n\n")
	if combined == "" {
		return Bundle{}, ErrNoText
	}

	return Bundle{Text: combined, Images: images}, nil
}
