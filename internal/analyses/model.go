package analyses

import "time"

// Analysis represents a document analysis job and its accumulated results.
// Result fields are written independently as pipeline stages complete, so a
// polling reader may observe any consistent prefix of them.
type Analysis struct {
	ID                 string    `json:"id"`
	Persona            string    `json:"persona"`
	UserQuestion       string    `json:"userQuestion"`
	ExtractedText      string    `json:"extractedText"`
	Summary            string    `json:"summary"`
	ImageURL           string    `json:"imageUrl"`
	AudioURL           string    `json:"audioUrl"`
	StructuredResponse string    `json:"structuredResponse"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// LinkItem is one piece of pre-scraped reference material supplied at intake.
// It is consumed by content aggregation and not persisted on its own.
type LinkItem struct {
	URL    string   `json:"url"`
	Text   string   `json:"text"`
	Images []string `json:"images"`
}

// Media kinds served by the read-through proxy.
const (
	MediaKindImage = "image"
	MediaKindAudio = "audio"
)
