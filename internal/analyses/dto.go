package analyses

import (
	"encoding/json"
	"time"
)

// AnalysisResponse is the outward-facing representation of an analysis.
type AnalysisResponse struct {
	AnalysisID         string          `json:"analysisId"`
	Persona            string          `json:"persona"`
	UserQuestion       string          `json:"userQuestion"`
	ExtractedText      string          `json:"extractedText"`
	Summary            string          `json:"summary"`
	ImageURL           string          `json:"imageUrl"`
	AudioURL           string          `json:"audioUrl"`
	StructuredResponse json.RawMessage `json:"structuredResponse"`
	Status             string          `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func toResponse(a Analysis) AnalysisResponse {
	structured := a.StructuredResponse
	if structured == "" {
		structured = "{}"
	}
	return AnalysisResponse{
		AnalysisID:         a.ID,
		Persona:            a.Persona,
		UserQuestion:       a.UserQuestion,
		ExtractedText:      a.ExtractedText,
		Summary:            a.Summary,
		ImageURL:           a.ImageURL,
		AudioURL:           a.AudioURL,
		StructuredResponse: json.RawMessage(structured),
		Status:             a.Status,
		CreatedAt:          a.CreatedAt,
	}
}
