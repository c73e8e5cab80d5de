package analyses

import "context"

// FieldUpdate carries a partial update for an analysis record. Nil pointers
// leave the corresponding column untouched, so concurrent readers always see
// a superset of previously written fields.
type FieldUpdate struct {
	ExtractedText      *string
	Summary            *string
	ImageURL           *string
	AudioURL           *string
	StructuredResponse *string
	Status             *string
}

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	UpdateFields(ctx context.Context, analysisID string, update FieldUpdate) error
	ListRecent(ctx context.Context, limit int) ([]Analysis, error)
}
