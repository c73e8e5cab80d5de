package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Analysis),
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// UpdateFields merges the non-nil fields into an existing analysis.
func (r *MemoryRepo) UpdateFields(ctx context.Context, analysisID string, update FieldUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if update.ExtractedText != nil {
		analysis.ExtractedText = *update.ExtractedText
	}
	if update.Summary != nil {
		analysis.Summary = *update.Summary
	}
	if update.ImageURL != nil {
		analysis.ImageURL = *update.ImageURL
	}
	if update.AudioURL != nil {
		analysis.AudioURL = *update.AudioURL
	}
	if update.StructuredResponse != nil {
		analysis.StructuredResponse = *update.StructuredResponse
	}
	if update.Status != nil {
		analysis.Status = *update.Status
	}
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

// ListRecent returns the newest analyses first, up to limit.
func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	r.mu.RLock()
	analyses := make([]Analysis, 0, len(r.byID))
	for _, a := range r.byID {
		analyses = append(analyses, a)
	}
	r.mu.RUnlock()

	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.After(analyses[j].CreatedAt)
	})

	if limit < len(analyses) {
		analyses = analyses[:limit]
	}
	return analyses, nil
}

var _ Repo = (*MemoryRepo)(nil)
