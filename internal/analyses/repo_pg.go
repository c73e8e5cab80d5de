package analyses

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, persona, user_question, extracted_text, summary, image_url, audio_url,
	structured_response, status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $10)`

	structured := analysis.StructuredResponse
	if structured == "" {
		structured = "{}"
	}

	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.Persona,
		analysis.UserQuestion,
		analysis.ExtractedText,
		analysis.Summary,
		analysis.ImageURL,
		analysis.AudioURL,
		structured,
		analysis.Status,
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT id, persona, user_question, extracted_text, summary, image_url, audio_url,
       structured_response::text, status, created_at, updated_at
FROM analyses
WHERE id = $1
LIMIT 1`

	var a Analysis
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&a.ID,
		&a.Persona,
		&a.UserQuestion,
		&a.ExtractedText,
		&a.Summary,
		&a.ImageURL,
		&a.AudioURL,
		&a.StructuredResponse,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// UpdateFields merges the non-nil fields into an existing analysis. NULL
// parameters keep the stored value, so partial stage writes never clobber
// fields written earlier.
func (r *PGRepo) UpdateFields(ctx context.Context, analysisID string, update FieldUpdate) error {
	const query = `
UPDATE analyses
SET extracted_text = COALESCE($1::text, extracted_text),
    summary = COALESCE($2::text, summary),
    image_url = COALESCE($3::text, image_url),
    audio_url = COALESCE($4::text, audio_url),
    structured_response = COALESCE($5::jsonb, structured_response),
    status = COALESCE($6::text, status),
    updated_at = now()
WHERE id = $7::uuid`

	res, err := r.DB.ExecContext(ctx, query,
		update.ExtractedText,
		update.Summary,
		update.ImageURL,
		update.AudioURL,
		update.StructuredResponse,
		update.Status,
		analysisID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecent lists analyses ordered newest-first.
func (r *PGRepo) ListRecent(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	const query = `
SELECT id, persona, user_question, extracted_text, summary, image_url, audio_url,
       structured_response::text, status, created_at, updated_at
FROM analyses
ORDER BY created_at DESC
LIMIT $1`

	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(
			&a.ID,
			&a.Persona,
			&a.UserQuestion,
			&a.ExtractedText,
			&a.Summary,
			&a.ImageURL,
			&a.AudioURL,
			&a.StructuredResponse,
			&a.Status,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
