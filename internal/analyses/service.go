package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"

	"patentvision-backend/internal/ai"
	"patentvision-backend/internal/shared/metrics"
	"patentvision-backend/internal/shared/storage/object"
	"patentvision-backend/internal/shared/telemetry"
)

const (
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Service contains business logic for analyses: intake, the staged
// generation pipeline, and the polling surface.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	AI    ai.Client
	Media *MediaPersister
}

// CreateInput is the validated intake payload.
type CreateInput struct {
	Document *Document
	Links    []LinkItem
	Persona  string
	Question string
}

// Create validates the input, persists the initial record, returns it
// synchronously, and launches the generation pipeline detached from the
// caller. The pipeline's latency never delays the returned acknowledgment.
func (s *Service) Create(ctx context.Context, input CreateInput) (Analysis, error) {
	if !hasContent(input) {
		return Analysis{}, ErrNoContent
	}

	analysis := Analysis{
		ID:                 uuid.NewString(),
		Persona:            input.Persona,
		UserQuestion:       input.Question,
		StructuredResponse: "{}",
		Status:             StatusProcessing,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	go s.process(backgroundWithRequestID(ctx), analysis.ID, input)

	return analysis, nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// ListRecent returns the newest analyses first, up to limit (default 5).
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Analysis, error) {
	return s.Repo.ListRecent(ctx, limit)
}

// OpenMedia resolves a job's stable media object server-side, so storage
// credentials never reach the client. Missing objects map to ErrNotFound.
func (s *Service) OpenMedia(ctx context.Context, analysisID, kind string) (io.ReadCloser, error) {
	if kind != MediaKindImage && kind != MediaKindAudio {
		return nil, fmt.Errorf("unsupported media kind %q", kind)
	}
	if _, err := s.Repo.GetByID(ctx, analysisID); err != nil {
		return nil, err
	}
	body, err := s.Store.Open(ctx, MediaKey(analysisID, kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

func hasContent(input CreateInput) bool {
	if input.Document != nil && len(input.Document.Data) > 0 {
		return true
	}
	for _, link := range input.Links {
		if strings.TrimSpace(link.Text) != "" {
			return true
		}
	}
	return false
}

// process runs the generation pipeline for one job. Stages run strictly in
// order; summarize failure is fatal, the three derived artifacts degrade
// gracefully on their own failures.
func (s *Service) process(ctx context.Context, analysisID string, input CreateInput) {
	startedAt := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, analysisID, startedAt, fmt.Errorf("panic: %v", r))
		}
	}()

	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.pipeline", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"stage":       "start",
	})

	s.archiveDocument(ctx, analysisID, input.Document)

	// Stage: aggregate. No text means nothing downstream can run.
	bundle, err := Aggregate(ctx, input.Document, input.Links)
	if err != nil {
		s.failAnalysis(ctx, analysisID, startedAt, fmt.Errorf("aggregate content: %w", err))
		return
	}
	if err := s.Repo.UpdateFields(ctx, analysisID, FieldUpdate{ExtractedText: &bundle.Text}); err != nil {
		s.failAnalysis(ctx, analysisID, startedAt, fmt.Errorf("set extracted text: %w", err))
		return
	}

	// Stage: summarize. Every later artifact derives from the summary, so
	// failure here fails the job; fields already written are retained.
	summary, err := s.AI.Summarize(ctx, ai.SummaryInput{
		Persona:   input.Persona,
		Question:  input.Question,
		Text:      bundle.Text,
		ImageURLs: bundle.Images,
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		if err == nil {
			err = errors.New("empty summary")
		}
		s.failAnalysis(ctx, analysisID, startedAt, fmt.Errorf("summarize: %w", err))
		return
	}
	if err := s.Repo.UpdateFields(ctx, analysisID, FieldUpdate{Summary: &summary}); err != nil {
		s.failAnalysis(ctx, analysisID, startedAt, fmt.Errorf("set summary: %w", err))
		return
	}

	s.runStructureStage(ctx, analysisID, input.Persona, summary)
	s.runImageStage(ctx, analysisID, input.Persona, summary)
	s.runAudioStage(ctx, analysisID, input.Persona, summary)

	// Finalize. Reached whenever summarize succeeded, regardless of how the
	// derived stages fared.
	status := StatusDone
	if err := s.Repo.UpdateFields(ctx, analysisID, FieldUpdate{Status: &status}); err != nil {
		s.failAnalysis(ctx, analysisID, startedAt, fmt.Errorf("set done: %w", err))
		return
	}
	durationMs := float64(time.Since(startedAt).Microseconds()) / 1000.0
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs)
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"status":            StatusDone,
		"status_transition": "processing->done",
		"duration_ms":       durationMs,
	})
}

func (s *Service) runStructureStage(ctx context.Context, analysisID, persona, summary string) {
	raw, err := s.AI.Structure(ctx, persona, summary)
	if err != nil {
		s.logStageFailure(ctx, analysisID, "structure", err)
		return
	}
	_, canonical, err := ParseStructuredDetails(raw)
	if err != nil {
		s.logStageFailure(ctx, analysisID, "structure", err)
		return
	}
	if err := s.Repo.UpdateFields(ctx, analysisID, FieldUpdate{StructuredResponse: &canonical}); err != nil {
		s.logStageFailure(ctx, analysisID, "structure", err)
	}
}

func (s *Service) runImageStage(ctx context.Context, analysisID, persona, summary string) {
	ephemeralURL, err := s.AI.GenerateImage(ctx, persona, summary)
	if err != nil {
		s.logStageFailure(ctx, analysisID, "image", err)
		return
	}

	imageURL, err := s.Media.PersistImage(ctx, ephemeralURL, analysisID)
	if err != nil {
		// The provider link may expire, but it is still better than nothing.
		s.logStageFailure(ctx, analysisID, "image_upload", err)
		imageURL = ephemeralURL
	}
	if err := s.Repo.UpdateFields(ctx, analysisID, FieldUpdate{ImageURL: &imageURL}); err != nil {
		s.logStageFailure(ctx, analysisID, "image", err)
	}
}

func (s *Service) runAudioStage(ctx context.Context, analysisID, persona, summary string) {
	audioData, err := s.AI.GenerateAudio(ctx, persona, summary)
	if err != nil {
		s.logStageFailure(ctx, analysisID, "audio", err)
		return
	}

	// Unlike the image stage there is no usable fallback once the inline
	// payload is discarded, so upload failure leaves the field empty.
	audioURL, err := s.Media.PersistAudio(ctx, audioData, analysisID)
	if err != nil {
		s.logStageFailure(ctx, analysisID, "audio_upload", err)
		return
	}
	if err := s.Repo.UpdateFields(ctx, analysisID, FieldUpdate{AudioURL: &audioURL}); err != nil {
		s.logStageFailure(ctx, analysisID, "audio", err)
	}
}

// archiveDocument stores the original upload next to the job's media for
// later inspection. Best effort.
func (s *Service) archiveDocument(ctx context.Context, analysisID string, doc *Document) {
	if doc == nil || len(doc.Data) == 0 || s.Store == nil {
		return
	}
	fileName := doc.FileName
	if strings.TrimSpace(fileName) == "" {
		fileName = "document"
	}
	if _, _, _, err := s.Store.Save(ctx, analysisID, fileName, bytes.NewReader(doc.Data)); err != nil {
		s.logStageFailure(ctx, analysisID, "archive", err)
	}
}

func (s *Service) logStageFailure(ctx context.Context, analysisID, stage string, err error) {
	telemetry.Error("analysis.stage_failed", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"stage":       stage,
		"error":       sanitizeError(err),
	})
}

func (s *Service) failAnalysis(ctx context.Context, analysisID string, startedAt time.Time, err error) {
	status := StatusError
	if updateErr := s.Repo.UpdateFields(context.Background(), analysisID, FieldUpdate{Status: &status}); updateErr != nil {
		telemetry.Error("analysis.fail_update", map[string]any{
			"analysis_id": analysisID,
			"error":       sanitizeError(updateErr),
		})
	}
	durationMs := float64(time.Since(startedAt).Microseconds()) / 1000.0
	metrics.IncAnalysisFailed()
	metrics.ObserveAnalysisDurationMs(durationMs)
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"status":            StatusError,
		"status_transition": "processing->error",
		"duration_ms":       durationMs,
		"error":             sanitizeError(err),
	})
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
