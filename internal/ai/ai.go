package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts the inference provider behind the four generation stages.
type Client interface {
	// Summarize produces a persona-flavored natural-language summary.
	Summarize(ctx context.Context, input SummaryInput) (string, error)
	// Structure converts a summary into a raw JSON object that is expected
	// to conform to the structured-details schema.
	Structure(ctx context.Context, persona, summary string) (json.RawMessage, error)
	// GenerateImage returns a provider-hosted, possibly ephemeral image URL.
	GenerateImage(ctx context.Context, persona, summary string) (string, error)
	// GenerateAudio returns base64-encoded WAV audio, possibly carrying a
	// data-URL prefix.
	GenerateAudio(ctx context.Context, persona, summary string) (string, error)
}

// SummaryInput captures the inputs for the summarize stage.
type SummaryInput struct {
	Persona   string
	Question  string
	Text      string
	ImageURLs []string
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("AI provider not configured")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

func (PlaceholderClient) Summarize(ctx context.Context, input SummaryInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotImplemented
}

func (PlaceholderClient) Structure(ctx context.Context, persona, summary string) (json.RawMessage, error) {
	_ = ctx
	_ = persona
	_ = summary
	return nil, ErrNotImplemented
}

func (PlaceholderClient) GenerateImage(ctx context.Context, persona, summary string) (string, error) {
	_ = ctx
	_ = persona
	_ = summary
	return "", ErrNotImplemented
}

func (PlaceholderClient) GenerateAudio(ctx context.Context, persona, summary string) (string, error) {
	_ = ctx
	_ = persona
	_ = summary
	return "", ErrNotImplemented
}

var _ Client = PlaceholderClient{}
