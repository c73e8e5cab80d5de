package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"patentvision-backend/internal/ai"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config carries the provider settings for a Client.
type Config struct {
	APIKey     string
	Model      string
	ImageModel string
	AudioModel string
	AudioVoice string
}

// Client implements ai.Client using the OpenAI HTTP API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("AI_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(cfg.ImageModel) == "" {
		cfg.ImageModel = "dall-e-3"
	}
	if strings.TrimSpace(cfg.AudioModel) == "" {
		cfg.AudioModel = "gpt-4o-audio-preview"
	}
	if strings.TrimSpace(cfg.AudioVoice) == "" {
		cfg.AudioVoice = "alloy"
	}

	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	baseURL := defaultBaseURL
	if raw := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); raw != "" {
		baseURL = strings.TrimRight(raw, "/")
	}

	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type audioParams struct {
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Modalities     []string        `json:"modalities,omitempty"`
	Audio          *audioParams    `json:"audio,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Audio   *struct {
				Data string `json:"data"`
			} `json:"audio,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Summarize asks the chat completions endpoint for a persona-flavored summary.
func (c *Client) Summarize(ctx context.Context, input ai.SummaryInput) (string, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "The user asked: %q\n", input.Question)
	fmt.Fprintf(&user, "Summarize this patent text in a concise way, from a(n) %s viewpoint:\n\n%s\n", input.Persona, input.Text)
	if len(input.ImageURLs) > 0 {
		fmt.Fprintf(&user, "\nThe document references %d figure(s).\n", len(input.ImageURLs))
	}
	user.WriteString("\nMake remarks about what persona this is meant for and address the user's question separately.")

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf("You are a helpful AI assisting from the perspective of a %q persona.", input.Persona)},
			{Role: "user", Content: user.String()},
		},
	}

	resp, err := c.chat(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty summary response")
	}
	return resp.Choices[0].Message.Content, nil
}

// structuredSchema is the strict response_format payload for Structure.
var structuredSchema = json.RawMessage(`{
	"type": "json_schema",
	"json_schema": {
		"strict": true,
		"name": "PatentDetails",
		"schema": {
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"date": {"type": "string"},
				"owner": {"type": "string"},
				"viabilityScore": {"type": "number"}
			},
			"required": ["name", "date", "owner", "viabilityScore"],
			"additionalProperties": false
		}
	}
}`)

// Structure asks for a schema-constrained JSON object derived from the summary.
func (c *Client) Structure(ctx context.Context, persona, summary string) (json.RawMessage, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf("You are an expert at structured data extraction. The user is a %s. Convert the summary into the schema.", persona)},
			{Role: "user", Content: summary},
		},
		ResponseFormat: structuredSchema,
	}

	resp, err := c.chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty structured response")
	}
	raw := json.RawMessage(resp.Choices[0].Message.Content)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("openai: invalid JSON in structured response")
	}
	return raw, nil
}

// GenerateImage asks the images endpoint for a single 1024x1024 rendering.
func (c *Client) GenerateImage(ctx context.Context, persona, summary string) (string, error) {
	req := imageRequest{
		Model:  c.cfg.ImageModel,
		Prompt: fmt.Sprintf("Generate an image representing the concept: %s (persona: %s).", summary, persona),
		N:      1,
		Size:   "1024x1024",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("openai: marshal image request: %w", err)
	}

	var resp imageResponse
	if err := c.post(ctx, "/images/generations", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai: %s", resp.Error.Message)
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return "", fmt.Errorf("openai: empty image response")
	}
	return resp.Data[0].URL, nil
}

// GenerateAudio asks an audio-modality chat model for a spoken rendition.
func (c *Client) GenerateAudio(ctx context.Context, persona, summary string) (string, error) {
	req := chatRequest{
		Model:      c.cfg.AudioModel,
		Modalities: []string{"text", "audio"},
		Audio:      &audioParams{Voice: c.cfg.AudioVoice, Format: "wav"},
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf("You are a helpful AI that produces spoken summaries from a %s perspective.", persona)},
			{Role: "user", Content: summary},
		},
	}

	resp, err := c.chat(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Audio == nil {
		return "", fmt.Errorf("openai: empty audio response")
	}
	return resp.Choices[0].Message.Audio.Data, nil
}

func (c *Client) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal chat request: %w", err)
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai: %s", resp.Error.Message)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("openai: %s: %w", path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("openai: read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("openai: %s status %d: %s", path, httpResp.StatusCode, truncate(string(raw), 300))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai: decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ ai.Client = (*Client)(nil)
