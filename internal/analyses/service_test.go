package analyses

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"patentvision-backend/internal/ai"
	localstore "patentvision-backend/internal/shared/storage/object/local"
)

type stubAI struct {
	summary      string
	summarizeErr error
	structured   json.RawMessage
	structureErr error
	imageURL     string
	imageErr     error
	audio        string
	audioErr     error

	// When set, Summarize parks until the channel is closed.
	block chan struct{}

	mu        sync.Mutex
	summarize []summarizeCall
}

// summarizeCall records what the pipeline handed to Summarize.
type summarizeCall struct {
	Persona string
	Text    string
	Images  []string
}

func (s *stubAI) Summarize(ctx context.Context, input ai.SummaryInput) (string, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.summarize = append(s.summarize, summarizeCall{
		Persona: input.Persona,
		Text:    input.Text,
		Images:  input.ImageURLs,
	})
	s.mu.Unlock()
	return s.summary, s.summarizeErr
}

func (s *stubAI) Structure(ctx context.Context, persona, summary string) (json.RawMessage, error) {
	return s.structured, s.structureErr
}

func (s *stubAI) GenerateImage(ctx context.Context, persona, summary string) (string, error) {
	return s.imageURL, s.imageErr
}

func (s *stubAI) GenerateAudio(ctx context.Context, persona, summary string) (string, error) {
	return s.audio, s.audioErr
}

func newTestService(t *testing.T, client *stubAI) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	store := localstore.New(t.TempDir())
	return &Service{
		Repo:  repo,
		Store: store,
		AI:    client,
		Media: NewMediaPersister(store),
	}, repo
}

func createProcessing(t *testing.T, svc *Service, input CreateInput) Analysis {
	t.Helper()
	analysis := Analysis{
		ID:                 fmt.Sprintf("job-%s", t.Name()),
		Persona:            input.Persona,
		UserQuestion:       input.Question,
		StructuredResponse: "{}",
		Status:             StatusProcessing,
	}
	if err := svc.Repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("create record: %v", err)
	}
	return analysis
}

func TestCreateRejectsEmptyInput(t *testing.T) {
	svc, repo := newTestService(t, &stubAI{})

	_, err := svc.Create(context.Background(), CreateInput{
		Links: []LinkItem{{URL: "https://example.com", Text: "   "}},
	})
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}

	// No record should have been persisted for a rejected job.
	if got, _ := repo.ListRecent(context.Background(), 10); len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

func TestCreateAcknowledgesWhilePipelineIsParked(t *testing.T) {
	release := make(chan struct{})
	client := &stubAI{
		summary:      "Summary.",
		block:        release,
		structureErr: errors.New("down"),
		imageErr:     errors.New("down"),
		audioErr:     errors.New("down"),
	}
	svc, repo := newTestService(t, client)

	// Create must return while the summarize stage is still parked on the
	// channel; pipeline latency never reaches the caller.
	analysis, err := svc.Create(context.Background(), CreateInput{
		Links: []LinkItem{{Text: "Some text."}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if analysis.ID == "" || analysis.Status != StatusProcessing {
		t.Fatalf("unexpected ack %+v", analysis)
	}

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Fatalf("expected record still processing, got %s", got.Status)
	}

	close(release)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err = repo.GetByID(context.Background(), analysis.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status != StatusProcessing {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got.Status != StatusDone {
		t.Fatalf("expected terminal status done, got %s", got.Status)
	}
}

func TestProcessFullSuccess(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfakeimagebytes"))
	}))
	t.Cleanup(imageServer.Close)

	client := &stubAI{
		summary:    "A concise summary.",
		structured: json.RawMessage(`{"name":"Widget","date":"2021-03-01","owner":"Acme","viabilityScore":8}`),
		imageURL:   imageServer.URL + "/gen.png",
		audio:      base64.StdEncoding.EncodeToString([]byte("RIFFfakewav")),
	}
	svc, repo := newTestService(t, client)

	input := CreateInput{
		Document: &Document{Data: []byte("A novel widget design."), FileName: "widget.txt", MimeType: "text/plain"},
		Links: []LinkItem{
			{URL: "https://example.com/prior", Text: "Prior art notes.", Images: []string{"https://example.com/fig1.png"}},
		},
		Persona: "investor",
	}
	analysis := createProcessing(t, svc, input)

	svc.process(context.Background(), analysis.ID, input)

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusDone {
		t.Fatalf("expected status done, got %s", got.Status)
	}
	if !strings.Contains(got.ExtractedText, "A novel widget design.") || !strings.Contains(got.ExtractedText, "Prior art notes.") {
		t.Fatalf("extracted text missing sources: %q", got.ExtractedText)
	}
	if got.Summary != "A concise summary." {
		t.Fatalf("unexpected summary %q", got.Summary)
	}
	if got.ImageURL != MediaPath(analysis.ID, MediaKindImage) {
		t.Fatalf("expected stable image path, got %q", got.ImageURL)
	}
	if got.AudioURL != MediaPath(analysis.ID, MediaKindAudio) {
		t.Fatalf("expected stable audio path, got %q", got.AudioURL)
	}

	var details StructuredDetails
	if err := json.Unmarshal([]byte(got.StructuredResponse), &details); err != nil {
		t.Fatalf("decode structured response: %v", err)
	}
	if details.Name != "Widget" || details.ViabilityScore != 8 {
		t.Fatalf("unexpected structured details %+v", details)
	}

	// Link images must reach the summarizer.
	if len(client.summarize) != 1 || len(client.summarize[0].Images) != 1 {
		t.Fatalf("expected one summarize call with one image, got %+v", client.summarize)
	}

	// The persisted media must be readable back through the store.
	body, err := svc.OpenMedia(context.Background(), analysis.ID, MediaKindImage)
	if err != nil {
		t.Fatalf("OpenMedia image: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if !strings.HasPrefix(string(data), "\x89PNG") {
		t.Fatalf("unexpected image bytes %q", data)
	}
}

func TestProcessSummarizeFailureRetainsExtractedText(t *testing.T) {
	client := &stubAI{summarizeErr: errors.New("model unavailable")}
	svc, repo := newTestService(t, client)

	input := CreateInput{
		Links:   []LinkItem{{URL: "https://example.com", Text: "Some page text."}},
		Persona: "lawyer",
	}
	analysis := createProcessing(t, svc, input)

	svc.process(context.Background(), analysis.ID, input)

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusError {
		t.Fatalf("expected status error, got %s", got.Status)
	}
	if got.ExtractedText != "Some page text." {
		t.Fatalf("expected extracted text retained, got %q", got.ExtractedText)
	}
	if got.Summary != "" {
		t.Fatalf("expected empty summary, got %q", got.Summary)
	}
}

func TestProcessEmptyAggregationFailsJob(t *testing.T) {
	client := &stubAI{summary: "never reached"}
	svc, repo := newTestService(t, client)

	input := CreateInput{Persona: "engineer"}
	analysis := createProcessing(t, svc, input)

	svc.process(context.Background(), analysis.ID, input)

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusError {
		t.Fatalf("expected status error, got %s", got.Status)
	}
	if got.ExtractedText != "" || got.Summary != "" {
		t.Fatalf("expected empty result fields, got %+v", got)
	}
	if len(client.summarize) != 0 {
		t.Fatalf("summarize should not run without content")
	}
}

func TestProcessImagePersistFailureFallsBackToEphemeralURL(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	t.Cleanup(imageServer.Close)

	client := &stubAI{
		summary:      "Summary.",
		structureErr: errors.New("bad json"),
		imageURL:     imageServer.URL + "/gone.png",
		audioErr:     errors.New("no audio"),
	}
	svc, repo := newTestService(t, client)

	input := CreateInput{Links: []LinkItem{{Text: "Text."}}}
	analysis := createProcessing(t, svc, input)

	svc.process(context.Background(), analysis.ID, input)

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusDone {
		t.Fatalf("expected status done, got %s", got.Status)
	}
	if got.ImageURL != client.imageURL {
		t.Fatalf("expected ephemeral URL fallback, got %q", got.ImageURL)
	}
	if got.AudioURL != "" {
		t.Fatalf("expected empty audio URL, got %q", got.AudioURL)
	}
	if got.StructuredResponse != "{}" {
		t.Fatalf("expected structured response untouched, got %q", got.StructuredResponse)
	}
}

func TestProcessInvalidStructuredPayloadSkipsField(t *testing.T) {
	client := &stubAI{
		summary:    "Summary.",
		structured: json.RawMessage(`{"name":"Widget"}`),
		imageErr:   errors.New("down"),
		audioErr:   errors.New("down"),
	}
	svc, repo := newTestService(t, client)

	input := CreateInput{Links: []LinkItem{{Text: "Text."}}}
	analysis := createProcessing(t, svc, input)

	svc.process(context.Background(), analysis.ID, input)

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusDone {
		t.Fatalf("expected status done, got %s", got.Status)
	}
	if got.StructuredResponse != "{}" {
		t.Fatalf("partial structured payload must not be stored, got %q", got.StructuredResponse)
	}
}

func TestProcessConcurrentJobsStayIsolated(t *testing.T) {
	client := &stubAI{
		summary:  "Shared summary.",
		imageErr: errors.New("down"),
		audioErr: errors.New("down"),
		structured: json.RawMessage(
			`{"name":"N","date":"2020-01-01","owner":"O","viabilityScore":5}`,
		),
	}
	svc, repo := newTestService(t, client)

	inputs := make(map[string]CreateInput)
	for i := 0; i < 8; i++ {
		input := CreateInput{Links: []LinkItem{{Text: fmt.Sprintf("Job text %d.", i)}}}
		analysis := Analysis{
			ID:                 fmt.Sprintf("job-%d", i),
			StructuredResponse: "{}",
			Status:             StatusProcessing,
		}
		if err := repo.Create(context.Background(), analysis); err != nil {
			t.Fatalf("create record: %v", err)
		}
		inputs[analysis.ID] = input
	}

	var wg sync.WaitGroup
	for id, input := range inputs {
		wg.Add(1)
		go func(id string, input CreateInput) {
			defer wg.Done()
			svc.process(context.Background(), id, input)
		}(id, input)
	}
	wg.Wait()

	for id, input := range inputs {
		got, err := repo.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID %s: %v", id, err)
		}
		if got.Status != StatusDone {
			t.Fatalf("job %s: expected done, got %s", id, got.Status)
		}
		if got.ExtractedText != input.Links[0].Text {
			t.Fatalf("job %s: wrong extracted text %q", id, got.ExtractedText)
		}
	}
}

func TestOpenMediaUnknownJob(t *testing.T) {
	svc, _ := newTestService(t, &stubAI{})
	if _, err := svc.OpenMedia(context.Background(), "missing", MediaKindImage); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenMediaMissingObject(t *testing.T) {
	svc, repo := newTestService(t, &stubAI{})
	if err := repo.Create(context.Background(), Analysis{ID: "job-1", Status: StatusProcessing}); err != nil {
		t.Fatalf("create record: %v", err)
	}
	if _, err := svc.OpenMedia(context.Background(), "job-1", MediaKindAudio); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
