package analyses

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	localstore "patentvision-backend/internal/shared/storage/object/local"
)

func TestPersistImageStoresUnderDeterministicKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("imagebytes-v" + r.URL.Query().Get("v")))
	}))
	t.Cleanup(server.Close)

	store := localstore.New(t.TempDir())
	p := NewMediaPersister(store)

	path1, err := p.PersistImage(context.Background(), server.URL+"/img.png?v=1", "job-1")
	if err != nil {
		t.Fatalf("PersistImage: %v", err)
	}
	if path1 != "/api/v1/analyses/job-1/media/image" {
		t.Fatalf("unexpected media path %q", path1)
	}

	// Re-running the stage overwrites the same object.
	path2, err := p.PersistImage(context.Background(), server.URL+"/img.png?v=2", "job-1")
	if err != nil {
		t.Fatalf("PersistImage rerun: %v", err)
	}
	if path2 != path1 {
		t.Fatalf("rerun changed path: %q vs %q", path2, path1)
	}

	body, err := store.Open(context.Background(), MediaKey("job-1", MediaKindImage))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "imagebytes-v2" {
		t.Fatalf("expected latest bytes, got %q", data)
	}
}

func TestPersistImageUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	p := NewMediaPersister(localstore.New(t.TempDir()))
	if _, err := p.PersistImage(context.Background(), server.URL+"/img.png", "job-1"); err == nil {
		t.Fatal("expected error for non-2xx upstream")
	}
}

func TestPersistAudioStripsDataURLPrefix(t *testing.T) {
	store := localstore.New(t.TempDir())
	p := NewMediaPersister(store)

	wav := []byte("RIFF....WAVEfmt ")
	payload := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav)

	path, err := p.PersistAudio(context.Background(), payload, "job-2")
	if err != nil {
		t.Fatalf("PersistAudio: %v", err)
	}
	if path != "/api/v1/analyses/job-2/media/audio" {
		t.Fatalf("unexpected media path %q", path)
	}

	body, err := store.Open(context.Background(), MediaKey("job-2", MediaKindAudio))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != string(wav) {
		t.Fatalf("stored audio mismatch: %q", data)
	}
}

func TestPersistAudioRejectsBadPayload(t *testing.T) {
	p := NewMediaPersister(localstore.New(t.TempDir()))
	for name, payload := range map[string]string{
		"empty":      "",
		"not base64": "!!not-base64!!",
	} {
		if _, err := p.PersistAudio(context.Background(), payload, "job-3"); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestInferImageContentType(t *testing.T) {
	tests := []struct {
		url    string
		header string
		want   string
	}{
		{"https://cdn.example/img.png?sig=abc", "", "image/png"},
		{"https://cdn.example/img.JPG", "", "image/jpeg"},
		{"https://cdn.example/blob", "image/webp; charset=binary", "image/webp"},
		{"https://cdn.example/blob", "application/octet-stream", "image/png"},
	}
	for _, tt := range tests {
		if got := inferImageContentType(tt.url, tt.header); got != tt.want {
			t.Errorf("inferImageContentType(%q, %q) = %q, want %q", tt.url, tt.header, got, tt.want)
		}
	}
}
