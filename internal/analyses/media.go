package analyses

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"patentvision-backend/internal/shared/storage/object"
)

const maxMediaBytes = 25 << 20 // 25MB

// MediaPersister copies ephemeral provider media into the object store under
// deterministic per-job keys, so re-running a stage overwrites rather than
// duplicates.
type MediaPersister struct {
	Store      object.ObjectStore
	HTTPClient *http.Client
}

// NewMediaPersister constructs a MediaPersister with a default HTTP client.
func NewMediaPersister(store object.ObjectStore) *MediaPersister {
	return &MediaPersister{
		Store:      store,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// MediaKey returns the storage key for a job's media object of the given kind.
func MediaKey(analysisID, kind string) string {
	return path.Join("media", analysisID, kind)
}

// MediaPath returns the stable, caller-resolvable path served by the
// read-through media proxy.
func MediaPath(analysisID, kind string) string {
	return "/api/v1/analyses/" + analysisID + "/media/" + kind
}

// PersistImage downloads the ephemeral provider image and re-uploads it under
// the job's image key, returning the stable media path.
func (p *MediaPersister) PersistImage(ctx context.Context, ephemeralURL, analysisID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ephemeralURL, nil)
	if err != nil {
		return "", fmt.Errorf("build image download request: %w", err)
	}

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return "", fmt.Errorf("read image body: %w", err)
	}

	contentType := inferImageContentType(ephemeralURL, resp.Header.Get("Content-Type"))
	key := MediaKey(analysisID, MediaKindImage)
	if _, err := p.Store.SaveWithKey(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store image key=%s: %w", key, err)
	}

	return MediaPath(analysisID, MediaKindImage), nil
}

// PersistAudio decodes a base64 WAV payload, stripping an optional data-URL
// prefix, and uploads it under the job's audio key.
func (p *MediaPersister) PersistAudio(ctx context.Context, base64Audio, analysisID string) (string, error) {
	cleaned := strings.TrimSpace(base64Audio)
	if idx := strings.Index(cleaned, "base64,"); strings.HasPrefix(cleaned, "data:") && idx >= 0 {
		cleaned = cleaned[idx+len("base64,"):]
	}
	if cleaned == "" {
		return "", fmt.Errorf("empty audio payload")
	}

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", fmt.Errorf("decode audio payload: %w", err)
	}

	key := MediaKey(analysisID, MediaKindAudio)
	if _, err := p.Store.SaveWithKey(ctx, key, "audio/wav", bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store audio key=%s: %w", key, err)
	}

	return MediaPath(analysisID, MediaKindAudio), nil
}

func inferImageContentType(rawURL, headerType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".png":
			return "image/png"
		case ".jpg", ".jpeg":
			return "image/jpeg"
		case ".webp":
			return "image/webp"
		case ".gif":
			return "image/gif"
		}
	}
	clean := strings.ToLower(strings.TrimSpace(strings.Split(headerType, ";")[0]))
	if strings.HasPrefix(clean, "image/") {
		return clean
	}
	return "image/png"
}
