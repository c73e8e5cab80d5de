package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const maxPageBytes = 5 << 20 // 5MB

// Result is the scraped content for one reference page.
type Result struct {
	URL    string   `json:"url"`
	Text   string   `json:"text"`
	Images []string `json:"images"`
}

// Service fetches a page and extracts readable text plus image URLs.
type Service struct {
	HTTPClient *http.Client
}

// NewService constructs a Service with a default HTTP client.
func NewService() *Service {
	return &Service{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads the page at rawURL and returns its readable text and the
// absolute URLs of its images, in document order.
func (s *Service) Fetch(ctx context.Context, rawURL string) (Result, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !pageURL.IsAbs() {
		return Result{}, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", pageURL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("fetch %s: status %d", pageURL.String(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", pageURL.String(), err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("extract readable text: %w", err)
	}

	images, err := collectImages(bytes.NewReader(body), pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("collect images: %w", err)
	}

	return Result{
		URL:    pageURL.String(),
		Text:   strings.TrimSpace(article.TextContent),
		Images: images,
	}, nil
}

func collectImages(r io.Reader, pageURL *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var images []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		images = append(images, pageURL.ResolveReference(ref).String())
	})
	return images, nil
}
