package magstand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrBadPayload is returned when the content API responds with a body that is
// not a JSON list of posts.
var ErrBadPayload = errors.New("remote returned a non-list payload")

// WordPressSource fetches posts from a WordPress-style REST API and is the
// production implementation of the Source port.
type WordPressSource struct {
	BaseURL    string // e.g. https://magazine.example.com/wp-json/mag/v1
	Token      string // optional bearer token for protected routes
	HTTPClient *http.Client
}

var _ Source = (*WordPressSource)(nil)

// NewWordPressSource creates a source for the given API base URL.
// Timeouts are owned by the HTTP client; there is no retry here. A failed
// fetch reports an empty batch and the next sync trigger tries again.
func NewWordPressSource(baseURL string) *WordPressSource {
	return &WordPressSource{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchPosts returns up to limit raw posts. Unreachable remotes, non-2xx
// statuses and non-list bodies all come back as an empty batch with the error
// attached for callers that want to classify it.
func (w *WordPressSource) FetchPosts(ctx context.Context, limit int) ([]RawPost, error) {
	body, err := w.get(ctx, fmt.Sprintf("%s/posts?per_page=%d", w.BaseURL, limit))
	if err != nil {
		return nil, err
	}
	var raw []RawPost
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return raw, nil
}

// FetchPost looks up a single post by id. The upstream API has no per-post
// route, so this fetches a page and scans it, like the mobile client does.
func (w *WordPressSource) FetchPost(ctx context.Context, id int64) (RawPost, bool, error) {
	raw, err := w.FetchPosts(ctx, 50)
	if err != nil {
		return RawPost{}, false, err
	}
	for _, r := range raw {
		if r.ID == id {
			return r, true, nil
		}
	}
	return RawPost{}, false, nil
}

func (w *WordPressSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "magstand/1.0")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
