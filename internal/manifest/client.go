// Package manifest is the typed client for the Python frame server: timeline
// manifests, frame image URLs, and the timeline listing. Transport details
// stay here; nothing above this package sees HTTP.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// #region client-struct

// Client talks to the frame server's REST surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8000". A trailing slash is tolerated.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// #endregion

// #region get-timeline

// GetTimeline fetches and decodes the manifest for one path id. Failures are
// returned as *FetchError so callers can attribute them to the timeline.
func (c *Client) GetTimeline(ctx context.Context, pathID string) (Timeline, error) {
	u := c.baseURL + "/timeline/" + url.PathEscape(pathID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Timeline{}, &FetchError{PathID: pathID, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Timeline{}, &FetchError{PathID: pathID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Timeline{}, &FetchError{
			PathID: pathID,
			Err:    fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var tl Timeline
	if err := json.NewDecoder(resp.Body).Decode(&tl); err != nil {
		return Timeline{}, &FetchError{PathID: pathID, Err: fmt.Errorf("decode manifest: %w", err)}
	}
	if err := tl.Validate(); err != nil {
		return Timeline{}, &FetchError{PathID: pathID, Err: err}
	}
	return tl, nil
}

// #endregion

// #region list-timelines

// ListTimelines returns every path id the server knows about, sorted.
func (c *Client) ListTimelines(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/timelines", nil)
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list timelines: server returned %d", resp.StatusCode)
	}

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("list timelines: decode: %w", err)
	}
	return ids, nil
}

// #endregion

// #region frame-url

// FrameURL resolves a frame reference to the URL the UI can display it from.
// Frame images are fetched lazily by the browser, never proxied through here.
func (c *Client) FrameURL(pathID, file string) string {
	return c.baseURL + "/frames/" + url.PathEscape(pathID) + "/" + url.PathEscape(file)
}

// #endregion
