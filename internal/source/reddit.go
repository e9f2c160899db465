package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	redditBaseURL   = "https://www.reddit.com"
	redditTimeout   = 30 * time.Second
	redditUserAgent = "web:redreader:v1.0.0 (by /u/redreader_dev)"
)

// RedditOption configures a RedditSource.
type RedditOption func(*RedditSource)

// WithBaseURL points the source at a different listing host.
func WithBaseURL(base string) RedditOption {
	return func(rs *RedditSource) {
		if base != "" {
			rs.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithUserAgent overrides the User-Agent header sent upstream.
func WithUserAgent(ua string) RedditOption {
	return func(rs *RedditSource) {
		if ua != "" {
			rs.userAgent = ua
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) RedditOption {
	return func(rs *RedditSource) {
		if d > 0 {
			rs.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(c *http.Client) RedditOption {
	return func(rs *RedditSource) {
		if c != nil {
			rs.client = c
		}
	}
}

// RedditSource fetches subreddit listings via Reddit's public JSON API.
type RedditSource struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewReddit creates a Reddit listing fetcher.
func NewReddit(opts ...RedditOption) *RedditSource {
	rs := &RedditSource{
		client:    &http.Client{Timeout: redditTimeout},
		baseURL:   redditBaseURL,
		userAgent: redditUserAgent,
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// FetchPage fetches one listing page. Any transport failure, non-200 status or
// undecodable body is returned as an error; the cursor is passed through untouched.
func (rs *RedditSource) FetchPage(ctx context.Context, q Query) (Page, error) {
	if strings.TrimSpace(q.Collection) == "" {
		return Page{}, errors.New("reddit: collection is required")
	}

	u := rs.listingURL(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", rs.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := rs.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch r/%s: %w", q.Collection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("r/%s: status %d", q.Collection, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return Page{}, fmt.Errorf("decode r/%s: %w", q.Collection, err)
	}

	return pageFromListing(listing), nil
}

func (rs *RedditSource) listingURL(q Query) string {
	sort := q.Sort
	if sort == "" {
		sort = SortHot
	}

	params := url.Values{}
	if q.Cursor != "" {
		params.Set("after", q.Cursor)
	}
	if sort.UsesTimeRange() && q.TimeRange != TimeNone {
		params.Set("t", string(q.TimeRange))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	return fmt.Sprintf("%s/r/%s/%s.json?%s", rs.baseURL, url.PathEscape(q.Collection), sort, params.Encode())
}

func pageFromListing(listing redditListing) Page {
	entries := make([]Entry, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		entries = append(entries, child.Data)
	}
	next := ""
	if listing.Data.After != nil {
		next = *listing.Data.After
	}
	return Page{Entries: entries, Next: next}
}

type redditListing struct {
	Data struct {
		After    *string       `json:"after"`
		Children []redditChild `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Data Entry `json:"data"`
}

// Entry is one raw listing record as delivered upstream.
type Entry struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	URL       string        `json:"url"`
	Permalink string        `json:"permalink"`
	PostHint  string        `json:"post_hint,omitempty"`
	IsVideo   bool          `json:"is_video"`
	Media     *EntryMedia   `json:"media,omitempty"`
	Preview   *EntryPreview `json:"preview,omitempty"`
}

// EntryMedia holds hosted media attached to an entry.
type EntryMedia struct {
	RedditVideo *VideoSource `json:"reddit_video,omitempty"`
}

// EntryPreview holds upstream-generated previews.
type EntryPreview struct {
	Images             []PreviewImage `json:"images,omitempty"`
	RedditVideoPreview *VideoSource   `json:"reddit_video_preview,omitempty"`
}

type PreviewImage struct {
	Source ImageSource `json:"source"`
}

type ImageSource struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// VideoSource lists the playable renditions of a hosted video.
type VideoSource struct {
	FallbackURL string `json:"fallback_url,omitempty"`
	HLSURL      string `json:"hls_url,omitempty"`
}
