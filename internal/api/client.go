package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/redreader/internal/saved"
	"github.com/ppiankov/redreader/internal/source"
	"github.com/ppiankov/redreader/internal/store"
)

const clientTimeout = 15 * time.Second

var (
	_ saved.RemoteCollection = (*Client)(nil)
	_ saved.Deleter          = (*Client)(nil)
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithCredential sets the bearer token attached to every request.
func WithCredential(token string) ClientOption {
	return func(c *Client) { c.credential = token }
}

// Client talks to a saved-collection server on behalf of one user.
type Client struct {
	baseURL    string
	credential string
	http       *http.Client
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: clientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List returns the caller's records, most recent first.
func (c *Client) List(ctx context.Context) ([]saved.Record, error) {
	var posts []store.SavedPost
	if err := c.do(ctx, http.MethodGet, "/api/saved", nil, &posts); err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}

	records := make([]saved.Record, 0, len(posts))
	for _, p := range posts {
		var it source.Item
		if err := json.Unmarshal(p.PostData, &it); err != nil {
			return nil, fmt.Errorf("decode saved post %s: %w", p.ID, err)
		}
		records = append(records, saved.Record{Item: it, RemoteID: p.ID})
	}
	return records, nil
}

// Create saves item and returns the server's record id.
func (c *Client) Create(ctx context.Context, item source.Item) (string, error) {
	body := struct {
		PostData source.Item `json:"postData"`
	}{PostData: item}

	var post store.SavedPost
	if err := c.do(ctx, http.MethodPost, "/api/saved", body, &post); err != nil {
		return "", fmt.Errorf("create saved %s: %w", item.ID, err)
	}
	if post.ID == "" {
		return "", fmt.Errorf("create saved %s: response has no id", item.ID)
	}
	return post.ID, nil
}

// Delete removes the record with the given server id.
func (c *Client) Delete(ctx context.Context, remoteID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/saved/"+url.PathEscape(remoteID), nil, nil); err != nil {
		return fmt.Errorf("delete saved %s: %w", remoteID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}
