// Package wordpress is a minimal client for the WordPress REST API, used by
// the content-API placement strategy to read and edit published posts.
package wordpress

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

	"github.com/linkdeck/placement-engine/internal/logger"
)

const maxErrorBodyBytes = 4 * 1024

// RenderedField is the WordPress rendered-content wrapper
type RenderedField struct {
	Rendered string `json:"rendered"`
}

// Post is one published content item
type Post struct {
	ID      int           `json:"id"`
	Date    string        `json:"date"`
	Link    string        `json:"link"`
	Title   RenderedField `json:"title"`
	Content RenderedField `json:"content"`
}

// apiError is the WordPress REST error envelope
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client talks to one site's WordPress REST surface using an application
// password. Credentials come from DomainMetrics and are injected at
// construction.
type Client struct {
	baseURL     string
	username    string
	appPassword string
	client      *http.Client
	logger      logger.Logger
}

// NewClient creates a client for the given site
func NewClient(siteURL, username, appPassword string, httpClient *http.Client, log logger.Logger) (*Client, error) {
	if siteURL == "" {
		return nil, errors.New("site URL is required")
	}
	if username == "" || appPassword == "" {
		return nil, errors.New("wordpress credentials are required")
	}

	u, err := url.Parse(siteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid site URL %q", siteURL)
	}

	return &Client{
		baseURL:     u.Scheme + "://" + u.Host,
		username:    username,
		appPassword: appPassword,
		client:      httpClient,
		logger:      log,
	}, nil
}

// ListPosts fetches the most recent published posts
func (c *Client) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/posts?status=publish&per_page=%d", c.baseURL, limit)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.username, c.appPassword)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.decodeError(resp, "list posts")
	}

	var posts []Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

// UpdatePost replaces a post's body content through an authenticated update
// call. The write is atomic from this client's perspective: either the whole
// body is replaced or the call errors.
func (c *Client) UpdatePost(ctx context.Context, postID int, content string) error {
	startTime := time.Now()

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshal update payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/posts/%d", c.baseURL, postID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.username, c.appPassword)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeError(resp, "update post")
	}

	c.logger.Debug("post updated",
		logger.String("base_url", c.baseURL),
		logger.Int("post_id", postID),
		logger.Int("content_size", len(content)),
		logger.Duration("request_duration", time.Since(startTime)),
	)
	return nil
}

// FetchPage retrieves a live page body for post-update verification. No
// authentication: the check is what an ordinary visitor would see.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("fetch page: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return string(body), nil
}

// BaseURL returns the normalized site origin
func (c *Client) BaseURL() string {
	return c.baseURL
}

// decodeError reads the REST error envelope and surfaces its message
func (c *Client) decodeError(resp *http.Response, operation string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var wpErr apiError
	if json.Unmarshal(body, &wpErr) == nil && wpErr.Message != "" {
		c.logger.Warn("wordpress API error",
			logger.String("base_url", c.baseURL),
			logger.String("operation", operation),
			logger.Int("status_code", resp.StatusCode),
			logger.String("error_code", wpErr.Code),
			logger.String("error_message", wpErr.Message),
		)
		return fmt.Errorf("wordpress API error (%d): %s", resp.StatusCode, wpErr.Message)
	}

	return fmt.Errorf("wordpress API error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
