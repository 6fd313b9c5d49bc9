package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"disaster-posts-viewer/models"
)

const (
	ListFallback   = "Failed to fetch posts"
	DetailFallback = "Failed to fetch post"
)

// ErrMalformed marks a response body that is not valid JSON
var ErrMalformed = errors.New("malformed response")

// APIError is a non-2xx answer from the posts API
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

// Client talks to the upstream posts API
type Client struct {
	baseURL    string
	httpClient http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: http.Client{
			Timeout: timeout,
		},
	}
}

// ListPosts fetches one page of posts
func (c *Client) ListPosts(ctx context.Context, page, perPage int) (*models.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var result *models.Page
	if err := c.get(ctx, "/api/posts?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = &models.Page{}
	}
	if result.Posts == nil {
		result.Posts = []models.Post{}
	}
	return result, nil
}

// GetPost fetches a single post including its NLP annotations
func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := c.get(ctx, "/api/posts/"+url.PathEscape(id), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w: %v", path, ErrMalformed, err)
	}
	return nil
}

// IsCanceled reports whether err comes from a cancelled request
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Message turns err into the text shown to the user
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	if errors.Is(err, ErrMalformed) {
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
