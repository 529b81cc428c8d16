// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package storyapi is the HTTP/JSON client for the remote story API. The
// engine treats it as an unreliable RPC surface: transport failures surface
// as network errors, well-formed rejections as *APIError.
package storyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/mobiletoly/go-storysync/storysync"
)

// TokenFunc supplies the current bearer token, or "" for anonymous calls.
type TokenFunc func(ctx context.Context) (string, error)

// Client talks to the story API at a fixed base endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   TokenFunc
	logger  *slog.Logger
}

// NewClient creates a story API client. token may be nil for anonymous-only
// usage.
func NewClient(baseURL string, token TokenFunc, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Token:   token,
		logger:  logger,
	}
}

// APIError is a well-formed application-level rejection from the remote API.
// It is surfaced to callers as-is and never retried automatically.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("story api rejected request (status %d): %s", e.StatusCode, e.Message)
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// envelope is the common response shape of the story API.
type envelope struct {
	Error       bool              `json:"error"`
	Message     string            `json:"message"`
	ListStory   []storysync.Story `json:"listStory,omitempty"`
	Story       *storysync.Story  `json:"story,omitempty"`
	LoginResult *LoginResult      `json:"loginResult,omitempty"`
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	_, err := c.postJSON(ctx, "/register", body, false)
	return err
}

// Login authenticates and returns the session credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	env, err := c.postJSON(ctx, "/login", body, false)
	if err != nil {
		return nil, err
	}
	if env.LoginResult == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "login response missing loginResult"}
	}
	return env.LoginResult, nil
}

// ListStories fetches a page of stories.
func (c *Client) ListStories(ctx context.Context, opts storysync.ListOptions) ([]storysync.Story, error) {
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	size := opts.Size
	if size <= 0 {
		size = 10
	}
	location := 0
	if opts.WithLocation {
		location = 1
	}

	path := fmt.Sprintf("/stories?page=%d&size=%d&location=%d", page, size, location)
	env, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return env.ListStory, nil
}

// StoryByID fetches one story's details.
func (c *Client) StoryByID(ctx context.Context, id string) (*storysync.Story, error) {
	env, err := c.get(ctx, "/stories/"+id)
	if err != nil {
		return nil, err
	}
	if env.Story == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "story response missing story"}
	}
	return env.Story, nil
}

// CreateStory submits a story as multipart form data with the photo as raw
// binary. Anonymous clients post to the guest endpoint.
func (c *Client) CreateStory(ctx context.Context, story *storysync.NewStory) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("description", story.Description); err != nil {
		return fmt.Errorf("failed to write description field: %w", err)
	}
	fw, err := mw.CreateFormFile("photo", "photo.jpg")
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := fw.Write(story.Photo); err != nil {
		return fmt.Errorf("failed to write photo data: %w", err)
	}
	if story.Lat != nil {
		if err := mw.WriteField("lat", strconv.FormatFloat(*story.Lat, 'f', -1, 64)); err != nil {
			return fmt.Errorf("failed to write lat field: %w", err)
		}
	}
	if story.Lon != nil {
		if err := mw.WriteField("lon", strconv.FormatFloat(*story.Lon, 'f', -1, 64)); err != nil {
			return fmt.Errorf("failed to write lon field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	path := "/stories"
	if token == "" {
		path = "/stories/guest"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	_, err = c.do(httpReq)
	return err
}

// Ping probes the base endpoint. A nil error means the remote is reachable;
// the response status does not matter for reachability.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, c.BaseURL+"/stories?page=1&size=1", nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.Token == nil {
		return "", nil
	}
	token, err := c.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get bearer token: %w", err)
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, path string) (*envelope, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(httpReq)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, authenticated bool) (*envelope, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if authenticated {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.do(httpReq)
}

// do executes a request and decodes the common envelope. Transport failures
// are returned wrapped (and classify as network errors); HTTP-level and
// envelope-level rejections become *APIError.
func (c *Client) do(httpReq *http.Request) (*envelope, error) {
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if jerr := json.Unmarshal(data, &env); jerr != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, jerr)
	}

	if env.Error || resp.StatusCode >= 400 {
		c.logger.Warn("Story API rejected request",
			"path", httpReq.URL.Path, "status", resp.StatusCode, "message", env.Message)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}
