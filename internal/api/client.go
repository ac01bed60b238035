package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SessionHeader carries the session ID for non-browser clients.
const SessionHeader = "X-Session-ID"

var (
	sessionMu   sync.Mutex
	sessionFile string // set by the root command; empty disables persistence
	sessionID   string // explicit override from --session
)

// SetSessionFile sets where the CLI remembers its session between invocations.
func SetSessionFile(path string) {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	sessionFile = path
}

// SetSessionID pins the session used by every client in this process.
func SetSessionID(id string) {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	sessionID = id
}

// currentSession returns the pinned ID, or the remembered one.
func currentSession() string {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	if sessionID != "" {
		return sessionID
	}
	if sessionFile == "" {
		return ""
	}
	data, err := os.ReadFile(sessionFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// rememberSession records the ID the server assigned.
func rememberSession(id string) {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	if id == "" || sessionID != "" || sessionFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(sessionFile), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(sessionFile, []byte(id+"\n"), 0o600)
}

// ForgetSession drops the remembered session ID.
func ForgetSession() error {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	if sessionFile == "" {
		return nil
	}
	if err := os.Remove(sessionFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Client is an HTTP client for the readaloud API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // OCR batches and long narrations
		},
	}
}

// Get performs a GET request and decodes the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

// Post performs a POST request with JSON body and decodes the response.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	resp, err := c.do(ctx, http.MethodPost, path, bodyReader, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

// FilePart is one file in a multipart upload.
type FilePart struct {
	Field string
	Path  string
}

// PostMultipart uploads local files plus form fields and decodes the response.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []FilePart, result any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Path, err)
		}
		part, err := mw.CreateFormFile(f.Field, filepath.Base(f.Path))
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("failed to write form file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

// Download performs a GET request and returns the raw body.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := currentSession(); id != "" {
		req.Header.Set(SessionHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	rememberSession(resp.Header.Get(SessionHeader))
	return resp, nil
}

func (c *Client) handleResponse(resp *http.Response, result any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, body)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func decodeError(status int, body []byte) error {
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("server error (%d): %s", status, errResp.Error)
	}
	return fmt.Errorf("server error (%d): %s", status, string(body))
}

// ErrorResponse matches the server's error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}
