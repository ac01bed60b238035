package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	MistralOCRName    = "mistral-ocr"
	MistralOCRBaseURL = "https://api.mistral.ai/v1"
	MistralOCRModel   = "mistral-ocr-latest"
)

// mistralOCRResponseSchema is the subset of the OCR response we rely on.
// Pages may be missing entirely; when present each markdown must be a string.
const mistralOCRResponseSchema = `{
  "type": "object",
  "properties": {
    "model": {"type": "string"},
    "pages": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "index": {"type": "integer"},
          "markdown": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var (
	mistralSchemaOnce sync.Once
	mistralSchema     *jsonschema.Schema
	mistralSchemaErr  error
)

// MistralOCRConfig holds configuration for the Mistral OCR client.
type MistralOCRConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	IncludeImages bool         // Whether to include base64 image data in response
	HTTPClient    *http.Client // Optional (tests)
}

// MistralOCRClient implements OCRProvider using the Mistral OCR API.
type MistralOCRClient struct {
	apiKey        string
	baseURL       string
	model         string
	includeImages bool
	client        *http.Client
}

// NewMistralOCRClient creates a new Mistral OCR client.
func NewMistralOCRClient(cfg MistralOCRConfig) *MistralOCRClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralOCRBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = MistralOCRModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &MistralOCRClient{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		model:         cfg.Model,
		includeImages: cfg.IncludeImages,
		client:        client,
	}
}

// Name returns the provider identifier.
func (c *MistralOCRClient) Name() string {
	return MistralOCRName
}

// Model returns the configured model.
func (c *MistralOCRClient) Model() string {
	return c.model
}

// Process extracts text from a document or image using Mistral OCR.
func (c *MistralOCRClient) Process(ctx context.Context, doc Document) (*OCRResult, error) {
	start := time.Now()

	reqBody := mistralOCRRequest{
		Model:              c.model,
		IncludeImageBase64: c.includeImages,
	}
	switch doc.Type {
	case DocumentTypeDocumentURL:
		reqBody.Document = mistralDocument{Type: DocumentTypeDocumentURL, DocumentURL: doc.URL}
	case DocumentTypeImageURL:
		reqBody.Document = mistralDocument{Type: DocumentTypeImageURL, ImageURL: &mistralImageURL{URL: doc.URL}}
	default:
		return nil, fmt.Errorf("unsupported document type %q", doc.Type)
	}

	resp, err := c.doRequest(ctx, "/ocr", reqBody)
	if err != nil {
		return nil, err
	}

	pages := make([]OCRPage, 0, len(resp.Pages))
	for _, p := range resp.Pages {
		pages = append(pages, OCRPage{Index: p.Index, Markdown: p.Markdown})
	}

	result := &OCRResult{
		Pages:         pages,
		Model:         resp.Model,
		ExecutionTime: time.Since(start),
	}
	if resp.UsageInfo != nil {
		result.PagesProcessed = resp.UsageInfo.PagesProcessed
	}
	return result, nil
}

// doRequest makes an HTTP request to Mistral API.
func (c *MistralOCRClient) doRequest(ctx context.Context, path string, body any) (*mistralOCRResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Prefer the structured message when the API sends one
		var errResp mistralErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message() != "" {
			return nil, &APIError{Provider: MistralOCRName, StatusCode: resp.StatusCode, Body: errResp.Message()}
		}
		return nil, &APIError{Provider: MistralOCRName, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := validateMistralResponse(respBody); err != nil {
		return nil, err
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &ocrResp, nil
}

// validateMistralResponse checks the response shape before decoding.
func validateMistralResponse(body []byte) error {
	mistralSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("mistral-ocr-response.json", strings.NewReader(mistralOCRResponseSchema)); err != nil {
			mistralSchemaErr = fmt.Errorf("failed to load response schema: %w", err)
			return
		}
		mistralSchema, mistralSchemaErr = compiler.Compile("mistral-ocr-response.json")
	})
	if mistralSchemaErr != nil {
		return mistralSchemaErr
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := mistralSchema.Validate(doc); err != nil {
		return fmt.Errorf("unexpected OCR response shape: %w", err)
	}
	return nil
}

// Mistral OCR API types

type mistralOCRRequest struct {
	Model              string          `json:"model"`
	Document           mistralDocument `json:"document"`
	IncludeImageBase64 bool            `json:"include_image_base64"`
}

type mistralDocument struct {
	Type        string           `json:"type"` // "image_url" or "document_url"
	ImageURL    *mistralImageURL `json:"image_url,omitempty"`
	DocumentURL string           `json:"document_url,omitempty"`
}

type mistralImageURL struct {
	URL string `json:"url"`
}

type mistralOCRResponse struct {
	Model     string            `json:"model"`
	Pages     []mistralOCRPage  `json:"pages"`
	UsageInfo *mistralUsageInfo `json:"usage_info,omitempty"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type mistralUsageInfo struct {
	PagesProcessed int `json:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes,omitempty"`
}

// mistralErrorResponse covers both error envelopes the API returns:
// {"error":{"message":...}} and {"message":...}.
type mistralErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
	Detail string `json:"message"`
}

func (r mistralErrorResponse) Message() string {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	return r.Detail
}

// Verify interface
var _ OCRProvider = (*MistralOCRClient)(nil)
