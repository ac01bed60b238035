package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAITTSName         = "openai"
	openAITTSDefaultModel = openai.SpeechModelTTS1
	openAITTSDefaultVoice = "alloy"
)

// Voices is the fixed set offered for narration, in display order.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// IsVoice reports whether name is one of the supported voices.
func IsVoice(name string) bool {
	return slices.Contains(Voices, name)
}

// OpenAITTSConfig holds configuration for the OpenAI TTS client.
type OpenAITTSConfig struct {
	APIKey     string
	Model      string        // "tts-1" (default)
	Voice      string        // "alloy" (default)
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAITTSClient implements TTSProvider using the official OpenAI SDK.
// Requests are issued once; a failure is reported to the user rather than retried.
type OpenAITTSClient struct {
	model  string
	voice  string
	client openai.Client
}

// NewOpenAITTSClient creates a new OpenAI TTS client.
func NewOpenAITTSClient(cfg OpenAITTSConfig) *OpenAITTSClient {
	if cfg.Model == "" {
		cfg.Model = openAITTSDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = openAITTSDefaultVoice
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAITTSClient{
		model:  cfg.Model,
		voice:  cfg.Voice,
		client: openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAITTSClient) Name() string {
	return OpenAITTSName
}

// Model returns the configured model.
func (c *OpenAITTSClient) Model() string {
	return c.model
}

// Voice returns the configured default voice.
func (c *OpenAITTSClient) Voice() string {
	return c.voice
}

// Generate converts text to audio using the OpenAI speech endpoint.
// The text is sent as-is; callers decide what counts as empty.
func (c *OpenAITTSClient) Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	start := time.Now()

	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = c.voice
	}

	format := normalizeOpenAIFormat(req.Format)
	var errBody []byte
	resp, err := c.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(c.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: format,
	}, option.WithMiddleware(captureErrorBody(&errBody)))
	if err != nil {
		return nil, mapOpenAIError(err, errBody)
	}
	defer resp.Body.Close()

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading openai audio response: %w", err)
	}

	return &TTSResult{
		Audio:         audioBytes,
		Format:        string(format),
		CharCount:     len([]rune(req.Text)),
		ExecutionTime: time.Since(start),
	}, nil
}

func normalizeOpenAIFormat(format string) openai.AudioSpeechNewParamsResponseFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "opus":
		return openai.AudioSpeechNewParamsResponseFormatOpus
	case "aac":
		return openai.AudioSpeechNewParamsResponseFormatAAC
	case "flac":
		return openai.AudioSpeechNewParamsResponseFormatFLAC
	case "wav":
		return openai.AudioSpeechNewParamsResponseFormatWAV
	default:
		return openai.AudioSpeechNewParamsResponseFormatMP3
	}
}

// captureErrorBody keeps a copy of an error response body. The SDK parses
// error bodies into fields; the user sees the body as the service sent it.
func captureErrorBody(dst *[]byte) option.Middleware {
	return func(r *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		resp, err := next(r)
		if err != nil || resp == nil || resp.StatusCode < 400 {
			return resp, err
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed reading openai error response: %w", readErr)
		}
		*dst = data
		resp.Body = io.NopCloser(bytes.NewReader(data))
		return resp, nil
	}
}

// mapOpenAIError turns SDK status errors into *APIError carrying the status
// code and the response body unchanged.
func mapOpenAIError(err error, rawBody []byte) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := string(rawBody)
		if body == "" {
			body = apiErr.Message
		}
		if body == "" {
			body = http.StatusText(apiErr.StatusCode)
		}
		return &APIError{Provider: OpenAITTSName, StatusCode: apiErr.StatusCode, Body: body}
	}
	return err
}

var _ TTSProvider = (*OpenAITTSClient)(nil)
