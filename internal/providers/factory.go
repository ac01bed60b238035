package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrMissingAPIKey is returned when neither the caller nor config supplies a key.
var ErrMissingAPIKey = errors.New("API key is required")

// OCRProviderConfig is the resolved OCR section of config.
type OCRProviderConfig struct {
	Type          string // "mistral-ocr"
	BaseURL       string
	Model         string
	APIKey        string // Resolved fallback key
	IncludeImages bool
	Timeout       time.Duration
}

// TTSProviderConfig is the resolved TTS section of config.
type TTSProviderConfig struct {
	Type    string // "openai"
	BaseURL string
	Model   string
	APIKey  string // Resolved fallback key
	Timeout time.Duration
}

// FactoryConfig defines the providers to build.
type FactoryConfig struct {
	OCR OCRProviderConfig
	TTS TTSProviderConfig
}

// OCRBuilder creates an OCR provider from resolved config.
type OCRBuilder func(cfg OCRProviderConfig) OCRProvider

// TTSBuilder creates a TTS provider from resolved config.
type TTSBuilder func(cfg TTSProviderConfig) TTSProvider

// Factory builds provider clients on demand.
// Keys arrive with each request (typed into the page), so clients are cheap
// per-call values rather than long-lived registry entries. Config supplies
// everything else and can be swapped at runtime with Reload.
type Factory struct {
	mu          sync.RWMutex
	cfg         FactoryConfig
	ocrBuilders map[string]OCRBuilder
	ttsBuilders map[string]TTSBuilder
	logger      *slog.Logger
}

// NewFactory creates a factory with the built-in provider types registered.
func NewFactory(cfg FactoryConfig) *Factory {
	f := &Factory{
		cfg:         cfg,
		ocrBuilders: make(map[string]OCRBuilder),
		ttsBuilders: make(map[string]TTSBuilder),
		logger:      slog.Default(),
	}
	f.ocrBuilders[MistralOCRName] = func(c OCRProviderConfig) OCRProvider {
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey:        c.APIKey,
			BaseURL:       c.BaseURL,
			Model:         c.Model,
			Timeout:       c.Timeout,
			IncludeImages: c.IncludeImages,
		})
	}
	f.ttsBuilders[OpenAITTSName] = func(c TTSProviderConfig) TTSProvider {
		return NewOpenAITTSClient(OpenAITTSConfig{
			APIKey:  c.APIKey,
			BaseURL: c.BaseURL,
			Model:   c.Model,
			Timeout: c.Timeout,
		})
	}
	return f
}

// SetLogger sets the logger for the factory.
func (f *Factory) SetLogger(logger *slog.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logger = logger
}

// RegisterOCR registers an OCR builder under a provider type.
func (f *Factory) RegisterOCR(typ string, b OCRBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ocrBuilders[typ] = b
	if f.logger != nil {
		f.logger.Debug("registered OCR provider type", "type", typ)
	}
}

// RegisterTTS registers a TTS builder under a provider type.
func (f *Factory) RegisterTTS(typ string, b TTSBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttsBuilders[typ] = b
	if f.logger != nil {
		f.logger.Debug("registered TTS provider type", "type", typ)
	}
}

// Reload swaps the provider configuration. Clients built afterwards use it.
func (f *Factory) Reload(cfg FactoryConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := f.cfg.OCR.Type != cfg.OCR.Type || f.cfg.OCR.Model != cfg.OCR.Model ||
		f.cfg.TTS.Type != cfg.TTS.Type || f.cfg.TTS.Model != cfg.TTS.Model
	f.cfg = cfg
	if f.logger != nil {
		f.logger.Info("reloaded provider config",
			"ocr_type", cfg.OCR.Type, "ocr_model", cfg.OCR.Model,
			"tts_type", cfg.TTS.Type, "tts_model", cfg.TTS.Model,
			"changed", changed)
	}
}

// Config returns the current provider configuration.
func (f *Factory) Config() FactoryConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg
}

// HasOCRKey reports whether config supplies a fallback OCR key.
func (f *Factory) HasOCRKey() bool {
	return f.Config().OCR.APIKey != ""
}

// HasTTSKey reports whether config supplies a fallback TTS key.
func (f *Factory) HasTTSKey() bool {
	return f.Config().TTS.APIKey != ""
}

// OCR builds an OCR provider. A non-empty apiKey overrides the config key.
func (f *Factory) OCR(apiKey string) (OCRProvider, error) {
	f.mu.RLock()
	cfg := f.cfg.OCR
	build, ok := f.ocrBuilders[cfg.Type]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("OCR provider type not found: %s", cfg.Type)
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OCR: %w", ErrMissingAPIKey)
	}
	return build(cfg), nil
}

// TTS builds a TTS provider. A non-empty apiKey overrides the config key.
func (f *Factory) TTS(apiKey string) (TTSProvider, error) {
	f.mu.RLock()
	cfg := f.cfg.TTS
	build, ok := f.ttsBuilders[cfg.Type]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("TTS provider type not found: %s", cfg.Type)
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("TTS: %w", ErrMissingAPIKey)
	}
	return build(cfg), nil
}

// ListOCR returns all registered OCR provider types.
func (f *Factory) ListOCR() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.ocrBuilders))
	for name := range f.ocrBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTTS returns all registered TTS provider types.
func (f *Factory) ListTTS() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.ttsBuilders))
	for name := range f.ttsBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
