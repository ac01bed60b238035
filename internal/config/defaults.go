package config

import (
	"github.com/spf13/viper"
)

// Entry describes one configuration key with its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the default configuration entries.
// These are registered as viper defaults and listed by `readaloud config defaults`.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// ===================
		// Server
		// ===================
		{
			Key:         "server.host",
			Value:       d.Server.Host,
			Description: "Address the HTTP server binds to",
		},
		{
			Key:         "server.port",
			Value:       d.Server.Port,
			Description: "Port the HTTP server listens on",
		},
		{
			Key:         "output.folder",
			Value:       d.Output.Folder,
			Description: "Default folder for saved OCR text and audio files",
		},

		// ===================
		// OCR
		// ===================
		{
			Key:         "ocr.type",
			Value:       d.OCR.Type,
			Description: "OCR provider type",
		},
		{
			Key:         "ocr.base_url",
			Value:       d.OCR.BaseURL,
			Description: "OCR API base URL (empty uses https://api.mistral.ai/v1)",
		},
		{
			Key:         "ocr.model",
			Value:       d.OCR.Model,
			Description: "Mistral OCR model name",
		},
		{
			Key:         "ocr.api_key",
			Value:       d.OCR.APIKey,
			Description: "Fallback Mistral API key when none is entered; empty disables it (supports ${ENV_VAR})",
		},
		{
			Key:         "ocr.include_images",
			Value:       d.OCR.IncludeImages,
			Description: "Ask the OCR API to include extracted image data",
		},
		{
			Key:         "ocr.request_gap_seconds",
			Value:       d.OCR.RequestGapSeconds,
			Description: "Minimum pause between consecutive OCR requests",
		},
		{
			Key:         "ocr.timeout_seconds",
			Value:       d.OCR.TimeoutSeconds,
			Description: "HTTP timeout in seconds for OCR requests",
		},

		// ===================
		// TTS
		// ===================
		{
			Key:         "tts.type",
			Value:       d.TTS.Type,
			Description: "Text-to-speech provider type",
		},
		{
			Key:         "tts.base_url",
			Value:       d.TTS.BaseURL,
			Description: "TTS API base URL (empty uses https://api.openai.com/v1)",
		},
		{
			Key:         "tts.model",
			Value:       d.TTS.Model,
			Description: "OpenAI speech model",
		},
		{
			Key:         "tts.default_voice",
			Value:       d.TTS.DefaultVoice,
			Description: "Voice preselected in the audio panel",
		},
		{
			Key:         "tts.api_key",
			Value:       d.TTS.APIKey,
			Description: "Fallback OpenAI API key when none is entered; empty disables it (supports ${ENV_VAR})",
		},
		{
			Key:         "tts.timeout_seconds",
			Value:       d.TTS.TimeoutSeconds,
			Description: "HTTP timeout in seconds for TTS requests",
		},

		// ===================
		// Sessions
		// ===================
		{
			Key:         "session.idle_ttl_minutes",
			Value:       d.Session.IdleTTLMinutes,
			Description: "Minutes an idle session is kept before its files are removed",
		},
		{
			Key:         "session.sweep_interval_seconds",
			Value:       d.Session.SweepIntervalSeconds,
			Description: "How often idle sessions are collected",
		},
	}
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// applyDefaults registers every default entry on v.
func applyDefaults(v *viper.Viper) {
	for _, entry := range DefaultEntries() {
		v.SetDefault(entry.Key, entry.Value)
	}
}
