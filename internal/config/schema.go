package config

import "time"

// Config holds readaloud configuration.
// Stored at: ~/.readaloud/config.yaml (or ./config.yaml)
type Config struct {
	Server  ServerCfg  `mapstructure:"server" yaml:"server"`
	Output  OutputCfg  `mapstructure:"output" yaml:"output"`
	OCR     OCRCfg     `mapstructure:"ocr" yaml:"ocr"`
	TTS     TTSCfg     `mapstructure:"tts" yaml:"tts"`
	Session SessionCfg `mapstructure:"session" yaml:"session"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// OutputCfg configures where saved files go by default.
type OutputCfg struct {
	Folder string `mapstructure:"folder" yaml:"folder"` // Supports ~ prefix
}

// OCRCfg configures the OCR provider.
type OCRCfg struct {
	Type              string  `mapstructure:"type" yaml:"type"`         // "mistral-ocr"
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"` // Empty uses the provider default
	Model             string  `mapstructure:"model" yaml:"model"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	IncludeImages     bool    `mapstructure:"include_images" yaml:"include_images"`
	RequestGapSeconds float64 `mapstructure:"request_gap_seconds" yaml:"request_gap_seconds"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// TTSCfg configures the text-to-speech provider.
type TTSCfg struct {
	Type           string `mapstructure:"type" yaml:"type"` // "openai"
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	Model          string `mapstructure:"model" yaml:"model"`
	DefaultVoice   string `mapstructure:"default_voice" yaml:"default_voice"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// SessionCfg controls session lifetime.
type SessionCfg struct {
	IdleTTLMinutes       int `mapstructure:"idle_ttl_minutes" yaml:"idle_ttl_minutes"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Output: OutputCfg{
			Folder: "~/ocr_audio_output",
		},
		OCR: OCRCfg{
			Type:              "mistral-ocr",
			Model:             "mistral-ocr-latest",
			IncludeImages:     true,
			RequestGapSeconds: 1.0,
			TimeoutSeconds:    120,
		},
		TTS: TTSCfg{
			Type:           "openai",
			Model:          "tts-1",
			DefaultVoice:   "alloy",
			TimeoutSeconds: 300,
		},
		Session: SessionCfg{
			IdleTTLMinutes:       720,
			SweepIntervalSeconds: 60,
		},
	}
}

// RequestGap returns the minimum pause between OCR calls.
func (c OCRCfg) RequestGap() time.Duration {
	return time.Duration(c.RequestGapSeconds * float64(time.Second))
}

// Timeout returns the OCR HTTP timeout.
func (c OCRCfg) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the TTS HTTP timeout.
func (c TTSCfg) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IdleTTL returns how long an untouched session survives.
func (c SessionCfg) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLMinutes) * time.Minute
}

// SweepInterval returns how often idle sessions are collected.
func (c SessionCfg) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
