package providers

import (
	"os"
)

// TestConfig holds provider keys loaded from environment variables.
// Live tests skip unless the matching key is present.
type TestConfig struct {
	MistralAPIKey string
	OpenAIAPIKey  string
}

// LoadTestConfig loads provider API keys from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		MistralAPIKey: os.Getenv("MISTRAL_API_KEY"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
	}
}

// HasMistral returns true if a Mistral API key is configured.
func (c TestConfig) HasMistral() bool {
	return c.MistralAPIKey != ""
}

// HasOpenAI returns true if an OpenAI API key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// ToFactoryConfig builds a factory config using the default provider types.
func (c TestConfig) ToFactoryConfig() FactoryConfig {
	return FactoryConfig{
		OCR: OCRProviderConfig{Type: MistralOCRName, Model: MistralOCRModel, APIKey: c.MistralAPIKey, IncludeImages: true},
		TTS: TTSProviderConfig{Type: OpenAITTSName, Model: string(openAITTSDefaultModel), APIKey: c.OpenAIAPIKey},
	}
}
