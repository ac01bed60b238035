package endpoints

import (
	"github.com/jackzampolin/readaloud/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},
		&UsageEndpoint{},

		// OCR endpoints
		&OCRProcessEndpoint{},
		&ListOCREndpoint{},
		&EditOCREndpoint{},
		&ExportOCREndpoint{},
		&SaveOCREndpoint{},
		&OCRImageEndpoint{},
		&OCRPreviewEndpoint{},
		&PickOCREndpoint{},

		// Audio endpoints
		&ListVoicesEndpoint{},
		&GenerateAudioEndpoint{},
		&ListAudioEndpoint{},
		&AudioFileEndpoint{},
		&SaveAudioEndpoint{},

		// Session and folder endpoints
		&FolderEndpoint{},
		&CloseSessionEndpoint{},

		// Page and assets
		&PageEndpoint{},
		&StaticEndpoint{},
	}
}
