// Package ingest turns user-supplied references (URLs or uploaded files)
// into descriptors the OCR provider understands. It never touches the network.
package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/webp"

	"github.com/jackzampolin/readaloud/internal/providers"
)

// SourceKind says where a source came from.
type SourceKind string

const (
	SourceURL    SourceKind = "url"
	SourceUpload SourceKind = "upload"
)

// MediaKind says what a source contains.
type MediaKind string

const (
	MediaPDF   MediaKind = "pdf"
	MediaImage MediaKind = "image"
)

const pdfMimeType = "application/pdf"

var (
	// ErrEmptyInput is returned for a blank URL or an empty upload.
	ErrEmptyInput = errors.New("empty input")
	// ErrUnknownMedia is returned for a media kind other than pdf or image.
	ErrUnknownMedia = errors.New("unknown media kind")
)

// ParseMediaKind parses "pdf" or "image" (case-insensitive).
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case MediaPDF:
		return MediaPDF, nil
	case MediaImage:
		return MediaImage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMedia, s)
	}
}

// Descriptor is the normalized request for the OCR provider.
type Descriptor struct {
	Kind    string `json:"kind"`    // "document_url" or "image_url"
	Locator string `json:"locator"` // URL or base64 data URI
}

// Document converts the descriptor to the provider request type.
func (d Descriptor) Document() providers.Document {
	return providers.Document{Type: d.Kind, URL: d.Locator}
}

// Upload is a file received from the user.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Source is a resolved OCR input.
// PreviewRef and RawBytes always describe the same document as Descriptor.
type Source struct {
	Kind       SourceKind
	Media      MediaKind
	Descriptor Descriptor
	Name       string
	MimeType   string
	PreviewRef string
	RawBytes   []byte // image uploads only

	PageCount int // pdf uploads, 0 when unknown
	Width     int // image uploads, 0 when unknown
	Height    int
}

func descriptorKind(media MediaKind) string {
	if media == MediaPDF {
		return providers.DocumentTypeDocumentURL
	}
	return providers.DocumentTypeImageURL
}

// ResolveURL builds a source for a remote document or image.
func ResolveURL(media MediaKind, url string) (Source, error) {
	if media != MediaPDF && media != MediaImage {
		return Source{}, fmt.Errorf("%w: %q", ErrUnknownMedia, media)
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return Source{}, fmt.Errorf("url: %w", ErrEmptyInput)
	}
	return Source{
		Kind:       SourceURL,
		Media:      media,
		Descriptor: Descriptor{Kind: descriptorKind(media), Locator: url},
		Name:       url,
		PreviewRef: url,
	}, nil
}

// ResolveUpload embeds an uploaded file as a base64 data URI.
// PDFs always use application/pdf. Images use the upload's mime type and fall
// back to content sniffing only when the upload carries none.
func ResolveUpload(media MediaKind, up Upload, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if media != MediaPDF && media != MediaImage {
		return Source{}, fmt.Errorf("%w: %q", ErrUnknownMedia, media)
	}
	if len(up.Data) == 0 {
		return Source{}, fmt.Errorf("upload %q: %w", up.Name, ErrEmptyInput)
	}

	mime := pdfMimeType
	if media == MediaImage {
		mime = strings.TrimSpace(up.MimeType)
		if mime == "" {
			mime = http.DetectContentType(up.Data)
		}
	}

	locator := DataURI(mime, up.Data)
	src := Source{
		Kind:       SourceUpload,
		Media:      media,
		Descriptor: Descriptor{Kind: descriptorKind(media), Locator: locator},
		Name:       up.Name,
		MimeType:   mime,
		PreviewRef: locator,
	}

	switch media {
	case MediaPDF:
		n, err := api.PageCount(bytes.NewReader(up.Data), nil)
		if err != nil {
			logger.Debug("could not count PDF pages", "name", up.Name, "error", err)
		} else {
			src.PageCount = n
		}
	case MediaImage:
		src.RawBytes = append([]byte(nil), up.Data...)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(up.Data))
		if err != nil {
			logger.Debug("could not read image dimensions", "name", up.Name, "error", err)
		} else {
			src.Width, src.Height = cfg.Width, cfg.Height
		}
	}

	return src, nil
}

// DataURI returns data:<mime>;base64,<payload>.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI produced by DataURI.
func DecodeDataURI(uri string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid data URI payload: %w", err)
	}
	return mime, data, nil
}

// ParseURLs splits a newline-separated list, trimming and dropping blank lines.
func ParseURLs(text string) []string {
	var urls []string
	for _, line := range strings.Split(text, "\n") {
		if u := strings.TrimSpace(line); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// ResolveURLs resolves every URL in order.
func ResolveURLs(media MediaKind, urls []string) ([]Source, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs provided: %w", ErrEmptyInput)
	}
	sources := make([]Source, 0, len(urls))
	for _, u := range urls {
		src, err := ResolveURL(media, u)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ResolveUploads resolves every upload in order.
func ResolveUploads(media MediaKind, uploads []Upload, logger *slog.Logger) ([]Source, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no files uploaded: %w", ErrEmptyInput)
	}
	sources := make([]Source, 0, len(uploads))
	for _, up := range uploads {
		src, err := ResolveUpload(media, up, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
