package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/jackzampolin/readaloud/internal/providers"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		media    MediaKind
		url      string
		wantKind string
	}{
		{"pdf url", MediaPDF, "https://example.com/a.pdf", providers.DocumentTypeDocumentURL},
		{"image url", MediaImage, "https://example.com/a.png", providers.DocumentTypeImageURL},
		{"trims whitespace", MediaPDF, "  https://example.com/b.pdf \r", providers.DocumentTypeDocumentURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := ResolveURL(tt.media, tt.url)
			if err != nil {
				t.Fatalf("ResolveURL() error = %v", err)
			}
			want := strings.TrimSpace(tt.url)
			if src.Descriptor.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", src.Descriptor.Kind, tt.wantKind)
			}
			if src.Descriptor.Locator != want {
				t.Errorf("Locator = %q, want %q", src.Descriptor.Locator, want)
			}
			if src.PreviewRef != want {
				t.Errorf("PreviewRef = %q, want %q", src.PreviewRef, want)
			}
			if src.RawBytes != nil {
				t.Error("URL sources never carry raw bytes")
			}
		})
	}

	t.Run("empty url", func(t *testing.T) {
		if _, err := ResolveURL(MediaPDF, "   "); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("error = %v, want ErrEmptyInput", err)
		}
	})

	t.Run("unknown media", func(t *testing.T) {
		if _, err := ResolveURL("video", "https://x"); !errors.Is(err, ErrUnknownMedia) {
			t.Errorf("error = %v, want ErrUnknownMedia", err)
		}
	})
}

func TestResolveURLs_TwoPDFs(t *testing.T) {
	urls := ParseURLs("https://example.com/one.pdf\n\n  https://example.com/two.pdf  \n")
	if len(urls) != 2 {
		t.Fatalf("ParseURLs() = %v", urls)
	}

	sources, err := ResolveURLs(MediaPDF, urls)
	if err != nil {
		t.Fatalf("ResolveURLs() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].PreviewRef != "https://example.com/one.pdf" || sources[1].PreviewRef != "https://example.com/two.pdf" {
		t.Errorf("preview refs = %q, %q", sources[0].PreviewRef, sources[1].PreviewRef)
	}
	for i, s := range sources {
		if s.RawBytes != nil {
			t.Errorf("source %d has raw bytes", i)
		}
	}

	if _, err := ResolveURLs(MediaPDF, nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty list error = %v", err)
	}
}

func TestResolveUpload_JPEG(t *testing.T) {
	data := encodeJPEG(t, 4, 3)

	src, err := ResolveUpload(MediaImage, Upload{Name: "scan.jpg", MimeType: "image/jpeg", Data: data}, nil)
	if err != nil {
		t.Fatalf("ResolveUpload() error = %v", err)
	}
	if !strings.HasPrefix(src.PreviewRef, "data:image/jpeg;base64,") {
		t.Errorf("PreviewRef = %.40q", src.PreviewRef)
	}
	if src.PreviewRef != src.Descriptor.Locator {
		t.Error("preview and descriptor must describe the same document")
	}
	if src.Descriptor.Kind != providers.DocumentTypeImageURL {
		t.Errorf("Kind = %q", src.Descriptor.Kind)
	}
	if !bytes.Equal(src.RawBytes, data) {
		t.Error("RawBytes must equal the uploaded bytes")
	}
	payload := strings.TrimPrefix(src.Descriptor.Locator, "data:image/jpeg;base64,")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || !bytes.Equal(decoded, data) {
		t.Error("locator payload does not round-trip")
	}
	if src.Width != 4 || src.Height != 3 {
		t.Errorf("dimensions = %dx%d, want 4x3", src.Width, src.Height)
	}
}

func TestResolveUpload_MimeFromMetadata(t *testing.T) {
	data := encodePNG(t, 2, 2)

	// Metadata wins even when it disagrees with the content.
	src, err := ResolveUpload(MediaImage, Upload{Name: "x", MimeType: "image/webp", Data: data}, nil)
	if err != nil {
		t.Fatalf("ResolveUpload() error = %v", err)
	}
	if src.MimeType != "image/webp" {
		t.Errorf("MimeType = %q, want image/webp", src.MimeType)
	}

	// Missing metadata falls back to sniffing.
	src, err = ResolveUpload(MediaImage, Upload{Name: "x", Data: data}, nil)
	if err != nil {
		t.Fatalf("ResolveUpload() error = %v", err)
	}
	if src.MimeType != "image/png" {
		t.Errorf("sniffed MimeType = %q, want image/png", src.MimeType)
	}
}

func TestResolveUpload_PDF(t *testing.T) {
	data := []byte("%PDF-1.4 not really a pdf")

	src, err := ResolveUpload(MediaPDF, Upload{Name: "doc.pdf", MimeType: "application/octet-stream", Data: data}, nil)
	if err != nil {
		t.Fatalf("ResolveUpload() error = %v", err)
	}
	if src.MimeType != "application/pdf" {
		t.Errorf("MimeType = %q, want application/pdf", src.MimeType)
	}
	if !strings.HasPrefix(src.Descriptor.Locator, "data:application/pdf;base64,") {
		t.Errorf("Locator = %.40q", src.Descriptor.Locator)
	}
	if src.Descriptor.Kind != providers.DocumentTypeDocumentURL {
		t.Errorf("Kind = %q", src.Descriptor.Kind)
	}
	if src.RawBytes != nil {
		t.Error("PDF uploads do not keep raw bytes")
	}
	if src.PageCount != 0 {
		t.Errorf("unparseable PDF should report 0 pages, got %d", src.PageCount)
	}
}

func TestResolveUpload_Empty(t *testing.T) {
	if _, err := ResolveUpload(MediaImage, Upload{Name: "empty.png"}, nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("error = %v, want ErrEmptyInput", err)
	}
	if _, err := ResolveUploads(MediaImage, nil, nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("error = %v, want ErrEmptyInput", err)
	}
}

func TestParseMediaKind(t *testing.T) {
	if m, err := ParseMediaKind(" PDF "); err != nil || m != MediaPDF {
		t.Errorf("ParseMediaKind(PDF) = %q, %v", m, err)
	}
	if m, err := ParseMediaKind("image"); err != nil || m != MediaImage {
		t.Errorf("ParseMediaKind(image) = %q, %v", m, err)
	}
	if _, err := ParseMediaKind("audio"); err == nil {
		t.Error("expected error for audio")
	}
}

func TestDescriptorDocument(t *testing.T) {
	d := Descriptor{Kind: providers.DocumentTypeImageURL, Locator: "https://x/y.png"}
	doc := d.Document()
	if doc.Type != d.Kind || doc.URL != d.Locator {
		t.Errorf("Document() = %+v", doc)
	}
}

func TestDecodeDataURI(t *testing.T) {
	data := []byte("%PDF-1.4 body")
	mime, got, err := DecodeDataURI(DataURI("application/pdf", data))
	if err != nil {
		t.Fatalf("DecodeDataURI() error = %v", err)
	}
	if mime != "application/pdf" || string(got) != string(data) {
		t.Errorf("DecodeDataURI() = %q, %q", mime, got)
	}

	for _, bad := range []string{"https://x/y.pdf", "data:text/plain,hello", "data:image/png;base64,!!!"} {
		if _, _, err := DecodeDataURI(bad); err == nil {
			t.Errorf("DecodeDataURI(%q) should fail", bad)
		}
	}
}
