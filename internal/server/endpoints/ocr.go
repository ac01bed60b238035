package endpoints

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/ingest"
	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/session"
	"github.com/jackzampolin/readaloud/internal/svcctx"
)

// User-facing OCR messages.
const (
	msgMissingOCRKey = "Please enter your API key to continue."
	msgNoURLs        = "Please enter at least one valid URL."
	msgNoUploads     = "Please upload at least one file."
	msgSessionClosed = "This session has ended. Reload the page to start a new one."
)

// ocrUploadExts are the file types accepted for OCR uploads.
var ocrUploadExts = map[string]bool{".pdf": true, ".jpg": true, ".jpeg": true, ".png": true}

// UploadFile is an uploaded document in a JSON request. Data is base64 in JSON.
type UploadFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"`
}

// OCRProcessRequest starts an OCR batch.
type OCRProcessRequest struct {
	APIKey string       `json:"api_key,omitempty"`
	Media  string       `json:"media"`            // "pdf" (default) or "image"
	Source string       `json:"source,omitempty"` // "url" or "upload"; inferred when empty
	URLs   []string     `json:"urls,omitempty"`
	Files  []UploadFile `json:"files,omitempty"`
}

// OCRResultView is an OCR entry as returned by the API.
type OCRResultView struct {
	Index     int    `json:"index"`
	Name      string `json:"name,omitempty"`
	Media     string `json:"media"`
	MimeType  string `json:"mime_type,omitempty"`
	PageCount int    `json:"page_count,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Text      string `json:"text"`
	SourceURL string `json:"source_url,omitempty"` // set for URL sources
	ImageURL  string `json:"image_url,omitempty"`  // set when upload bytes are kept
}

func newOCRResultView(e session.OCREntry) OCRResultView {
	v := OCRResultView{
		Index:     e.Index,
		Name:      e.Name,
		Media:     e.Media,
		MimeType:  e.MimeType,
		PageCount: e.PageCount,
		Width:     e.Width,
		Height:    e.Height,
		Failed:    e.Failed,
		Text:      e.Text,
	}
	if !strings.HasPrefix(e.PreviewRef, "data:") {
		v.SourceURL = e.PreviewRef
	}
	if e.HasImage() {
		v.ImageURL = fmt.Sprintf("/api/ocr/results/%d/image", e.Index)
	}
	return v
}

func ocrResultViews(entries []session.OCREntry) []OCRResultView {
	views := make([]OCRResultView, len(entries))
	for i, e := range entries {
		views[i] = newOCRResultView(e)
	}
	return views
}

// OCRProcessResponse reports a finished batch.
type OCRProcessResponse struct {
	Processed  int              `json:"processed"`
	Failed     int              `json:"failed"`
	DurationMs int64            `json:"duration_ms"`
	Results    []OCRResultView  `json:"results"`
	Notices    []session.Notice `json:"notices,omitempty"`
}

// OCRProcessEndpoint handles POST /api/ocr/process.
type OCRProcessEndpoint struct{}

func (e *OCRProcessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/ocr/process", e.handler
}

func (e *OCRProcessEndpoint) RequiresSession() bool { return true }

func (e *OCRProcessEndpoint) Group() string { return "ocr" }

func (e *OCRProcessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	factory := svcctx.FactoryFrom(ctx)
	runner := svcctx.OCRRunnerFrom(ctx)
	if factory == nil || runner == nil {
		writeError(w, http.StatusServiceUnavailable, "OCR service not initialized")
		return
	}

	req, uploads, err := readProcessRequest(w, r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "ocr")
		return
	}

	provider, err := factory.OCR(strings.TrimSpace(req.APIKey))
	if err != nil {
		if errors.Is(err, providers.ErrMissingAPIKey) {
			fail(w, r, http.StatusBadRequest, session.LevelInfo, msgMissingOCRKey, "ocr")
			return
		}
		fail(w, r, http.StatusInternalServerError, session.LevelError, err.Error(), "ocr")
		return
	}

	media := ingest.MediaPDF
	if strings.TrimSpace(req.Media) != "" {
		if media, err = ingest.ParseMediaKind(req.Media); err != nil {
			fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "ocr")
			return
		}
	}

	sourceKind := ingest.SourceKind(strings.ToLower(strings.TrimSpace(req.Source)))
	if sourceKind == "" {
		sourceKind = ingest.SourceURL
		if len(uploads) > 0 {
			sourceKind = ingest.SourceUpload
		}
	}

	logger := svcctx.LoggerFrom(ctx)
	var sources []ingest.Source
	switch sourceKind {
	case ingest.SourceURL:
		urls := ingest.ParseURLs(strings.Join(req.URLs, "\n"))
		if len(urls) == 0 {
			fail(w, r, http.StatusBadRequest, session.LevelError, msgNoURLs, "ocr")
			return
		}
		sources, err = ingest.ResolveURLs(media, urls)
	case ingest.SourceUpload:
		if len(uploads) == 0 {
			fail(w, r, http.StatusBadRequest, session.LevelError, msgNoUploads, "ocr")
			return
		}
		for _, up := range uploads {
			if !ocrUploadExts[strings.ToLower(filepath.Ext(up.Name))] {
				fail(w, r, http.StatusBadRequest, session.LevelError,
					fmt.Sprintf("Unsupported file type: %s (use pdf, jpg, jpeg or png)", up.Name), "ocr")
				return
			}
		}
		sources, err = ingest.ResolveUploads(media, uploads, logger)
	default:
		fail(w, r, http.StatusBadRequest, session.LevelError, fmt.Sprintf("unknown source %q", req.Source), "ocr")
		return
	}
	if err != nil {
		fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "ocr")
		return
	}

	var resp OCRProcessResponse
	err = sess.Exclusive(func() error {
		summary := runner.Process(ctx, provider, sess.OCR, sources)
		sess.PickForAudio(0)
		resp.Processed = summary.Processed
		resp.Failed = summary.Failed
		resp.DurationMs = summary.Duration.Milliseconds()
		return nil
	})
	if err != nil {
		status := http.StatusInternalServerError
		msg := err.Error()
		if errors.Is(err, session.ErrClosed) {
			status, msg = http.StatusGone, msgSessionClosed
		}
		fail(w, r, status, session.LevelError, msg, "ocr")
		return
	}
	resp.Results = ocrResultViews(sess.OCR.List())

	notice := session.Notice{Level: session.LevelSuccess, Message: fmt.Sprintf("Processed %d file(s).", resp.Processed)}
	if resp.Failed > 0 {
		notice = session.Notice{
			Level:   session.LevelWarning,
			Message: fmt.Sprintf("Processed %d file(s), %d failed.", resp.Processed, resp.Failed),
		}
	}
	resp.Notices = recordNotices(sess, r, notice)

	succeed(w, r, resp, "ocr-results")
}

// readProcessRequest reads a JSON or form request and collects uploads.
func readProcessRequest(w http.ResponseWriter, r *http.Request) (OCRProcessRequest, []ingest.Upload, error) {
	var req OCRProcessRequest
	if !isForm(r) {
		if err := decodeJSON(r, &req); err != nil {
			return req, nil, fmt.Errorf("invalid JSON: %w", err)
		}
		uploads := make([]ingest.Upload, 0, len(req.Files))
		for _, f := range req.Files {
			uploads = append(uploads, ingest.Upload{Name: f.Name, MimeType: f.MimeType, Data: f.Data})
		}
		return req, uploads, nil
	}

	if err := parseForm(w, r); err != nil {
		return req, nil, fmt.Errorf("invalid form: %w", err)
	}
	req.APIKey = r.FormValue("api_key")
	req.Media = r.FormValue("media")
	req.Source = r.FormValue("source")
	if urls := r.FormValue("urls"); urls != "" {
		req.URLs = []string{urls}
	}

	var uploads []ingest.Upload
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			up, err := readUpload(fh)
			if err != nil {
				return req, nil, err
			}
			if len(up.Data) == 0 && up.Name == "" {
				continue // empty file input
			}
			uploads = append(uploads, up)
		}
	}
	return req, uploads, nil
}

func readUpload(fh *multipart.FileHeader) (ingest.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = "" // generic clients; sniff instead
	}
	return ingest.Upload{Name: fh.Filename, MimeType: mimeType, Data: data}, nil
}

func (e *OCRProcessEndpoint) Command(getServerURL func() string) *cobra.Command {
	var apiKey, media string
	var urls, files []string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run OCR on URLs or local files",
		Long: `Run OCR on one or more documents. Results replace the previous batch
in the CLI session.

Examples:
  readaloud api ocr process --url https://example.com/a.pdf --url https://example.com/b.pdf
  readaloud api ocr process --media image --file scan.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp OCRProcessResponse
			if len(files) > 0 {
				parts := make([]api.FilePart, len(files))
				for i, f := range files {
					parts[i] = api.FilePart{Field: "files", Path: f}
				}
				fields := map[string]string{"media": media, "source": "upload", "api_key": apiKey}
				if err := client.PostMultipart(cmd.Context(), "/api/ocr/process", fields, parts, &resp); err != nil {
					return err
				}
				return api.Output(resp)
			}
			req := OCRProcessRequest{APIKey: apiKey, Media: media, Source: "url", URLs: urls}
			if err := client.Post(cmd.Context(), "/api/ocr/process", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Mistral API key (default: server config)")
	cmd.Flags().StringVar(&media, "media", "pdf", "Media kind: pdf or image")
	cmd.Flags().StringArrayVar(&urls, "url", nil, "Document URL (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "Local file to upload (repeatable)")
	return cmd
}

// ListOCRResponse lists the session's OCR results.
type ListOCRResponse struct {
	Results []OCRResultView `json:"results"`
}

// ListOCREndpoint handles GET /api/ocr/results.
type ListOCREndpoint struct{}

func (e *ListOCREndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/ocr/results", e.handler
}

func (e *ListOCREndpoint) RequiresSession() bool { return true }

func (e *ListOCREndpoint) Group() string { return "ocr" }

func (e *ListOCREndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ListOCRResponse{Results: ocrResultViews(sess.OCR.List())})
}

func (e *ListOCREndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List OCR results in the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListOCRResponse
			if err := client.Get(cmd.Context(), "/api/ocr/results", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// EditOCRRequest replaces an OCR result's text.
type EditOCRRequest struct {
	Text string `json:"text"`
}

// EditOCREndpoint handles POST /api/ocr/results/{index}.
// Page posts may add next=json|txt to download the edited text afterwards.
type EditOCREndpoint struct{}

func (e *EditOCREndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/ocr/results/{index}", e.handler
}

func (e *EditOCREndpoint) RequiresSession() bool { return true }

func (e *EditOCREndpoint) Group() string { return "ocr" }

func (e *EditOCREndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r)
	if !ok {
		fail(w, r, http.StatusBadRequest, session.LevelError, "invalid result index", "ocr-results")
		return
	}

	var req EditOCRRequest
	var next string
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			fail(w, r, http.StatusBadRequest, session.LevelError, "invalid form: "+err.Error(), "ocr-results")
			return
		}
		req.Text = r.FormValue("text")
		next = r.FormValue("next")
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if !sess.OCR.Edit(index, req.Text) {
		fail(w, r, http.StatusNotFound, session.LevelError, fmt.Sprintf("Result %d not found.", index+1), "ocr-results")
		return
	}

	if !wantsJSON(r) && (next == "json" || next == "txt") {
		http.Redirect(w, r, fmt.Sprintf("/api/ocr/results/%d/export?format=%s", index, next), http.StatusSeeOther)
		return
	}

	entry, _ := sess.OCR.Get(index)
	recordNotices(sess, r, session.Notice{Level: session.LevelSuccess, Message: fmt.Sprintf("Result %d updated.", index+1)})
	succeed(w, r, newOCRResultView(entry), fmt.Sprintf("result-%d", index))
}

func (e *EditOCREndpoint) Command(getServerURL func() string) *cobra.Command {
	var text, file string
	cmd := &cobra.Command{
		Use:   "edit <index>",
		Short: "Replace the text of an OCR result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := textArg(text, file)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp OCRResultView
			if err := client.Post(cmd.Context(), "/api/ocr/results/"+args[0], EditOCRRequest{Text: body}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "New text")
	cmd.Flags().StringVar(&file, "file", "", "Read the new text from a file (- for stdin)")
	return cmd
}

// ExportOCREndpoint handles GET /api/ocr/results/{index}/export?format=json|txt.
type ExportOCREndpoint struct{}

func (e *ExportOCREndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/ocr/results/{index}/export", e.handler
}

func (e *ExportOCREndpoint) RequiresSession() bool { return true }

func (e *ExportOCREndpoint) Group() string { return "ocr" }

func (e *ExportOCREndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid result index")
		return
	}
	entry, ok := sess.OCR.Get(index)
	if !ok {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}

	f, err := parseTextFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := f.render(entry.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.filename(index)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *ExportOCREndpoint) Command(getServerURL func() string) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <index>",
		Short: "Download an OCR result as JSON or text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseTextFormat(format)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			data, err := client.Download(cmd.Context(), "/api/ocr/results/"+args[0]+"/export?format="+f.name)
			if err != nil {
				return err
			}
			if out == "" {
				out = "-"
			}
			return api.WriteDownload(out, data)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Format: json or txt")
	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of stdout")
	return cmd
}

// OCRImageEndpoint handles GET /api/ocr/results/{index}/image.
// It serves the uploaded image bytes kept for preview.
type OCRImageEndpoint struct{}

func (e *OCRImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/ocr/results/{index}/image", e.handler
}

func (e *OCRImageEndpoint) RequiresSession() bool { return true }

func (e *OCRImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid result index")
		return
	}
	entry, ok := sess.OCR.Get(index)
	if !ok || !entry.HasImage() {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	w.Header().Set("Content-Type", entry.MimeType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(entry.RawBytes)
}

func (e *OCRImageEndpoint) Command(func() string) *cobra.Command { return nil }

// OCRPreviewEndpoint handles GET /api/ocr/results/{index}/preview.
// URL sources redirect to the URL; uploads are served from their data URI.
type OCRPreviewEndpoint struct{}

func (e *OCRPreviewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/ocr/results/{index}/preview", e.handler
}

func (e *OCRPreviewEndpoint) RequiresSession() bool { return true }

func (e *OCRPreviewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid result index")
		return
	}
	entry, ok := sess.OCR.Get(index)
	if !ok {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if !strings.HasPrefix(entry.PreviewRef, "data:") {
		http.Redirect(w, r, entry.PreviewRef, http.StatusFound)
		return
	}
	mimeType, data, err := ingest.DecodeDataURI(entry.PreviewRef)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", "inline")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *OCRPreviewEndpoint) Command(func() string) *cobra.Command { return nil }

// PickOCRRequest optionally carries edited text to apply first.
type PickOCRRequest struct {
	Text *string `json:"text,omitempty"`
}

// PickOCREndpoint handles POST /api/ocr/results/{index}/audio.
// It preselects the result as the audio panel's text source.
type PickOCREndpoint struct{}

func (e *PickOCREndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/ocr/results/{index}/audio", e.handler
}

func (e *PickOCREndpoint) RequiresSession() bool { return true }

func (e *PickOCREndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r)
	if !ok {
		fail(w, r, http.StatusBadRequest, session.LevelError, "invalid result index", "ocr-results")
		return
	}

	var req PickOCRRequest
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			fail(w, r, http.StatusBadRequest, session.LevelError, "invalid form: "+err.Error(), "ocr-results")
			return
		}
		if _, present := r.Form["text"]; present {
			text := r.FormValue("text")
			req.Text = &text
		}
	} else if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if _, exists := sess.OCR.Get(index); !exists {
		fail(w, r, http.StatusNotFound, session.LevelError, fmt.Sprintf("Result %d not found.", index+1), "ocr-results")
		return
	}
	if req.Text != nil {
		sess.OCR.Edit(index, *req.Text)
	}
	sess.PickForAudio(index)

	notices := recordNotices(sess, r, session.Notice{
		Level:   session.LevelInfo,
		Message: "Text ready for conversion. Please go to the Text to Audio panel.",
	})
	succeed(w, r, MessageResponse{Message: notices[0].Message, Notices: notices}, "audio")
}

func (e *PickOCREndpoint) Command(func() string) *cobra.Command { return nil }
