package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/home"
	"github.com/jackzampolin/readaloud/internal/persist"
	"github.com/jackzampolin/readaloud/internal/session"
	"github.com/jackzampolin/readaloud/internal/svcctx"
)

// Panels name the per-session output folders.
const (
	panelOCR   = "ocr"
	panelAudio = "audio"
)

// textFormat is an OCR export format.
type textFormat struct {
	name        string
	label       string
	contentType string
	filename    func(index int) string
	render      func(text string) ([]byte, error)
}

var (
	formatJSON = textFormat{
		name:        "json",
		label:       "JSON",
		contentType: "application/json; charset=utf-8",
		filename:    persist.OCRJSONName,
		render:      persist.OCRJSON,
	}
	formatText = textFormat{
		name:        "txt",
		label:       "Text",
		contentType: "text/plain; charset=utf-8",
		filename:    persist.OCRTextName,
		render:      func(text string) ([]byte, error) { return []byte(text), nil },
	}
)

func parseTextFormat(s string) (textFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return formatJSON, nil
	case "txt", "text":
		return formatText, nil
	default:
		return textFormat{}, fmt.Errorf("unknown format %q (use json or txt)", s)
	}
}

// resolveFolder picks the save folder: the request's, then the one last used
// in this panel, then the configured default. A requested folder is remembered.
func resolveFolder(r *http.Request, sess *session.Session, panel, requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		sess.SetFolder(panel, requested)
		return requested
	}
	return currentFolder(r, sess, panel)
}

// currentFolder is the folder a panel saves to when none is given.
func currentFolder(r *http.Request, sess *session.Session, panel string) string {
	if folder := sess.Folder(panel); folder != "" {
		return folder
	}
	if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil && cfg.Output.Folder != "" {
		return cfg.Output.Folder
	}
	return home.DefaultOutputDir()
}

// saveNotices reports a save the way the page shows it: the outcome, then a
// separate check that the reported file is really on disk.
func saveNotices(p *persist.Service, label, path string, err error) []session.Notice {
	if err != nil {
		return []session.Notice{{Level: session.LevelError, Message: fmt.Sprintf("Failed to save %s: %v", label, err)}}
	}
	notices := []session.Notice{{Level: session.LevelSuccess, Message: fmt.Sprintf("%s saved to: %s", label, path)}}
	if p.Exists(path) {
		notices = append(notices, session.Notice{Level: session.LevelSuccess, Message: "✓ Verified: File exists at " + path})
	} else {
		notices = append(notices, session.Notice{Level: session.LevelError, Message: "✗ File not found at " + path})
	}
	return notices
}

// SaveRequest saves a result to a folder.
type SaveRequest struct {
	Format string  `json:"format,omitempty"` // OCR only: json (default) or txt
	Folder string  `json:"folder,omitempty"`
	Text   *string `json:"text,omitempty"` // OCR only: apply this edit first
}

// SaveResponse reports a save.
type SaveResponse struct {
	Path     string           `json:"path"`
	Verified bool             `json:"verified"`
	Notices  []session.Notice `json:"notices"`
}

func readSaveRequest(w http.ResponseWriter, r *http.Request) (SaveRequest, error) {
	var req SaveRequest
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		req.Format = r.FormValue("format")
		req.Folder = r.FormValue("folder")
		if _, present := r.Form["text"]; present {
			text := r.FormValue("text")
			req.Text = &text
		}
		return req, nil
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	return req, nil
}

// SaveOCREndpoint handles POST /api/ocr/results/{index}/save.
type SaveOCREndpoint struct{}

func (e *SaveOCREndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/ocr/results/{index}/save", e.handler
}

func (e *SaveOCREndpoint) RequiresSession() bool { return true }

func (e *SaveOCREndpoint) Group() string { return "ocr" }

func (e *SaveOCREndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	p := svcctx.PersistFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not initialized")
		return
	}
	index, ok := pathIndex(r)
	if !ok {
		fail(w, r, http.StatusBadRequest, session.LevelError, "invalid result index", "ocr-results")
		return
	}
	req, err := readSaveRequest(w, r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "ocr-results")
		return
	}
	f, err := parseTextFormat(req.Format)
	if err != nil {
		fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "ocr-results")
		return
	}
	if req.Text != nil {
		sess.OCR.Edit(index, *req.Text)
	}
	entry, ok := sess.OCR.Get(index)
	if !ok {
		fail(w, r, http.StatusNotFound, session.LevelError, fmt.Sprintf("Result %d not found.", index+1), "ocr-results")
		return
	}

	folder := resolveFolder(r, sess, panelOCR, req.Folder)
	var path string
	data, err := f.render(entry.Text)
	if err == nil {
		path, err = p.Save(data, f.filename(index), folder, persist.Text)
	}
	label := f.label
	if err != nil && f.name == "txt" {
		label = "text"
	}
	notices := recordNotices(sess, r, saveNotices(p, label, path, err)...)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("save failed", "index", index, "folder", folder, "error", err)
		if wantsJSON(r) {
			writeError(w, http.StatusInternalServerError, notices[0].Message)
			return
		}
	}
	succeed(w, r, SaveResponse{Path: path, Verified: p.Exists(path), Notices: notices}, fmt.Sprintf("result-%d", index))
}

func (e *SaveOCREndpoint) Command(getServerURL func() string) *cobra.Command {
	var format, folder string
	cmd := &cobra.Command{
		Use:   "save <index>",
		Short: "Save an OCR result to a folder on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SaveResponse
			req := SaveRequest{Format: format, Folder: folder}
			if err := client.Post(cmd.Context(), "/api/ocr/results/"+args[0]+"/save", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Format: json or txt")
	cmd.Flags().StringVar(&folder, "folder", "", "Output folder (default: last used or config output.folder)")
	return cmd
}

// FolderResponse reports a folder check.
type FolderResponse struct {
	persist.FolderStatus
	Notices []session.Notice `json:"notices"`
}

// FolderEndpoint handles GET /api/folder?path=&panel=.
// It reports whether the folder exists and creates it when missing.
type FolderEndpoint struct{}

func (e *FolderEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/folder", e.handler
}

func (e *FolderEndpoint) RequiresSession() bool { return true }

func (e *FolderEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	p := svcctx.PersistFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not initialized")
		return
	}
	panel := r.URL.Query().Get("panel")
	if panel != panelAudio {
		panel = panelOCR
	}

	folder := resolveFolder(r, sess, panel, r.URL.Query().Get("path"))
	status := p.EnsureFolder(folder)

	var notices []session.Notice
	switch {
	case status.Existed:
		notices = append(notices, session.Notice{Level: session.LevelSuccess, Message: "Folder exists at: " + status.Path})
	case status.Created:
		notices = append(notices,
			session.Notice{Level: session.LevelWarning, Message: "Folder doesn't exist yet, but will be created when saving files."},
			session.Notice{Level: session.LevelSuccess, Message: "Successfully created folder at: " + status.Path})
	default:
		notices = append(notices,
			session.Notice{Level: session.LevelWarning, Message: "Folder doesn't exist yet, but will be created when saving files."},
			session.Notice{Level: session.LevelError, Message: "Unable to create folder: " + status.Error})
	}
	notices = recordNotices(sess, r, notices...)
	succeed(w, r, FolderResponse{FolderStatus: status, Notices: notices}, panel)
}

func (e *FolderEndpoint) Command(getServerURL func() string) *cobra.Command {
	var panel string
	cmd := &cobra.Command{
		Use:   "folder <path>",
		Short: "Check an output folder on the server, creating it if missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp FolderResponse
			q := "/api/folder?panel=" + panel + "&path=" + url.QueryEscape(args[0])
			if err := client.Get(cmd.Context(), q, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&panel, "panel", panelOCR, "Panel whose folder to set: ocr or audio")
	return cmd
}

// textArg returns text, or the contents of file ("-" reads stdin).
func textArg(text, file string) (string, error) {
	if file == "" {
		return text, nil
	}
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return string(data), nil
}
