package endpoints

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/audio"
	"github.com/jackzampolin/readaloud/internal/persist"
	"github.com/jackzampolin/readaloud/internal/session"
	"github.com/jackzampolin/readaloud/internal/svcctx"
)

const msgNoOCRForAudio = "No OCR results available. Process files in the OCR panel first or choose another source."

// textUploadExts are the file types accepted as narration text.
var textUploadExts = map[string]bool{".txt": true, ".md": true}

// GenerateAudioRequest converts text to speech.
type GenerateAudioRequest struct {
	APIKey string `json:"api_key,omitempty"`
	Source string `json:"source"` // ocr (default), direct or upload
	Voice  string `json:"voice,omitempty"`

	// ocr: which result. Text, when set, replaces the result's text for this
	// conversion only.
	Index int `json:"index,omitempty"`
	// direct: the text to narrate. ocr/upload: optional edited text.
	Text *string `json:"text,omitempty"`
	// upload: file contents (base64 in JSON) and name.
	File     []byte `json:"file,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// AudioEntryView is an audio entry as returned by the API.
type AudioEntryView struct {
	Index       int       `json:"index"`
	TextSnippet string    `json:"text_snippet"`
	Voice       string    `json:"voice"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	FileURL     string    `json:"file_url"`
}

func newAudioEntryView(e session.AudioEntry) AudioEntryView {
	return AudioEntryView{
		Index:       e.Index,
		TextSnippet: e.TextSnippet,
		Voice:       e.Voice,
		Size:        e.Size,
		CreatedAt:   e.CreatedAt,
		FileURL:     fmt.Sprintf("/api/audio/%d/file", e.Index),
	}
}

// GenerateAudioResponse reports a generated clip.
type GenerateAudioResponse struct {
	Audio   AudioEntryView   `json:"audio"`
	Notices []session.Notice `json:"notices"`
}

// GenerateAudioEndpoint handles POST /api/audio/generate.
type GenerateAudioEndpoint struct{}

func (e *GenerateAudioEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/audio/generate", e.handler
}

func (e *GenerateAudioEndpoint) RequiresSession() bool { return true }

func (e *GenerateAudioEndpoint) Group() string { return "audio" }

func (e *GenerateAudioEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	gen := svcctx.AudioGenFrom(ctx)
	if gen == nil {
		writeError(w, http.StatusServiceUnavailable, "audio service not initialized")
		return
	}

	req, err := readGenerateRequest(w, r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "audio")
		return
	}

	mode, err := audio.ParseMode(req.Source)
	if err != nil {
		fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "audio")
		return
	}
	if mode == audio.ModeUpload && req.FileName != "" && !textUploadExts[strings.ToLower(filepath.Ext(req.FileName))] {
		fail(w, r, http.StatusBadRequest, session.LevelError,
			fmt.Sprintf("Unsupported file type: %s (use txt or md)", req.FileName), "audio")
		return
	}

	sel := audio.Selection{Mode: mode, Index: req.Index, File: req.File}
	switch mode {
	case audio.ModeDirect:
		if req.Text != nil {
			sel.Text = *req.Text
		}
	default:
		sel.Override = req.Text
	}

	var notices []session.Notice
	text, err := audio.Select(sess.OCR, sel)
	switch {
	case errors.Is(err, audio.ErrNoOCRResults):
		// Still run the generator's checks so a missing key is reported first.
		notices = append(notices, session.Notice{Level: session.LevelWarning, Message: msgNoOCRForAudio})
		text = ""
	case err != nil:
		fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "audio")
		return
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = defaultVoice(r)
	}

	var entry session.AudioEntry
	err = sess.Exclusive(func() error {
		var genErr error
		entry, genErr = gen.Generate(ctx, sess, audio.Request{
			APIKey: strings.TrimSpace(req.APIKey),
			Text:   text,
			Voice:  voice,
		})
		return genErr
	})
	if err != nil {
		status := http.StatusBadGateway
		msg := "Error generating audio: " + err.Error()
		switch {
		case errors.Is(err, audio.ErrPrecondition):
			status = http.StatusBadRequest
			msg = err.Error()
		case errors.Is(err, session.ErrClosed):
			status = http.StatusGone
			msg = msgSessionClosed
		}
		notices = append(notices, session.Notice{Level: session.LevelError, Message: msg})
		recordNotices(sess, r, notices...)
		if wantsJSON(r) {
			writeError(w, status, msg)
			return
		}
		redirectHome(w, r, "audio")
		return
	}

	notices = append(notices, session.Notice{Level: session.LevelSuccess, Message: "Audio generated successfully!"})
	notices = recordNotices(sess, r, notices...)
	succeed(w, r, GenerateAudioResponse{Audio: newAudioEntryView(entry), Notices: notices}, fmt.Sprintf("clip-%d", entry.Index))
}

// readGenerateRequest reads a JSON or form request. Page forms carry the
// edited OCR text together with the index it was loaded from, and the edit
// only applies when that index is still the one selected.
func readGenerateRequest(w http.ResponseWriter, r *http.Request) (GenerateAudioRequest, error) {
	var req GenerateAudioRequest
	if !isForm(r) {
		if err := decodeJSON(r, &req); err != nil {
			return req, fmt.Errorf("invalid JSON: %w", err)
		}
		return req, nil
	}

	if err := parseForm(w, r); err != nil {
		return req, fmt.Errorf("invalid form: %w", err)
	}
	req.APIKey = r.FormValue("api_key")
	req.Source = r.FormValue("source")
	req.Voice = r.FormValue("voice")
	if v := r.FormValue("index"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid index %q", v)
		}
		req.Index = i
	}

	mode, _ := audio.ParseMode(req.Source)
	switch mode {
	case audio.ModeDirect:
		text := r.FormValue("text")
		req.Text = &text
	case audio.ModeOCR:
		if _, present := r.Form["ocr_text"]; present && r.FormValue("ocr_text_index") == strconv.Itoa(req.Index) {
			text := r.FormValue("ocr_text")
			req.Text = &text
		}
	case audio.ModeUpload:
		if r.MultipartForm != nil && len(r.MultipartForm.File["file"]) > 0 {
			up, err := readUpload(r.MultipartForm.File["file"][0])
			if err != nil {
				return req, err
			}
			req.File, req.FileName = up.Data, up.Name
		}
	}
	return req, nil
}

func (e *GenerateAudioEndpoint) Command(getServerURL func() string) *cobra.Command {
	var apiKey, source, voice, text, file string
	var index int
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Convert text to speech",
		Long: `Convert an OCR result, literal text, or a text file to speech.

Examples:
  readaloud api audio generate --source ocr --index 0 --voice nova
  readaloud api audio generate --source direct --text "Hello there"
  readaloud api audio generate --source upload --file notes.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GenerateAudioResponse
			if source == string(audio.ModeUpload) {
				if file == "" {
					return fmt.Errorf("--file is required with --source upload")
				}
				fields := map[string]string{"source": source, "voice": voice, "api_key": apiKey}
				if err := client.PostMultipart(cmd.Context(), "/api/audio/generate", fields,
					[]api.FilePart{{Field: "file", Path: file}}, &resp); err != nil {
					return err
				}
				return api.Output(resp)
			}
			req := GenerateAudioRequest{APIKey: apiKey, Source: source, Voice: voice, Index: index}
			if cmd.Flags().Changed("text") {
				req.Text = &text
			}
			if err := client.Post(cmd.Context(), "/api/audio/generate", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "OpenAI API key (default: server config)")
	cmd.Flags().StringVar(&source, "source", "ocr", "Text source: ocr, direct or upload")
	cmd.Flags().IntVar(&index, "index", 0, "OCR result index (source ocr)")
	cmd.Flags().StringVar(&text, "text", "", "Text to narrate (source direct), or edited OCR text")
	cmd.Flags().StringVar(&file, "file", "", "Text file to narrate (source upload)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice: alloy, echo, fable, onyx, nova or shimmer")
	return cmd
}

// ListAudioResponse lists the session's audio clips.
type ListAudioResponse struct {
	Audio []AudioEntryView `json:"audio"`
}

// ListAudioEndpoint handles GET /api/audio.
type ListAudioEndpoint struct{}

func (e *ListAudioEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/audio", e.handler
}

func (e *ListAudioEndpoint) RequiresSession() bool { return true }

func (e *ListAudioEndpoint) Group() string { return "audio" }

func (e *ListAudioEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	entries := sess.Audio.List()
	resp := ListAudioResponse{Audio: make([]AudioEntryView, len(entries))}
	for i, e := range entries {
		resp.Audio[i] = newAudioEntryView(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListAudioEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List audio clips in the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListAudioResponse
			if err := client.Get(cmd.Context(), "/api/audio", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// AudioFileEndpoint handles GET /api/audio/{index}/file.
// With ?download=1 the clip is sent as an attachment named Audio_<n>.mp3.
type AudioFileEndpoint struct{}

func (e *AudioFileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/audio/{index}/file", e.handler
}

func (e *AudioFileEndpoint) RequiresSession() bool { return true }

func (e *AudioFileEndpoint) Group() string { return "audio" }

func (e *AudioFileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid audio index")
		return
	}
	entry, ok := sess.Audio.Get(index)
	if !ok {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	data, err := sess.ReadTempAudio(entry.EphemeralPath)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Debug("playback file unavailable, serving stored bytes", "index", index, "error", err)
		data = entry.Audio
	}

	name := persist.AudioDownloadName(index)
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeContent(w, r, name, entry.CreatedAt, bytes.NewReader(data))
}

func (e *AudioFileEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <index>",
		Short: "Download an audio clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			data, err := client.Download(cmd.Context(), "/api/audio/"+args[0]+"/file?download=1")
			if err != nil {
				return err
			}
			if out == "" {
				i, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid index %q", args[0])
				}
				out = persist.AudioDownloadName(i)
			}
			if err := api.WriteDownload(out, data); err != nil {
				return err
			}
			if out != "-" {
				fmt.Printf("Wrote %s (%d bytes)\n", out, len(data))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (default: Audio_<n>.mp3, - for stdout)")
	return cmd
}

// SaveAudioEndpoint handles POST /api/audio/{index}/save.
type SaveAudioEndpoint struct{}

func (e *SaveAudioEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/audio/{index}/save", e.handler
}

func (e *SaveAudioEndpoint) RequiresSession() bool { return true }

func (e *SaveAudioEndpoint) Group() string { return "audio" }

func (e *SaveAudioEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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
		fail(w, r, http.StatusBadRequest, session.LevelError, "invalid audio index", "audio-results")
		return
	}
	req, err := readSaveRequest(w, r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, session.LevelError, err.Error(), "audio-results")
		return
	}
	entry, ok := sess.Audio.Get(index)
	if !ok {
		fail(w, r, http.StatusNotFound, session.LevelError, fmt.Sprintf("Audio %d not found.", index+1), "audio-results")
		return
	}

	folder := resolveFolder(r, sess, panelAudio, req.Folder)
	path, err := p.Save(entry.Audio, persist.AudioName(index, entry.TextSnippet), folder, persist.Binary)
	label := "Audio"
	if err != nil {
		label = "audio"
	}
	notices := recordNotices(sess, r, saveNotices(p, label, path, err)...)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("save failed", "audio", index, "folder", folder, "error", err)
		if wantsJSON(r) {
			writeError(w, http.StatusInternalServerError, notices[0].Message)
			return
		}
	}
	succeed(w, r, SaveResponse{Path: path, Verified: p.Exists(path), Notices: notices}, fmt.Sprintf("clip-%d", index))
}

func (e *SaveAudioEndpoint) Command(getServerURL func() string) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "save <index>",
		Short: "Save an audio clip to a folder on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SaveResponse
			if err := client.Post(cmd.Context(), "/api/audio/"+args[0]+"/save", SaveRequest{Folder: folder}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Output folder (default: last used or config output.folder)")
	return cmd
}
