package endpoints

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackzampolin/readaloud/internal/session"
	"github.com/jackzampolin/readaloud/internal/svcctx"
)

// maxUploadBytes bounds a multipart request.
const maxUploadBytes = 64 << 20

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse reports the outcome of an action.
type MessageResponse struct {
	Message string           `json:"message"`
	Notices []session.Notice `json:"notices,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// wantsJSON reports whether the caller is an API client rather than a form
// post from the page.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// redirectHome sends a page form post back to the page, optionally to an anchor.
func redirectHome(w http.ResponseWriter, r *http.Request, anchor string) {
	target := "/"
	if anchor != "" {
		target += "#" + anchor
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// fail reports a user-facing error. API clients get {"error": msg}; page
// posts get a notice and a redirect.
func fail(w http.ResponseWriter, r *http.Request, status int, level, msg, anchor string) {
	if wantsJSON(r) {
		writeError(w, status, msg)
		return
	}
	if sess := svcctx.SessionFrom(r.Context()); sess != nil {
		sess.Notify(level, msg)
	}
	redirectHome(w, r, anchor)
}

// succeed reports a completed action. API clients get payload as JSON; page
// posts get the queued notices and a redirect.
func succeed(w http.ResponseWriter, r *http.Request, payload any, anchor string) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, payload)
		return
	}
	redirectHome(w, r, anchor)
}

// requireSession returns the request's session or writes an error.
func requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess := svcctx.SessionFrom(r.Context())
	if sess == nil {
		writeError(w, http.StatusInternalServerError, "session not available")
		return nil, false
	}
	return sess, true
}

// pathIndex parses the {index} path value.
func pathIndex(r *http.Request) (int, bool) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// decodeJSON decodes a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxUploadBytes))
	return dec.Decode(v)
}

// decodeOptionalJSON is decodeJSON for requests whose body may be omitted.
// An empty body leaves v untouched, whether or not a length was sent.
func decodeOptionalJSON(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// isForm reports whether the body is form encoded.
func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

// parseForm parses urlencoded and multipart bodies.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(maxUploadBytes)
	}
	return r.ParseForm()
}

// recordNotices queues notices for the page and returns them for JSON callers.
func recordNotices(sess *session.Session, r *http.Request, notices ...session.Notice) []session.Notice {
	if !wantsJSON(r) {
		for _, n := range notices {
			sess.Notify(n.Level, n.Message)
		}
	}
	return notices
}
