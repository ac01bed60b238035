package endpoints

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/session"
	"github.com/jackzampolin/readaloud/internal/svcctx"
	"github.com/jackzampolin/readaloud/version"
	"github.com/jackzampolin/readaloud/web"
)

const pageTitle = "readaloud"

// OCR output is markdown with tables; raw HTML in it is not rendered.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var pageTemplate = sync.OnceValues(func() (*template.Template, error) {
	tfs, err := web.Templates()
	if err != nil {
		return nil, err
	}
	return template.New("index.html").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(tfs, "index.html")
})

type pageResult struct {
	OCRResultView
	HTML       template.HTML
	PreviewURL string
}

type pageAudio struct {
	AudioEntryView
	Latest bool
}

type pageData struct {
	Title            string
	Version          string
	Notices          []session.Notice
	OCRKeyConfigured bool
	TTSKeyConfigured bool
	OCRFolder        string
	AudioFolder      string
	Results          []pageResult
	Pick             int
	PickText         string
	Voices           []string
	DefaultVoice     string
	Audio            []pageAudio
}

// PageEndpoint handles GET /, the two-panel page.
type PageEndpoint struct{}

func (e *PageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/{$}", e.handler
}

func (e *PageEndpoint) RequiresSession() bool { return true }

func (e *PageEndpoint) Command(func() string) *cobra.Command { return nil }

func (e *PageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	tmpl, err := pageTemplate()
	if err != nil {
		http.Error(w, "Page not available", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:        pageTitle,
		Version:      version.GitRelease,
		Notices:      sess.TakeNotices(),
		OCRFolder:    currentFolder(r, sess, panelOCR),
		AudioFolder:  currentFolder(r, sess, panelAudio),
		Pick:         sess.AudioPick(),
		Voices:       providers.Voices,
		DefaultVoice: defaultVoice(r),
	}
	if factory := svcctx.FactoryFrom(r.Context()); factory != nil {
		data.OCRKeyConfigured = factory.HasOCRKey()
		data.TTSKeyConfigured = factory.HasTTSKey()
	}

	for _, entry := range sess.OCR.List() {
		data.Results = append(data.Results, newPageResult(entry))
		if entry.Index == data.Pick {
			data.PickText = entry.Text
		}
	}
	clips := sess.Audio.List()
	for i, clip := range clips {
		data.Audio = append(data.Audio, pageAudio{
			AudioEntryView: newAudioEntryView(clip),
			Latest:         i == len(clips)-1,
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		svcctx.LoggerFrom(r.Context()).Error("page render failed", "error", err)
		http.Error(w, "Page render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func newPageResult(e session.OCREntry) pageResult {
	res := pageResult{OCRResultView: newOCRResultView(e)}
	switch {
	case res.ImageURL != "":
		res.PreviewURL = res.ImageURL
	case e.PreviewRef != "":
		res.PreviewURL = fmt.Sprintf("/api/ocr/results/%d/preview", e.Index)
	}
	res.HTML = renderMarkdown(e.Text)
	return res
}

// renderMarkdown converts OCR markdown for display, falling back to
// preformatted text when conversion fails.
func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(text) + "</pre>")
	}
	return template.HTML(buf.String())
}

// StaticEndpoint serves the embedded stylesheet and other assets.
type StaticEndpoint struct{}

func (e *StaticEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/static/{path...}", e.handler
}

func (e *StaticEndpoint) RequiresSession() bool { return false }

func (e *StaticEndpoint) Command(func() string) *cobra.Command { return nil }

func (e *StaticEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	staticFS, err := web.StaticFS()
	if err != nil {
		http.Error(w, "Assets not available", http.StatusInternalServerError)
		return
	}
	http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))).ServeHTTP(w, r)
}
