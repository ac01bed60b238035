package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackzampolin/readaloud/internal/metrics"
	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/session"
)

// SnippetRunes is how much of the source text an audio entry keeps for display.
const SnippetRunes = 100

// Precondition messages, shown to the user as-is.
const (
	MsgMissingKey  = "Please enter your OpenAI API Key."
	MsgMissingText = "Please provide text to convert to audio."
)

// ErrPrecondition marks input problems detected before any network call.
var ErrPrecondition = errors.New("precondition failed")

// PreconditionError is a user-facing validation failure.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrPrecondition) match any PreconditionError.
func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// ServiceError is a failed TTS call, worded for display.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	if apiErr, ok := providers.IsAPIError(e.Err); ok {
		return apiErr.Error()
	}
	return "Error: " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// TTSSource hands out a TTS client for an API key.
// *providers.Factory satisfies it.
type TTSSource interface {
	TTS(apiKey string) (providers.TTSProvider, error)
}

// Request is one narration request.
type Request struct {
	APIKey string
	Text   string
	Voice  string
}

// Generator turns text into audio entries on a session.
type Generator struct {
	source   TTSSource
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// NewGenerator creates a generator.
func NewGenerator(source TTSSource, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{source: source, logger: logger}
}

// SetRecorder makes the generator record every provider call.
func (g *Generator) SetRecorder(rec *metrics.Recorder) {
	g.recorder = rec
}

// Generate validates the request, calls the TTS service once and records the
// result on sess. Nothing is appended when any step fails.
func (g *Generator) Generate(ctx context.Context, sess *session.Session, req Request) (session.AudioEntry, error) {
	provider, err := g.source.TTS(req.APIKey)
	if err != nil {
		if errors.Is(err, providers.ErrMissingAPIKey) {
			return session.AudioEntry{}, &PreconditionError{Message: MsgMissingKey}
		}
		return session.AudioEntry{}, &ServiceError{Err: err}
	}
	if strings.TrimSpace(req.Text) == "" {
		return session.AudioEntry{}, &PreconditionError{Message: MsgMissingText}
	}
	if !providers.IsVoice(req.Voice) {
		return session.AudioEntry{}, &PreconditionError{
			Message: fmt.Sprintf("Unknown voice %q. Choose one of: %s.", req.Voice, strings.Join(providers.Voices, ", ")),
		}
	}

	if sess.Closed() {
		return session.AudioEntry{}, session.ErrClosed
	}

	start := time.Now()
	result, err := provider.Generate(ctx, &providers.TTSRequest{
		Text:  req.Text,
		Voice: req.Voice,
	})
	g.recorder.RecordTTSCall(provider.Name(), providers.ModelOf(provider), utf8.RuneCountInString(req.Text), time.Since(start), err)
	if err != nil {
		g.logger.Warn("speech generation failed", "provider", provider.Name(), "voice", req.Voice, "error", err)
		return session.AudioEntry{}, &ServiceError{Err: err}
	}
	if result == nil || len(result.Audio) == 0 {
		return session.AudioEntry{}, &ServiceError{Err: errors.New("empty audio response")}
	}

	path, err := sess.WriteTempAudio(result.Audio, result.Format)
	if errors.Is(err, session.ErrClosed) {
		return session.AudioEntry{}, err
	}
	if err != nil {
		return session.AudioEntry{}, &ServiceError{Err: err}
	}

	entry := session.AudioEntry{
		TextSnippet:   Snippet(req.Text),
		Voice:         req.Voice,
		Audio:         result.Audio,
		EphemeralPath: path,
	}
	index := sess.Audio.Append(entry)
	stored, _ := sess.Audio.Get(index)

	g.logger.Info("audio generated",
		"index", index,
		"voice", req.Voice,
		"chars", utf8.RuneCountInString(req.Text),
		"bytes", stored.Size,
		"duration", time.Since(start))

	return stored, nil
}

// Snippet returns the first SnippetRunes runes of text, with "..." appended
// when it was cut.
func Snippet(text string) string {
	if utf8.RuneCountInString(text) <= SnippetRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:SnippetRunes]) + "..."
}
