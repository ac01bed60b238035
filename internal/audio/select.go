// Package audio picks the text to narrate and turns it into audio clips
// stored on the session.
package audio

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/jackzampolin/readaloud/internal/session"
)

// Mode selects where the narration text comes from.
type Mode string

const (
	ModeOCR    Mode = "ocr"
	ModeDirect Mode = "direct"
	ModeUpload Mode = "upload"
)

var (
	// ErrNoOCRResults is returned in OCR mode when the store is empty.
	ErrNoOCRResults = errors.New("no OCR results available; process files in the OCR panel first or choose another source")
	// ErrIndexOutOfRange is returned for an OCR index the store does not hold.
	ErrIndexOutOfRange = errors.New("OCR result index out of range")
	// ErrDecode is returned when an uploaded file is not UTF-8 text.
	ErrDecode = errors.New("uploaded file is not valid UTF-8 text")
	// ErrUnknownMode is returned for a mode other than ocr, direct or upload.
	ErrUnknownMode = errors.New("unknown text source")
)

// ParseMode parses a text source name. Empty means ocr.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeOCR, nil
	case ModeOCR, ModeDirect, ModeUpload:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Selection describes the text source for one generation.
type Selection struct {
	Mode  Mode
	Index int    // ocr: which result
	Text  string // direct: the typed text
	File  []byte // upload: raw file contents

	// Override replaces the selected text when set, as when the user edits
	// an OCR result or an uploaded file before converting.
	Override *string
}

// Select resolves a selection to the text to narrate.
func Select(store *session.OCRStore, sel Selection) (string, error) {
	switch sel.Mode {
	case ModeOCR:
		if store == nil || store.Len() == 0 {
			return "", ErrNoOCRResults
		}
		entry, ok := store.Get(sel.Index)
		if !ok {
			return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, sel.Index)
		}
		if sel.Override != nil {
			return *sel.Override, nil
		}
		return entry.Text, nil

	case ModeDirect:
		return sel.Text, nil

	case ModeUpload:
		text, err := DecodeText(sel.File)
		if err != nil {
			return "", err
		}
		if sel.Override != nil {
			return *sel.Override, nil
		}
		return text, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, sel.Mode)
	}
}

// DecodeText decodes UTF-8 file contents, dropping a leading byte order mark.
func DecodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrDecode
	}
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(out), nil
}
