package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/jackzampolin/readaloud/internal/metrics"
	"github.com/jackzampolin/readaloud/internal/providers"
	"github.com/jackzampolin/readaloud/internal/session"
)

func newTestSession(t *testing.T) (*session.Session, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	m := session.NewManager(session.ManagerConfig{Fs: fs, TempRoot: "/tmp/readaloud"})
	return m.Create(), fs
}

// mockFactory returns a factory whose TTS type builds the given mock.
func mockFactory(mock *providers.MockTTSProvider, configKey string) *providers.Factory {
	f := providers.NewFactory(providers.FactoryConfig{
		TTS: providers.TTSProviderConfig{Type: providers.MockTTSName, APIKey: configKey},
	})
	f.RegisterTTS(providers.MockTTSName, func(providers.TTSProviderConfig) providers.TTSProvider {
		return mock
	})
	return f
}

func TestSelect(t *testing.T) {
	store := session.NewOCRStore()
	store.Append(session.OCREntry{Text: "first"})
	store.Append(session.OCREntry{Text: "second"})
	edited := "second, edited"

	tests := []struct {
		name    string
		store   *session.OCRStore
		sel     Selection
		want    string
		wantErr error
	}{
		{"ocr index", store, Selection{Mode: ModeOCR, Index: 1}, "second", nil},
		{"ocr override", store, Selection{Mode: ModeOCR, Index: 1, Override: &edited}, edited, nil},
		{"ocr empty store", session.NewOCRStore(), Selection{Mode: ModeOCR}, "", ErrNoOCRResults},
		{"ocr nil store", nil, Selection{Mode: ModeOCR}, "", ErrNoOCRResults},
		{"ocr bad index", store, Selection{Mode: ModeOCR, Index: 5}, "", ErrIndexOutOfRange},
		{"direct", nil, Selection{Mode: ModeDirect, Text: "typed"}, "typed", nil},
		{"direct empty", nil, Selection{Mode: ModeDirect}, "", nil},
		{"upload", nil, Selection{Mode: ModeUpload, File: []byte("from file")}, "from file", nil},
		{"upload strips bom", nil, Selection{Mode: ModeUpload, File: []byte("\xef\xbb\xbfbom text")}, "bom text", nil},
		{"upload override", nil, Selection{Mode: ModeUpload, File: []byte("raw"), Override: &edited}, edited, nil},
		{"upload invalid utf8", nil, Selection{Mode: ModeUpload, File: []byte{0xff, 0xfe, 0x00}}, "", ErrDecode},
		{"unknown mode", nil, Selection{Mode: "fax"}, "", ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.store, tt.sel)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Select() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Select() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeOCR, "OCR": ModeOCR, " direct ": ModeDirect, "upload": ModeUpload} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("fax"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(fax) error = %v", err)
	}
}

func TestSnippet(t *testing.T) {
	short := strings.Repeat("a", SnippetRunes)
	if got := Snippet(short); got != short {
		t.Errorf("Snippet(100 runes) should be unchanged")
	}
	long := strings.Repeat("é", SnippetRunes+1)
	want := strings.Repeat("é", SnippetRunes) + "..."
	if got := Snippet(long); got != want {
		t.Errorf("Snippet(101 runes) = %q", got)
	}
}

func TestGenerate_Success(t *testing.T) {
	sess, fs := newTestSession(t)
	mock := providers.NewMockTTSProvider()
	mock.Audio = []byte{0x00, 0x01}
	g := NewGenerator(mockFactory(mock, ""), nil)

	entry, err := g.Generate(context.Background(), sess, Request{APIKey: "sk-test", Text: "hello", Voice: "nova"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if entry.Index != 0 || entry.Voice != "nova" || entry.TextSnippet != "hello" || entry.Size != 2 {
		t.Errorf("entry = %+v", entry)
	}
	data, err := afero.ReadFile(fs, entry.EphemeralPath)
	if err != nil {
		t.Fatalf("ephemeral file missing: %v", err)
	}
	if string(data) != "\x00\x01" {
		t.Errorf("file bytes = %q", data)
	}
	if sess.Audio.Len() != 1 {
		t.Errorf("store Len = %d", sess.Audio.Len())
	}

	reqs := mock.Requests()
	if len(reqs) != 1 || reqs[0].Text != "hello" || reqs[0].Voice != "nova" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestGenerate_UsesConfigKey(t *testing.T) {
	sess, _ := newTestSession(t)
	mock := providers.NewMockTTSProvider()
	g := NewGenerator(mockFactory(mock, "sk-from-config"), nil)

	if _, err := g.Generate(context.Background(), sess, Request{Text: "hi", Voice: "alloy"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestGenerate_Preconditions(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"missing key first", Request{Text: "", Voice: "bogus"}, MsgMissingKey},
		{"missing text", Request{APIKey: "k", Text: "", Voice: "alloy"}, MsgMissingText},
		{"blank text", Request{APIKey: "k", Text: " \n\t", Voice: "alloy"}, MsgMissingText},
		{"bad voice", Request{APIKey: "k", Text: "hi", Voice: "bogus"}, `Unknown voice "bogus"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, _ := newTestSession(t)
			mock := providers.NewMockTTSProvider()
			g := NewGenerator(mockFactory(mock, ""), nil)

			_, err := g.Generate(context.Background(), sess, tt.req)
			if !errors.Is(err, ErrPrecondition) {
				t.Fatalf("error = %v, want precondition", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want %q", err.Error(), tt.want)
			}
			if len(mock.Requests()) != 0 {
				t.Error("no request should be sent")
			}
			if sess.Audio.Len() != 0 {
				t.Error("nothing should be appended")
			}
		})
	}
}

func TestGenerate_TransportError(t *testing.T) {
	sess, _ := newTestSession(t)
	mock := providers.NewMockTTSProvider()
	mock.Err = errors.New("connection refused")
	g := NewGenerator(mockFactory(mock, ""), nil)

	_, err := g.Generate(context.Background(), sess, Request{APIKey: "k", Text: "hi", Voice: "echo"})
	if err == nil || err.Error() != "Error: connection refused" {
		t.Fatalf("error = %v", err)
	}
	if errors.Is(err, ErrPrecondition) {
		t.Error("transport failure is not a precondition")
	}
	if sess.Audio.Len() != 0 {
		t.Error("nothing should be appended")
	}
}

func TestGenerate_Unauthorized(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	f := providers.NewFactory(providers.FactoryConfig{
		TTS: providers.TTSProviderConfig{Type: providers.OpenAITTSName, BaseURL: server.URL},
	})
	sess, _ := newTestSession(t)
	g := NewGenerator(f, nil)

	_, err := g.Generate(context.Background(), sess, Request{APIKey: "sk-bad", Text: "hello", Voice: "alloy"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "API Error: 401, ") {
		t.Errorf("error = %q", err.Error())
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Errorf("error should carry the response detail: %q", err.Error())
	}
	if requests != 1 {
		t.Errorf("requests = %d, want exactly 1", requests)
	}
	if sess.Audio.Len() != 0 {
		t.Error("nothing should be appended")
	}
}

func TestGenerate_RecordsUsage(t *testing.T) {
	sess, _ := newTestSession(t)
	mock := providers.NewMockTTSProvider()
	g := NewGenerator(mockFactory(mock, ""), nil)
	rec := metrics.NewRecorder(10)
	g.SetRecorder(rec)

	if _, err := g.Generate(context.Background(), sess, Request{APIKey: "k", Text: "héllo", Voice: "fable"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	mock.Err = errors.New("connection refused")
	_, _ = g.Generate(context.Background(), sess, Request{APIKey: "k", Text: "again", Voice: "fable"})
	// Precondition failures never reach the provider.
	_, _ = g.Generate(context.Background(), sess, Request{APIKey: "k", Text: "", Voice: "fable"})

	sums := rec.Summaries()
	if len(sums) != 1 {
		t.Fatalf("summaries = %+v", sums)
	}
	if s := sums[0]; s.Kind != metrics.KindTTS || s.Provider != providers.MockTTSName || s.Calls != 2 || s.Failures != 1 || s.Units != 10 {
		t.Errorf("summary = %+v", s)
	}
}

func TestGenerate_ClosedSession(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := session.NewManager(session.ManagerConfig{Fs: fs, TempRoot: "/tmp/readaloud"})
	sess := m.Create()
	mock := providers.NewMockTTSProvider()
	g := NewGenerator(mockFactory(mock, ""), nil)

	if err := m.Close(sess.ID); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := sess.Exclusive(func() error {
		_, genErr := g.Generate(context.Background(), sess, Request{APIKey: "k", Text: "hello", Voice: "nova"})
		return genErr
	})
	if !errors.Is(err, session.ErrClosed) {
		t.Fatalf("error = %v, want ErrClosed", err)
	}
	if len(mock.Requests()) != 0 {
		t.Error("no request should be sent for a closed session")
	}

	// Called directly, the clip is still refused before any request.
	_, err = g.Generate(context.Background(), sess, Request{APIKey: "k", Text: "hello", Voice: "nova"})
	if !errors.Is(err, session.ErrClosed) {
		t.Fatalf("direct Generate() error = %v, want ErrClosed", err)
	}
	if len(mock.Requests()) != 0 {
		t.Error("no request should be sent for a closed session")
	}
	if sess.Audio.Len() != 0 {
		t.Errorf("entries = %d after teardown", sess.Audio.Len())
	}
	if exists, _ := afero.DirExists(fs, sess.TempDir); exists {
		t.Error("temp directory recreated after teardown")
	}
}
