package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkie/internal/audio"
)

func testSegment() *audio.Segment {
	seg := audio.NewSegment(16000)
	frame := make([]float32, 320)
	for i := range frame {
		frame[i] = 0.3
	}
	for i := 0; i < 25; i++ {
		seg.Append(frame)
	}
	return seg
}

func newTestClient(srv *httptest.Server) openai.Client {
	return openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
}

func TestOpenAITranscribeSendsFixedParams(t *testing.T) {
	var gotModel, gotLang, gotPrompt, gotTemp, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(16<<20))
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		gotPrompt = r.FormValue("prompt")
		gotTemp = r.FormValue("temperature")
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotFile = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" Включи Моргенштерна "}`))
	}))
	defer srv.Close()

	tr := NewOpenAI(newTestClient(srv), "whisper-1", "ru", "Разговор с голосовым ассистентом.", t.TempDir())
	text, err := tr.Transcribe(context.Background(), testSegment())
	require.NoError(t, err)
	assert.Equal(t, " Включи Моргенштерна ", text)

	assert.Equal(t, "whisper-1", gotModel)
	assert.Equal(t, "ru", gotLang)
	assert.Equal(t, "Разговор с голосовым ассистентом.", gotPrompt)
	assert.Equal(t, "0", gotTemp)
	assert.Equal(t, "input.wav", gotFile)
}

func TestOpenAITranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	tr := NewOpenAI(newTestClient(srv), "whisper-1", "ru", "", t.TempDir())
	_, err := tr.Transcribe(context.Background(), testSegment())
	assert.Error(t, err)
}

func TestOpenAITranscribeEmptySegment(t *testing.T) {
	tr := NewOpenAI(openai.NewClient(option.WithAPIKey("k")), "whisper-1", "ru", "", t.TempDir())
	_, err := tr.Transcribe(context.Background(), audio.NewSegment(16000))
	assert.Error(t, err)
}

func TestFilteredRejectsJunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"музыка"}`))
	}))
	defer srv.Close()

	tr := &Filtered{
		Inner:  NewOpenAI(newTestClient(srv), "whisper-1", "ru", "", t.TempDir()),
		Filter: NewFilter(denylist, false),
	}
	_, err := tr.Transcribe(context.Background(), testSegment())
	assert.ErrorIs(t, err, ErrNothingHeard)
}

func TestFilteredPassesSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" поставь таймер на пять минут "}`))
	}))
	defer srv.Close()

	tr := &Filtered{
		Inner:  NewOpenAI(newTestClient(srv), "whisper-1", "ru", "", t.TempDir()),
		Filter: NewFilter(denylist, false),
	}
	text, err := tr.Transcribe(context.Background(), testSegment())
	require.NoError(t, err)
	assert.Equal(t, "поставь таймер на пять минут", text)
}
