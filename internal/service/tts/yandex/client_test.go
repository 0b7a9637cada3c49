package yandex

import (
	"BanterStudio/internal/config"
	"BanterStudio/internal/service/tts"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, cfg config.YandexTTSConfig) *Client {
	c := New(cfg)
	c.endpoint = url
	return c
}

func TestSynthesizeWritesClip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
		assert.Equal(t, "jane", r.PostForm.Get("voice"))
		assert.Equal(t, "Добрый вечер", r.PostForm.Get("text"))
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	cfg := config.Defaults().YandexTTS
	cfg.APIKey = "secret"
	dir := t.TempDir()
	res, err := newTestClient(srv.URL, cfg).Synthesize(context.Background(), tts.Request{
		Text: "Добрый вечер", VoiceID: "jane", OutputDir: dir, JobKey: "Show_7",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio", "Show_7.mp3"), res.AudioPath)
	data, err := os.ReadFile(res.AudioPath)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
}

func TestSynthesizeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := config.Defaults().YandexTTS
	cfg.APIKey = "secret"
	_, err := newTestClient(srv.URL, cfg).Synthesize(context.Background(), tts.Request{Text: "x", OutputDir: t.TempDir(), JobKey: "k"})
	var ge *tts.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusTooManyRequests, ge.Status)
	assert.Equal(t, "quota exceeded", ge.Detail)
}

func TestSynthesizeWithoutKey(t *testing.T) {
	_, err := New(config.Defaults().YandexTTS).Synthesize(context.Background(), tts.Request{Text: "x"})
	var ge *tts.GatewayError
	assert.ErrorAs(t, err, &ge)
}
