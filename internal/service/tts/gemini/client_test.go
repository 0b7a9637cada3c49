package gemini

import (
	"BanterStudio/internal/config"
	"BanterStudio/internal/service/tts"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(endpoint string) *Client {
	cfg := config.Defaults().GeminiTTS
	cfg.Endpoint = endpoint
	cfg.Prompt = "Read warmly"
	c := New(cfg, zap.NewNop().Sugar())
	c.httpClient = func(context.Context) (*http.Client, error) { return http.DefaultClient, nil }
	return c
}

func TestSynthesize(t *testing.T) {
	var got requestPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(jsonAudioResponse{AudioContent: base64.StdEncoding.EncodeToString([]byte("mp3-data"))})
	}))
	defer srv.Close()

	dir := t.TempDir()
	res, err := newTestClient(srv.URL).Synthesize(context.Background(), tts.Request{
		Text: "Hello there", VoiceID: "Puck", OutputDir: dir, JobKey: "Ep_1",
	})
	require.NoError(t, err)
	data, err := os.ReadFile(res.AudioPath)
	require.NoError(t, err)
	assert.Equal(t, "mp3-data", string(data))

	assert.Equal(t, "Hello there", got.Input.Text)
	assert.Equal(t, "Read warmly", got.Input.Prompt)
	assert.Equal(t, "Puck", got.Voice.VoiceName)
	assert.Equal(t, "MP3", got.AudioConfig.AudioEncoding)
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"audioContent": ""}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Synthesize(context.Background(), tts.Request{Text: "x", OutputDir: t.TempDir(), JobKey: "k"})
	var ge *tts.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusOK, ge.Status)
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Synthesize(context.Background(), tts.Request{Text: "  "})
	var ge *tts.GatewayError
	assert.ErrorAs(t, err, &ge)
}
