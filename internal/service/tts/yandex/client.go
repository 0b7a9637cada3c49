package yandex

import (
	"BanterStudio/internal/config"
	"BanterStudio/internal/service/tts"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultEndpoint = "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"

// Client реализует синтез речи через Yandex SpeechKit и сохраняет результат в файл клипа.
type Client struct {
	http     *http.Client
	cfg      config.YandexTTSConfig
	endpoint string
}

func New(cfg config.YandexTTSConfig) *Client {
	return &Client{http: http.DefaultClient, cfg: cfg, endpoint: defaultEndpoint}
}

// Synthesize выполняет запрос к Yandex TTS. VoiceID реплики перекрывает голос из конфигурации.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return tts.Result{}, &tts.GatewayError{Provider: "yandex", Err: errors.New("empty API key (set YC_TTS_API_KEY in .env/ENV)")}
	}
	voice := c.cfg.Voice
	if v := strings.TrimSpace(req.VoiceID); v != "" {
		voice = v
	}
	format := strings.ToLower(c.cfg.Format)

	form := url.Values{}
	form.Set("text", req.Text)
	form.Set("voice", voice)
	form.Set("format", format)
	form.Set("speed", c.cfg.Speed)
	form.Set("emotion", strings.ToLower(c.cfg.Emotion))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tts.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Api-Key "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "yandex", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(b) == 0 {
			b = []byte(resp.Status)
		}
		return tts.Result{}, &tts.GatewayError{Provider: "yandex", Status: resp.StatusCode, Detail: string(bytes.TrimSpace(b))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "yandex", Status: resp.StatusCode, Err: err}
	}
	res, err := tts.SaveClip(req.OutputDir, req.JobKey, format, data)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "yandex", Status: resp.StatusCode, Err: err}
	}
	return res, nil
}
