package gemini

import (
	"BanterStudio/internal/config"
	"BanterStudio/internal/service/tts"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
)

// По умолчанию используем Cloud TTS v1beta1 text:synthesize, совместимый с Generative AI TTS.
const defaultEndpoint = "https://texttospeech.googleapis.com/v1beta1/text:synthesize"

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Client реализует синтез речи через Cloud Text-to-Speech: Gemini-TTS и сохраняет результат в mp3.
type Client struct {
	cfg    config.GeminiTTSConfig
	logger *zap.SugaredLogger
	// httpClient возвращает клиента с авторизацией; по умолчанию ADC.
	httpClient func(ctx context.Context) (*http.Client, error)
}

func New(cfg config.GeminiTTSConfig, logger *zap.SugaredLogger) *Client {
	return &Client{cfg: cfg, logger: logger, httpClient: adcClient}
}

func adcClient(ctx context.Context) (*http.Client, error) {
	hc, err := google.DefaultClient(ctx, cloudPlatformScope)
	if err != nil {
		return nil, errors.New("ADC credentials not found. Set GOOGLE_APPLICATION_CREDENTIALS to a service account JSON or run in GCE/GKE with default credentials")
	}
	return hc, nil
}

// requestPayload покрывает input.prompt и voice.model_name.
type requestPayload struct {
	Input struct {
		Prompt string `json:"prompt,omitempty"`
		Text   string `json:"text,omitempty"`
		Ssml   string `json:"ssml,omitempty"`
	} `json:"input"`
	Voice struct {
		ModelName    string `json:"modelName,omitempty"`
		LanguageCode string `json:"languageCode,omitempty"`
		VoiceName    string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding  string   `json:"audioEncoding,omitempty"`
		SpeakingRate   float64  `json:"speakingRate,omitempty"`
		Pitch          float64  `json:"pitch,omitempty"`
		VolumeGainDb   float64  `json:"volumeGainDb,omitempty"`
		EffectsProfile []string `json:"effectsProfileId,omitempty"`
	} `json:"audioConfig"`
}

type jsonAudioResponse struct {
	AudioContent string `json:"audioContent"`
}

func (c *Client) payload(req tts.Request) requestPayload {
	var rp requestPayload
	if strings.EqualFold(strings.TrimSpace(c.cfg.InputType), "ssml") {
		rp.Input.Ssml = req.Text
	} else {
		// Неизвестный тип — отправим как text, чтобы избежать 400 INVALID_ARGUMENT.
		rp.Input.Text = req.Text
	}
	// Промпт используется только Gemini. Пустым не отправляем.
	if p := strings.TrimSpace(c.cfg.Prompt); p != "" {
		rp.Input.Prompt = p
	}
	rp.Voice.ModelName = strings.TrimSpace(c.cfg.ModelName)
	rp.Voice.LanguageCode = strings.TrimSpace(c.cfg.Language)
	rp.Voice.VoiceName = strings.TrimSpace(c.cfg.VoiceName)
	if v := strings.TrimSpace(req.VoiceID); v != "" {
		rp.Voice.VoiceName = v
	}
	rp.AudioConfig.AudioEncoding = "MP3"
	rp.AudioConfig.SpeakingRate = c.cfg.SpeakingRate
	rp.AudioConfig.Pitch = c.cfg.Pitch
	rp.AudioConfig.VolumeGainDb = c.cfg.VolumeGainDb
	if ep := strings.TrimSpace(c.cfg.EffectsProfileID); ep != "" {
		rp.AudioConfig.EffectsProfile = []string{ep}
	}
	return rp
}

// Synthesize выполняет запрос к Gemini-TTS. VoiceID реплики перекрывает голос из конфигурации.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	// Cloud TTS ожидает text или ssml. Пустой ввод приведёт к 400.
	if strings.TrimSpace(req.Text) == "" {
		return tts.Result{}, &tts.GatewayError{Provider: "gemini", Err: errors.New("empty input text")}
	}

	rp := c.payload(req)
	body, err := json.Marshal(&rp)
	if err != nil {
		return tts.Result{}, err
	}

	endpoint := strings.TrimSpace(c.cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	hc, err := c.httpClient(ctx)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "gemini", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "gemini", Err: err}
	}
	defer resp.Body.Close()

	if c.logger != nil {
		c.logger.Infow("Gemini TTS request completed", "job", req.JobKey, "status", resp.StatusCode, "took", time.Since(started).String())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(b) == 0 {
			b = []byte(resp.Status)
		}
		return tts.Result{}, &tts.GatewayError{Provider: "gemini", Status: resp.StatusCode, Detail: strings.TrimSpace(string(b))}
	}

	// JSON с base64 полем audioContent
	var jr jsonAudioResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, 5<<20)) // до 5 МБ JSON
	if err := dec.Decode(&jr); err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "gemini", Status: resp.StatusCode, Err: fmt.Errorf("decode json response: %w", err)}
	}
	if strings.TrimSpace(jr.AudioContent) == "" {
		return tts.Result{}, &tts.GatewayError{Provider: "gemini", Status: resp.StatusCode, Err: errors.New("empty audioContent in response")}
	}
	data, err := base64.StdEncoding.DecodeString(jr.AudioContent)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "gemini", Status: resp.StatusCode, Err: fmt.Errorf("base64 decode: %w", err)}
	}
	res, err := tts.SaveClip(req.OutputDir, req.JobKey, "mp3", data)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "gemini", Err: err}
	}
	return res, nil
}
