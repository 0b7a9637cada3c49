package backend

import (
	"BanterStudio/internal/config"
	"BanterStudio/internal/service/tts"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const generatePath = "/api/generate"

// Client реализует синтез речи через локальный HTTP-бэкенд: бэкенд сам пишет
// <project_path>/audio/<bubble_id>.mp3 и возвращает путь к файлу.
type Client struct {
	http   *http.Client
	cfg    config.BackendConfig
	logger *zap.SugaredLogger
}

func New(cfg config.BackendConfig, logger *zap.SugaredLogger) *Client {
	return &Client{http: http.DefaultClient, cfg: cfg, logger: logger}
}

type generateRequest struct {
	Text        string `json:"text"`
	Speaker     string `json:"speaker"`
	ProjectPath string `json:"project_path"`
	BubbleID    string `json:"bubble_id"`
	AppKey      string `json:"app_key"`
	AccessToken string `json:"access_token"`
}

type generateResponse struct {
	Success   bool    `json:"success"`
	AudioPath string  `json:"audio_path"`
	Duration  float64 `json:"duration"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Synthesize отправляет задание бэкенду. Ошибки сервиса возвращаются как *tts.GatewayError.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	body, err := json.Marshal(generateRequest{
		Text:        req.Text,
		Speaker:     req.VoiceID,
		ProjectPath: req.OutputDir,
		BubbleID:    req.JobKey,
		AppKey:      c.cfg.AppKey,
		AccessToken: c.cfg.AccessToken,
	})
	if err != nil {
		return tts.Result{}, err
	}

	endpoint := strings.TrimRight(c.cfg.URL, "/") + generatePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "backend", Err: err}
	}
	defer resp.Body.Close()

	if c.logger != nil {
		c.logger.Debugw("Backend TTS request completed", "job", req.JobKey, "status", resp.StatusCode, "took", time.Since(started).String())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(b))
		var er errorResponse
		if json.Unmarshal(b, &er) == nil && er.Detail != "" {
			detail = er.Detail
		}
		if detail == "" {
			detail = resp.Status
		}
		return tts.Result{}, &tts.GatewayError{Provider: "backend", Status: resp.StatusCode, Detail: detail}
	}

	var gr generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&gr); err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "backend", Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !gr.Success || strings.TrimSpace(gr.AudioPath) == "" {
		return tts.Result{}, &tts.GatewayError{Provider: "backend", Status: resp.StatusCode, Err: errors.New("backend reported no audio")}
	}

	res := tts.Result{AudioPath: gr.AudioPath, Duration: gr.Duration}
	if res.Duration <= 0 {
		// Бэкенд не считает длительность; файл лежит локально, меряем сами
		if d, err := tts.ProbeDuration(gr.AudioPath); err == nil {
			res.Duration = d
		} else if c.logger != nil {
			c.logger.Debugw("Could not probe clip duration", "path", gr.AudioPath, "error", err)
		}
	}
	return res, nil
}
