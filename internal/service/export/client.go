package export

import (
	"BanterStudio/internal/config"
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

const exportPath = "/api/export/audio"

// Client отправляет склейку локальному бэкенду, который пишет mp3 сам.
type Client struct {
	http   *http.Client
	url    string
	logger *zap.SugaredLogger
}

func NewClient(cfg config.BackendConfig, logger *zap.SugaredLogger) *Client {
	return &Client{http: http.DefaultClient, url: strings.TrimRight(cfg.URL, "/"), logger: logger}
}

type mergeRequest struct {
	ProjectPath string   `json:"project_path"`
	AudioFiles  []string `json:"audio_files"`
	OutputPath  string   `json:"output_path"`
	GapMs       int      `json:"gap_ms"`
}

type mergeResponse struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path"`
}

func (c *Client) Merge(ctx context.Context, req Request) (string, error) {
	files := req.Files
	if files == nil {
		files = []string{}
	}
	body, err := json.Marshal(mergeRequest{
		ProjectPath: req.ProjectDir,
		AudioFiles:  files,
		OutputPath:  req.Output,
		GapMs:       req.GapMs,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+exportPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &Error{Err: err}
	}
	defer resp.Body.Close()
	c.logger.Debugw("Export request completed", "files", len(files), "status", resp.StatusCode, "took", time.Since(started).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var er struct {
			Detail string `json:"detail"`
		}
		detail := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &er) == nil && er.Detail != "" {
			detail = er.Detail
		}
		return "", &Error{Status: resp.StatusCode, Detail: detail}
	}

	var mr mergeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&mr); err != nil {
		return "", &Error{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !mr.Success {
		return "", &Error{Status: resp.StatusCode, Err: errors.New("backend merged no clips")}
	}
	if mr.OutputPath == "" {
		return req.Output, nil
	}
	return mr.OutputPath, nil
}
