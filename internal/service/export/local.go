package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"
)

// Local склеивает клипы без бэкенда и пишет WAV. Частота итогового файла берётся у первого клипа.
type Local struct {
	logger *zap.SugaredLogger
}

func NewLocal(logger *zap.SugaredLogger) *Local { return &Local{logger: logger} }

// Merge пропускает отсутствующие и нечитаемые файлы; если не прочитался ни один, возвращает ошибку.
func (l *Local) Merge(ctx context.Context, req Request) (string, error) {
	var (
		parts   []beep.StreamSeekCloser
		format  beep.Format
		streams []beep.Streamer
	)
	defer func() {
		for _, p := range parts {
			_ = p.Close()
		}
	}()

	for _, path := range req.Files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s, f, err := open(path)
		if err != nil {
			l.logger.Warnw("Skipping clip in export", "path", path, "error", err)
			continue
		}
		parts = append(parts, s)
		if len(streams) == 0 {
			format = f
		} else if req.GapMs > 0 {
			streams = append(streams, beep.Silence(format.SampleRate.N(time.Duration(req.GapMs)*time.Millisecond)))
		}
		var st beep.Streamer = s
		if f.SampleRate != format.SampleRate {
			st = beep.Resample(4, f.SampleRate, format.SampleRate, s)
		}
		streams = append(streams, st)
	}
	if len(parts) == 0 {
		return "", &Error{Err: errors.New("no readable clips")}
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return "", fmt.Errorf("export: create output dir: %w", err)
	}
	out, err := os.Create(req.Output)
	if err != nil {
		return "", fmt.Errorf("export: create output: %w", err)
	}
	format.NumChannels = 2
	format.Precision = 2
	if err := wav.Encode(out, beep.Seq(streams...), format); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("export: encode wav: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("export: close output: %w", err)
	}
	l.logger.Infow("Clips merged", "clips", len(parts), "output", req.Output)
	return req.Output, nil
}

func open(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".wav":
		s, format, err = wav.Decode(f)
	default:
		err = fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, err
	}
	return s, format, nil
}
