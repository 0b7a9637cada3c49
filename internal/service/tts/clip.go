package tts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// AudioDir — подкаталог проекта, куда складываются клипы.
const AudioDir = "audio"

// ClipPath возвращает путь клипа для задания: <dir>/audio/<jobKey>.<ext>.
func ClipPath(dir, jobKey, ext string) string {
	return filepath.Join(dir, AudioDir, jobKey+"."+strings.TrimPrefix(ext, "."))
}

// SaveClip записывает аудио задания и определяет его длительность.
// Неизвестная длительность не считается ошибкой синтеза.
func SaveClip(dir, jobKey, ext string, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, errors.New("empty audio content")
	}
	path := ClipPath(dir, jobKey, ext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, fmt.Errorf("create audio dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("write clip: %w", err)
	}
	dur, _ := DecodeDuration(ext, io.NopCloser(bytes.NewReader(data)))
	return Result{AudioPath: path, Duration: dur}, nil
}

// ProbeDuration открывает клип и возвращает его длительность в секундах.
func ProbeDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return DecodeDuration(filepath.Ext(path), f)
}

// DecodeDuration декодирует заголовок mp3/wav и считает длительность по числу сэмплов.
func DecodeDuration(ext string, r io.ReadCloser) (float64, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp3":
		s, format, err = mp3.Decode(r)
	case "wav":
		s, format, err = wav.Decode(r)
	default:
		return 0, fmt.Errorf("unsupported audio format %q", ext)
	}
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return format.SampleRate.D(s.Len()).Seconds(), nil
}
