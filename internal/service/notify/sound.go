package notify

import (
	ttsplayer "BanterStudio/internal/service/tts/player"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SoundNotifier проигрывает короткий звук по окончании пакетной генерации.
type SoundNotifier struct {
	logger *zap.SugaredLogger
	path   string
	ply    ttsplayer.Player
}

// NewSoundNotifier создаёт нотификатор. Относительный путь сначала ищется рядом с бинарём,
// затем от текущей рабочей директории.
func NewSoundNotifier(logger *zap.SugaredLogger, path string) *SoundNotifier {
	return &SoundNotifier{logger: logger, path: resolve(path), ply: ttsplayer.New()}
}

func resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if exe, err := os.Executable(); err == nil {
		cand := filepath.Join(filepath.Dir(exe), path)
		if _, statErr := os.Stat(cand); statErr == nil {
			return cand
		}
	}
	return filepath.FromSlash(path)
}

// PlayDone проигрывает звук уведомления и ждёт его окончания. Без настроенного пути ничего не делает.
// Ошибки логируются и возвращаются, чтобы вызывающий мог их проигнорировать.
func (n *SoundNotifier) PlayDone(ctx context.Context) error {
	if n == nil || n.path == "" {
		return nil
	}
	if err := context.Cause(ctx); err != nil {
		return err
	}

	f, err := os.Open(n.path)
	if err != nil {
		n.logger.Warnw("Failed to open notification sound", "path", n.path, "error", err)
		return err
	}
	var rc io.ReadCloser = f
	defer rc.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(n.path), "."))
	if ext == "" {
		ext = "mp3"
	}
	if err := n.ply.Play(ext, rc); err != nil {
		n.logger.Warnw("Failed to play notification sound", "path", n.path, "error", err)
		return err
	}
	return nil
}
