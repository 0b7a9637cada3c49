package audio

import (
	"BanterStudio/internal/storage"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Cleaner удаляет сгенерированные клипы, на которые больше не ссылается ни один проект.
type Cleaner struct {
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewCleaner(logger *zap.SugaredLogger) *Cleaner { return &Cleaner{logger: logger, now: time.Now} }

// Referenced собирает пути клипов всех проектов хранилища. Нечитаемые документы пропускаются.
func Referenced(ctx context.Context, gw storage.Gateway) (map[string]struct{}, error) {
	sums, err := gw.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	refs := make(map[string]struct{})
	for _, s := range sums {
		doc, err := gw.Read(ctx, s.StorageKey)
		if err != nil {
			continue
		}
		for _, u := range doc.Utterances {
			if u.AudioLocation != "" {
				refs[filepath.Clean(u.AudioLocation)] = struct{}{}
			}
		}
	}
	return refs, nil
}

// Clean удаляет из dir аудиофайлы старше ttl, которых нет в referenced. В режиме debug ничего не делает.
// Возвращает число удалённых файлов.
func (c *Cleaner) Clean(dir string, ttl time.Duration, debug bool, referenced map[string]struct{}) int {
	if debug {
		c.logger.Infow("DEBUG: audio cleanup disabled", "dir", dir, "ttl", ttl.String())
		return 0
	}
	if ttl <= 0 || dir == "" {
		return 0
	}

	deadline := c.now().Add(-ttl)
	exts := []string{".mp3", ".wav", ".ogg"}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warnw("Failed to read audio dir", "dir", dir, "error", err)
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if slices.IndexFunc(exts, func(ext string) bool { return strings.HasSuffix(lower, ext) }) == -1 {
			continue
		}
		full := filepath.Join(dir, name)
		if _, ok := referenced[filepath.Clean(full)]; ok {
			continue
		}
		fi, statErr := e.Info()
		if statErr != nil {
			c.logger.Warnw("Failed to stat clip", "name", name, "error", statErr)
			continue
		}
		if fi.ModTime().Before(deadline) {
			if err := os.Remove(full); err != nil {
				c.logger.Warnw("Failed to remove orphaned clip", "path", full, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		c.logger.Infow("Orphaned clips removed", "dir", dir, "removed", removed, "before", deadline.Format(time.RFC3339))
	}
	return removed
}
