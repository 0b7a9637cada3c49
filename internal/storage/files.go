package storage

import (
	"BanterStudio/internal/project"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Files хранит каждый проект отдельным JSON-файлом в каталоге проектов.
type Files struct {
	dir    string
	logger *zap.SugaredLogger
}

var _ Gateway = (*Files)(nil)

// NewFiles создаёт каталог проектов при необходимости.
func NewFiles(dir string, logger *zap.SugaredLogger) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create projects dir: %w", err)
	}
	return &Files{dir: dir, logger: logger}, nil
}

// Dir возвращает корневой каталог проектов.
func (f *Files) Dir() string { return f.dir }

func (f *Files) List(ctx context.Context) ([]project.Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []project.Summary{}, nil
		}
		return nil, fmt.Errorf("storage: list: %w", err)
	}

	out := make([]project.Summary, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, project.Extension) {
			continue
		}
		doc, err := f.readFile(name)
		if err != nil {
			// Битые файлы в списке не показываем
			f.logger.Warnw("Skipping unreadable project", "key", name, "error", err)
			continue
		}
		s := project.Summary{StorageKey: name, DisplayName: doc.DisplayName}
		if s.DisplayName == "" {
			s.DisplayName = project.DisplayNameFromKey(name)
		}
		if doc.UpdatedAt > 0 {
			s.LastModified = time.UnixMilli(doc.UpdatedAt)
		} else if fi, statErr := e.Info(); statErr == nil {
			s.LastModified = fi.ModTime()
		}
		out = append(out, s)
	}

	slices.SortStableFunc(out, func(a, b project.Summary) int { // по убыванию времени
		return -cmp.Compare(a.LastModified.UnixMilli(), b.LastModified.UnixMilli())
	})
	return out, nil
}

func (f *Files) Read(_ context.Context, key string) (*project.Document, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return f.readFile(key)
}

func (f *Files) Write(_ context.Context, key string, doc project.Document) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}

	// Пишем во временный файл и переименовываем, чтобы падение посреди записи не оставило обрезанный JSON
	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

func (f *Files) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (f *Files) Move(_ context.Context, oldKey, newKey string) error {
	if err := ValidateKey(oldKey); err != nil {
		return err
	}
	if err := ValidateKey(newKey); err != nil {
		return err
	}
	if oldKey == newKey {
		return nil
	}
	if _, err := os.Stat(f.path(oldKey)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: move %s: %w", oldKey, err)
	}
	if _, err := os.Stat(f.path(newKey)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, newKey)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: move %s: %w", newKey, err)
	}
	if err := os.Rename(f.path(oldKey), f.path(newKey)); err != nil {
		return fmt.Errorf("storage: move %s -> %s: %w", oldKey, newKey, err)
	}
	return nil
}

func (f *Files) readFile(key string) (*project.Document, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	var doc project.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return &doc, nil
}

func (f *Files) path(key string) string { return filepath.Join(f.dir, key) }
