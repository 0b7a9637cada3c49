package storage

import (
	"BanterStudio/internal/project"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound — документа с таким ключом нет.
	ErrNotFound = errors.New("storage: project not found")
	// ErrExists — целевой ключ при переименовании уже занят.
	ErrExists = errors.New("storage: project already exists")
	// ErrInvalidKey — ключ не может быть именем файла в каталоге проектов.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Gateway — CRUD над именованными JSON-документами проектов.
type Gateway interface {
	// List возвращает сводки всех проектов, последние изменённые — первыми.
	List(ctx context.Context) ([]project.Summary, error)
	Read(ctx context.Context, key string) (*project.Document, error)
	Write(ctx context.Context, key string, doc project.Document) error
	Delete(ctx context.Context, key string) error
	// Move переносит документ; ошибка ErrExists, если newKey занят другим документом.
	Move(ctx context.Context, oldKey, newKey string) error
}

// ValidateKey отсекает ключи, которые вывели бы запись за пределы каталога проектов.
func ValidateKey(key string) error {
	if !strings.HasSuffix(key, project.Extension) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if key != filepath.Base(key) || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
