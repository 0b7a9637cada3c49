// Package export склеивает клипы проекта в один файл с паузами между ними.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Request — задание на склейку. Files идут в порядке воспроизведения.
type Request struct {
	ProjectDir string
	Files      []string
	Output     string
	GapMs      int
}

// Merger склеивает клипы и возвращает путь к итоговому файлу.
type Merger interface {
	Merge(ctx context.Context, req Request) (string, error)
}

// Auto отправляет склейку в .wav локальному Merger, остальное — в Remote.
type Auto struct {
	Local  Merger
	Remote Merger
}

func (a Auto) Merge(ctx context.Context, req Request) (string, error) {
	if a.Local != nil && strings.EqualFold(filepath.Ext(req.Output), ".wav") {
		return a.Local.Merge(ctx, req)
	}
	return a.Remote.Merge(ctx, req)
}

// Error — сервис склейки отказал.
type Error struct {
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Status != 0:
		return fmt.Sprintf("export: status %d: %s", e.Status, e.Detail)
	case e.Detail != "":
		return "export: " + e.Detail
	case e.Err != nil:
		return "export: " + e.Err.Error()
	}
	return fmt.Sprintf("export: status %d", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }
