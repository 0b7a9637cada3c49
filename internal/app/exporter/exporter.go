package exporter

import (
	"BanterStudio/internal/media"
	"BanterStudio/internal/project"
	"BanterStudio/internal/service/export"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNothingToExport — в проекте нет ни одной озвученной реплики.
var ErrNothingToExport = errors.New("exporter: no audio generated yet")

// Source отдаёт копию загруженного проекта.
type Source interface {
	Project() project.Project
}

// Plan — что попадёт в итоговый файл.
type Plan struct {
	Project  string   `json:"project"`
	Files    []string `json:"files"`
	Duration float64  `json:"duration"` // сумма длительностей клипов без пауз, секунды
	Skipped  int      `json:"skipped"`  // реплики без аудио, в файл не войдут
	Total    int      `json:"total"`
}

type Exporter struct {
	source      Source
	merger      export.Merger
	projectsDir string
	gapMs       int
	logger      *zap.SugaredLogger
}

func New(source Source, merger export.Merger, projectsDir string, gapMs int, logger *zap.SugaredLogger) *Exporter {
	return &Exporter{source: source, merger: merger, projectsDir: projectsDir, gapMs: gapMs, logger: logger}
}

// DefaultFileName — имя итогового файла, предлагаемое по умолчанию.
func DefaultFileName(p project.Project) string { return p.DisplayName + "_Full.mp3" }

// Plan собирает озвученные реплики в порядке сценария. Пути приводятся к путям файловой системы;
// реплики с неразрешимым путём пропускаются.
func (e *Exporter) Plan() Plan {
	p := e.source.Project()
	playable := p.Playable()
	plan := Plan{
		Project: p.DisplayName,
		Files:   make([]string, 0, len(playable)),
		Total:   len(p.Utterances),
		Skipped: len(p.Utterances) - len(playable),
	}
	for _, u := range playable {
		path, err := media.Resolve(u.AudioLocation)
		if err != nil {
			e.logger.Warnw("Skipping clip with unusable location", "id", u.ID, "location", u.AudioLocation, "error", err)
			plan.Skipped++
			continue
		}
		plan.Files = append(plan.Files, path)
		plan.Duration += u.Duration
	}
	return plan
}

// Export склеивает озвученные реплики в dest. Пустой dest означает отмену: сервис не вызывается,
// возвращается пустой путь без ошибки.
func (e *Exporter) Export(ctx context.Context, dest string) (string, error) {
	// 1. Проверить, что есть что склеивать
	plan := e.Plan()
	if len(plan.Files) == 0 {
		return "", ErrNothingToExport
	}
	if plan.Skipped > 0 {
		e.logger.Warnw("Utterances without audio will be skipped", "skipped", plan.Skipped, "total", plan.Total)
	}

	// 2. Пользователь отказался выбирать файл
	if dest == "" {
		e.logger.Infow("Export cancelled", "project", plan.Project)
		return "", nil
	}

	// 3. Склеить
	out, err := e.merger.Merge(ctx, export.Request{
		ProjectDir: e.projectsDir,
		Files:      plan.Files,
		Output:     dest,
		GapMs:      e.gapMs,
	})
	if err != nil {
		e.logger.Errorw("Export failed", "project", plan.Project, "error", err)
		return "", fmt.Errorf("export %q: %w", plan.Project, err)
	}
	e.logger.Infow("Project exported", "project", plan.Project, "clips", len(plan.Files), "output", out)
	return out, nil
}
