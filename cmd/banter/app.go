package main

import (
	"BanterStudio/internal/api"
	"BanterStudio/internal/app/exporter"
	"BanterStudio/internal/app/pipeline"
	"BanterStudio/internal/app/playback"
	"BanterStudio/internal/app/store"
	"BanterStudio/internal/config"
	"BanterStudio/internal/project"
	"BanterStudio/internal/service/export"
	"BanterStudio/internal/service/tts"
	"BanterStudio/internal/service/tts/backend"
	"BanterStudio/internal/service/tts/gemini"
	"BanterStudio/internal/service/tts/google"
	"BanterStudio/internal/service/tts/player"
	"BanterStudio/internal/service/tts/yandex"
	"BanterStudio/internal/storage"
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app — общие для всех команд компоненты, собираются один раз перед запуском команды.
type app struct {
	cfg         *config.Config
	projectName string

	logger   *zap.SugaredLogger
	zl       *zap.Logger
	gw       storage.Gateway
	closeGW  func() error
	store    *store.Store
	registry *prometheus.Registry
}

func (a *app) init(_ context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	var err error
	if a.cfg.DebugMode {
		a.zl, err = zap.NewDevelopment()
	} else {
		a.zl, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = a.zl.Sugar()

	switch a.cfg.StorageBackend {
	case "sqlite":
		db, err := storage.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.gw, a.closeGW = db, db.Close
	default:
		files, err := storage.NewFiles(a.cfg.ProjectsDir, a.logger)
		if err != nil {
			return err
		}
		a.gw = files
	}

	d := a.cfg.Defaults
	a.store = store.New(a.gw, a.logger,
		store.WithAutosaveDelay(a.cfg.AutosaveDelay),
		store.WithDefaults(project.Defaults{
			HostName:     d.HostName,
			GuestName:    d.GuestName,
			HostVoiceID:  d.HostVoice,
			GuestVoiceID: d.GuestVoice,
		}),
	)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipeline.RegisterMetrics(a.registry)
	playback.RegisterMetrics(a.registry)
	api.RegisterMetrics(a.registry)

	a.logger.Debugw("Starting app",
		"DebugMode", a.cfg.DebugMode,
		"ProjectsDir", a.cfg.ProjectsDir,
		"Storage", a.cfg.StorageBackend,
		"TTS", a.cfg.TTSService,
	)
	return nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.closeGW != nil {
		if err := a.closeGW(); err != nil {
			a.logger.Warnw("Failed to close storage", "error", err)
		}
	}
	if a.zl != nil {
		_ = a.zl.Sync()
	}
}

// open загружает проект из --project или самый свежий.
func (a *app) open(ctx context.Context) error {
	if err := a.store.Init(ctx); err != nil {
		return err
	}
	if a.projectName == "" {
		return nil
	}
	return a.store.LoadProject(ctx, storageKey(a.projectName))
}

// requireProject открывает проект и проверяет, что он действительно загружен.
func (a *app) requireProject(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	if !a.store.Snapshot().Resident {
		return store.ErrNoProject
	}
	return nil
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	synth, err := newSynthesizer(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(a.store, synth, a.logger,
		pipeline.WithCooldown(a.cfg.BatchCooldown),
		pipeline.WithOutputDir(a.cfg.ProjectsDir),
	), nil
}

func (a *app) sequencer() *playback.Sequencer {
	p := player.New()
	out := playback.OutputFunc(func(path string, onEnd func(), onError func(error)) (playback.Clip, error) {
		c, err := p.Open(path, onEnd, onError)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	return playback.New(a.store, out, a.logger)
}

func (a *app) exporter() *exporter.Exporter {
	merger := export.Auto{
		Local:  export.NewLocal(a.logger),
		Remote: export.NewClient(a.cfg.Backend, a.logger),
	}
	return exporter.New(a.store, merger, a.cfg.ProjectsDir, a.cfg.ExportGapMs, a.logger)
}

// newSynthesizer выбирает клиент синтеза по TTS_SERVICE.
func newSynthesizer(cfg *config.Config, logger *zap.SugaredLogger) (tts.Synthesizer, error) {
	service := strings.ToLower(strings.TrimSpace(cfg.TTSService))
	var synth tts.Synthesizer
	switch service {
	case "backend":
		synth = backend.New(cfg.Backend, logger)
	case "yandex":
		synth = yandex.New(cfg.YandexTTS)
	case "gemini":
		synth = gemini.New(cfg.GeminiTTS, logger)
	case "google":
		synth = google.New(cfg.GoogleTTS, logger)
	default:
		return nil, fmt.Errorf("unknown TTS service %q", cfg.TTSService)
	}
	logger.Infow("TTS selected", "service", service)
	return synth, nil
}
