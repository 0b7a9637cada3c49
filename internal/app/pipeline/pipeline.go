package pipeline

import (
	"BanterStudio/internal/app/store"
	"BanterStudio/internal/project"
	"BanterStudio/internal/service/tts"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Сообщения, которые видит пользователь у реплики в состоянии error.
const (
	MsgNoSpeech = "No speech content"
	MsgFailed   = "Failed"
)

var (
	// ErrNoSpeechContent — в тексте нет ни одного произносимого символа, сервис не вызывался.
	ErrNoSpeechContent = errors.New("pipeline: no speech content")
	// ErrGenerationInFlight — реплика уже озвучивается.
	ErrGenerationInFlight = errors.New("pipeline: generation already in flight")
	// ErrBatchRunning — пакетная генерация уже идёт.
	ErrBatchRunning = errors.New("pipeline: batch already running")
	// ErrProjectChanged — загруженный проект сменился, пока шла генерация.
	ErrProjectChanged = errors.New("pipeline: project changed")

	errInterrupted = errors.New("pipeline: interrupted before synthesis")
)

// Store — то, что конвейеру нужно от хранилища состояния.
type Store interface {
	Snapshot() store.Snapshot
	Update(epoch uint64, id string, fn func(u *project.Utterance) bool) bool
	SaveProject(ctx context.Context) error
}

// BatchResult — итог пакетной генерации.
type BatchResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"` // отклонены без обращения к сервису
	Skipped   int `json:"skipped"`  // удалены, изменены или уже озвучиваются
}

// Pipeline переводит реплики idle/error → loading → success/error через сервис синтеза.
type Pipeline struct {
	store     Store
	synth     tts.Synthesizer
	logger    *zap.SugaredLogger
	outputDir string
	cooldown  time.Duration

	batchMu sync.Mutex
}

type Option func(*Pipeline)

// WithCooldown задаёт паузу между заданиями пакета.
func WithCooldown(d time.Duration) Option { return func(p *Pipeline) { p.cooldown = d } }

// WithOutputDir задаёт каталог, под которым сервис создаёт audio/<jobKey>.
func WithOutputDir(dir string) Option { return func(p *Pipeline) { p.outputDir = dir } }

func New(st Store, synth tts.Synthesizer, logger *zap.SugaredLogger, opts ...Option) *Pipeline {
	p := &Pipeline{store: st, synth: synth, logger: logger, cooldown: 500 * time.Millisecond}
	for _, o := range opts {
		o(p)
	}
	return p
}

// JobKey — ключ задания синтеза: имя проекта и id реплики, пригодные для имени файла.
func JobKey(projectName, utteranceID string) string {
	return project.SanitizeJobKey(projectName) + "_" + project.SanitizeJobKey(utteranceID)
}

// GenerateOne озвучивает одну реплику загруженного проекта. Ошибка сервиса возвращается обёрнутой
// (*tts.GatewayError внутри), реплика при этом уже в состоянии error с сообщением "Failed".
func (p *Pipeline) GenerateOne(ctx context.Context, id string) error {
	return p.generate(ctx, p.store.Snapshot().Epoch, id, nil)
}

// generate озвучивает реплику id проекта epoch. wait, если задана, вызывается непосредственно перед
// обращением к сервису: реплики, отклонённые без вызова сервиса, её не ждут.
func (p *Pipeline) generate(ctx context.Context, epoch uint64, id string, wait func(context.Context) error) error {
	snap := p.store.Snapshot()
	if snap.Epoch != epoch {
		return ErrProjectChanged
	}
	i := snap.Project.Index(id)
	if i < 0 {
		return project.ErrUnknownUtterance
	}
	// Сохранение результата не должно зависеть от отмены запроса
	persistCtx := context.WithoutCancel(ctx)

	if !project.HasSpeech(snap.Project.Utterances[i].Text) {
		return p.reject(persistCtx, epoch, id)
	}
	if snap.Project.Utterances[i].Status == project.StatusLoading {
		return ErrGenerationInFlight
	}
	if wait != nil {
		if err := wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", errInterrupted, err)
		}
	}

	var (
		text     string
		role     project.Role
		inFlight bool
		noSpeech bool
	)
	started := p.store.Update(epoch, id, func(u *project.Utterance) bool {
		if u.Status == project.StatusLoading {
			inFlight = true
			return false
		}
		// Текст могли поменять, пока шла пауза
		if !project.HasSpeech(u.Text) {
			noSpeech = true
			return false
		}
		text, role = u.Text, u.Role
		u.Status = project.StatusLoading
		u.ErrorMessage = ""
		u.AudioLocation = ""
		u.Duration = 0
		return true
	})
	if !started {
		switch {
		case inFlight:
			return ErrGenerationInFlight
		case noSpeech:
			return p.reject(persistCtx, epoch, id)
		case p.store.Snapshot().Epoch != epoch:
			return ErrProjectChanged
		}
		return project.ErrUnknownUtterance
	}
	snap = p.store.Snapshot()

	req := tts.Request{
		Text:      text,
		VoiceID:   snap.Project.VoiceFor(role),
		OutputDir: p.outputDir,
		JobKey:    JobKey(snap.Project.DisplayName, id),
	}
	callStarted := time.Now()
	res, err := p.synth.Synthesize(ctx, req)
	metrics.SynthSeconds.Observe(time.Since(callStarted).Seconds())

	if err != nil {
		p.logger.Warnw("Synthesis failed", "id", id, "job", req.JobKey, "error", err)
		p.store.Update(epoch, id, func(u *project.Utterance) bool {
			if u.Status != project.StatusLoading {
				return false
			}
			u.Status = project.StatusError
			u.ErrorMessage = MsgFailed
			return true
		})
		metrics.Generations.WithLabelValues("failed").Inc()
		p.save(persistCtx, id)
		return fmt.Errorf("generate %s: %w", id, err)
	}

	// Реплику могли отредактировать или удалить, пока шёл запрос: тогда результат устарел
	applied := p.store.Update(epoch, id, func(u *project.Utterance) bool {
		if u.Status != project.StatusLoading {
			return false
		}
		u.Status = project.StatusSuccess
		u.AudioLocation = res.AudioPath
		u.Duration = res.Duration
		return true
	})
	if !applied {
		p.logger.Infow("Discarding stale synthesis result", "id", id, "path", res.AudioPath)
		metrics.Generations.WithLabelValues("stale").Inc()
		return nil
	}
	metrics.Generations.WithLabelValues("success").Inc()
	p.logger.Debugw("Utterance generated", "id", id, "path", res.AudioPath, "duration", res.Duration)
	p.save(persistCtx, id)
	return nil
}

// reject переводит реплику без произносимого текста в error, не обращаясь к сервису.
func (p *Pipeline) reject(ctx context.Context, epoch uint64, id string) error {
	p.store.Update(epoch, id, func(u *project.Utterance) bool {
		u.Status = project.StatusError
		u.ErrorMessage = MsgNoSpeech
		u.AudioLocation = ""
		u.Duration = 0
		return true
	})
	metrics.Generations.WithLabelValues("rejected").Inc()
	p.save(ctx, id)
	return ErrNoSpeechContent
}

func (p *Pipeline) save(ctx context.Context, id string) {
	if err := p.store.SaveProject(ctx); err != nil {
		p.logger.Warnw("Failed to persist generation result", "id", id, "error", err)
	}
}

// GenerateAll последовательно озвучивает все реплики, которые ещё не success и не loading,
// с паузой между заданиями. Прерванный пакет можно запустить снова: готовые реплики пропускаются.
func (p *Pipeline) GenerateAll(ctx context.Context) (BatchResult, error) {
	if !p.batchMu.TryLock() {
		return BatchResult{}, ErrBatchRunning
	}
	defer p.batchMu.Unlock()

	snap := p.store.Snapshot()
	ids := make([]string, 0, len(snap.Project.Utterances))
	for _, u := range snap.Project.Utterances {
		if u.Status.Pending() {
			ids = append(ids, u.ID)
		}
	}
	res := BatchResult{Total: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}

	metrics.BatchRunning.Set(1)
	defer metrics.BatchRunning.Set(0)
	p.logger.Infow("Starting batch generation", "project", snap.Project.DisplayName, "count", len(ids))

	// Пауза выдерживается только между обращениями к сервису
	called := false
	wait := func(ctx context.Context) error {
		if called {
			if err := p.sleep(ctx); err != nil {
				return err
			}
		}
		called = true
		return nil
	}

	for i, id := range ids {
		metrics.BatchPending.Set(float64(len(ids) - i))
		if err := ctx.Err(); err != nil {
			metrics.BatchPending.Set(0)
			p.logger.Infow("Batch generation cancelled", "done", i, "count", len(ids))
			return res, context.Cause(ctx)
		}

		err := p.generate(ctx, snap.Epoch, id, wait)
		switch {
		case err == nil:
			res.Succeeded++
		case errors.Is(err, errInterrupted):
			metrics.BatchPending.Set(0)
			p.logger.Infow("Batch generation cancelled", "done", i, "count", len(ids))
			return res, context.Cause(ctx)
		case errors.Is(err, ErrNoSpeechContent):
			res.Rejected++
		case errors.Is(err, ErrProjectChanged):
			metrics.BatchPending.Set(0)
			res.Skipped += len(ids) - i
			p.logger.Infow("Batch generation stopped: project changed", "done", i, "count", len(ids))
			return res, err
		case errors.Is(err, project.ErrUnknownUtterance), errors.Is(err, ErrGenerationInFlight):
			res.Skipped++
		default:
			res.Failed++
		}
	}
	metrics.BatchPending.Set(0)
	p.logger.Infow("Batch generation finished", "total", res.Total, "succeeded", res.Succeeded,
		"failed", res.Failed, "rejected", res.Rejected, "skipped", res.Skipped)
	return res, nil
}

// Running сообщает, идёт ли пакетная генерация.
func (p *Pipeline) Running() bool {
	if p.batchMu.TryLock() {
		p.batchMu.Unlock()
		return false
	}
	return true
}

func (p *Pipeline) sleep(ctx context.Context) error {
	if p.cooldown <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.cooldown)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
