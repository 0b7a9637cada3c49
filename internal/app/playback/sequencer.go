package playback

import (
	"BanterStudio/internal/app/store"
	"BanterStudio/internal/media"
	"BanterStudio/internal/project"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ErrNothingToPlay — в проекте нет ни одной озвученной реплики.
var ErrNothingToPlay = errors.New("playback: nothing to play")

// Clip — один воспроизводимый файл.
type Clip interface {
	Pause()
	Resume()
	Finished() bool
	// Detach снимает колбэки окончания и ошибки: после него клип не может сдвинуть очередь.
	Detach()
	Close() error
}

// Output открывает файл и начинает воспроизведение. Колбэки вызываются асинхронно,
// никогда изнутри самого Open.
type Output interface {
	Open(path string, onEnd func(), onError func(error)) (Clip, error)
}

// OutputFunc позволяет использовать функцию как Output.
type OutputFunc func(path string, onEnd func(), onError func(error)) (Clip, error)

func (f OutputFunc) Open(path string, onEnd func(), onError func(error)) (Clip, error) {
	return f(path, onEnd, onError)
}

// Source отдаёт копию загруженного проекта.
type Source interface {
	Project() project.Project
}

// Projects — уведомления о смене загруженного проекта.
type Projects interface {
	Snapshot() store.Snapshot
	Subscribe(fn func(store.Snapshot)) func()
}

// State — наблюдаемое состояние проигрывателя.
type State struct {
	Playing   bool   `json:"isPlaying"`
	CurrentID string `json:"currentPlayingId,omitempty"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
}

// Sequencer проигрывает озвученные реплики проекта по порядку, по одной.
type Sequencer struct {
	source Source
	out    Output
	logger *zap.SugaredLogger

	mu       sync.Mutex
	playlist []project.Utterance
	index    int
	clip     Clip
	playing  bool
	token    uint64 // растёт при каждой смене клипа, старые колбэки сверяются с ним

	subMu     sync.Mutex
	listeners []func(State)
}

func New(source Source, out Output, logger *zap.SugaredLogger) *Sequencer {
	return &Sequencer{source: source, out: out, logger: logger}
}

// OnChange регистрирует слушателя изменений состояния.
func (s *Sequencer) OnChange(fn func(State)) {
	s.subMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.subMu.Unlock()
}

// State возвращает текущее состояние.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Sequencer) stateLocked() State {
	st := State{Playing: s.playing, Index: s.index, Total: len(s.playlist)}
	if s.clip != nil && s.index < len(s.playlist) {
		st.CurrentID = s.playlist[s.index].ID
	}
	return st
}

// Toggle ставит на паузу, продолжает или запускает воспроизведение с начала.
// Список реплик фиксируется в момент запуска.
func (s *Sequencer) Toggle() error {
	s.mu.Lock()
	switch {
	case s.playing && s.clip != nil:
		s.clip.Pause()
		s.playing = false
		metrics.Playing.Set(0)
		s.logger.Debugw("Playback paused", "index", s.index)
	case s.clip != nil && !s.clip.Finished():
		s.clip.Resume()
		s.playing = true
		metrics.Playing.Set(1)
		s.logger.Debugw("Playback resumed", "index", s.index)
	default:
		playlist := s.source.Project().Playable()
		if len(playlist) == 0 {
			s.mu.Unlock()
			return ErrNothingToPlay
		}
		s.releaseLocked()
		s.playlist = playlist
		s.index = 0
		s.playing = true
		metrics.Playing.Set(1)
		s.logger.Infow("Playback started", "clips", len(playlist))
		s.startLocked()
	}
	st := s.stateLocked()
	s.mu.Unlock()
	s.emit(st)
	return nil
}

// Follow останавливает воспроизведение, как только в хранилище сменился загруженный проект.
// Возвращает функцию отписки.
func (s *Sequencer) Follow(projects Projects) func() {
	var mu sync.Mutex
	epoch := projects.Snapshot().Epoch
	return projects.Subscribe(func(snap store.Snapshot) {
		mu.Lock()
		switched := snap.Epoch != epoch
		epoch = snap.Epoch
		mu.Unlock()
		if switched && s.active() {
			s.logger.Infow("Project switched, stopping playback", "project", snap.Project.DisplayName)
			s.Stop()
		}
	})
}

func (s *Sequencer) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlist != nil
}

// Stop останавливает воспроизведение и освобождает клип.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.finishLocked()
	st := s.stateLocked()
	s.mu.Unlock()
	s.emit(st)
}

// startLocked запускает клип с текущим индексом; файлы, которые не открылись, пропускаются.
func (s *Sequencer) startLocked() {
	for ; s.index < len(s.playlist); s.index++ {
		s.releaseLocked()
		s.token++
		token := s.token
		u := s.playlist[s.index]

		path, err := media.Resolve(u.AudioLocation)
		if err == nil {
			var clip Clip
			clip, err = s.out.Open(path,
				func() { s.advance(token, nil) },
				func(err error) { s.advance(token, err) },
			)
			if err == nil {
				s.clip = clip
				return
			}
		}
		metrics.Clips.WithLabelValues("failed").Inc()
		s.logger.Warnw("Skipping clip", "id", u.ID, "path", u.AudioLocation, "error", err)
	}
	s.finishLocked()
	s.logger.Infow("Playback finished")
}

// advance переходит к следующему клипу после окончания или ошибки текущего.
func (s *Sequencer) advance(token uint64, clipErr error) {
	s.mu.Lock()
	if token != s.token {
		s.mu.Unlock()
		return
	}
	if clipErr != nil {
		metrics.Clips.WithLabelValues("failed").Inc()
		s.logger.Warnw("Clip playback failed", "id", s.playlist[s.index].ID, "error", clipErr)
	} else {
		metrics.Clips.WithLabelValues("played").Inc()
	}
	s.index++
	s.startLocked()
	st := s.stateLocked()
	s.mu.Unlock()
	s.emit(st)
}

func (s *Sequencer) releaseLocked() {
	if s.clip == nil {
		return
	}
	s.clip.Detach()
	if err := s.clip.Close(); err != nil {
		s.logger.Debugw("Failed to close clip", "error", err)
	}
	s.clip = nil
}

func (s *Sequencer) finishLocked() {
	s.releaseLocked()
	s.token++
	s.playing = false
	s.playlist = nil
	s.index = 0
	metrics.Playing.Set(0)
}

func (s *Sequencer) emit(st State) {
	s.subMu.Lock()
	fns := slices.Clone(s.listeners)
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
