package player

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Все клипы пересэмплируются к одной частоте: динамик инициализируется один раз на процесс.
const sampleRate = beep.SampleRate(44100)

var (
	initOnce sync.Once
	initErr  error
)

func initSpeaker() error {
	initOnce.Do(func() {
		initErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	return initErr
}

// ErrUnsupportedFormat — формат, который плеер не умеет декодировать.
var ErrUnsupportedFormat = errors.New("unsupported format for direct playback; use mp3 or wav")

// Player воспроизводит аудио потоком в зависимости от формата.
type Player interface {
	Play(format string, r io.ReadCloser) error
}

// Default реализует Player и поддерживает mp3 и wav.
type Default struct{ volumeDB float64 }

// New создаёт плеер без изменения громкости (0 dB).
func New() *Default { return &Default{volumeDB: 0} }

// NewWithVolume создаёт плеер с предустановленной громкостью в dB (отрицательные — тише).
func NewWithVolume(db float64) *Default { return &Default{volumeDB: db} }

// Play проигрывает поток целиком и возвращается после его окончания.
func (d *Default) Play(format string, r io.ReadCloser) error {
	streamer, f, err := decode(format, r)
	if err != nil {
		return err
	}
	defer streamer.Close()

	if err := initSpeaker(); err != nil {
		return err
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(d.volume(resample(streamer, f)), beep.Callback(func() { close(done) })))
	<-done
	return streamer.Err()
}

// Open начинает воспроизведение файла и сразу возвращает управляемый клип.
// onEnd вызывается по окончании, onError — если декодер споткнулся посреди файла.
// Колбэки вызываются из отдельной горутины, не из потока динамика.
func (d *Default) Open(path string, onEnd func(), onError func(error)) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	streamer, format, err := decode(strings.TrimPrefix(filepath.Ext(path), "."), f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := initSpeaker(); err != nil {
		_ = streamer.Close()
		return nil, err
	}

	c := &Clip{streamer: streamer, onEnd: onEnd, onError: onError}
	c.ctrl = &beep.Ctrl{Streamer: beep.Seq(d.volume(resample(streamer, format)), beep.Callback(func() {
		go c.finish()
	}))}
	speaker.Play(c.ctrl)
	return c, nil
}

func (d *Default) volume(s beep.Streamer) beep.Streamer {
	return &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   d.volumeDB,
		Silent:   false,
	}
}

func resample(s beep.Streamer, f beep.Format) beep.Streamer {
	if f.SampleRate == sampleRate {
		return s
	}
	return beep.Resample(4, f.SampleRate, sampleRate, s)
}

func decode(format string, r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(format) {
	case "wav":
		return wav.Decode(r)
	case "mp3":
		return mp3.Decode(r)
	default:
		_ = r.Close()
		return nil, beep.Format{}, ErrUnsupportedFormat
	}
}

// Clip — воспроизводимый клип.
type Clip struct {
	ctrl     *beep.Ctrl
	streamer beep.StreamSeekCloser

	mu       sync.Mutex
	onEnd    func()
	onError  func(error)
	finished atomic.Bool
	closed   bool
}

func (c *Clip) finish() {
	c.finished.Store(true)
	c.mu.Lock()
	onEnd, onError := c.onEnd, c.onError
	c.mu.Unlock()

	if err := c.streamer.Err(); err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	if onEnd != nil {
		onEnd()
	}
}

// Pause приостанавливает вывод, позиция сохраняется.
func (c *Clip) Pause() { c.setPaused(true) }

// Resume продолжает с места паузы.
func (c *Clip) Resume() { c.setPaused(false) }

func (c *Clip) setPaused(v bool) {
	speaker.Lock()
	c.ctrl.Paused = v
	speaker.Unlock()
}

// Finished сообщает, доиграл ли клип до конца.
func (c *Clip) Finished() bool { return c.finished.Load() }

// Detach снимает колбэки окончания и ошибки.
func (c *Clip) Detach() {
	c.mu.Lock()
	c.onEnd, c.onError = nil, nil
	c.mu.Unlock()
}

// Close останавливает вывод и освобождает декодер. Повторный вызов безопасен.
func (c *Clip) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	speaker.Lock()
	c.ctrl.Streamer = nil
	speaker.Unlock()
	return c.streamer.Close()
}
