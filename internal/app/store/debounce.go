package store

import (
	"sync"
	"time"
)

// Debouncer откладывает вызов fn до тех пор, пока Trigger не перестанет вызываться в течение delay.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	gen     uint64 // отбрасывает сработки таймеров, переустановленных или отменённых после запуска
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (пере)запускает отсчёт.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.pending = true
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending сообщает, ждёт ли отложенный вызов.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush немедленно выполняет отложенный вызов, если он есть. Возвращает true, если вызов был.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	d.stopLocked()
	d.mu.Unlock()
	d.fn()
	return true
}

// Cancel отбрасывает отложенный вызов.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.stopLocked()
	d.mu.Unlock()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}
