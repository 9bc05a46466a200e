package session

import (
	"sync"
	"time"
)

// Detector ends a segment after a stretch of silence that follows speech.
type Detector struct {
	timeout      time.Duration
	mu           sync.Mutex
	timer        *time.Timer
	heard        bool
	onSegmentEnd func()
}

func NewDetector(timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &Detector{timeout: timeout}
}

func (d *Detector) OnSegmentEnd(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSegmentEnd = callback
}

// OnSpeech cancels a pending silence timer.
func (d *Detector) OnSpeech() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.heard = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// OnSilence arms the timer once per stretch of silence, and only after speech.
func (d *Detector) OnSilence() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.heard || d.timer != nil {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.timeout, func() {
		d.mu.Lock()
		if d.timer != timer {
			d.mu.Unlock()
			return
		}
		callback := d.onSegmentEnd
		d.timer = nil
		d.heard = false
		d.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
	d.timer = timer
}

// Reset forgets any speech heard so far without firing the callback.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.heard = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
