package files

import (
	"sync"
	"time"
)

// delayedTask is a cancellable debounce slot with replace-pending
// semantics: each Schedule call drops whatever was queued and arms the
// timer anew, so a burst of calls collapses into the last one.
type delayedTask struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newDelayedTask(delay time.Duration) *delayedTask {
	return &delayedTask{delay: delay}
}

func (d *delayedTask) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

func (d *delayedTask) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
