package watcher

import (
	"sync"
	"time"
)

// debouncer collapses a burst of changes into a single forward call carrying
// the most recent change.
type debouncer struct {
	mutex    sync.Mutex
	duration time.Duration
	timer    *time.Timer
	pending  ChangeEvent
	flush    func(ChangeEvent)
	stopped  bool
}

func newDebouncer(duration time.Duration, flush func(ChangeEvent)) *debouncer {
	return &debouncer{
		duration: duration,
		flush:    flush,
	}
}

// trigger records change and restarts the quiet period. It reports whether
// an earlier pending change was replaced.
func (debouncer *debouncer) trigger(change ChangeEvent) bool {
	debouncer.mutex.Lock()
	defer debouncer.mutex.Unlock()

	if debouncer.stopped {
		return false
	}
	debouncer.pending = change
	if debouncer.timer != nil && debouncer.timer.Stop() {
		debouncer.timer.Reset(debouncer.duration)
		return true
	}
	debouncer.timer = time.AfterFunc(debouncer.duration, debouncer.fire)
	return false
}

func (debouncer *debouncer) fire() {
	debouncer.mutex.Lock()
	if debouncer.stopped {
		debouncer.mutex.Unlock()
		return
	}
	change := debouncer.pending
	debouncer.mutex.Unlock()

	debouncer.flush(change)
}

func (debouncer *debouncer) stop() {
	debouncer.mutex.Lock()
	defer debouncer.mutex.Unlock()

	debouncer.stopped = true
	if debouncer.timer != nil {
		debouncer.timer.Stop()
	}
}
