package jsonbody

import (
	"sync"
	"time"
)

// CancelFunc cancels a scheduled callback. It is idempotent and safe to
// call from within the callback itself.
type CancelFunc func()

// Scheduler schedules a single-shot callback after a delay. The streaming
// handler uses it to yield the event loop between body slices; anything
// that can run a function once after a delay can implement it.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) CancelFunc
}

// TimerScheduler schedules callbacks on single-shot timers. This is the
// default scheduler.
type TimerScheduler struct{}

// Schedule runs fn once after d.
func (TimerScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	var once sync.Once
	return func() {
		once.Do(func() { t.Stop() })
	}
}

// ImmediateScheduler runs callbacks synchronously, collapsing all streaming
// ticks into one delivery pass. It trades the event-loop yielding of the
// timer path for determinism; use it only where time-sliced scheduling is
// not meaningful, such as tests or synchronous tooling.
type ImmediateScheduler struct{}

// Schedule runs fn before returning. The returned CancelFunc is a no-op.
func (ImmediateScheduler) Schedule(_ time.Duration, fn func()) CancelFunc {
	fn()
	return func() {}
}
