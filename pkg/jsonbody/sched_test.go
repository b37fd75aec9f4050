package jsonbody

import (
	"testing"
	"time"
)

func TestTimerSchedulerFires(t *testing.T) {
	fired := make(chan struct{})
	TimerScheduler{}.Schedule(time.Millisecond, func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Scheduled callback never fired")
	}
}

func TestTimerSchedulerCancel(t *testing.T) {
	fired := make(chan struct{}, 1)
	cancel := TimerScheduler{}.Schedule(50*time.Millisecond, func() {
		fired <- struct{}{}
	})
	cancel()
	cancel() // idempotent

	select {
	case <-fired:
		t.Fatal("Canceled callback fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestImmediateSchedulerRunsSynchronously(t *testing.T) {
	ran := false
	cancel := ImmediateScheduler{}.Schedule(time.Hour, func() {
		ran = true
	})
	if !ran {
		t.Error("Immediate scheduler did not run the callback before returning")
	}
	cancel() // no-op
}
