package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryRunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	task := Every(5*time.Millisecond, func() { runs.Add(1) })

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("task ran %d times, want at least 3", runs.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}

	task.Stop()
	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != stopped {
		t.Errorf("task kept running after Stop: %d -> %d", stopped, runs.Load())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	task := Every(time.Hour, func() {})
	task.Stop()
	task.Stop()

	var nilTask *Task
	nilTask.Stop()
}
