// Package schedule runs cancellable repeating background work.
package schedule

import (
	"sync"
	"time"
)

// Task is a handle to a function running on a fixed interval.
type Task struct {
	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

// Every runs fn every interval until the returned task is stopped.
// The first run happens one interval after the call.
func Every(interval time.Duration, fn func()) *Task {
	t := &Task{
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn()
			case <-t.stopChan:
				return
			}
		}
	}()

	return t
}

// Stop cancels the task and waits for an in-progress run to finish.
// Calling Stop more than once is safe.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stopChan) })
	<-t.done
}
