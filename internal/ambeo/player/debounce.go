package player

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs at most one delayed task at a time.
//
// The task function receives a context that is cancelled when the task is
// cancelled. Functions that apply state must check ctx.Err() while holding
// the lock that guards that state, so that a task racing with Cancel never
// applies after Cancel has returned.
type Debouncer struct {
	mu      sync.Mutex
	pending *debounceTask
}

type debounceTask struct {
	started time.Time
	delay   time.Duration
	cancel  context.CancelFunc
	done    chan struct{}
}

// Schedule starts fn after delay unless a task is already pending.
// It reports whether a new task was started.
func (d *Debouncer) Schedule(delay time.Duration, fn func(ctx context.Context)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &debounceTask{
		started: time.Now(),
		delay:   delay,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	d.pending = task

	go d.run(ctx, task, fn)
	return true
}

func (d *Debouncer) run(ctx context.Context, task *debounceTask, fn func(ctx context.Context)) {
	defer close(task.done)
	defer task.cancel()

	timer := time.NewTimer(task.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		fn(ctx)
	}

	d.mu.Lock()
	if d.pending == task {
		d.pending = nil
	}
	d.mu.Unlock()
}

// Cancel stops the pending task and waits for it to terminate.
// It is a no-op when nothing is pending.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	task := d.pending
	d.pending = nil
	d.mu.Unlock()

	if task == nil {
		return
	}
	task.cancel()
	<-task.done
}

// Pending reports whether a task is scheduled or running.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Remaining returns the time left before the pending task fires, or zero.
func (d *Debouncer) Remaining() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return 0
	}
	left := d.pending.delay - time.Since(d.pending.started)
	if left < 0 {
		return 0
	}
	return left
}
