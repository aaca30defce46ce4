// Package countdown implements pausable auto-dismiss timers.
package countdown

import (
	"sync"
	"time"
)

// Countdown fires a callback once its remaining time elapses. Pausing
// freezes the remaining time; resuming re-arms with what was left.
type Countdown struct {
	mu        sync.Mutex
	clock     Clock
	onExpire  func()
	timer     Timer
	startedAt time.Time
	remaining time.Duration
	running   bool
	paused    bool
	done      bool
	gen       uint64
}

// New returns an idle countdown. onExpire runs on the clock's goroutine.
func New(clock Clock, onExpire func()) *Countdown {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Countdown{
		clock:    clock,
		onExpire: onExpire,
	}
}

// Start arms the countdown with remaining, replacing any pending timer.
func (c *Countdown) Start(remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done = false
	c.arm(remaining)
}

// Pause stops the countdown and returns the time that was left.
func (c *Countdown) Pause() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return c.remaining
	}

	c.remaining = c.leftLocked()
	c.disarm()
	c.paused = true
	return c.remaining
}

// Resume re-arms the countdown with remaining. It is a no-op once the
// countdown has fired or been stopped.
func (c *Countdown) Resume(remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done || c.running {
		return
	}
	c.arm(remaining)
}

// Stop cancels the countdown for good.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disarm()
	c.paused = false
	c.done = true
}

// Remaining reports the time left, accounting for elapsed time while running.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return c.remaining
	}
	return c.leftLocked()
}

// Paused reports whether the countdown is frozen by Pause.
func (c *Countdown) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.paused
}

func (c *Countdown) arm(remaining time.Duration) {
	c.disarm()
	if remaining < 0 {
		remaining = 0
	}

	c.gen++
	gen := c.gen
	c.remaining = remaining
	c.startedAt = c.clock.Now()
	c.running = true
	c.paused = false
	c.timer = c.clock.AfterFunc(remaining, func() { c.fire(gen) })
}

func (c *Countdown) disarm() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
	c.gen++
}

func (c *Countdown) leftLocked() time.Duration {
	left := c.remaining - c.clock.Now().Sub(c.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (c *Countdown) fire(gen uint64) {
	c.mu.Lock()
	// A stale timer lost the race with Pause, Stop or a restart.
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.done = true
	c.remaining = 0
	c.timer = nil
	onExpire := c.onExpire
	c.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
}
