package lifecycle

import (
	"runtime"
	"time"
)

// Clock is the controller's view of time. Now is monotonic time since boot;
// Wall is the (possibly unsynchronised) calendar time.
type Clock interface {
	Now() time.Duration
	// Sleep blocks for d. A non-positive d only yields to other goroutines.
	Sleep(d time.Duration)
	Wall() time.Time
}

// SystemClock is the Clock backed by the runtime.
type SystemClock struct {
	boot time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{boot: time.Now()}
}

func (c *SystemClock) Now() time.Duration { return time.Since(c.boot) }
func (c *SystemClock) Wall() time.Time    { return time.Now() }

func (c *SystemClock) Sleep(d time.Duration) {
	if d <= 0 {
		runtime.Gosched()
		return
	}
	time.Sleep(d)
}

// WaitUntil polls cond every interval until it returns true or timeout has
// elapsed, and reports whether cond was observed true. Each iteration
// sleeps, then polls, then re-checks the elapsed time, so a wait that never
// succeeds ends within [timeout, timeout+interval). A non-positive timeout
// polls exactly once.
func WaitUntil(clk Clock, timeout, interval time.Duration, cond func() bool) bool {
	if timeout <= 0 {
		return cond()
	}
	start := clk.Now()
	for clk.Now()-start < timeout {
		clk.Sleep(interval)
		if cond() {
			return true
		}
	}
	return false
}
