// Package button turns a sampled push-button level into click and
// double-click events.
package button

import (
	"context"
	"time"
)

// Event is the outcome of one sample.
type Event uint8

const (
	None Event = iota
	Click
	DoubleClick
)

func (e Event) String() string {
	switch e {
	case Click:
		return "click"
	case DoubleClick:
		return "double-click"
	default:
		return "none"
	}
}

const (
	DefaultDebounce    = 50 * time.Millisecond
	DefaultClickWindow = 400 * time.Millisecond
	DefaultPoll        = 10 * time.Millisecond
)

// Classifier debounces a level signal and groups releases into clicks.
// A single click is reported once ClickWindow has passed after the release
// without a second press; a second release inside the window reports a
// double click right away.
//
// The zero value uses the defaults.
type Classifier struct {
	Debounce    time.Duration
	ClickWindow time.Duration

	raw         bool
	rawSince    time.Duration
	stable      bool
	clicks      int
	lastRelease time.Duration
}

// Update feeds one sample taken at now (time since boot) and returns the
// event it completes, if any.
func (c *Classifier) Update(now time.Duration, pressed bool) Event {
	debounce, window := c.Debounce, c.ClickWindow
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if window <= 0 {
		window = DefaultClickWindow
	}

	if pressed != c.raw {
		c.raw = pressed
		c.rawSince = now
	}
	if c.raw != c.stable && now-c.rawSince >= debounce {
		c.stable = c.raw
		if !c.stable {
			c.clicks++
			c.lastRelease = now
			if c.clicks >= 2 {
				c.clicks = 0
				return DoubleClick
			}
		}
	}
	if c.clicks == 1 && !c.stable && !c.raw && now-c.lastRelease > window {
		c.clicks = 0
		return Click
	}
	return None
}

// Watch samples read every poll interval until ctx is done and passes every
// non-None event to handle. now returns time since boot.
func Watch(ctx context.Context, c *Classifier, read func() bool, now func() time.Duration, poll time.Duration, handle func(Event)) {
	if poll <= 0 {
		poll = DefaultPoll
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if ev := c.Update(now(), read()); ev != None {
			handle(ev)
		}
		time.Sleep(poll)
	}
}
