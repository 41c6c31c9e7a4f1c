package lifecycle

import (
	"io"
	"log/slog"
	"time"

	"openenterprise/paxcounter/display"
)

// Outcome is the result of a bounded wait.
type Outcome uint8

const (
	TimedOut Outcome = iota
	Connected
	Synced
	// Interrupted means a maintenance action preempted the wait.
	Interrupted
)

func (o Outcome) String() string {
	switch o {
	case Connected:
		return "connected"
	case Synced:
		return "synced"
	case Interrupted:
		return "interrupted"
	default:
		return "timed-out"
	}
}

// Provisioner starts obtaining credentials and joining in the background.
type Provisioner interface {
	Begin() error
}

// Link is the Wi-Fi association.
type Link interface {
	Connected() bool
	Identity() Identity
}

// TimeSync sets the wall clock from network time.
type TimeSync interface {
	Request(servers []string)
	Valid() bool
}

// Connectivity owns association and clock synchronisation, each bounded by
// a timeout. It never retries on its own; a timeout is reported to the
// caller.
type Connectivity struct {
	Provisioner Provisioner
	Link        Link
	TimeSync    TimeSync
	Servers     []string
	Clock       Clock
	Display     display.Sink
	Logger      *slog.Logger

	// Poll is the association poll interval and the progress cadence.
	Poll time.Duration
	// Interrupted, if set, ends a wait early when it returns true.
	Interrupted func() bool
	// OnPoll, if set, runs on every poll.
	OnPoll func()
}

// Connect starts provisioning and waits for association.
func (m *Connectivity) Connect(timeout time.Duration) Outcome {
	log := m.logger()
	if err := m.Provisioner.Begin(); err != nil {
		log.Warn("wifi:provision-begin-failed", slog.String("err", err.Error()))
	}
	log.Info("wifi:waiting", slog.Duration("timeout", timeout))
	m.Display.Show(display.Waiting("WiFi", 0))

	polls := 0
	interrupted := false
	ok := WaitUntil(m.Clock, timeout, m.poll(), func() bool {
		m.tick()
		if m.interrupted() {
			interrupted = true
			return true
		}
		polls++
		m.Display.Show(display.Waiting("WiFi", polls))
		return m.Link.Connected()
	})
	switch {
	case interrupted:
		return Interrupted
	case ok:
		log.Info("wifi:connected", slog.Int("polls", polls))
		return Connected
	default:
		log.Warn("wifi:timeout", slog.Int("polls", polls))
		return TimedOut
	}
}

// SyncClock requests network time and polls clock validity without delay
// between polls. Progress is shown once per Poll interval.
func (m *Connectivity) SyncClock(timeout time.Duration) Outcome {
	log := m.logger()
	m.TimeSync.Request(m.Servers)
	log.Info("ntp:waiting", slog.Duration("timeout", timeout))
	m.Display.Show(display.Waiting("SNTP", 0))

	dots := 0
	lastDot := m.Clock.Now()
	interrupted := false
	ok := WaitUntil(m.Clock, timeout, 0, func() bool {
		if now := m.Clock.Now(); now-lastDot >= m.poll() {
			m.tick()
			dots++
			lastDot = now
			m.Display.Show(display.Waiting("SNTP", dots))
		}
		if m.interrupted() {
			interrupted = true
			return true
		}
		return m.TimeSync.Valid()
	})
	switch {
	case interrupted:
		return Interrupted
	case ok:
		log.Info("ntp:valid", slog.String("time", m.Clock.Wall().UTC().Format(time.RFC3339)))
		return Synced
	default:
		log.Warn("ntp:timeout")
		return TimedOut
	}
}

func (m *Connectivity) poll() time.Duration {
	if m.Poll > 0 {
		return m.Poll
	}
	return time.Second
}

func (m *Connectivity) interrupted() bool {
	return m.Interrupted != nil && m.Interrupted()
}

func (m *Connectivity) tick() {
	if m.OnPoll != nil {
		m.OnPoll()
	}
}

func (m *Connectivity) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
