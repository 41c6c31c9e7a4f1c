// Package lifecycle is the device's top-level state machine. It takes the
// device from power-on through provisioning, Wi-Fi association and clock
// synchronisation into the steady-state loop that refreshes the display once
// per second and runs a reporting cycle every five timeouts.
//
// Recovery from a fatal condition is always a full restart through the
// Restarter. The button's click and double-click preempt the controller
// from any state.
package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync/atomic"
	"time"

	"openenterprise/paxcounter/display"
	"openenterprise/paxcounter/pax"
	"openenterprise/paxcounter/telemetry"
	"openenterprise/paxcounter/tz"
)

// ErrRestart is returned by Run once a restart has been requested. On the
// board the Restarter does not return, so this is only seen in tests and
// by the host build.
var ErrRestart = errors.New("lifecycle: restart requested")

const (
	DefaultTimeout         = 60 * time.Second
	DefaultConnectPoll     = time.Second
	DefaultRefreshInterval = time.Second
	DefaultReportEvery     = 5
	DefaultLoopInterval    = 10 * time.Millisecond
)

// Config holds the controller's tunables. Zero values take the defaults.
type Config struct {
	Device string
	// Timeout bounds the Wi-Fi wait, the clock wait, the grace delays and,
	// multiplied by ReportEvery, sets the reporting period.
	Timeout         time.Duration
	ConnectPoll     time.Duration
	RefreshInterval time.Duration
	ReportEvery     int
	LoopInterval    time.Duration

	Channels   uint16
	NTPServers []string
	Zone       *tz.Zone
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ConnectPoll <= 0 {
		c.ConnectPoll = DefaultConnectPoll
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.ReportEvery <= 0 {
		c.ReportEvery = DefaultReportEvery
	}
	if c.LoopInterval < 0 {
		c.LoopInterval = 0
	} else if c.LoopInterval == 0 {
		c.LoopInterval = DefaultLoopInterval
	}
	if c.Channels == 0 {
		c.Channels = pax.AllChannels
	}
	if c.Zone == nil {
		c.Zone = tz.UTC
	}
	return c
}

// Resolver looks up the public address.
type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

// Counter is the presence counter contract.
type Counter interface {
	Configure(cfg pax.Config) error
	Start(onCount func(wifi, ble uint32)) error
	// Reset starts a new window and returns the counts of the one it
	// closed, taken atomically with the reset.
	Reset() (wifi, ble uint32)
}

// Restarter performs the hard restart. On the board it does not return.
type Restarter interface {
	Restart(reason string)
}

// CredentialEraser clears the stored Wi-Fi credential.
type CredentialEraser interface {
	Erase() error
}

// Deps are the controller's collaborators.
type Deps struct {
	Clock       Clock
	Logger      *slog.Logger
	Provisioner Provisioner
	Link        Link
	TimeSync    TimeSync
	Resolver    Resolver
	Publisher   telemetry.Publisher
	Counter     Counter
	Display     display.Sink
	Restarter   Restarter
	Credentials CredentialEraser
}

// Controller sequences boot and runs the steady-state loop. Boot and Step
// must be called from one goroutine; Click, DoubleClick, State and Stalled
// are safe from any goroutine.
type Controller struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	conn *Connectivity

	counts CountCell
	ident  Identity
	lookup display.Lookup

	cycleStart  time.Duration
	reportStart time.Duration

	state        atomic.Uint32
	preempted    atomic.Bool
	restarting   atomic.Bool
	erasing      atomic.Bool
	lastProgress atomic.Int64
}

// New returns a controller in the Booting state.
func New(cfg Config, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = NewSystemClock()
	}
	deps.Display = &display.Serialized{Sink: deps.Display}
	c := &Controller{
		cfg:   cfg.withDefaults(),
		deps:  deps,
		log:   deps.Logger,
		ident: Identity{PublicAddr: unknownAddr},
	}
	c.conn = &Connectivity{
		Provisioner: deps.Provisioner,
		Link:        deps.Link,
		TimeSync:    deps.TimeSync,
		Servers:     c.cfg.NTPServers,
		Clock:       deps.Clock,
		Display:     deps.Display,
		Logger:      deps.Logger,
		Poll:        c.cfg.ConnectPoll,
		Interrupted: c.preempted.Load,
		OnPoll:      c.markProgress,
	}
	c.markProgress()
	return c
}

var unknownAddr = netip.AddrFrom4([4]byte{})

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	if c.State() == Restarting {
		return
	}
	c.state.Store(uint32(s))
	c.log.Debug("state:" + s.String())
}

// Counts returns the latest counts delivered by the counter.
func (c *Controller) Counts() (wifi, ble uint32) {
	return c.counts.Load()
}

// Stalled reports whether the controller has shown no progress for longer
// than limit. The watchdog feeder stops feeding once this is true.
func (c *Controller) Stalled(limit time.Duration) bool {
	last := time.Duration(c.lastProgress.Load())
	return c.deps.Clock.Now()-last > limit
}

func (c *Controller) markProgress() {
	c.lastProgress.Store(int64(c.deps.Clock.Now()))
}

// Run boots the device and then runs the steady-state loop until a restart
// is requested or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Boot(ctx); err != nil {
		return err
	}
	for {
		if c.preempted.Load() {
			return ErrRestart
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Step(ctx)
		c.deps.Clock.Sleep(c.cfg.LoopInterval)
	}
}

// Boot runs Provisioning, Connecting and SyncingTime and prepares Running.
// It returns ErrRestart if the boot attempt ended in a restart.
func (c *Controller) Boot(ctx context.Context) error {
	if c.preempted.Load() {
		return ErrRestart
	}
	timeout := c.cfg.Timeout

	c.setState(Provisioning)
	c.setState(Connecting)
	switch c.conn.Connect(timeout) {
	case Interrupted:
		return ErrRestart
	case TimedOut:
		return c.fatal("WiFi is Not Connected...", "wifi-timeout")
	}

	c.setState(SyncingTime)
	switch c.conn.SyncClock(timeout) {
	case Interrupted:
		return ErrRestart
	case TimedOut:
		c.deps.Display.Show(display.Notice(display.Alert, "SNTP timed out"))
	}

	if !c.deps.Link.Connected() {
		c.log.Error("wifi:lost")
		return c.fatal("WiFi is Not Connected...", "wifi-lost")
	}

	if err := c.startCounter(); err != nil {
		c.log.Error("pax:start-failed", slog.String("err", err.Error()))
		c.deps.Display.Show(display.Notice(display.Alert, "Counter failed"))
	}

	c.ident = c.deps.Link.Identity()
	c.markProgress()
	c.resolve(ctx)
	c.log.Info("boot:complete",
		slog.String("ssid", c.ident.SSID),
		slog.String("ipprv", telemetry.FormatAddr(c.ident.PrivateAddr)),
		slog.String("ippub", telemetry.FormatAddr(c.ident.PublicAddr)),
	)

	now := c.deps.Clock.Now()
	c.cycleStart, c.reportStart = now, now
	c.markProgress()
	if c.preempted.Load() {
		return ErrRestart
	}
	c.setState(Running)
	return nil
}

func (c *Controller) startCounter() error {
	err := c.deps.Counter.Configure(pax.Config{
		Channels: c.cfg.Channels,
		WiFi:     true,
		BLE:      true,
	})
	if err != nil {
		return err
	}
	return c.deps.Counter.Start(c.counts.Store)
}

// fatal shows msg, waits one timeout and restarts. A click during the
// grace period restarts earlier. Only one restart ever happens.
func (c *Controller) fatal(msg, reason string) error {
	c.log.Error("boot:fatal", slog.String("reason", reason), slog.Duration("grace", c.cfg.Timeout))
	c.deps.Display.Show(display.Notice(display.Alert, msg))
	c.wait(c.cfg.Timeout, c.restarting.Load)
	if c.erasing.Load() {
		// let a pending erase finish and restart on its own
		c.wait(c.cfg.Timeout, c.restarting.Load)
	}
	return c.restart(reason)
}

// Step is one pass of the steady-state loop. Nothing happens until
// RefreshInterval has elapsed since the previous refresh.
func (c *Controller) Step(ctx context.Context) {
	now := c.deps.Clock.Now()
	c.markProgress()
	if now-c.cycleStart < c.cfg.RefreshInterval || c.preempted.Load() {
		return
	}

	c.render()

	period := time.Duration(c.cfg.ReportEvery) * c.cfg.Timeout
	if now-c.reportStart > period {
		c.reportCycle(ctx)
		c.reportStart = c.deps.Clock.Now()
	}
	c.cycleStart = c.deps.Clock.Now()
}

func (c *Controller) render() {
	wifi, ble := c.counts.Load()
	c.deps.Display.Show(display.StatusScreen(display.Status{
		Device:      c.cfg.Device,
		Local:       c.cfg.Zone.In(c.deps.Clock.Wall()),
		SSID:        c.ident.SSID,
		BSSID:       c.ident.BSSID,
		PrivateAddr: c.ident.PrivateAddr,
		PublicAddr:  c.ident.PublicAddr,
		WiFi:        wifi,
		BLE:         ble,
		Lookup:      c.lookup,
	}))
}

// wait sleeps for d in ConnectPoll steps, marking progress, and stops early
// once stop returns true.
func (c *Controller) wait(d time.Duration, stop func() bool) {
	WaitUntil(c.deps.Clock, d, c.cfg.ConnectPoll, func() bool {
		c.markProgress()
		return stop()
	})
}

// restart moves to Restarting and asks the Restarter to restart. Only the
// first call restarts.
func (c *Controller) restart(reason string) error {
	c.preempted.Store(true)
	if !c.restarting.CompareAndSwap(false, true) {
		return ErrRestart
	}
	c.state.Store(uint32(Restarting))
	c.log.Warn("restart:requested", slog.String("reason", reason))
	c.deps.Restarter.Restart(reason)
	return ErrRestart
}
