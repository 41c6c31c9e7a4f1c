package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"openenterprise/paxcounter/display"
	"openenterprise/paxcounter/pax"
	"openenterprise/paxcounter/telemetry"
)

var epoch = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

// fakeClock is a virtual clock. Sleep advances it instead of blocking; a
// yield advances it by one millisecond so polling loops make progress.
type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		d = time.Millisecond
	}
	c.Advance(d)
}

func (c *fakeClock) Wall() time.Time { return epoch.Add(c.Now()) }

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// journal records collaborator calls in order.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(ev string) {
	j.mu.Lock()
	j.events = append(j.events, ev)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

type fakeProvisioner struct {
	mu     sync.Mutex
	begins int
	err    error
}

func (p *fakeProvisioner) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.begins++
	return p.err
}

func (p *fakeProvisioner) Begins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begins
}

// fakeLink associates once the clock reaches connectAt. A negative
// connectAt never associates.
type fakeLink struct {
	clk       *fakeClock
	connectAt time.Duration
	dropAt    time.Duration
	ident     Identity
	onPoll    func(n int)

	mu    sync.Mutex
	polls int
}

func (l *fakeLink) Connected() bool {
	l.mu.Lock()
	l.polls++
	n := l.polls
	l.mu.Unlock()
	if l.onPoll != nil {
		l.onPoll(n)
	}
	now := l.clk.Now()
	if l.connectAt < 0 || now < l.connectAt {
		return false
	}
	return l.dropAt <= 0 || now < l.dropAt
}

func (l *fakeLink) Identity() Identity { return l.ident }

type fakeSync struct {
	clk     *fakeClock
	validAt time.Duration
	mu      sync.Mutex
	servers []string
}

func (s *fakeSync) Request(servers []string) {
	s.mu.Lock()
	s.servers = servers
	s.mu.Unlock()
}

func (s *fakeSync) Valid() bool {
	return s.validAt >= 0 && s.clk.Now() >= s.validAt
}

// fakeResolver answers after delay of virtual time, then calls done.
type fakeResolver struct {
	clk   *fakeClock
	delay time.Duration
	done  func()

	mu    sync.Mutex
	addr  netip.Addr
	err   error
	calls int
	j     *journal
}

func (r *fakeResolver) Resolve(context.Context) (netip.Addr, error) {
	if r.delay > 0 {
		r.clk.Advance(r.delay)
	}
	if r.done != nil {
		r.done()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.j != nil {
		r.j.add("resolve")
	}
	if r.err != nil {
		return netip.Addr{}, r.err
	}
	return r.addr, nil
}

func (r *fakeResolver) set(addr netip.Addr, err error) {
	r.mu.Lock()
	r.addr, r.err = addr, err
	r.mu.Unlock()
}

type fakePublisher struct {
	clk     *fakeClock
	latency func(n int) time.Duration
	done    func()
	err     error
	j       *journal

	mu      sync.Mutex
	reports []telemetry.Report
	at      []time.Duration
}

func (p *fakePublisher) Publish(_ context.Context, r telemetry.Report) error {
	p.mu.Lock()
	n := len(p.reports)
	p.reports = append(p.reports, r)
	p.at = append(p.at, p.clk.Now())
	p.mu.Unlock()
	if p.j != nil {
		p.j.add("publish")
	}
	if p.latency != nil {
		p.clk.Advance(p.latency(n))
	}
	if p.done != nil {
		p.done()
	}
	return p.err
}

func (p *fakePublisher) Reports() []telemetry.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]telemetry.Report(nil), p.reports...)
}

// fakeCounter keeps cumulative counts and pushes them through the callback
// the way pax.Counter does.
type fakeCounter struct {
	mu        sync.Mutex
	cfg       pax.Config
	cb        func(wifi, ble uint32)
	wifi, ble uint32
	resets    int
	j         *journal
}

func (c *fakeCounter) Configure(cfg pax.Config) error {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return nil
}

func (c *fakeCounter) Start(cb func(wifi, ble uint32)) error {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
	return nil
}

func (c *fakeCounter) Reset() (wifi, ble uint32) {
	if c.j != nil {
		c.j.add("reset")
	}
	c.mu.Lock()
	wifi, ble = c.wifi, c.ble
	c.resets++
	c.mu.Unlock()
	c.set(0, 0)
	return wifi, ble
}

func (c *fakeCounter) set(wifi, ble uint32) {
	c.mu.Lock()
	c.wifi, c.ble = wifi, ble
	cb := c.cb
	c.mu.Unlock()
	if cb != nil {
		cb(wifi, ble)
	}
}

func (c *fakeCounter) accumulators() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wifi, c.ble
}

type fakeRestarter struct {
	mu      sync.Mutex
	reasons []string
	j       *journal
}

func (r *fakeRestarter) Restart(reason string) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
	if r.j != nil {
		r.j.add("restart")
	}
}

func (r *fakeRestarter) Reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

type fakeEraser struct {
	mu     sync.Mutex
	erased int
	j      *journal
}

func (e *fakeEraser) Erase() error {
	e.mu.Lock()
	e.erased++
	e.mu.Unlock()
	if e.j != nil {
		e.j.add("erase")
	}
	return nil
}

func (e *fakeEraser) Erased() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.erased
}

// recordSink keeps every screen with the virtual time it was shown at.
type recordSink struct {
	clk *fakeClock

	mu      sync.Mutex
	screens []display.Screen
	at      []time.Duration
}

func (s *recordSink) Show(sc display.Screen) {
	s.mu.Lock()
	s.screens = append(s.screens, sc)
	s.at = append(s.at, s.clk.Now())
	s.mu.Unlock()
}

// statusTimes returns when each status screen was drawn.
func (s *recordSink) statusTimes(device string) []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for i, sc := range s.screens {
		if len(sc.Lines) > 1 && sc.Lines[0] == " "+device {
			out = append(out, s.at[i])
		}
	}
	return out
}

func (s *recordSink) shown(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.screens {
		for _, l := range sc.Lines {
			if l == text {
				return true
			}
		}
	}
	return false
}

func (s *recordSink) last() display.Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.screens) == 0 {
		return display.Screen{}
	}
	return s.screens[len(s.screens)-1]
}

var (
	privAddr = netip.MustParseAddr("192.168.1.23")
	pubAddr  = netip.MustParseAddr("203.0.113.7")
	errDown  = errors.New("network down")
)

const testTimeout = 60 * time.Second

type rig struct {
	cfg       Config
	clk       *fakeClock
	j         *journal
	prov      *fakeProvisioner
	link      *fakeLink
	ts        *fakeSync
	resolver  *fakeResolver
	publisher *fakePublisher
	counter   *fakeCounter
	sink      *recordSink
	restarter *fakeRestarter
	eraser    *fakeEraser
}

func newRig(t *testing.T) *rig {
	t.Helper()
	clk := &fakeClock{}
	j := &journal{}
	return &rig{
		cfg: Config{
			Device:     "pax-test",
			Timeout:    testTimeout,
			NTPServers: []string{"time.example.org", "ntp.example.net"},
		},
		clk:  clk,
		j:    j,
		prov: &fakeProvisioner{},
		link: &fakeLink{
			clk:       clk,
			connectAt: 3 * time.Second,
			ident:     Identity{SSID: "bench", BSSID: "", PrivateAddr: privAddr},
		},
		ts:        &fakeSync{clk: clk, validAt: 0},
		resolver:  &fakeResolver{clk: clk, addr: pubAddr, j: j},
		publisher: &fakePublisher{clk: clk, j: j},
		counter:   &fakeCounter{j: j},
		sink:      &recordSink{clk: clk},
		restarter: &fakeRestarter{j: j},
		eraser:    &fakeEraser{j: j},
	}
}

func (r *rig) controller() *Controller {
	return New(r.cfg, Deps{
		Clock:       r.clk,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Provisioner: r.prov,
		Link:        r.link,
		TimeSync:    r.ts,
		Resolver:    r.resolver,
		Publisher:   r.publisher,
		Counter:     r.counter,
		Display:     r.sink,
		Restarter:   r.restarter,
		Credentials: r.eraser,
	})
}

// boot returns a controller that has reached Running.
func (r *rig) boot(t *testing.T) *Controller {
	t.Helper()
	c := r.controller()
	if err := c.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() = %v", err)
	}
	if got := c.State(); got != Running {
		t.Fatalf("State() = %v, want running", got)
	}
	return c
}
