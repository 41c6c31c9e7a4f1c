// Package pax counts nearby devices from Wi-Fi probe requests and BLE
// advertisements. Each distinct hardware address is counted once per window;
// Reset starts a new window.
//
// Sightings come from the radio scanner co-processor on a UART, one line
// per frame (see ParseSighting).
package pax

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
)

// Kind is the radio a sighting came from.
type Kind uint8

const (
	WiFi Kind = iota + 1
	BLE
)

func (k Kind) String() string {
	switch k {
	case WiFi:
		return "wifi"
	case BLE:
		return "ble"
	default:
		return "unknown"
	}
}

// AllChannels selects 2.4 GHz channels 1 through 13.
const AllChannels uint16 = 1<<13 - 1

const (
	DefaultMinRSSI    = -100
	DefaultMaxDevices = 512
)

var (
	ErrNotConfigured = errors.New("pax: counter not configured")
	ErrStarted       = errors.New("pax: counter already started")
)

// Config selects what is counted. Channel n is bit n-1 of Channels.
type Config struct {
	Channels uint16
	WiFi     bool
	BLE      bool

	// Sightings weaker than MinRSSI (dBm) are ignored. Zero means DefaultMinRSSI.
	MinRSSI int
	// MaxDevices caps each radio's set for the window. Zero means DefaultMaxDevices.
	MaxDevices int
}

// Sighting is one received frame.
type Sighting struct {
	Kind    Kind
	Channel int // Wi-Fi only
	Addr    [6]byte
	RSSI    int
}

// Counter keeps the per-window unique address sets.
type Counter struct {
	mu         sync.Mutex
	cfg        Config
	configured bool
	started    bool
	onCount    func(wifi, ble uint32)

	wifi map[[6]byte]struct{}
	ble  map[[6]byte]struct{}
}

// Configure sets what is counted. It may be called again to change the
// selection; the current window is kept.
func (c *Counter) Configure(cfg Config) error {
	if cfg.MinRSSI == 0 {
		cfg.MinRSSI = DefaultMinRSSI
	}
	if cfg.MaxDevices <= 0 {
		cfg.MaxDevices = DefaultMaxDevices
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.configured = true
	if c.wifi == nil {
		c.wifi = make(map[[6]byte]struct{})
		c.ble = make(map[[6]byte]struct{})
	}
	return nil
}

// Start begins counting. onCount receives the cumulative counts of the
// window each time they change and after Reset. It runs with the counter
// locked and must not call back into the Counter.
func (c *Counter) Start(onCount func(wifi, ble uint32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return ErrNotConfigured
	}
	if c.started {
		return ErrStarted
	}
	c.started = true
	c.onCount = onCount
	return nil
}

// Reset closes the window: it returns the window's counts and clears both
// sets under one lock, then reports zero counts. A sighting lands either in
// the returned counts or in the next window.
func (c *Counter) Reset() (wifi, ble uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wifi, ble = uint32(len(c.wifi)), uint32(len(c.ble))
	clear(c.wifi)
	clear(c.ble)
	c.notify()
	return wifi, ble
}

// Counts returns the current window's counts.
func (c *Counter) Counts() (wifi, ble uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(len(c.wifi)), uint32(len(c.ble))
}

// Observe records one sighting and reports whether it was a new address.
func (c *Counter) Observe(s Sighting) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || s.RSSI < c.cfg.MinRSSI {
		return false
	}

	var set map[[6]byte]struct{}
	switch s.Kind {
	case WiFi:
		if !c.cfg.WiFi || s.Channel < 1 || s.Channel > 16 || c.cfg.Channels&(1<<(s.Channel-1)) == 0 {
			return false
		}
		set = c.wifi
	case BLE:
		if !c.cfg.BLE {
			return false
		}
		set = c.ble
	default:
		return false
	}

	if _, seen := set[s.Addr]; seen || len(set) >= c.cfg.MaxDevices {
		return false
	}
	set[s.Addr] = struct{}{}
	c.notify()
	return true
}

func (c *Counter) notify() {
	if c.onCount != nil {
		c.onCount(uint32(len(c.wifi)), uint32(len(c.ble)))
	}
}

// Run reads scanner lines from r until ctx is done or r fails. Malformed
// lines are passed to onBad, which may be nil.
func (c *Counter) Run(ctx context.Context, r io.Reader, onBad func(line string, err error)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		if line == "" {
			continue
		}
		s, err := ParseSighting(line)
		if err != nil {
			if onBad != nil {
				onBad(line, err)
			}
			continue
		}
		c.Observe(s)
	}
	return sc.Err()
}
