// Package display holds the screens the device shows and the sinks that
// render them. A Screen is a background tone and a block of text lines;
// every Show is a full redraw.
package display

import (
	"fmt"
	"io"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// Tone selects the background colour.
type Tone uint8

const (
	Normal   Tone = iota // dark grey, steady state
	Progress             // black, waits during boot
	OK                   // green
	Alert                // red
)

func (t Tone) String() string {
	switch t {
	case Progress:
		return "progress"
	case OK:
		return "ok"
	case Alert:
		return "alert"
	default:
		return "normal"
	}
}

// Screen is one full frame.
type Screen struct {
	Tone  Tone
	Lines []string
}

// Sink renders screens.
type Sink interface {
	Show(Screen)
}

// Status is everything on the steady-state screen.
type Status struct {
	Device      string
	Local       time.Time
	SSID        string
	BSSID       string
	PrivateAddr netip.Addr
	PublicAddr  netip.Addr
	WiFi        uint32
	BLE         uint32
	Lookup      Lookup
}

// Lookup is the outcome of the latest public address lookup.
type Lookup uint8

const (
	LookupPending Lookup = iota
	LookupOK
	LookupFailed
)

// StatusScreen lays out s: green after a good lookup, red after a failed one.
func StatusScreen(s Status) Screen {
	tone := Normal
	switch s.Lookup {
	case LookupOK:
		tone = OK
	case LookupFailed:
		tone = Alert
	}
	bssid := s.BSSID
	if bssid == "" {
		bssid = "unknown"
	}
	return Screen{
		Tone: tone,
		Lines: []string{
			" " + s.Device,
			" Date: " + s.Local.Format("2006-01-02"),
			" Time: " + s.Local.Format("15:04:05"),
			"",
			" SSID: " + s.SSID,
			" BSSID: " + bssid,
			" localIP: " + addr(s.PrivateAddr),
			" publicIP: " + addr(s.PublicAddr),
			fmt.Sprintf(" WiFi: %d", s.WiFi),
			fmt.Sprintf(" BLE: %d", s.BLE),
		},
	}
}

func addr(a netip.Addr) string {
	if !a.IsValid() {
		return "0.0.0.0"
	}
	return a.String()
}

// Notice is a single message on a solid background.
func Notice(tone Tone, text string) Screen {
	return Screen{Tone: tone, Lines: []string{text}}
}

// Waiting shows title followed by one dot per poll so far.
func Waiting(title string, polls int) Screen {
	return Screen{Tone: Progress, Lines: []string{title + "..." + strings.Repeat(".", polls)}}
}

// TextSink writes each screen to a serial console, one "* " line per
// non-empty text line followed by a blank line.
type TextSink struct {
	W io.Writer
}

func (s TextSink) Show(sc Screen) {
	var b strings.Builder
	if sc.Tone == Alert {
		b.WriteString("* [!]\n")
	}
	for _, l := range sc.Lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		b.WriteString("* ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	io.WriteString(s.W, b.String())
}

// Tee shows every screen on each sink in order.
type Tee []Sink

func (t Tee) Show(sc Screen) {
	for _, s := range t {
		s.Show(sc)
	}
}

// Serialized lets several goroutines share one sink.
type Serialized struct {
	mu   sync.Mutex
	Sink Sink
}

func (s *Serialized) Show(sc Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sink.Show(sc)
}
