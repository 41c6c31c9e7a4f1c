// Package telemetry builds the count report uploaded at the end of every
// reporting cycle and delivers it to the collector.
//
// The collector takes an application/x-www-form-urlencoded POST with the
// fields device, ssid, bssid, ipprv, ippub, wifi and ble, in that order.
// Delivery is fire-and-forget: one attempt per cycle, no queue.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"openenterprise/paxcounter/httpc"
)

// Form field names, in wire order.
const (
	FieldDevice  = "device"
	FieldSSID    = "ssid"
	FieldBSSID   = "bssid"
	FieldPrivate = "ipprv"
	FieldPublic  = "ippub"
	FieldWiFi    = "wifi"
	FieldBLE     = "ble"
)

var ErrMissingField = errors.New("telemetry: missing field")

// Report is one window's counts plus the network identity they were taken on.
type Report struct {
	Device      string
	SSID        string
	BSSID       string
	PrivateAddr netip.Addr
	PublicAddr  netip.Addr
	WiFi        uint32
	BLE         uint32
}

// Encode returns the form body.
func (r Report) Encode() string {
	var b strings.Builder
	b.Grow(128)
	field := func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	field(FieldDevice, r.Device)
	field(FieldSSID, r.SSID)
	field(FieldBSSID, r.BSSID)
	field(FieldPrivate, FormatAddr(r.PrivateAddr))
	field(FieldPublic, FormatAddr(r.PublicAddr))
	field(FieldWiFi, strconv.FormatUint(uint64(r.WiFi), 10))
	field(FieldBLE, strconv.FormatUint(uint64(r.BLE), 10))
	return b.String()
}

// FormatAddr renders an address, with the zero Addr shown as 0.0.0.0.
func FormatAddr(a netip.Addr) string {
	if !a.IsValid() {
		return "0.0.0.0"
	}
	return a.String()
}

// ParseReport decodes a form body produced by Encode. Only device is
// required; absent counts read as zero.
func ParseReport(body string) (Report, error) {
	v, err := url.ParseQuery(body)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		Device: v.Get(FieldDevice),
		SSID:   v.Get(FieldSSID),
		BSSID:  v.Get(FieldBSSID),
	}
	if r.Device == "" {
		return Report{}, fmt.Errorf("%w: %s", ErrMissingField, FieldDevice)
	}
	if r.PrivateAddr, err = parseAddr(v.Get(FieldPrivate)); err != nil {
		return Report{}, fmt.Errorf("telemetry: %s: %w", FieldPrivate, err)
	}
	if r.PublicAddr, err = parseAddr(v.Get(FieldPublic)); err != nil {
		return Report{}, fmt.Errorf("telemetry: %s: %w", FieldPublic, err)
	}
	if r.WiFi, err = parseCount(v.Get(FieldWiFi)); err != nil {
		return Report{}, fmt.Errorf("telemetry: %s: %w", FieldWiFi, err)
	}
	if r.BLE, err = parseCount(v.Get(FieldBLE)); err != nil {
		return Report{}, fmt.Errorf("telemetry: %s: %w", FieldBLE, err)
	}
	return r, nil
}

func parseAddr(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(s)
}

func parseCount(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	return uint32(n), err
}

// Publisher delivers one report.
type Publisher interface {
	Publish(ctx context.Context, r Report) error
}

// Poster is the part of httpc.Client FormPublisher needs.
type Poster interface {
	PostForm(ctx context.Context, url string, form []byte) (*httpc.Response, error)
}

// FormPublisher posts reports to the collector URL.
type FormPublisher struct {
	Client Poster
	URL    string
}

// Publish makes exactly one POST. Redirects are not followed; a 3xx from
// the collector counts as delivered since the body was already accepted.
func (p *FormPublisher) Publish(ctx context.Context, r Report) error {
	resp, err := p.Client.PostForm(ctx, p.URL, []byte(r.Encode()))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 == 3 {
		return nil
	}
	return httpc.CheckStatus(resp)
}

// Multi publishes to every publisher in order and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, r Report) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
