package config

import (
	_ "embed"
	"errors"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Defaults for operational configuration.
// These can be overridden by placing a non-empty value in the corresponding .text file.
const (
	DefaultDeviceName    = "pico2w_paxcounter"
	DefaultTimeout       = 60 * time.Second
	DefaultPublicAddrURL = "http://ifconfig.me/ip"
	DefaultNTPServers    = "time.cloudflare.com,ntp.ubiobio.cl"
	DefaultTimeZone      = "<-04>4<-03>,M9.1.6/24,M4.1.6/24"
	DefaultScannerBaud   = 115200
)

var errEmpty = errors.New("config: value not set")

// Environment-specific configuration (must be provided via embedded text files).
var (
	//go:embed collector_url.text
	collectorURL string
)

// Optional overrides for defaults (empty file = use default).
var (
	//go:embed device.text
	deviceOverride string

	//go:embed timeout.text
	timeoutOverride string

	//go:embed pubip_url.text
	publicAddrURLOverride string

	//go:embed ntp_servers.text
	ntpServersOverride string

	//go:embed timezone.text
	timeZoneOverride string

	//go:embed broker.text
	brokerAddr string

	//go:embed scanner_baud.text
	scannerBaudOverride string
)

// DeviceName returns the identifier reported in the "device" form field and
// shown on the first display line.
func DeviceName() string {
	return orDefault(deviceOverride, DefaultDeviceName)
}

// Timeout returns the uniform wait budget used for Wi-Fi, SNTP and the
// maintenance grace delays. The reporting period is five times this value.
func Timeout() time.Duration {
	return ParseTimeout(timeoutOverride)
}

// CollectorURL returns the telemetry endpoint from collector_url.text.
// Format: "http://host[:port]/path"
func CollectorURL() (string, error) {
	return ParseHTTPURL(collectorURL)
}

// PublicAddrURL returns the "what is my address" endpoint.
func PublicAddrURL() (string, error) {
	return ParseHTTPURL(orDefault(publicAddrURLOverride, DefaultPublicAddrURL))
}

// NTPServers returns the SNTP servers in preference order, primary first.
func NTPServers() []string {
	return ParseList(orDefault(ntpServersOverride, DefaultNTPServers))
}

// TimeZone returns the POSIX TZ rule used to render local date and time.
func TimeZone() string {
	return orDefault(timeZoneOverride, DefaultTimeZone)
}

// BrokerAddr returns the MQTT broker used to mirror reports.
// An empty broker.text disables the mirror and returns ok == false.
// Format: "host:port" e.g., "192.168.1.100:1883"
func BrokerAddr() (addr netip.AddrPort, ok bool, err error) {
	s := strings.TrimSpace(brokerAddr)
	if s == "" {
		return netip.AddrPort{}, false, nil
	}
	addr, err = netip.ParseAddrPort(s)
	return addr, err == nil, err
}

// ScannerBaud returns the UART baud rate of the radio scanner co-processor.
func ScannerBaud() uint32 {
	if override := strings.TrimSpace(scannerBaudOverride); override != "" {
		if n, err := strconv.ParseUint(override, 10, 32); err == nil && n > 0 {
			return uint32(n)
		}
	}
	return DefaultScannerBaud
}

// ParseTimeout parses a timeout override. Accepts Go durations ("90s") or a
// bare number of milliseconds ("60000"). Invalid or non-positive values
// yield DefaultTimeout.
func ParseTimeout(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTimeout
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
		return DefaultTimeout
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return DefaultTimeout
}

// ParseHTTPURL validates an endpoint URL. Only plain http is accepted since
// the network stack has no TLS.
func ParseHTTPURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errEmpty
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" {
		return "", errors.New("config: url scheme must be http: " + s)
	}
	if u.Hostname() == "" {
		return "", errors.New("config: url has no host: " + s)
	}
	return u.String(), nil
}

// ParseList splits a comma or whitespace separated list, dropping empties.
func ParseList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func orDefault(override, def string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return def
}
