package main

import (
	"fmt"
	"io"
	"net/netip"
	"time"

	"openenterprise/paxcounter/config"
	"openenterprise/paxcounter/lifecycle"
	"openenterprise/paxcounter/pax"
	"openenterprise/paxcounter/tz"
)

// settings is everything main needs from the embedded configuration.
type settings struct {
	controller    lifecycle.Config
	collectorURL  string
	publicAddrURL string
	broker        netip.AddrPort
	mirror        bool
	scannerBaud   uint32
}

func loadSettings() (settings, error) {
	collector, err := config.CollectorURL()
	if err != nil {
		return settings{}, fmt.Errorf("collector url: %w", err)
	}
	pub, err := config.PublicAddrURL()
	if err != nil {
		return settings{}, fmt.Errorf("public address url: %w", err)
	}
	zone, err := tz.Parse(config.TimeZone())
	if err != nil {
		return settings{}, fmt.Errorf("timezone: %w", err)
	}
	broker, mirror, err := config.BrokerAddr()
	if err != nil {
		return settings{}, fmt.Errorf("broker: %w", err)
	}
	return settings{
		controller: lifecycle.Config{
			Device:     config.DeviceName(),
			Timeout:    config.Timeout(),
			Channels:   pax.AllChannels,
			NTPServers: config.NTPServers(),
			Zone:       zone,
		},
		collectorURL:  collector,
		publicAddrURL: pub,
		broker:        broker,
		mirror:        mirror,
		scannerBaud:   config.ScannerBaud(),
	}, nil
}

// pollingReader turns a non-blocking reader (a UART ring buffer that
// returns 0, nil when empty) into a blocking one.
type pollingReader struct {
	R    io.Reader
	Poll time.Duration
}

func (p pollingReader) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for {
		n, err := p.R.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		time.Sleep(p.Poll)
	}
}
