//go:build !tinygo

package main

// The regular Go toolchain builds a configuration check instead of the
// firmware. The device entry point is in main.go (TinyGo only).

import (
	"fmt"
	"os"
	"strings"

	"openenterprise/paxcounter/version"
)

func main() {
	s, err := loadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	fmt.Println("paxcounter", version.String())
	fmt.Println("  device:   ", s.controller.Device)
	fmt.Println("  timeout:  ", s.controller.Timeout)
	fmt.Println("  collector:", s.collectorURL)
	fmt.Println("  public ip:", s.publicAddrURL)
	fmt.Println("  ntp:      ", strings.Join(s.controller.NTPServers, ", "))
	if s.mirror {
		fmt.Println("  mqtt:     ", s.broker)
	}
	fmt.Println("build the firmware with: tinygo flash -target=pico2-w -scheduler=tasks")
}
