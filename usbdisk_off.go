//go:build tinygo && !msc

package main

import "log/slog"

func startUSBDisk(string, *slog.Logger) {}
