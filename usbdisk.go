//go:build tinygo && msc

package main

import (
	"log/slog"
	"machine/usb/msc"
	"time"

	"openenterprise/paxcounter/msdisk"
	"openenterprise/paxcounter/version"
)

// startUSBDisk exposes a small read-mostly FAT12 volume over USB with a
// README describing the device. Writes land in RAM and are lost on restart.
func startUSBDisk(device string, logger *slog.Logger) {
	readme := "Openenterprise Paxcounter\r\n" +
		"Device:  " + device + "\r\n" +
		"Version: " + version.String() + "\r\n" +
		"Built:   " + version.BuildDate + "\r\n" +
		"\r\n" +
		"Provision Wi-Fi on the serial console: wifi <ssid> <password>\r\n"

	disk, err := msdisk.New("PAXCOUNTER", []byte(readme), buildStamp())
	if err != nil {
		logger.Error("usb:disk-failed", slog.String("err", err.Error()))
		return
	}
	msc.Port(disk)
	logger.Info("usb:disk-ready", slog.Int64("bytes", disk.Size()))
}

// buildStamp dates the README with the build date when it is known.
func buildStamp() msdisk.Stamp {
	t, err := time.Parse(time.RFC3339, version.BuildDate)
	if err != nil {
		t = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return msdisk.Stamp{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}
