package lifecycle

import (
	"context"
	"log/slog"

	"openenterprise/paxcounter/display"
	"openenterprise/paxcounter/telemetry"
)

// resolve refreshes the public address. A failure stores the sentinel and
// raises the error indicator until the next successful resolution.
func (c *Controller) resolve(ctx context.Context) {
	addr, err := c.deps.Resolver.Resolve(ctx)
	if err != nil || !addr.IsValid() {
		c.ident.PublicAddr = unknownAddr
		c.lookup = display.LookupFailed
		if err != nil {
			c.log.Warn("report:resolve-failed", slog.String("err", err.Error()))
		}
		return
	}
	c.ident.PublicAddr = addr
	c.lookup = display.LookupOK
}

// reportCycle resolves the public address, closes the counting window and
// publishes its counts. The payload is built from the counts the reset
// returned, so a sighting is never dropped between snapshot and reset.
// Progress is marked after every network call so a slow but bounded cycle
// does not look like a stall.
func (c *Controller) reportCycle(ctx context.Context) {
	c.resolve(ctx)
	c.markProgress()

	wifi, ble := c.deps.Counter.Reset()
	r := telemetry.Report{
		Device:      c.cfg.Device,
		SSID:        c.ident.SSID,
		BSSID:       c.ident.BSSID,
		PrivateAddr: c.ident.PrivateAddr,
		PublicAddr:  c.ident.PublicAddr,
		WiFi:        wifi,
		BLE:         ble,
	}
	if err := c.deps.Publisher.Publish(ctx, r); err != nil {
		c.log.Debug("report:publish-failed", slog.String("err", err.Error()))
	} else {
		c.log.Debug("report:published", slog.Int("wifi", int(wifi)), slog.Int("ble", int(ble)))
	}
	c.markProgress()

	c.log.Info("report:cycle",
		slog.String("ippub", telemetry.FormatAddr(c.ident.PublicAddr)),
		slog.Bool("failed", c.lookup == display.LookupFailed),
	)
}
