package lifecycle

import (
	"log/slog"

	"openenterprise/paxcounter/display"
)

// Click restarts the device from any state. It runs on the button goroutine.
func (c *Controller) Click() {
	if c.restarting.Load() {
		return
	}
	c.log.Info("button:click", slog.String("state", c.State().String()))
	c.preempted.Store(true)
	c.deps.Display.Show(display.Notice(display.OK, "Restarting..."))
	c.restart("button-click")
}

// DoubleClick shows the erase notice, waits one timeout, clears the stored
// Wi-Fi credential and restarts. There is no cancel path; a single click
// during the wait restarts without erasing.
func (c *Controller) DoubleClick() {
	if c.restarting.Load() || !c.erasing.CompareAndSwap(false, true) {
		return
	}
	c.log.Info("button:double-click", slog.String("state", c.State().String()))
	c.preempted.Store(true)
	c.deps.Display.Show(display.Notice(display.Alert, "Erasing WiFi credentials..."))

	c.wait(c.cfg.Timeout, c.restarting.Load)
	if c.restarting.Load() {
		return
	}
	if err := c.deps.Credentials.Erase(); err != nil {
		c.log.Error("credentials:erase-failed", slog.String("err", err.Error()))
	} else {
		c.log.Info("credentials:erased")
	}
	c.restart("button-double-click")
}
