//go:build tinygo

package main

// WARNING: default -scheduler=cores unsupported, compile with -scheduler=tasks set!

import (
	"context"
	"log/slog"
	"machine"
	"runtime"
	"time"

	"openenterprise/paxcounter/board"
	"openenterprise/paxcounter/button"
	"openenterprise/paxcounter/credentials"
	"openenterprise/paxcounter/display"
	"openenterprise/paxcounter/httpc"
	"openenterprise/paxcounter/lifecycle"
	"openenterprise/paxcounter/pax"
	"openenterprise/paxcounter/provision"
	"openenterprise/paxcounter/pubaddr"
	"openenterprise/paxcounter/telemetry"
	"openenterprise/paxcounter/timesync"
	"openenterprise/paxcounter/version"

	"tinygo.org/x/drivers/st7789"
)

const (
	// The hardware watchdog resets after 8s without a feed. The feeder
	// stops once the controller shows no progress for stallLimit.
	watchdogMillis = 8000
	stallLimit     = 30 * time.Second
	feedInterval   = time.Second

	consolePoll = 20 * time.Millisecond
	scannerPoll = 5 * time.Millisecond
	httpTimeout = 10 * time.Second
)

// Pico-LCD-1.14 wiring: ST7789 on SPI1 and KEY A as the maintenance button.
var (
	tftSCK = machine.GP10
	tftSDO = machine.GP11
	tftCS  = machine.GP9
	tftDC  = machine.GP8
	tftRST = machine.GP12
	tftBL  = machine.GP13

	buttonPin = machine.GP15

	scannerTX = machine.GP0
	scannerRX = machine.GP1
)

// fatalError shows msg, waits out the grace period and reboots. Used only
// for failures before the controller exists.
func fatalError(logger *slog.Logger, screen display.Sink, msg string, err error) {
	logger.Error("init:fatal", slog.String("msg", msg), slog.String("err", err.Error()))
	screen.Show(display.Notice(display.Alert, msg))
	for i := 0; i < 5; i++ {
		machine.Watchdog.Update()
		time.Sleep(time.Second)
	}
	board.Reboot()
}

func main() {
	time.Sleep(2 * time.Second) // Give time to connect to USB and monitor output.
	println("========================================")
	println("  Openenterprise Paxcounter")
	println("  Version:", version.String())
	println("  Git SHA:", version.GitSHA)
	println("  Built:  ", version.BuildDate)
	println("========================================")

	// Application logger (debug level for our code)
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// The cywnet library logs "packet dropped" at ERROR level which is normal for WiFi
	netLogger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.Level(12),
	}))

	board.OnReboot(func() {
		logger.Warn("board:rebooting")
		time.Sleep(100 * time.Millisecond)
	})

	machine.Watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: watchdogMillis,
	})
	machine.Watchdog.Start()
	logger.Info("init:watchdog-started")

	screen := display.Tee{initTFT(), display.TextSink{W: machine.Serial}}

	cfg, err := loadSettings()
	if err != nil {
		fatalError(logger, screen, "Invalid configuration", err)
	}
	logger.Info("config:loaded",
		slog.String("device", cfg.controller.Device),
		slog.Duration("timeout", cfg.controller.Timeout),
		slog.String("collector", cfg.collectorURL),
	)

	startUSBDisk(cfg.controller.Device, logger)

	clk := lifecycle.NewSystemClock()
	store := credentials.NewSectorStore(board.CredentialSector())
	link := &wifiLink{
		hostname:  cfg.controller.Device,
		logger:    logger,
		netLogger: netLogger,
	}
	prov := &provision.Provisioner{
		Store:   store,
		Seed:    credentials.Seed,
		Console: pollingReader{R: machine.Serial, Poll: consolePoll},
		Join:    link.Join,
		Logger:  logger,
	}
	syncer := &timesync.Syncer{
		Query: link.QueryNTP,
		Adjust: func(offset time.Duration) {
			runtime.AdjustTimeOffset(int64(offset))
		},
		Logger: logger,
	}
	client := &httpc.Client{
		Dialer:    link,
		Timeout:   httpTimeout,
		UserAgent: "paxcounter/" + version.String(),
	}
	publisher := telemetry.Multi{&telemetry.FormPublisher{Client: client, URL: cfg.collectorURL}}
	if cfg.mirror {
		logger.Info("config:broker", slog.String("addr", cfg.broker.String()))
		publisher = append(publisher, &mqttMirror{
			link:   link,
			broker: cfg.broker,
			device: cfg.controller.Device,
			logger: logger,
		})
	}
	counter := &pax.Counter{}

	ctrl := lifecycle.New(cfg.controller, lifecycle.Deps{
		Clock:       clk,
		Logger:      logger,
		Provisioner: prov,
		Link:        link,
		TimeSync:    syncer,
		Resolver:    &pubaddr.Resolver{Client: client, URL: cfg.publicAddrURL},
		Publisher:   publisher,
		Counter:     counter,
		Display:     screen,
		Restarter:   rebooter{logger: logger},
		Credentials: store,
	})

	ctx := context.Background()
	go feedWatchdog(ctrl, logger)
	go watchButton(ctx, ctrl, clk, logger)
	go runScanner(ctx, counter, cfg.scannerBaud, logger)

	logger.Info("init:complete")
	err = ctrl.Run(ctx)
	logger.Warn("lifecycle:stopped", slog.String("err", err.Error()))

	// A double-click is still waiting out its grace period; it reboots.
	for {
		time.Sleep(time.Second)
	}
}

func initTFT() *display.TFT {
	machine.SPI1.Configure(machine.SPIConfig{
		Frequency: 62_500_000,
		SCK:       tftSCK,
		SDO:       tftSDO,
		Mode:      0,
	})
	dev := st7789.New(machine.SPI1, tftRST, tftDC, tftCS, tftBL)
	dev.Configure(st7789.Config{
		Width:        135,
		Height:       240,
		Rotation:     st7789.ROTATION_90,
		RowOffset:    40,
		ColumnOffset: 53,
	})
	return display.NewTFT(&dev)
}

// rebooter restarts the chip through the watchdog trigger.
type rebooter struct {
	logger *slog.Logger
}

func (r rebooter) Restart(reason string) {
	r.logger.Warn("restart:rebooting", slog.String("reason", reason))
	board.Reboot()
}

// feedWatchdog keeps the hardware watchdog alive while the controller makes
// progress. Once it stalls the chip resets within 8s.
func feedWatchdog(ctrl *lifecycle.Controller, logger *slog.Logger) {
	healthy := true
	for {
		if ctrl.Stalled(stallLimit) {
			if healthy {
				logger.Error("watchdog:unhealthy",
					slog.String("state", ctrl.State().String()),
					slog.Duration("limit", stallLimit),
				)
				healthy = false
			}
		} else {
			machine.Watchdog.Update()
			healthy = true
		}
		time.Sleep(feedInterval)
	}
}

func watchButton(ctx context.Context, ctrl *lifecycle.Controller, clk *lifecycle.SystemClock, logger *slog.Logger) {
	buttonPin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	pressed := func() bool { return !buttonPin.Get() }

	button.Watch(ctx, &button.Classifier{}, pressed, clk.Now, button.DefaultPoll, func(ev button.Event) {
		logger.Debug("button:event", slog.String("event", ev.String()))
		switch ev {
		case button.Click:
			ctrl.Click()
		case button.DoubleClick:
			// Runs through the grace period; a click meanwhile still restarts.
			go ctrl.DoubleClick()
		}
	})
}

// runScanner feeds sightings from the radio co-processor on UART0 into the
// counter.
func runScanner(ctx context.Context, counter *pax.Counter, baud uint32, logger *slog.Logger) {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: baud,
		TX:       scannerTX,
		RX:       scannerRX,
	})
	if err != nil {
		logger.Error("pax:uart-failed", slog.String("err", err.Error()))
		return
	}
	logger.Info("pax:scanner-started", slog.Uint64("baud", uint64(baud)))

	bad := 0
	err = counter.Run(ctx, pollingReader{R: uart, Poll: scannerPoll}, func(line string, err error) {
		bad++
		if bad%100 == 1 {
			logger.Warn("pax:bad-line", slog.String("line", line), slog.Int("total", bad))
		}
	})
	logger.Error("pax:scanner-stopped", slog.String("err", errString(err)))
}

func errString(err error) string {
	if err == nil {
		return "eof"
	}
	return err.Error()
}
