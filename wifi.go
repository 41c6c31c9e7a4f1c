//go:build tinygo

package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"openenterprise/paxcounter/credentials"
	"openenterprise/paxcounter/lifecycle"
	"openenterprise/paxcounter/pubaddr"

	"github.com/soypat/cyw43439"
	"github.com/soypat/cyw43439/examples/cywnet"
	"github.com/soypat/lneto/x/xnet"
)

const pollTime = 5 * time.Millisecond

var errNotJoined = errors.New("wifi: not joined")

// wifiLink owns the CYW43439 and its network stack. It is the provisioning
// join function, the controller's Link and the dialer for HTTP and SNTP.
type wifiLink struct {
	hostname  string
	logger    *slog.Logger
	netLogger *slog.Logger

	mu     sync.Mutex
	stack  *cywnet.Stack
	ident  lifecycle.Identity
	joined bool

	// tcp buffers are shared, so one connection at a time
	connMu sync.Mutex
}

// Join associates with c and runs DHCP. It blocks until the link is usable
// or has failed.
func (l *wifiLink) Join(ctx context.Context, c credentials.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	devcfg := cyw43439.DefaultWifiConfig()
	devcfg.Logger = l.netLogger
	cystack, err := cywnet.NewConfiguredPicoWithStack(
		c.SSID,
		c.Password,
		devcfg,
		cywnet.StackConfig{
			Hostname:    l.hostname,
			MaxTCPPorts: 2, // collector or public address lookup + MQTT mirror
		},
	)
	if err != nil {
		l.logger.Error("wifi:setup-failed", slog.String("ssid", c.SSID), slog.String("err", err.Error()))
		return err
	}

	stop := make(chan struct{})
	go loopForeverStack(cystack, stop)

	dhcpResults, err := cystack.SetupWithDHCP(cywnet.DHCPConfig{})
	if err != nil {
		close(stop)
		l.logger.Error("dhcp:failed", slog.String("err", err.Error()))
		return err
	}
	l.logger.Info("dhcp:complete", slog.String("addr", dhcpResults.AssignedAddr.String()))

	l.mu.Lock()
	l.stack = cystack
	l.ident = lifecycle.Identity{
		SSID:        c.SSID,
		PrivateAddr: dhcpResults.AssignedAddr,
		PublicAddr:  pubaddr.Unknown,
	}
	l.joined = true
	l.mu.Unlock()
	return nil
}

// Connected reports whether a join has completed. The driver does not
// surface disassociation, so a lost network shows up as failing requests.
func (l *wifiLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.joined
}

// Identity returns the joined network. The driver does not expose the
// access point's BSSID, so it stays empty.
func (l *wifiLink) Identity() lifecycle.Identity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ident
}

func (l *wifiLink) lneto() (*xnet.StackAsync, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.joined {
		return nil, errNotJoined
	}
	return l.stack.LnetoStack(), nil
}

// loopForeverStack processes network packets in the background
func loopForeverStack(stack *cywnet.Stack, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		send, recv, _ := stack.RecvAndSend()
		if send == 0 && recv == 0 {
			time.Sleep(pollTime)
		}
	}
}
