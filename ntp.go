//go:build tinygo

package main

import (
	"context"
	"time"
)

const (
	ntpTimeout = 5 * time.Second
	ntpRetries = 2
)

// QueryNTP asks one SNTP server for the offset between it and the local
// clock.
func (l *wifiLink) QueryNTP(ctx context.Context, server string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	addr, err := l.lookup(ctx, server)
	if err != nil {
		return 0, err
	}
	stack, err := l.lneto()
	if err != nil {
		return 0, err
	}
	rstack := stack.StackRetrying(pollTime)
	return rstack.DoNTP(addr, ntpTimeout, ntpRetries)
}
