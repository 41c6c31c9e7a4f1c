// Package pubaddr learns the device's public address from an "echo my
// address" service such as http://ifconfig.me/ip.
package pubaddr

import (
	"context"
	"errors"
	"net/netip"
	"strings"

	"openenterprise/paxcounter/httpc"
)

// Unknown is reported whenever the address could not be resolved.
var Unknown = netip.AddrFrom4([4]byte{})

var ErrNotAddress = errors.New("pubaddr: response is not an IP address")

// Getter is the part of httpc.Client the resolver needs.
type Getter interface {
	Get(ctx context.Context, url string) (*httpc.Response, error)
}

// Resolver performs exactly one GET per Resolve call; it never retries.
type Resolver struct {
	Client Getter
	URL    string
}

// Resolve returns the public address, or Unknown together with the reason.
func (r *Resolver) Resolve(ctx context.Context) (netip.Addr, error) {
	resp, err := r.Client.Get(ctx, r.URL)
	if err != nil {
		return Unknown, err
	}
	if err := httpc.CheckStatus(resp); err != nil {
		return Unknown, err
	}
	if resp.Truncated {
		return Unknown, ErrNotAddress
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(string(resp.Body)))
	if err != nil {
		return Unknown, ErrNotAddress
	}
	return addr.Unmap(), nil
}
