package lifecycle

import (
	"net/netip"
	"sync"
)

// State is the controller's position in the boot sequence.
type State uint32

const (
	Booting State = iota
	Provisioning
	Connecting
	SyncingTime
	Running
	Restarting
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Provisioning:
		return "provisioning"
	case Connecting:
		return "connecting"
	case SyncingTime:
		return "syncing-time"
	case Running:
		return "running"
	case Restarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// CountCell holds the latest counts from the presence counter. The counter
// goroutine stores, the controller loads; the pair is never torn.
type CountCell struct {
	mu   sync.Mutex
	wifi uint32
	ble  uint32
}

func (c *CountCell) Store(wifi, ble uint32) {
	c.mu.Lock()
	c.wifi, c.ble = wifi, ble
	c.mu.Unlock()
}

func (c *CountCell) Load() (wifi, ble uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wifi, c.ble
}

// Identity is the network the device is on, as last observed.
type Identity struct {
	SSID        string
	BSSID       string
	PrivateAddr netip.Addr
	PublicAddr  netip.Addr
}
