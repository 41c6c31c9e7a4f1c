// Package credentials stores the Wi-Fi credential obtained by provisioning.
//
// The record lives in a single flash sector. A blank sector means the device
// was never provisioned and the factory seed from ssid.text/password.text may
// be used. Erasing writes a tombstone record instead of blanking the sector,
// so an operator-triggered erase is not undone by the factory seed on the
// next boot.
package credentials

import (
	_ "embed"
	"errors"
	"strings"
)

var (
	//go:embed ssid.text
	ssid string
	//go:embed password.text
	pass string
)

var (
	ErrNotFound = errors.New("credentials: not provisioned")
	ErrErased   = errors.New("credentials: erased by operator")
	ErrCorrupt  = errors.New("credentials: corrupt record")
	ErrTooLong  = errors.New("credentials: field too long")
)

// Credentials is a Wi-Fi network name and passphrase.
type Credentials struct {
	SSID     string
	Password string
}

// Valid reports whether c names a network.
func (c Credentials) Valid() bool {
	return c.SSID != ""
}

// Store persists a single credential record.
type Store interface {
	Load() (Credentials, error)
	Save(Credentials) error
	Erase() error
}

// Seed returns the factory credential compiled in from ssid.text and
// password.text. It is only used while the store has never been written.
//
// Deprecated: Marked as deprecated so IDE warns users agains its use. Your wifi password should be defined outside of this repo for security reasons!
func Seed() Credentials {
	return Credentials{
		SSID:     strings.TrimSpace(ssid),
		Password: strings.TrimRight(pass, "\r\n"),
	}
}
