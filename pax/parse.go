package pax

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

var ErrSyntax = errors.New("pax: malformed sighting")

// ParseSighting parses one scanner line:
//
//	W <channel> <aa:bb:cc:dd:ee:ff> <rssi>
//	B <aa:bb:cc:dd:ee:ff> <rssi>
func ParseSighting(line string) (Sighting, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return Sighting{}, ErrSyntax
	}

	var s Sighting
	var err error
	switch f[0] {
	case "W":
		if len(f) != 4 {
			return Sighting{}, ErrSyntax
		}
		s.Kind = WiFi
		if s.Channel, err = strconv.Atoi(f[1]); err != nil || s.Channel < 1 || s.Channel > 14 {
			return Sighting{}, ErrSyntax
		}
		f = f[2:]
	case "B":
		if len(f) != 3 {
			return Sighting{}, ErrSyntax
		}
		s.Kind = BLE
		f = f[1:]
	default:
		return Sighting{}, ErrSyntax
	}

	if s.Addr, err = parseAddr(f[0]); err != nil {
		return Sighting{}, err
	}
	if s.RSSI, err = strconv.Atoi(f[1]); err != nil || s.RSSI > 0 || s.RSSI < -127 {
		return Sighting{}, ErrSyntax
	}
	return s, nil
}

func parseAddr(s string) ([6]byte, error) {
	var addr [6]byte
	if len(s) != 17 {
		return addr, ErrSyntax
	}
	for i := 0; i < 6; i++ {
		if i > 0 && s[i*3-1] != ':' {
			return addr, ErrSyntax
		}
		if _, err := hex.Decode(addr[i:i+1], []byte(s[i*3:i*3+2])); err != nil {
			return addr, ErrSyntax
		}
	}
	return addr, nil
}

// FormatAddr renders a hardware address as aa:bb:cc:dd:ee:ff.
func FormatAddr(addr [6]byte) string {
	const digits = "0123456789abcdef"
	b := make([]byte, 0, 17)
	for i, v := range addr {
		if i > 0 {
			b = append(b, ':')
		}
		b = append(b, digits[v>>4], digits[v&0xf])
	}
	return string(b)
}
