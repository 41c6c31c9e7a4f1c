package credentials

import (
	"encoding/binary"
)

// Record layout (little endian):
//
//	0..3   magic "PXC1"
//	4      kind (kindCredential or kindTombstone)
//	5      SSID length
//	6      password length
//	7      reserved, zero
//	8..    SSID bytes, password bytes
//	n..n+1 CRC-16-CCITT over bytes 0..n-1
const (
	headerLen   = 8
	crcLen      = 2
	MaxSSID     = 32
	MaxPassword = 64
	RecordSize  = headerLen + MaxSSID + MaxPassword + crcLen

	kindCredential = 0x01
	kindTombstone  = 0x02

	crcInitial    = 0xFFFF
	crcPolynomial = 0x1021
)

var magic = [4]byte{'P', 'X', 'C', '1'}

// MarshalRecord encodes c into a record. The returned slice is at most
// RecordSize bytes.
func MarshalRecord(c Credentials) ([]byte, error) {
	if len(c.SSID) > MaxSSID || len(c.Password) > MaxPassword {
		return nil, ErrTooLong
	}
	return appendRecord(nil, kindCredential, c), nil
}

// tombstone returns the record written by Erase.
func tombstone() []byte {
	return appendRecord(nil, kindTombstone, Credentials{})
}

func appendRecord(b []byte, kind byte, c Credentials) []byte {
	b = append(b, magic[:]...)
	b = append(b, kind, byte(len(c.SSID)), byte(len(c.Password)), 0)
	b = append(b, c.SSID...)
	b = append(b, c.Password...)
	return binary.LittleEndian.AppendUint16(b, checksum(b))
}

// UnmarshalRecord decodes a record read from storage.
// A blank (all 0xFF) region reports ErrNotFound, a tombstone ErrErased.
func UnmarshalRecord(b []byte) (Credentials, error) {
	if len(b) < headerLen+crcLen {
		return Credentials{}, ErrCorrupt
	}
	if blank(b[:headerLen]) {
		return Credentials{}, ErrNotFound
	}
	if [4]byte(b[:4]) != magic {
		return Credentials{}, ErrCorrupt
	}
	kind, ls, lp := b[4], int(b[5]), int(b[6])
	if ls > MaxSSID || lp > MaxPassword {
		return Credentials{}, ErrCorrupt
	}
	end := headerLen + ls + lp
	if len(b) < end+crcLen {
		return Credentials{}, ErrCorrupt
	}
	if binary.LittleEndian.Uint16(b[end:]) != checksum(b[:end]) {
		return Credentials{}, ErrCorrupt
	}
	switch kind {
	case kindTombstone:
		return Credentials{}, ErrErased
	case kindCredential:
		return Credentials{
			SSID:     string(b[headerLen : headerLen+ls]),
			Password: string(b[headerLen+ls : end]),
		}, nil
	default:
		return Credentials{}, ErrCorrupt
	}
}

func blank(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}

// checksum computes CRC-16-CCITT.
func checksum(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
