// Package msdisk builds the tiny FAT12 volume exposed over USB mass storage:
// one boot sector, one FAT sector, one root directory sector and a single
// README.TXT in the first data cluster. The image lives in RAM; writes from
// the host are accepted and lost on restart.
package msdisk

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"sync"
)

const (
	SectorSize  = 512
	SectorCount = 16 // 8 KiB, the smallest volume Windows mounts

	rootEntries = 16
	dirEntryLen = 32

	bootSector = 0
	fatSector  = 1
	rootSector = 2
	dataSector = 3

	attrArchive     = 0x20
	attrVolumeLabel = 0x08
)

var (
	ErrOutOfRange = errors.New("msdisk: access outside image")
	ErrTooLarge   = errors.New("msdisk: file does not fit in one sector")
	ErrLabel      = errors.New("msdisk: label must be 1-11 characters")
)

// Stamp is a FAT directory timestamp.
type Stamp struct {
	Year, Month, Day     int
	Hour, Minute, Second int
}

func (s Stamp) date() uint16 {
	return uint16(s.Day&0x1F) | uint16(s.Month&0x0F)<<5 | uint16((s.Year-1980)&0x7F)<<9
}

func (s Stamp) time() uint16 {
	return uint16(s.Second/2&0x1F) | uint16(s.Minute&0x3F)<<5 | uint16(s.Hour&0x1F)<<11
}

// Disk is an in-memory block device.
type Disk struct {
	mu   sync.Mutex
	data [SectorCount * SectorSize]byte
}

// New builds a volume labelled label holding readme as README.TXT.
func New(label string, readme []byte, stamp Stamp) (*Disk, error) {
	if len(label) == 0 || len(label) > 11 {
		return nil, ErrLabel
	}
	if len(readme) > SectorSize {
		return nil, ErrTooLarge
	}
	d := &Disk{}
	name := pad(strings.ToUpper(label), 11)
	d.writeBoot(name)
	d.writeFAT()
	d.writeRoot(name, len(readme), stamp)
	copy(d.sector(dataSector), readme)
	return d, nil
}

func (d *Disk) sector(n int) []byte {
	return d.data[n*SectorSize : (n+1)*SectorSize]
}

// writeBoot fills the BIOS parameter block: 512-byte sectors, one sector
// per cluster, one reserved sector, one FAT of one sector, 16 root entries,
// media 0xF8, one head and one sector per track.
func (d *Disk) writeBoot(label string) {
	b := d.sector(bootSector)
	le := binary.LittleEndian
	copy(b[0:], []byte{0xEB, 0x3C, 0x90})
	copy(b[3:], "MSDOS5.0")
	le.PutUint16(b[11:], SectorSize)
	b[13] = 1
	le.PutUint16(b[14:], 1)
	b[16] = 1
	le.PutUint16(b[17:], rootEntries)
	le.PutUint16(b[19:], SectorCount)
	b[21] = 0xF8
	le.PutUint16(b[22:], 1)
	le.PutUint16(b[24:], 1)
	le.PutUint16(b[26:], 1)
	// Hidden sectors, 32-bit sector count and drive number (removable) stay zero.
	b[38] = 0x29
	le.PutUint32(b[39:], 0x1234)
	copy(b[43:], label)
	copy(b[54:], "FAT12   ")
	b[510], b[511] = 0x55, 0xAA
}

// writeFAT marks clusters 0 and 1 reserved and cluster 2 (README) as end of chain.
func (d *Disk) writeFAT() {
	copy(d.sector(fatSector), packFAT12(0xFF8, 0xFFF, 0xFFF, 0x000))
}

func (d *Disk) writeRoot(label string, size int, stamp Stamp) {
	b := d.sector(rootSector)
	le := binary.LittleEndian

	copy(b[0:11], label)
	b[11] = attrVolumeLabel
	le.PutUint16(b[22:], stamp.time())
	le.PutUint16(b[24:], stamp.date())

	f := b[dirEntryLen : 2*dirEntryLen]
	copy(f[0:11], "README  TXT")
	f[11] = attrArchive
	// Created, accessed and modified all carry the build stamp.
	le.PutUint16(f[14:], stamp.time())
	le.PutUint16(f[16:], stamp.date())
	le.PutUint16(f[18:], stamp.date())
	le.PutUint16(f[22:], stamp.time())
	le.PutUint16(f[24:], stamp.date())
	le.PutUint16(f[26:], 2)
	le.PutUint32(f[28:], uint32(size))
}

// packFAT12 packs 12-bit entries two per three bytes.
func packFAT12(entries ...uint16) []byte {
	out := make([]byte, 0, (len(entries)+1)/2*3)
	for i := 0; i < len(entries); i += 2 {
		lo := entries[i]
		var hi uint16
		if i+1 < len(entries) {
			hi = entries[i+1]
		}
		out = append(out, byte(lo), byte(lo>>8&0x0F)|byte(hi<<4&0xF0), byte(hi>>4))
	}
	return out
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if off < 0 || off >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (d *Disk) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, ErrOutOfRange
	}
	return copy(d.data[off:], p), nil
}

func (d *Disk) Size() int64           { return int64(len(d.data)) }
func (d *Disk) WriteBlockSize() int64 { return SectorSize }
func (d *Disk) EraseBlockSize() int64 { return SectorSize }

// EraseBlocks zeroes count sectors starting at start.
func (d *Disk) EraseBlocks(start, count int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if start < 0 || count < 0 || start+count > SectorCount {
		return ErrOutOfRange
	}
	clear(d.data[start*SectorSize : (start+count)*SectorSize])
	return nil
}

// Image returns a copy of the whole volume.
func (d *Disk) Image() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.data[:]...)
}
