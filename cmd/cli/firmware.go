package main

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// UF2 block layout (512 bytes):
//
//	0-3     magic 1 (0x0A324655 "UF2\n")
//	4-7     magic 2 (0x9E5D5157)
//	8-11    flags
//	12-15   target address
//	16-19   payload size (typically 256)
//	20-23   block number
//	24-27   total blocks
//	28-31   file size or family ID (depends on flags)
//	32-507  data (476 bytes max)
//	508-511 magic 3 (0x0AB16F30)
const (
	uf2BlockSize  = 512
	uf2Magic1     = 0x0A324655
	uf2Magic2     = 0x9E5D5157
	uf2Magic3     = 0x0AB16F30
	uf2MaxPayload = 476
	uf2MaxImage   = 4 * 1024 * 1024

	uf2FlagNotMainFlash = 0x00000001
	uf2FlagContainer    = 0x00001000
	uf2FlagFamilyID     = 0x00002000
	uf2FlagMD5          = 0x00004000
	uf2FlagExtensions   = 0x00008000
)

var (
	errUF2Size  = errors.New("UF2 file size not multiple of 512")
	errUF2Small = errors.New("file too small to be UF2")
	errUF2Large = errors.New("extracted binary too large")
)

var firmwareCmd = &cobra.Command{
	Use:   "firmware <file.uf2>",
	Short: "Inspect a firmware image before flashing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printFirmwareInfo(os.Stdout, args[0])
	},
}

func init() {
	rootCmd.AddCommand(firmwareCmd)
}

type uf2Info struct {
	Blocks   int
	Target   uint32
	Payload  uint32
	Flags    uint32
	FamilyID uint32
	Binary   []byte
}

func familyName(id uint32) string {
	switch id {
	case 0xe48bff56:
		return "RP2040"
	case 0xe48bff57:
		return "RP2350 ARM-S"
	case 0xe48bff58:
		return "RP2350 ARM-NS"
	case 0xe48bff59:
		return "RP2350 RISC-V"
	default:
		return "unknown"
	}
}

// parseUF2 validates every block and extracts the flash image.
func parseUF2(data []byte) (uf2Info, error) {
	if len(data) < uf2BlockSize {
		return uf2Info{}, errUF2Small
	}
	if len(data)%uf2BlockSize != 0 {
		return uf2Info{}, errUF2Size
	}
	numBlocks := len(data) / uf2BlockSize

	// First pass: validate and find the address range
	var minAddr, maxAddr uint32 = 0xFFFFFFFF, 0
	for i := 0; i < numBlocks; i++ {
		block := data[i*uf2BlockSize : (i+1)*uf2BlockSize]
		if binary.LittleEndian.Uint32(block[0:4]) != uf2Magic1 ||
			binary.LittleEndian.Uint32(block[4:8]) != uf2Magic2 ||
			binary.LittleEndian.Uint32(block[508:512]) != uf2Magic3 {
			return uf2Info{}, fmt.Errorf("block %d: invalid magic", i)
		}
		target := binary.LittleEndian.Uint32(block[12:16])
		size := min(binary.LittleEndian.Uint32(block[16:20]), uf2MaxPayload)
		minAddr = min(minAddr, target)
		maxAddr = max(maxAddr, target+size)
	}
	if maxAddr-minAddr > uf2MaxImage {
		return uf2Info{}, fmt.Errorf("%w: %d bytes", errUF2Large, maxAddr-minAddr)
	}

	// Second pass: copy payloads to their offsets
	out := make([]byte, maxAddr-minAddr)
	for i := 0; i < numBlocks; i++ {
		block := data[i*uf2BlockSize : (i+1)*uf2BlockSize]
		target := binary.LittleEndian.Uint32(block[12:16])
		size := min(binary.LittleEndian.Uint32(block[16:20]), uf2MaxPayload)
		off := target - minAddr
		copy(out[off:off+size], block[32:32+size])
	}

	first := data[:uf2BlockSize]
	return uf2Info{
		Blocks:   numBlocks,
		Target:   minAddr,
		Payload:  binary.LittleEndian.Uint32(first[16:20]),
		Flags:    binary.LittleEndian.Uint32(first[8:12]),
		FamilyID: binary.LittleEndian.Uint32(first[28:32]),
		Binary:   out,
	}, nil
}

func printFirmwareInfo(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := parseUF2(data)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(info.Binary)

	fmt.Fprintf(w, "UF2 File: %s\n", path)
	fmt.Fprintf(w, "  File size: %d bytes (%d KB)\n", len(data), len(data)/1024)
	fmt.Fprintf(w, "  Blocks: %d\n", info.Blocks)
	fmt.Fprintf(w, "  Target address: 0x%08x\n", info.Target)
	fmt.Fprintf(w, "  Payload per block: %d bytes\n", info.Payload)
	fmt.Fprintf(w, "  Flags: 0x%08x\n", info.Flags)
	for _, f := range []struct {
		bit  uint32
		name string
	}{
		{uf2FlagNotMainFlash, "NOT_MAIN_FLASH"},
		{uf2FlagContainer, "FILE_CONTAINER"},
		{uf2FlagFamilyID, "FAMILY_ID_PRESENT"},
		{uf2FlagMD5, "MD5_CHECKSUM_PRESENT"},
		{uf2FlagExtensions, "EXTENSION_TAGS_PRESENT"},
	} {
		if info.Flags&f.bit != 0 {
			fmt.Fprintf(w, "    - %s\n", f.name)
		}
	}
	if info.Flags&uf2FlagFamilyID != 0 {
		fmt.Fprintf(w, "  Family ID: 0x%08x (%s)\n", info.FamilyID, familyName(info.FamilyID))
	}
	fmt.Fprintf(w, "  Binary size: %d bytes (%d KB)\n", len(info.Binary), len(info.Binary)/1024)
	fmt.Fprintf(w, "  SHA256: %x\n", sum)
	return nil
}
