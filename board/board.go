//go:build tinygo

// Package board provides RP2350 system services: hard reboot and the flash
// sector that holds the provisioned Wi-Fi credential.
package board

/*
#include <stdint.h>
#include <stdbool.h>
#include <stddef.h>

// ============================================================================
// ROM Function Infrastructure (duplicated from TinyGo's machine_rp2350_rom.go)
// ============================================================================

#define ROM_TABLE_CODE(c1, c2) ((c1) | ((c2) << 8))

#define BOOTROM_FUNC_TABLE_OFFSET   0x14
#define BOOTROM_WELL_KNOWN_PTR_SIZE 2
#define BOOTROM_TABLE_LOOKUP_OFFSET (BOOTROM_FUNC_TABLE_OFFSET + BOOTROM_WELL_KNOWN_PTR_SIZE)

#define RT_FLAG_FUNC_ARM_SEC 0x0004

typedef void *(*rom_table_lookup_fn)(uint32_t code, uint32_t mask);

// TinyGo on RP2350 runs in Secure state (no TrustZone configured).
__attribute__((always_inline))
static void *rom_func_lookup_inline(uint32_t code) {
    rom_table_lookup_fn rom_table_lookup =
        (rom_table_lookup_fn)(uintptr_t)*(uint16_t*)(BOOTROM_TABLE_LOOKUP_OFFSET);
    return rom_table_lookup(code, RT_FLAG_FUNC_ARM_SEC);
}

// ============================================================================
// Reboot
// ============================================================================

// board_reboot forces an immediate watchdog reset.
// More reliable than the ROM reboot call on RP2350.
static void board_reboot(void) {
    // NOTE: 0x400d8000, NOT 0x40058000 (which is PLL_USB)
    #define WATCHDOG_BASE 0x400d8000
    #define WATCHDOG_CTRL (WATCHDOG_BASE + 0x00)
    #define WATCHDOG_CTRL_TRIGGER (1u << 31)

    *(volatile uint32_t*)WATCHDOG_CTRL = WATCHDOG_CTRL_TRIGGER;

    while(1) { __asm__("nop"); }
}

// ============================================================================
// Direct flash operations on raw offsets (machine.Flash adds FlashDataStart()).
// ============================================================================

#define ROM_FUNC_CONNECT_INTERNAL_FLASH ROM_TABLE_CODE('I', 'F')
#define ROM_FUNC_FLASH_EXIT_XIP         ROM_TABLE_CODE('E', 'X')
#define ROM_FUNC_FLASH_RANGE_ERASE      ROM_TABLE_CODE('R', 'E')
#define ROM_FUNC_FLASH_RANGE_PROGRAM    ROM_TABLE_CODE('R', 'P')
#define ROM_FUNC_FLASH_FLUSH_CACHE      ROM_TABLE_CODE('F', 'C')

#define FLASH_SECTOR_SIZE      4096
#define FLASH_SECTOR_ERASE_CMD 0x20

typedef void (*flash_connect_internal_fn)(void);
typedef void (*flash_exit_xip_fn)(void);
typedef void (*flash_range_erase_fn)(uint32_t addr, size_t count, uint32_t block_size, uint8_t block_cmd);
typedef void (*flash_range_program_fn)(uint32_t addr, const uint8_t *data, size_t count);
typedef void (*flash_flush_cache_fn)(void);

static int board_flash_program(uint32_t offset, const uint8_t *data, uint32_t len) {
    flash_connect_internal_fn connect = (flash_connect_internal_fn)rom_func_lookup_inline(ROM_FUNC_CONNECT_INTERNAL_FLASH);
    flash_exit_xip_fn exit_xip = (flash_exit_xip_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_EXIT_XIP);
    flash_range_program_fn program = (flash_range_program_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_RANGE_PROGRAM);
    flash_flush_cache_fn flush = (flash_flush_cache_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_FLUSH_CACHE);

    if (!connect || !exit_xip || !program || !flush) return -1;

    uint32_t status;
    __asm__ volatile ("mrs %0, primask" : "=r" (status));
    __asm__ volatile ("cpsid i");

    connect();
    exit_xip();
    program(offset, data, len);
    flush();

    __asm__ volatile ("msr primask, %0" : : "r" (status));
    return 0;
}

static int board_flash_erase(uint32_t offset, uint32_t count) {
    flash_connect_internal_fn connect = (flash_connect_internal_fn)rom_func_lookup_inline(ROM_FUNC_CONNECT_INTERNAL_FLASH);
    flash_exit_xip_fn exit_xip = (flash_exit_xip_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_EXIT_XIP);
    flash_range_erase_fn erase = (flash_range_erase_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_RANGE_ERASE);
    flash_flush_cache_fn flush = (flash_flush_cache_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_FLUSH_CACHE);

    if (!connect || !exit_xip || !erase || !flush) return -1;

    uint32_t status;
    __asm__ volatile ("mrs %0, primask" : "=r" (status));
    __asm__ volatile ("cpsid i");

    connect();
    exit_xip();
    erase(offset, count, FLASH_SECTOR_SIZE, FLASH_SECTOR_ERASE_CMD);
    flush();

    __asm__ volatile ("msr primask, %0" : : "r" (status));
    return 0;
}
*/
import "C"

import (
	"errors"
	"unsafe"
)

const (
	SectorSize = 4096 // 4KB erase block
	PageSize   = 256  // 256B program block

	xipBase = 0x10000000

	// Last sector of the 4MB flash, past the firmware image.
	CredentialSectorOffset = 0x3FF000
)

var (
	ErrFlashProgram = errors.New("board: flash program failed")
	ErrFlashErase   = errors.New("board: flash erase failed")
	ErrOutOfRange   = errors.New("board: access outside sector")
)

var beforeReboot func()

// OnReboot registers a function run just before Reboot resets the chip.
func OnReboot(fn func()) {
	beforeReboot = fn
}

// Reboot performs a hard system reset. Does not return.
func Reboot() {
	if beforeReboot != nil {
		beforeReboot()
	}
	C.board_reboot()
}

// FlashSector is one raw flash sector, read through the XIP window.
type FlashSector struct {
	offset uint32
}

// CredentialSector returns the sector reserved for the Wi-Fi credential.
func CredentialSector() *FlashSector {
	return &FlashSector{offset: CredentialSectorOffset}
}

func (s *FlashSector) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= SectorSize {
		return 0, ErrOutOfRange
	}
	n := len(p)
	if int64(n) > SectorSize-off {
		n = int(SectorSize - off)
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(xipBase+s.offset)+uintptr(off))), n)
	return copy(p, src), nil
}

func (s *FlashSector) Erase() error {
	if C.board_flash_erase(C.uint32_t(s.offset), C.uint32_t(SectorSize)) != 0 {
		return ErrFlashErase
	}
	return nil
}

// Program writes p at the start of the sector, padded to a whole page with
// 0xFF. The sector must have been erased first.
func (s *FlashSector) Program(p []byte) error {
	if len(p) > SectorSize {
		return ErrOutOfRange
	}
	pages := (len(p) + PageSize - 1) / PageSize
	if pages == 0 {
		return nil
	}
	buf := make([]byte, pages*PageSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	copy(buf, p)
	if C.board_flash_program(C.uint32_t(s.offset), (*C.uint8_t)(&buf[0]), C.uint32_t(len(buf))) != 0 {
		return ErrFlashProgram
	}
	return nil
}
