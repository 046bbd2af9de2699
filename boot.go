package main

import "reacronium/kernel/trap"

var (
	// multibootInfoPtr and trapEntries are populated by the rt0 assembly
	// code before it jumps to main: the former with the address of the
	// multiboot info payload provided by the bootloader and the latter with
	// the addresses of the trap entry stubs.
	multibootInfoPtr uintptr
	trapEntries      trap.Entries
)
