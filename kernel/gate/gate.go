// Package gate manages the interrupt descriptor table (IDT): a fixed array of
// 256 hardware gate descriptors indexed by vector number that the CPU
// consults whenever an exception, hardware interrupt or software trap
// occurs.
package gate

import (
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"unsafe"
)

// Vector identifies an IDT slot. Valid vectors are in [0, NumVectors).
type Vector uint16

const (
	// NumVectors is the number of gates in the IDT.
	NumVectors = 256

	// KernelCodeSelector is the GDT selector of the ring-0 code segment
	// that all handlers run in.
	KernelCodeSelector uint16 = 0x08

	// InterruptGate is the type/attribute byte for a present, ring-0,
	// 32-bit interrupt gate. The CPU clears EFLAGS.IF when it enters a
	// handler through such a gate.
	InterruptGate uint8 = 0x8e

	descriptorSize = 8
	tableLimit     = NumVectors*descriptorSize - 1
)

// Descriptor is a single IDT gate. Its field layout matches the 8-byte
// format documented by the processor manuals and must not be changed.
type Descriptor struct {
	// Bits 0-15 of the handler entry address.
	OffsetLow uint16

	// The code segment selector loaded when the gate is taken.
	Selector uint16

	// Reserved; always 0.
	Zero uint8

	// Gate type, DPL and present bit.
	TypeAttr uint8

	// Bits 16-31 of the handler entry address.
	OffsetHigh uint16
}

// Address reassembles the handler entry address stored in the descriptor.
func (d Descriptor) Address() uintptr {
	return uintptr(d.OffsetHigh)<<16 | uintptr(d.OffsetLow)
}

// IsZero returns true if the descriptor has never been installed. The CPU
// treats such an entry as not present and raises a fault if it is used.
func (d Descriptor) IsZero() bool {
	return d == Descriptor{}
}

// Table is a complete IDT together with the 6-byte pointer that the lidt
// instruction loads. The zero value is an empty table.
type Table struct {
	entries [NumVectors]Descriptor

	// ptr holds the limit (16 bits) followed by the base address (32
	// bits). It must outlive the lidt instruction, so it lives next to
	// the table it describes.
	ptr [2]uint32

	loaded bool
}

var (
	// loadIDTFn is mocked by tests and is automatically inlined by the compiler.
	loadIDTFn = cpu.LoadIDT

	errInvalidVector  = &kernel.Error{Module: "gate", Message: "vector out of range"}
	errNilHandler     = &kernel.Error{Module: "gate", Message: "nil handler address"}
	errHandlerTooWide = &kernel.Error{Module: "gate", Message: "handler address does not fit in a 32-bit gate"}
	errTableLoaded    = &kernel.Error{Module: "gate", Message: "table is already loaded"}

	// idt is the table that the kernel loads into the CPU. It is owned by
	// the boot code until Load is called.
	idt Table
)

// Install points vector at the handler entry address. It fails if vector is
// outside the table, if handler is 0 or does not fit in 32 bits, or if the
// table has already been loaded.
func (t *Table) Install(vector Vector, handler uintptr) *kernel.Error {
	switch {
	case vector >= NumVectors:
		return errInvalidVector
	case handler == 0:
		return errNilHandler
	case uint64(handler) > 0xffffffff:
		return errHandlerTooWide
	case t.loaded:
		return errTableLoaded
	}

	t.entries[vector] = Descriptor{
		OffsetLow:  uint16(handler & 0xffff),
		Selector:   KernelCodeSelector,
		Zero:       0,
		TypeAttr:   InterruptGate,
		OffsetHigh: uint16((handler >> 16) & 0xffff),
	}

	return nil
}

// Entry returns the descriptor stored at vector.
func (t *Table) Entry(vector Vector) (Descriptor, *kernel.Error) {
	if vector >= NumVectors {
		return Descriptor{}, errInvalidVector
	}

	return t.entries[vector], nil
}

// FillUnused installs handler in every slot that is still empty and returns
// the number of slots it filled. Kernels call it with a catch-all stub so
// that no vector decodes to address 0.
func (t *Table) FillUnused(handler uintptr) (int, *kernel.Error) {
	var filled int
	for v := Vector(0); v < NumVectors; v++ {
		if !t.entries[v].IsZero() {
			continue
		}

		if err := t.Install(v, handler); err != nil {
			return filled, err
		}
		filled++
	}

	return filled, nil
}

// Pointer returns the table pointer in the layout expected by lidt, split
// into two 32-bit words: word 0 holds the limit in its low half and bits
// 0-15 of the base in its high half; word 1 holds bits 16-31 of the base.
func (t *Table) Pointer() [2]uint32 {
	base := uint32(uintptr(unsafe.Pointer(&t.entries[0])))

	return [2]uint32{
		uint32(tableLimit) | (base&0xffff)<<16,
		base >> 16,
	}
}

// Load makes the table authoritative by loading it into the IDT register.
// Load must run after every required vector is installed and before
// interrupts are enabled. Once loaded, the table rejects further installs.
// Loading an already loaded table reloads the same contents.
func (t *Table) Load() {
	t.ptr = t.Pointer()
	t.loaded = true
	loadIDTFn(uintptr(unsafe.Pointer(&t.ptr)))
}

// Loaded returns true once Load has been called.
func (t *Table) Loaded() bool {
	return t.loaded
}

// Install points vector at handler in the kernel IDT.
func Install(vector Vector, handler uintptr) *kernel.Error {
	return idt.Install(vector, handler)
}

// Entry returns the kernel IDT descriptor stored at vector.
func Entry(vector Vector) (Descriptor, *kernel.Error) {
	return idt.Entry(vector)
}

// FillUnused installs handler in every empty slot of the kernel IDT.
func FillUnused(handler uintptr) (int, *kernel.Error) {
	return idt.FillUnused(handler)
}

// Load loads the kernel IDT into the CPU.
func Load() {
	idt.Load()
}
