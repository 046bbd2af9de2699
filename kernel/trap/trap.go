// Package trap assigns vectors to the kernel's trap sources and routes every
// trap to the Go code that services it.
//
// Vectors 0-31 carry CPU exceptions, the remapped PIC delivers the timer and
// keyboard IRQs on vectors 0x20 and 0x21 and software traps use vector 0x80.
// The assembly entry stubs for these vectors save the register context and
// call Dispatch.
//
// All gates are interrupt gates and Dispatch never re-enables interrupts, so
// traps are serviced one at a time and never nest.
package trap

import (
	"reacronium/kernel"
	"reacronium/kernel/gate"
	"reacronium/kernel/hal/multiboot"
	"reacronium/kernel/irq"
)

// Fixed vector assignments.
const (
	TimerVector    = gate.Vector(irq.MasterOffset + uint16(irq.Timer))
	KeyboardVector = gate.Vector(irq.MasterOffset + uint16(irq.Keyboard))
	SyscallVector  = gate.Vector(0x80)
)

// Entries holds the addresses of the assembly entry stubs. It is populated
// by the boot code and handed to Init.
type Entries struct {
	// Exceptions holds one stub per CPU exception vector.
	Exceptions [gate.NumExceptions]uintptr

	Timer    uintptr
	Keyboard uintptr
	Syscall  uintptr

	// Default is an optional catch-all stub. If set, it is installed in
	// every vector that has no dedicated stub so a stray trap is reported
	// instead of jumping through an empty gate.
	Default uintptr
}

var (
	// Hardware setup functions are mocked by tests and are automatically
	// inlined by the compiler.
	installFn      = gate.Install
	fillUnusedFn   = gate.FillUnused
	loadIDTFn      = gate.Load
	remapPICFn     = irq.Remap
	visitCmdLineFn = multiboot.VisitBootCmdLine

	// defaultEntry is the catch-all stub address installed by Init.
	defaultEntry uintptr

	errMissingEntries = &kernel.Error{Module: "trap", Message: "missing entry stub table"}
)

// Init installs the entry stubs into the IDT, remaps the PIC and loads the
// IDT. The steps run in a fixed order:
//  - exception vectors 0-31
//  - timer, keyboard and syscall vectors
//  - the catch-all stub in every remaining vector, unless disabled by the
//    idtDefault=off boot option
//  - PIC remap, which leaves every IRQ line masked
//  - IDT load
//
// Init stops at the first failed install, before the PIC is touched. It must
// run before interrupts are enabled.
func Init(entries *Entries) *kernel.Error {
	if entries == nil {
		return errMissingEntries
	}

	for vec, addr := range entries.Exceptions {
		if err := installFn(gate.Vector(vec), addr); err != nil {
			return err
		}
	}

	for _, g := range [...]struct {
		vec  gate.Vector
		addr uintptr
	}{
		{TimerVector, entries.Timer},
		{KeyboardVector, entries.Keyboard},
		{SyscallVector, entries.Syscall},
	} {
		if err := installFn(g.vec, g.addr); err != nil {
			return err
		}
	}

	defaultEntry = 0
	if entries.Default != 0 && fillUnusedEnabled() {
		if _, err := fillUnusedFn(entries.Default); err != nil {
			return err
		}
		defaultEntry = entries.Default
	}

	remapPICFn()
	loadIDTFn()

	return nil
}

// fillUnusedEnabled checks the boot command line for idtDefault=off.
func fillUnusedEnabled() bool {
	enabled := true
	visitCmdLineFn(func(key, value string) bool {
		if key != "idtDefault" {
			return true
		}

		enabled = value != "off"
		return false
	})

	return enabled
}
