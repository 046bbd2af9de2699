// Package irq drives the pair of legacy 8259 programmable interrupt
// controllers (PICs) that multiplex the 16 hardware IRQ lines onto CPU
// vectors.
//
// The package only programs the controllers. Acknowledging a serviced
// interrupt is the caller's job: whoever handles an IRQ must call EOI once
// it is done, otherwise the controller never delivers that line or any line
// with a lower priority again.
package irq

import (
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"reacronium/kernel/gate"
)

// Controller I/O ports.
const (
	MasterCommand uint16 = 0x20
	MasterData    uint16 = 0x21
	SlaveCommand  uint16 = 0xa0
	SlaveData     uint16 = 0xa1
)

// Vector bases for the 8 lines of each controller. Both sit above the 32
// vectors reserved for CPU exceptions.
const (
	MasterOffset = 0x20
	SlaveOffset  = 0x28
)

// Initialization and operation command words.
const (
	// ICW1: start initialization, ICW4 follows.
	icw1Init = 0x11

	// ICW3: cascade wiring. No line on the master carries the slave and
	// the slave has no cascade identity.
	icw3Master = 0x00
	icw3Slave  = 0x00

	// ICW4: 8086/88 mode.
	icw4Mode8086 = 0x01

	// OCW1 value that masks all 8 lines of a controller.
	maskAll = 0xff

	// OCW2 non-specific end of interrupt.
	eoiCommand = 0x20
)

// NumLines is the number of IRQ lines across both controllers.
const NumLines = 16

// Line identifies a hardware interrupt request line. Lines 0-7 belong to
// the master controller and lines 8-15 to the slave.
type Line uint8

// IRQ lines serviced by the kernel drivers.
const (
	Timer    Line = 0
	Keyboard Line = 1
)

var (
	// Port accessors are mocked by tests and are automatically inlined by
	// the compiler.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte

	errInvalidLine = &kernel.Error{Module: "irq", Message: "IRQ line out of range"}
)

// Vector returns the CPU vector that the line is delivered on after Remap.
func (l Line) Vector() gate.Vector {
	if l < 8 {
		return gate.Vector(MasterOffset + uint16(l))
	}

	return gate.Vector(SlaveOffset + uint16(l) - 8)
}

// LineForVector maps a remapped CPU vector back to its IRQ line. It returns
// false if v is not an IRQ vector.
func LineForVector(v gate.Vector) (Line, bool) {
	if v < MasterOffset || v >= SlaveOffset+8 {
		return 0, false
	}

	return Line(v - MasterOffset), true
}

// Remap reprograms both controllers so that IRQs 0-15 are delivered on
// vectors 0x20-0x2f and then masks every line. The port writes follow the
// 8259 initialization protocol and must stay in this exact order.
//
// After Remap no hardware interrupt is delivered until a driver calls Unmask
// for its line.
func Remap() {
	// ICW1
	portWriteByteFn(MasterCommand, icw1Init)
	portWriteByteFn(SlaveCommand, icw1Init)

	// ICW2
	portWriteByteFn(MasterData, MasterOffset)
	portWriteByteFn(SlaveData, SlaveOffset)

	// ICW3
	portWriteByteFn(MasterData, icw3Master)
	portWriteByteFn(SlaveData, icw3Slave)

	// ICW4
	portWriteByteFn(MasterData, icw4Mode8086)
	portWriteByteFn(SlaveData, icw4Mode8086)

	// OCW1
	portWriteByteFn(MasterData, maskAll)
	portWriteByteFn(SlaveData, maskAll)
}

// Unmask allows the controller to deliver interrupts for l.
func Unmask(l Line) *kernel.Error {
	if l >= NumLines {
		return errInvalidLine
	}

	port, bit := maskBit(l)
	portWriteByteFn(port, portReadByteFn(port)&^bit)
	return nil
}

// Mask stops the controller from delivering interrupts for l.
func Mask(l Line) *kernel.Error {
	if l >= NumLines {
		return errInvalidLine
	}

	port, bit := maskBit(l)
	portWriteByteFn(port, portReadByteFn(port)|bit)
	return nil
}

// EOI acknowledges a serviced interrupt on l. Lines on the slave need an
// acknowledgement on both controllers.
func EOI(l Line) *kernel.Error {
	if l >= NumLines {
		return errInvalidLine
	}

	if l >= 8 {
		portWriteByteFn(SlaveCommand, eoiCommand)
	}
	portWriteByteFn(MasterCommand, eoiCommand)
	return nil
}

// maskBit returns the data port holding the mask register for l and the
// bit that controls it.
func maskBit(l Line) (uint16, uint8) {
	if l < 8 {
		return MasterData, 1 << l
	}

	return SlaveData, 1 << (l - 8)
}
