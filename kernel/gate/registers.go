package gate

import (
	"io"
	"reacronium/kernel/kfmt"
)

// Registers is the register context handed to every trap handler. The entry
// stubs build it on the kernel stack in exactly this field order: segment
// registers, the pushad block, the vector number and error code, and
// finally the frame pushed by the CPU.
//
// Handlers receive a *Registers that is only valid until they return. Any
// field they modify (EAX in particular, which carries syscall results) is
// restored into the CPU by the stub before iret.
type Registers struct {
	GS uint32
	FS uint32
	ES uint32
	DS uint32

	EDI uint32
	ESI uint32
	EBP uint32
	ESP uint32
	EBX uint32
	EDX uint32
	ECX uint32
	EAX uint32

	// Vector is the IDT slot that was taken.
	Vector uint32

	// ErrorCode is pushed by the CPU for some exceptions and by the
	// stubs (as 0) for every other vector. See HasErrorCode.
	ErrorCode uint32

	// The return frame used by iret. UserESP and UserSS are only valid
	// when the trap crossed a privilege boundary.
	EIP     uint32
	CS      uint32
	EFlags  uint32
	UserESP uint32
	UserSS  uint32
}

// HasErrorCode returns true if the CPU pushed a meaningful error code for
// the trapped vector.
func (r *Registers) HasErrorCode() bool {
	switch Vector(r.Vector) {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault,
		GPFException, PageFaultException, AlignmentCheck,
		ControlProtectionException, VMMCommunicationException, SecurityException:
		return true
	}

	return false
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "EAX = %8x EBX = %8x ECX = %8x EDX = %8x\n", r.EAX, r.EBX, r.ECX, r.EDX)
	kfmt.Fprintf(w, "ESI = %8x EDI = %8x EBP = %8x ESP = %8x\n", r.ESI, r.EDI, r.EBP, r.ESP)
	kfmt.Fprintf(w, "DS  = %8x ES  = %8x FS  = %8x GS  = %8x\n", r.DS, r.ES, r.FS, r.GS)
	kfmt.Fprintf(w, "EIP = %8x CS  = %8x EFL = %8x\n", r.EIP, r.CS, r.EFlags)
	kfmt.Fprintf(w, "USP = %8x USS = %8x\n", r.UserESP, r.UserSS)
}

// CPU exception vectors. Vectors 0-31 are reserved for exceptions; the ones
// without a name below are reserved by the architecture.
const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = Vector(0)

	// Debug is raised by debug traps and breakpoints set in DR0-DR3.
	Debug = Vector(1)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems.
	NMI = Vector(2)

	// Breakpoint is raised by the INT3 instruction.
	Breakpoint = Vector(3)

	// Overflow is raised by INTO when the overflow flag is set.
	Overflow = Vector(4)

	// BoundRangeExceeded occurs when the BOUND instruction is invoked with
	// an index out of range.
	BoundRangeExceeded = Vector(5)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = Vector(6)

	// DeviceNotAvailable occurs when an FPU instruction executes while no
	// FPU is available or FPU support is disabled via CR0.
	DeviceNotAvailable = Vector(7)

	// DoubleFault occurs when an exception occurs while the CPU is trying
	// to invoke the handler of a prior exception.
	DoubleFault = Vector(8)

	// CoprocessorSegmentOverrun is only raised by pre-486 CPUs.
	CoprocessorSegmentOverrun = Vector(9)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = Vector(10)

	// SegmentNotPresent occurs when loading a segment or gate whose
	// present bit is clear.
	SegmentNotPresent = Vector(11)

	// StackSegmentFault occurs when stack base/limit checks fail.
	StackSegmentFault = Vector(12)

	// GPFException occurs when a general protection fault occurs.
	GPFException = Vector(13)

	// PageFaultException occurs when a page directory table (PDT) or one
	// of its entries is not present or when a privilege and/or RW
	// protection check fails.
	PageFaultException = Vector(14)

	// FloatingPointException occurs for unmasked x87 exceptions.
	FloatingPointException = Vector(16)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligned memory access is performed.
	AlignmentCheck = Vector(17)

	// MachineCheck occurs when the CPU detects internal errors such as
	// memory-, bus- or cache-related errors.
	MachineCheck = Vector(18)

	// SIMDFloatingPointException occurs for unmasked SSE exceptions.
	SIMDFloatingPointException = Vector(19)

	// VirtualizationException is raised by EPT violations.
	VirtualizationException = Vector(20)

	// ControlProtectionException is raised by CET violations.
	ControlProtectionException = Vector(21)

	// VMMCommunicationException is raised by SEV-ES guests.
	VMMCommunicationException = Vector(29)

	// SecurityException is raised by SVM security events.
	SecurityException = Vector(30)

	// NumExceptions is the number of vectors reserved for CPU exceptions.
	NumExceptions = 32
)
