package trap

import (
	"reacronium/kernel"
	"reacronium/kernel/gate"
	"reacronium/kernel/irq"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/syscall"
)

// ExceptionHandler services a CPU exception. If the handler returns, the
// faulting code resumes using the (possibly modified) register context.
type ExceptionHandler func(regs *gate.Registers)

// IRQHandler services a hardware interrupt. Handlers must not acknowledge
// the interrupt themselves; Dispatch sends the EOI once they return.
type IRQHandler func(regs *gate.Registers)

var (
	exceptionHandlers [gate.NumExceptions]ExceptionHandler
	irqHandlers       [irq.NumLines]IRQHandler

	// Collaborators are mocked by tests and are automatically inlined by
	// the compiler.
	entryFn   = gate.Entry
	unmaskFn  = irq.Unmask
	maskFn    = irq.Mask
	eoiFn     = irq.EOI
	syscallFn = syscall.Dispatch
	panicFn   = kfmt.Panic

	trapLog = kfmt.PrefixWriter{Prefix: []byte("[trap] ")}

	errInvalidException   = &kernel.Error{Module: "trap", Message: "exception vector out of range"}
	errInvalidLine        = &kernel.Error{Module: "trap", Message: "IRQ line out of range"}
	errNoGate             = &kernel.Error{Module: "trap", Message: "no entry stub installed for IRQ vector"}
	errUnhandledException = &kernel.Error{Module: "trap", Message: "unhandled CPU exception"}
	errUnexpectedTrap     = &kernel.Error{Module: "trap", Message: "unexpected trap"}

	exceptionNames = [gate.NumExceptions]string{
		"Divide-by-zero",
		"Debug",
		"Non-maskable interrupt",
		"Breakpoint",
		"Overflow",
		"Bound range exceeded",
		"Invalid opcode",
		"Device not available",
		"Double fault",
		"Coprocessor segment overrun",
		"Invalid TSS",
		"Segment not present",
		"Stack-segment fault",
		"General protection fault",
		"Page fault",
		"Reserved",
		"x87 floating-point exception",
		"Alignment check",
		"Machine check",
		"SIMD floating-point exception",
		"Virtualization exception",
		"Control protection exception",
		"Reserved",
		"Reserved",
		"Reserved",
		"Reserved",
		"Reserved",
		"Reserved",
		"Hypervisor injection exception",
		"VMM communication exception",
		"Security exception",
		"Reserved",
	}
)

// HandleException registers h as the handler for a CPU exception vector.
// Passing a nil handler restores the default behavior, which reports the
// exception and halts.
func HandleException(vec gate.Vector, h ExceptionHandler) *kernel.Error {
	if vec >= gate.NumExceptions {
		return errInvalidException
	}

	exceptionHandlers[vec] = h
	return nil
}

// HandleIRQ registers h as the handler for an IRQ line and unmasks the line
// at the PIC. The IDT must contain a dedicated entry stub for the line's
// vector. Passing a nil handler removes the registered handler and masks the
// line again.
func HandleIRQ(line irq.Line, h IRQHandler) *kernel.Error {
	if line >= irq.NumLines {
		return errInvalidLine
	}

	if h == nil {
		irqHandlers[line] = nil
		return maskFn(line)
	}

	desc, err := entryFn(line.Vector())
	if err != nil || desc.IsZero() || desc.Address() == defaultEntry {
		return errNoGate
	}

	irqHandlers[line] = h
	return unmaskFn(line)
}

// Dispatch routes a trap to its handler. It is called by every entry stub
// with the register context saved on the kernel stack.
func Dispatch(regs *gate.Registers) {
	switch {
	case regs.Vector < gate.NumExceptions:
		if h := exceptionHandlers[regs.Vector]; h != nil {
			h(regs)
			return
		}

		fatal(regs, errUnhandledException)
	case regs.Vector == uint32(SyscallVector):
		syscallFn(regs)
	case regs.Vector < gate.NumVectors:
		line, ok := irq.LineForVector(gate.Vector(regs.Vector))
		if !ok {
			fatal(regs, errUnexpectedTrap)
			return
		}

		if h := irqHandlers[line]; h != nil {
			h(regs)
		}
		eoiFn(line)
	default:
		fatal(regs, errUnexpectedTrap)
	}
}

// fatal reports the trap and the saved registers and then halts.
func fatal(regs *gate.Registers, err *kernel.Error) {
	if regs.Vector < gate.NumExceptions {
		kfmt.Fprintf(&trapLog, "%s exception (vector %d)\n", exceptionNames[regs.Vector], regs.Vector)
	} else {
		kfmt.Fprintf(&trapLog, "trap on vector 0x%x\n", regs.Vector)
	}

	if regs.HasErrorCode() {
		kfmt.Fprintf(&trapLog, "error code: 0x%8x\n", regs.ErrorCode)
	}

	regs.DumpTo(&trapLog)
	panicFn(err)
}
