// Package syscall implements the dispatch table behind the int 0x80 software
// trap.
//
// The calling convention is fixed: EAX carries the syscall number on entry
// and the return value on exit while EBX, ECX and EDX carry the first three
// arguments. Handlers only ever see the saved register context; they read
// their arguments from it and return the value that is written back to EAX
// before the trap returns to the caller.
package syscall

import (
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"reacronium/kernel/gate"
	"reacronium/kernel/kfmt"
)

// MaxSyscalls is the capacity of a syscall table. Valid syscall numbers are
// in the range [0, MaxSyscalls).
const MaxSyscalls = 32

// Well-known syscall numbers.
const (
	SysExit  uint32 = 1
	SysWrite uint32 = 2
	SysRead  uint32 = 3

	// SysOpen and SysClose are reserved but have no implementation.
	SysOpen  uint32 = 4
	SysClose uint32 = 5
)

// Failure is stored in EAX when a trap requests a syscall number that has no
// registered handler.
const Failure uint32 = 0xffffffff

// Handler services a single syscall. It receives the saved register context
// of the trapping code and returns the value for EAX. The context must not be
// retained after the handler returns.
type Handler func(regs *gate.Registers) uint32

type entry struct {
	name string

	// fn is nil for unregistered slots.
	fn Handler
}

// Table maps syscall numbers to handlers. The zero value is an empty table
// where every slot is unregistered.
type Table struct {
	entries [MaxSyscalls]entry
}

var (
	// Interrupt flag accessors are mocked by tests and are automatically
	// inlined by the compiler.
	interruptsEnabledFn = cpu.InterruptsEnabled
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts

	errOutOfRange = &kernel.Error{Module: "syscall", Message: "syscall number out of range"}
	errNilHandler = &kernel.Error{Module: "syscall", Message: "nil syscall handler"}

	// defaultTable is the table consulted by the int 0x80 trap.
	defaultTable Table
)

// Register installs h as the handler for syscall num, replacing any previous
// registration. Registration may happen after interrupts have been enabled;
// the slot update runs with interrupts disabled so a concurrent trap never
// observes a half-written entry.
func (t *Table) Register(num uint32, name string, h Handler) *kernel.Error {
	if num >= MaxSyscalls {
		return errOutOfRange
	}

	if h == nil {
		return errNilHandler
	}

	restore := suspendInterrupts()
	t.entries[num] = entry{name: name, fn: h}
	resumeInterrupts(restore)

	return nil
}

// Lookup returns the name and handler registered for num. The returned
// boolean is false if num is out of range or no handler is registered.
func (t *Table) Lookup(num uint32) (string, Handler, bool) {
	if num >= MaxSyscalls || t.entries[num].fn == nil {
		return "", nil, false
	}

	return t.entries[num].name, t.entries[num].fn, true
}

// Dispatch invokes the handler for the syscall number in regs.EAX and stores
// its result in regs.EAX. If no handler is registered, regs.EAX is set to
// Failure.
func (t *Table) Dispatch(regs *gate.Registers) {
	if regs.EAX >= MaxSyscalls || t.entries[regs.EAX].fn == nil {
		regs.EAX = Failure
		return
	}

	regs.EAX = t.entries[regs.EAX].fn(regs)
}

// Visit invokes fn for each registered syscall in ascending number order.
// Visit stops early if fn returns false.
func (t *Table) Visit(fn func(num uint32, name string) bool) {
	for num := uint32(0); num < MaxSyscalls; num++ {
		if t.entries[num].fn == nil {
			continue
		}

		if !fn(num, t.entries[num].name) {
			return
		}
	}
}

// Reset unregisters all handlers.
func (t *Table) Reset() {
	restore := suspendInterrupts()
	for i := range t.entries {
		t.entries[i] = entry{}
	}
	resumeInterrupts(restore)
}

// suspendInterrupts disables interrupts and reports whether they were
// enabled beforehand.
func suspendInterrupts() bool {
	enabled := interruptsEnabledFn()
	if enabled {
		disableInterruptsFn()
	}
	return enabled
}

func resumeInterrupts(restore bool) {
	if restore {
		enableInterruptsFn()
	}
}

// Register installs h as the handler for syscall num in the kernel syscall
// table.
func Register(num uint32, name string, h Handler) *kernel.Error {
	return defaultTable.Register(num, name, h)
}

// Visit iterates the registered entries of the kernel syscall table.
func Visit(fn func(num uint32, name string) bool) {
	defaultTable.Visit(fn)
}

// Dispatch services a syscall trap using the kernel syscall table.
func Dispatch(regs *gate.Registers) {
	defaultTable.Dispatch(regs)
}

// Init clears the kernel syscall table and registers the basic syscalls.
func Init() *kernel.Error {
	defaultTable.Reset()

	for _, sc := range []struct {
		num  uint32
		name string
		fn   Handler
	}{
		{SysExit, "exit", sysExit},
		{SysWrite, "write", sysWrite},
		{SysRead, "read", sysRead},
	} {
		if err := defaultTable.Register(sc.num, sc.name, sc.fn); err != nil {
			return err
		}
	}

	kfmt.Printf("Syscall subsystem initialized\n")
	return nil
}
