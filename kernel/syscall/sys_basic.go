package syscall

import (
	"reacronium/kernel/gate"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/mem"
)

// File descriptors accepted by write.
const (
	Stdout uint32 = 1
	Stderr uint32 = 2
)

// userByteFn reads a single byte of a caller supplied buffer. It is mocked
// by tests as host pointers do not fit in the 32-bit argument registers.
var userByteFn = readUserByte

// readUserByte returns the byte at addr. The buffer is read one byte at a
// time as a count taken from a register may exceed the largest slice length
// on 32-bit targets.
func readUserByte(addr uintptr) byte {
	return mem.Overlay(addr, 1)[0]
}

// sysExit reports the exit code in EBX. There are no processes to tear down
// so control returns to the caller.
func sysExit(regs *gate.Registers) uint32 {
	kfmt.Printf("\nProcess exited with code: %d\n", regs.EBX)
	return 0
}

// sysWrite writes up to EDX bytes from the buffer at ECX to the console if
// EBX is Stdout or Stderr. Output stops at the first zero byte. The
// requested count is returned even when output stops early.
func sysWrite(regs *gate.Registers) uint32 {
	fd, count := regs.EBX, regs.EDX
	if fd != Stdout && fd != Stderr {
		return 0
	}

	for i := uint32(0); i < count; i++ {
		ch := userByteFn(uintptr(regs.ECX) + uintptr(i))
		if ch == 0 {
			break
		}
		kfmt.Printf("%c", ch)
	}

	return count
}

// sysRead has no input source attached and always reports 0 bytes read.
func sysRead(_ *gate.Registers) uint32 {
	return 0
}
