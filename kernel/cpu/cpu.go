// Package cpu exposes the privileged x86 instructions used by the kernel.
// Every function is implemented in assembly; callers that need to be tested
// should reach them through package-level function variables.
package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled returns true if the IF flag is set in EFLAGS.
func InterruptsEnabled() bool

// WaitForInterrupt enables interrupts and halts the CPU until the next
// interrupt arrives. It returns after that interrupt has been serviced.
func WaitForInterrupt()

// Halt disables interrupts and stops instruction execution. Halt never
// returns.
func Halt()

// LoadIDT loads the interrupt descriptor table register with the 6-byte
// table pointer located at descriptor.
func LoadIDT(descriptor uintptr)

// PortWriteByte writes a uint8 value to the requested port. The port number
// is not validated.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port. The port number
// is not validated.
func PortReadByte(port uint16) uint8
