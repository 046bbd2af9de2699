package kfmt

import (
	"reacronium/kernel"
	"reacronium/kernel/cpu"
)

// Text attributes used by the panic screen. They match the EGA palette
// indices understood by the console driver.
const (
	colorBlack uint8 = 0
	colorRed   uint8 = 4
	colorWhite uint8 = 15
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}

	panicBanner = []byte("KERNEL PANIC!\n")
)

// panicScreen is implemented by output sinks that can take over the screen
// when the kernel panics.
type panicScreen interface {
	Clear()
	DisableCursor()
	SetColors(fg, bg uint8)
}

// Panic is the kernel's only terminal state. It reports the supplied error
// (if not nil) and halts the CPU with interrupts disabled. Calls to Panic
// never return. If the output sink is a screen, Panic clears it, hides the
// cursor and prints a colored banner; otherwise it writes a plain text
// report. Panic also works as a redirection target for calls to panic()
// (resolved via runtime.gopanic).
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	if scr, ok := outputSink.(panicScreen); ok {
		scr.Clear()
		scr.DisableCursor()
		scr.SetColors(colorWhite, colorRed)
		doWrite(outputSink, panicBanner)
		scr.SetColors(colorBlack, colorWhite)
		if err != nil {
			Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
		}
		Printf("*** kernel panic: system halted ***")
	} else {
		Printf("\n-----------------------------------\n")
		if err != nil {
			Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
		}
		Printf("*** kernel panic: system halted ***")
		Printf("\n-----------------------------------\n")
	}

	cpuHaltFn()
}

// panicString serves as a redirect target for runtime.throw
//go:redirect-from runtime.throw
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
