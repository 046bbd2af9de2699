package kmain

import (
	"reacronium/device/pit"
	"reacronium/device/video/console"
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"reacronium/kernel/hal"
	"reacronium/kernel/hal/multiboot"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/mem/heap"
	"reacronium/kernel/shell"
	"reacronium/kernel/syscall"
	"reacronium/kernel/trap"

	linecon "reacronium/kernel/console"
)

const (
	// maxLineLen is the size of the buffer used for shell input.
	maxLineLen = 128

	// allocRetryMS is the delay before retrying a failed input buffer
	// allocation.
	allocRetryMS = 100
)

// coloredWriter is implemented by terminals that support per-write colors.
type coloredWriter interface {
	WriteColored(data []byte, fg, bg uint8) (int, error)
}

var (
	bannerName = []byte("\nlibreacronium\n")
	okMsg      = []byte("OK")

	// Subsystem entrypoints are mocked by tests.
	initTerminalFn     = hal.InitTerminal
	trapInitFn         = trap.Init
	syscallInitFn      = syscall.Init
	detectHardwareFn   = hal.DetectHardware
	enableInterruptsFn = cpu.EnableInterrupts
	waitForInterruptFn = cpu.WaitForInterrupt
	showPromptFn       = linecon.ShowPrompt
	readLineFn         = linecon.ReadLine
	executeFn          = shell.Execute
	freeFn             = heap.Free
	sleepFn            = pit.SleepMS
	panicFn            = kfmt.Panic
	terminalFn         = activeTerminal

	// keepRunning is replaced by tests to stop the shell loop.
	keepRunning = func() bool { return true }

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT
// and setting up a a minimal g0 struct that allows Go code using the 4K stack
// allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by the
// bootloader and the addresses of the assembly trap entry stubs.
//
// Kmain is not expected to return. If it does, it panics.
//
//go:noinline
func Kmain(multibootInfoPtr uintptr, entries *trap.Entries) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	if err := boot(entries); err != nil {
		panicFn(err)
		return
	}

	for keepRunning() {
		runShellOnce()
	}

	// Use panicFn instead of panic to prevent the compiler from treating
	// kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}

// boot brings up the kernel subsystems and enables interrupts.
func boot(entries *trap.Entries) *kernel.Error {
	if err := initTerminalFn(); err != nil {
		return err
	}

	kfmt.Printf("IDT Initialization... ")
	if err := trapInitFn(entries); err != nil {
		return err
	}
	printColored(okMsg, console.Green, console.Black)
	kfmt.Printf("\n")

	if err := syscallInitFn(); err != nil {
		return err
	}

	detectHardwareFn()

	printColored(bannerName, console.Green, console.Red)
	kfmt.Printf("2024-2026 (c) Acronium Foundation\n")

	enableInterruptsFn()
	return nil
}

// runShellOnce reads and executes a single command line and then idles until
// the next interrupt.
func runShellOnce() {
	showPromptFn()

	line, err := readLineFn(maxLineLen)
	if err != nil {
		sleepFn(allocRetryMS)
	} else {
		executeFn(line)
		if err = freeFn(line); err != nil {
			panicFn(err)
		}
	}

	waitForInterruptFn()
}

// printColored writes msg with the requested colors if the active terminal
// supports them or as plain kernel output otherwise.
func printColored(msg []byte, fg, bg uint8) {
	if term := terminalFn(); term != nil {
		term.WriteColored(msg, fg, bg)
		return
	}

	kfmt.Printf("%s", msg)
}

func activeTerminal() coloredWriter {
	if term := hal.ActiveTerminal(); term != nil {
		return term
	}
	return nil
}
