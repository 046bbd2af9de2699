// Package shell implements the built-in kernel command interpreter.
package shell

import (
	"reacronium/device/pit"
	"reacronium/kernel/hal"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/mem/heap"
	"reacronium/kernel/syscall"
)

type command struct {
	name string

	// help is the command description as listed by the help command.
	help string

	run func()
}

var (
	commands []command

	// Collaborators are mocked by tests.
	clearFn       = clearTerminal
	heapInfoFn    = heap.Info
	activeTimerFn = pit.Active
	visitFn       = syscall.Visit
	panicFn       = kfmt.Panic
)

func init() {
	commands = []command{
		{"help", "help      - show this help", runHelp},
		{"clear", "clear     - clear screen", func() { clearFn() }},
		{"heapinfo", "heapinfo  - show kernel heap info", func() { heapInfoFn(kfmt.GetOutputSink()) }},
		{"timerinfo", "timerinfo - show PIT timer info", runTimerInfo},
		{"syscalls", "syscalls  - list registered system calls", runSyscalls},
		{"panic", "panic     - trigger kernel panic", func() { panicFn("Manual panic triggered from shell.") }},
	}
}

// Execute runs the command in line. Leading blanks are ignored and an empty
// line is a no-op. The remaining text must match a command name exactly.
func Execute(line []byte) {
	line = trimLeft(line)
	if len(line) == 0 {
		return
	}

	for _, cmd := range commands {
		if cmd.name == string(line) {
			cmd.run()
			return
		}
	}

	kfmt.Printf("Unknown command: %s\n", line)
	kfmt.Printf("Type 'help' for list of commands.\n")
}

func runHelp() {
	kfmt.Printf("\nlibreacronium shell commands:\n")
	for _, cmd := range commands {
		kfmt.Printf("  %s\n", cmd.help)
	}
}

func runTimerInfo() {
	timer := activeTimerFn()
	if timer == nil {
		kfmt.Printf("PIT timer not initialized\n")
		return
	}
	timer.Info(kfmt.GetOutputSink())
}

func runSyscalls() {
	kfmt.Printf("registered system calls:\n")
	visitFn(func(num uint32, name string) bool {
		kfmt.Printf("  %2d %s\n", num, name)
		return true
	})
}

func clearTerminal() {
	if term := hal.ActiveTerminal(); term != nil {
		term.Clear()
	}
}

func trimLeft(line []byte) []byte {
	for len(line) != 0 && isBlank(line[0]) {
		line = line[1:]
	}
	return line
}

func isBlank(ch byte) bool {
	return ch == ' ' || ch == '\t'
}
