// Package console implements the line-oriented kernel console used by the
// shell: it prints the prompt and assembles input lines from keyboard
// events, echoing them to the kernel terminal.
package console

import (
	"reacronium/device/keyboard"
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/mem"
	"reacronium/kernel/mem/heap"
)

// Prompt is printed before reading each command line.
const Prompt = "$ "

var (
	// Collaborators are mocked by tests and are automatically inlined by
	// the compiler.
	tryReadFn          = keyboard.TryRead
	waitForInterruptFn = cpu.WaitForInterrupt
	allocFn            = heap.Alloc
)

// ShowPrompt prints the command prompt.
func ShowPrompt() {
	kfmt.Printf(Prompt)
}

// ReadLine blocks until a line terminated by '\n' or '\r' has been typed and
// returns it without the terminator. The line is stored in a maxLen byte
// buffer obtained from the kernel heap; characters past maxLen are dropped.
// The caller must release the returned buffer with heap.Free.
//
// Printable characters are echoed as they are typed and backspace removes the
// last character from both the buffer and the screen. Other control
// characters are ignored.
func ReadLine(maxLen mem.Size) ([]byte, *kernel.Error) {
	buf, err := allocFn(maxLen)
	if err != nil {
		return nil, err
	}

	var n int
	for {
		ch, ok := tryReadFn()
		if !ok {
			waitForInterruptFn()
			continue
		}

		switch {
		case ch == '\n' || ch == '\r':
			kfmt.Printf("\n")
			return buf[:n], nil
		case ch == '\b':
			if n > 0 {
				n--
				kfmt.Printf("\b")
			}
		case ch == '\t':
			ch = ' '
			fallthrough
		case ch >= ' ' && ch < 0x7f:
			if n < len(buf) {
				buf[n] = ch
				n++
				kfmt.Printf("%c", ch)
			}
		}
	}
}
