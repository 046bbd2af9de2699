package kfmt

import (
	"bytes"
	"errors"
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"testing"
)

// screenRecorder is a panicScreen that logs the calls it receives.
type screenRecorder struct {
	bytes.Buffer
	cleared        bool
	cursorDisabled bool
	colors         [][2]uint8
}

func (s *screenRecorder) Clear() {
	s.cleared = true
	s.Reset()
}

func (s *screenRecorder) DisableCursor() { s.cursorDisabled = true }

func (s *screenRecorder) SetColors(fg, bg uint8) {
	s.colors = append(s.colors, [2]uint8{fg, bg})
}

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	specs := []struct {
		descr string
		arg   interface{}
		exp   string
	}{
		{
			"with *kernel.Error",
			&kernel.Error{Module: "test", Message: "panic test"},
			"\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"with error",
			errors.New("go error"),
			"\n-----------------------------------\n[rt] unrecoverable error: go error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"with string",
			"string error",
			"\n-----------------------------------\n[rt] unrecoverable error: string error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"without error",
			nil,
			"\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			cpuHaltCalled = false
			var buf bytes.Buffer
			SetOutputSink(&buf)

			Panic(spec.arg)

			if got := buf.String(); got != spec.exp {
				t.Fatalf("expected to get:\n%q\ngot:\n%q", spec.exp, got)
			}

			if !cpuHaltCalled {
				t.Fatal("expected cpu.Halt() to be called by Panic")
			}
		})
	}
}

func TestPanicOnScreen(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	scr := &screenRecorder{}
	scr.WriteString("previous screen contents")
	SetOutputSink(scr)

	Panic(&kernel.Error{Module: "shell", Message: "Manual panic triggered from shell."})

	exp := "KERNEL PANIC!\n[shell] unrecoverable error: Manual panic triggered from shell.\n*** kernel panic: system halted ***"
	if got := scr.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}

	if !scr.cleared || !scr.cursorDisabled {
		t.Fatalf("expected screen to be cleared (%t) and the cursor disabled (%t)", scr.cleared, scr.cursorDisabled)
	}

	expColors := [][2]uint8{{colorWhite, colorRed}, {colorBlack, colorWhite}}
	if len(scr.colors) != len(expColors) || scr.colors[0] != expColors[0] || scr.colors[1] != expColors[1] {
		t.Fatalf("expected color changes %v; got %v", expColors, scr.colors)
	}

	if !cpuHaltCalled {
		t.Fatal("expected cpu.Halt() to be called by Panic")
	}
}
