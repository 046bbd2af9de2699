package trap

import (
	"bytes"
	"reacronium/kernel"
	"reacronium/kernel/gate"
	"reacronium/kernel/irq"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/syscall"
	"strings"
	"testing"
)

func restoreDispatchFns() {
	entryFn = gate.Entry
	unmaskFn = irq.Unmask
	maskFn = irq.Mask
	eoiFn = irq.EOI
	syscallFn = syscall.Dispatch
	panicFn = kfmt.Panic
	defaultEntry = 0

	for i := range exceptionHandlers {
		exceptionHandlers[i] = nil
	}
	for i := range irqHandlers {
		irqHandlers[i] = nil
	}
}

func gateAt(addr uintptr) gate.Descriptor {
	return gate.Descriptor{
		OffsetLow:  uint16(addr),
		Selector:   gate.KernelCodeSelector,
		TypeAttr:   gate.InterruptGate,
		OffsetHigh: uint16(addr >> 16),
	}
}

func TestHandleException(t *testing.T) {
	defer restoreDispatchFns()

	panicFn = func(e interface{}) {
		t.Fatalf("unexpected panic: %v", e)
	}

	var got *gate.Registers
	if err := HandleException(gate.Breakpoint, func(regs *gate.Registers) {
		got = regs
		regs.EIP++
	}); err != nil {
		t.Fatal(err)
	}

	regs := gate.Registers{Vector: uint32(gate.Breakpoint), EIP: 0x100}
	Dispatch(&regs)

	if got != &regs {
		t.Fatal("expected the exception handler to receive the saved register context")
	}
	if regs.EIP != 0x101 {
		t.Fatalf("expected handler modifications to be visible to the caller; EIP = 0x%x", regs.EIP)
	}

	if err := HandleException(gate.NumExceptions, func(*gate.Registers) {}); err != errInvalidException {
		t.Fatalf("expected error %v; got %v", errInvalidException, err)
	}
}

func TestUnhandledException(t *testing.T) {
	defer func() {
		restoreDispatchFns()
		kfmt.SetOutputSink(nil)
	}()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	specs := []struct {
		regs     gate.Registers
		expLines []string
	}{
		{
			gate.Registers{Vector: uint32(gate.PageFaultException), ErrorCode: 2, EIP: 0xdeadbeef},
			[]string{
				"[trap] Page fault exception (vector 14)",
				"[trap] error code: 0x00000002",
				"[trap] EAX = 00000000 EBX = 00000000 ECX = 00000000 EDX = 00000000",
			},
		},
		{
			gate.Registers{Vector: uint32(gate.DivideByZero), ErrorCode: 0},
			[]string{
				"[trap] Divide-by-zero exception (vector 0)",
				"[trap] EAX = 00000000 EBX = 00000000 ECX = 00000000 EDX = 00000000",
			},
		},
	}

	for specIndex, spec := range specs {
		buf.Reset()

		var panicErr interface{}
		panicFn = func(e interface{}) { panicErr = e }

		// Registering and then clearing a handler restores the default.
		HandleException(gate.Vector(spec.regs.Vector), func(*gate.Registers) {})
		HandleException(gate.Vector(spec.regs.Vector), nil)

		Dispatch(&spec.regs)

		if panicErr != errUnhandledException {
			t.Errorf("[spec %d] expected panic with %v; got %v", specIndex, errUnhandledException, panicErr)
		}

		lines := strings.Split(buf.String(), "\n")
		for i, exp := range spec.expLines {
			if i >= len(lines) || lines[i] != exp {
				t.Errorf("[spec %d] expected output line %d to be %q; got output:\n%s", specIndex, i, exp, buf.String())
				break
			}
		}

		if !strings.Contains(buf.String(), "[trap] EIP = ") {
			t.Errorf("[spec %d] expected the register dump to include EIP; got:\n%s", specIndex, buf.String())
		}
	}
}

func TestDispatchIRQ(t *testing.T) {
	defer restoreDispatchFns()

	var events []string
	entryFn = func(gate.Vector) (gate.Descriptor, *kernel.Error) { return gateAt(0x2000), nil }
	unmaskFn = func(irq.Line) *kernel.Error { return nil }
	eoiFn = func(line irq.Line) *kernel.Error {
		events = append(events, "eoi")
		if line != irq.Timer {
			t.Errorf("expected EOI for line %d; got %d", irq.Timer, line)
		}
		return nil
	}
	panicFn = func(e interface{}) { t.Fatalf("unexpected panic: %v", e) }

	// EOI is sent even when no handler is registered.
	Dispatch(&gate.Registers{Vector: uint32(TimerVector)})
	if len(events) != 1 || events[0] != "eoi" {
		t.Fatalf("expected an EOI without a registered handler; got %v", events)
	}

	events = events[:0]
	if err := HandleIRQ(irq.Timer, func(*gate.Registers) {
		events = append(events, "handler")
	}); err != nil {
		t.Fatal(err)
	}

	Dispatch(&gate.Registers{Vector: uint32(TimerVector)})
	if len(events) != 2 || events[0] != "handler" || events[1] != "eoi" {
		t.Fatalf("expected handler to run before the EOI; got %v", events)
	}
}

func TestDispatchSlaveIRQ(t *testing.T) {
	defer restoreDispatchFns()

	var gotLine irq.Line
	eoiFn = func(line irq.Line) *kernel.Error {
		gotLine = line
		return nil
	}

	Dispatch(&gate.Registers{Vector: uint32(irq.Line(8).Vector())})
	if gotLine != 8 {
		t.Fatalf("expected EOI for line 8; got %d", gotLine)
	}
}

func TestDispatchSyscall(t *testing.T) {
	defer restoreDispatchFns()

	var dispatched bool
	syscallFn = func(regs *gate.Registers) {
		dispatched = true
		regs.EAX = 7
	}
	eoiFn = func(irq.Line) *kernel.Error {
		t.Fatal("unexpected EOI for a software trap")
		return nil
	}

	regs := gate.Registers{Vector: uint32(SyscallVector), EAX: 2}
	Dispatch(&regs)

	if !dispatched || regs.EAX != 7 {
		t.Fatalf("expected the syscall table to service vector 0x80; dispatched: %t, EAX: %d", dispatched, regs.EAX)
	}
}

func TestDispatchUnexpectedTrap(t *testing.T) {
	defer func() {
		restoreDispatchFns()
		kfmt.SetOutputSink(nil)
	}()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	eoiFn = func(irq.Line) *kernel.Error {
		t.Fatal("unexpected EOI")
		return nil
	}

	for _, vec := range []uint32{0x30, 0x7f, 0x81, 0xff, 0x100, 0xffffffff} {
		buf.Reset()

		var panicErr interface{}
		panicFn = func(e interface{}) { panicErr = e }

		Dispatch(&gate.Registers{Vector: vec})

		if panicErr != errUnexpectedTrap {
			t.Errorf("[vector 0x%x] expected panic with %v; got %v", vec, errUnexpectedTrap, panicErr)
		}

		if !strings.HasPrefix(buf.String(), "[trap] trap on vector 0x") {
			t.Errorf("[vector 0x%x] unexpected output:\n%s", vec, buf.String())
		}
	}
}

func TestHandleIRQ(t *testing.T) {
	defer restoreDispatchFns()

	defaultEntry = 0x3000
	noop := func(*gate.Registers) {}

	specs := []struct {
		line      irq.Line
		desc      gate.Descriptor
		expErr    *kernel.Error
		expUnmask bool
	}{
		{irq.Timer, gateAt(0x2000), nil, true},
		{irq.Keyboard, gateAt(0x2010), nil, true},
		{irq.Line(4), gate.Descriptor{}, errNoGate, false},
		{irq.Line(8), gateAt(0x3000), errNoGate, false},
		{irq.NumLines, gateAt(0x2000), errInvalidLine, false},
	}

	for specIndex, spec := range specs {
		var unmasked bool
		entryFn = func(vec gate.Vector) (gate.Descriptor, *kernel.Error) {
			if exp := spec.line.Vector(); vec != exp {
				t.Errorf("[spec %d] expected gate lookup for vector 0x%x; got 0x%x", specIndex, exp, vec)
			}
			return spec.desc, nil
		}
		unmaskFn = func(line irq.Line) *kernel.Error {
			unmasked = line == spec.line
			return nil
		}

		if err := HandleIRQ(spec.line, noop); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}

		if unmasked != spec.expUnmask {
			t.Errorf("[spec %d] expected line to be unmasked: %t; got %t", specIndex, spec.expUnmask, unmasked)
		}

		if spec.expErr == nil && irqHandlers[spec.line] == nil {
			t.Errorf("[spec %d] expected handler to be registered", specIndex)
		}
	}
}

func TestHandleIRQRelease(t *testing.T) {
	defer restoreDispatchFns()

	entryFn = func(gate.Vector) (gate.Descriptor, *kernel.Error) { return gateAt(0x2000), nil }
	unmaskFn = func(irq.Line) *kernel.Error { return nil }

	var masked []irq.Line
	maskFn = func(line irq.Line) *kernel.Error {
		masked = append(masked, line)
		return nil
	}

	if err := HandleIRQ(irq.Keyboard, func(*gate.Registers) {}); err != nil {
		t.Fatal(err)
	}

	if err := HandleIRQ(irq.Keyboard, nil); err != nil {
		t.Fatal(err)
	}

	if irqHandlers[irq.Keyboard] != nil {
		t.Error("expected the keyboard handler to be removed")
	}

	if len(masked) != 1 || masked[0] != irq.Keyboard {
		t.Errorf("expected the keyboard line to be masked; got %v", masked)
	}

	// A released line is still acknowledged
	var eoiLine = irq.Line(0xff)
	eoiFn = func(line irq.Line) *kernel.Error {
		eoiLine = line
		return nil
	}
	Dispatch(&gate.Registers{Vector: uint32(irq.Keyboard.Vector())})
	if eoiLine != irq.Keyboard {
		t.Errorf("expected EOI for line %d; got %d", irq.Keyboard, eoiLine)
	}
}
