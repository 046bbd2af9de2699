package pit

import (
	"bytes"
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"reacronium/kernel/hal/multiboot"
	"reacronium/kernel/irq"
	"reacronium/kernel/trap"
	"testing"
)

type portWrite struct {
	port uint16
	val  uint8
}

func restoreFns() {
	portWriteByteFn = cpu.PortWriteByte
	waitForInterruptFn = cpu.WaitForInterrupt
	handleIRQFn = trap.HandleIRQ
	visitCmdLineFn = multiboot.VisitBootCmdLine
	timer = nil
}

func cmdLine(opts ...[2]string) func(multiboot.CmdLineVisitor) {
	return func(visitor multiboot.CmdLineVisitor) {
		for _, opt := range opts {
			if !visitor(opt[0], opt[1]) {
				return
			}
		}
	}
}

func TestDriverInit(t *testing.T) {
	defer restoreFns()

	specs := []struct {
		opts       [][2]string
		expFreq    uint32
		expDivisor uint16
	}{
		{nil, 1000, 1193},
		{[][2]string{{"pitHz", "100"}}, 100, 11931},
		{[][2]string{{"pitHz", "19"}}, 19, 62799},
		{[][2]string{{"pitHz", "10000"}}, 10000, 119},
		{[][2]string{{"pitHz", "18"}}, 1000, 1193},
		{[][2]string{{"pitHz", "10001"}}, 1000, 1193},
		{[][2]string{{"pitHz", "fast"}}, 1000, 1193},
		{[][2]string{{"pitHz", ""}}, 1000, 1193},
		{[][2]string{{"quiet", "quiet"}, {"pitHz", "250"}}, 250, 4772},
	}

	for specIndex, spec := range specs {
		var (
			writes  []portWrite
			irqLine = irq.Line(0xff)
			buf     bytes.Buffer
			drv     Driver
		)

		visitCmdLineFn = cmdLine(spec.opts...)
		portWriteByteFn = func(port uint16, val uint8) {
			writes = append(writes, portWrite{port, val})
		}
		handleIRQFn = func(line irq.Line, h trap.IRQHandler) *kernel.Error {
			irqLine = line
			return nil
		}

		if err := drv.DriverInit(&buf); err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}

		if drv.Frequency() != spec.expFreq {
			t.Errorf("[spec %d] expected frequency %d; got %d", specIndex, spec.expFreq, drv.Frequency())
		}

		exp := []portWrite{
			{0x43, 0x36},
			{0x40, uint8(spec.expDivisor)},
			{0x40, uint8(spec.expDivisor >> 8)},
		}
		if len(writes) != len(exp) || writes[0] != exp[0] || writes[1] != exp[1] || writes[2] != exp[2] {
			t.Errorf("[spec %d] expected port writes %v; got %v", specIndex, exp, writes)
		}

		if irqLine != irq.Timer {
			t.Errorf("[spec %d] expected handler for IRQ line %d; got %d", specIndex, irq.Timer, irqLine)
		}

		if Active() != &drv {
			t.Errorf("[spec %d] expected driver to become the active timer", specIndex)
		}
	}
}

func TestDriverInitError(t *testing.T) {
	defer restoreFns()

	expErr := &kernel.Error{Module: "test", Message: "no gate"}
	visitCmdLineFn = cmdLine()
	portWriteByteFn = func(uint16, uint8) {}
	handleIRQFn = func(irq.Line, trap.IRQHandler) *kernel.Error { return expErr }

	var drv Driver
	if err := drv.DriverInit(&bytes.Buffer{}); err != expErr {
		t.Fatalf("expected error %v; got %v", expErr, err)
	}

	if Active() != nil {
		t.Fatal("expected a failed driver not to become the active timer")
	}
}

func TestTicksAndSleep(t *testing.T) {
	defer restoreFns()

	drv := &Driver{frequency: 100, divisor: 11931}

	var waits int
	waitForInterruptFn = func() {
		waits++
		drv.handleTick(nil)
	}

	// 25ms at 100Hz rounds up to 3 ticks
	drv.SleepMS(25)
	if waits != 3 || drv.Ticks() != 3 {
		t.Fatalf("expected sleep to wait for 3 ticks; waited for %d (ticks: %d)", waits, drv.Ticks())
	}

	waits = 0
	drv.SleepMS(0)
	if waits != 0 {
		t.Fatalf("expected a zero sleep to return immediately; waited for %d ticks", waits)
	}

	if got := drv.UptimeMS(); got != 30 {
		t.Fatalf("expected uptime to be 30ms; got %d", got)
	}

	// Package level sleep is a no-op without an active timer
	SleepMS(100)
	if waits != 0 {
		t.Fatalf("expected SleepMS without an active timer to return immediately")
	}

	timer = drv
	SleepMS(10)
	if waits != 1 {
		t.Fatalf("expected SleepMS to use the active timer; waited for %d ticks", waits)
	}
}

func TestInfo(t *testing.T) {
	drv := &Driver{frequency: 1000, divisor: 1193, ticks: 2500}

	var buf bytes.Buffer
	drv.Info(&buf)

	exp := "PIT frequency: 1000 Hz (divisor 1193)\nticks: 2500\nuptime: 2500 ms\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output %q; got %q", exp, got)
	}
}

func TestDriverRegistration(t *testing.T) {
	drv := probeForPIT()
	if drv == nil || drv.DriverName() != "pit" {
		t.Fatal("expected probe to return the pit driver")
	}

	if major, minor, patch := drv.DriverVersion(); major != 0 || minor != 0 || patch != 1 {
		t.Fatalf("unexpected driver version %d.%d.%d", major, minor, patch)
	}
}
