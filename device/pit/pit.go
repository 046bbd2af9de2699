// Package pit drives channel 0 of the 8253/8254 programmable interval timer,
// which raises IRQ0 at a fixed rate and provides the kernel tick count.
package pit

import (
	"io"
	"reacronium/device"
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"reacronium/kernel/gate"
	"reacronium/kernel/hal/multiboot"
	"reacronium/kernel/irq"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/trap"
	"sync/atomic"
)

const (
	channel0Port uint16 = 0x40
	commandPort  uint16 = 0x43

	// Channel 0, lobyte/hibyte access, mode 3 (square wave), binary.
	cmdChannel0SquareWave uint8 = 0x36

	// BaseFrequency is the input clock of the PIT in Hz.
	BaseFrequency = 1193182

	// DefaultFrequency is the tick rate used unless the pitHz boot option
	// selects a different one.
	DefaultFrequency = 1000

	// The supported tick rate range. Rates below MinFrequency do not fit
	// a 16-bit divisor.
	MinFrequency = 19
	MaxFrequency = 10000
)

// Driver programs the PIT and counts timer ticks.
type Driver struct {
	// ticks is accessed atomically and must stay the first field so it is
	// 64-bit aligned on 386.
	ticks uint64

	frequency uint32
	divisor   uint16
}

var (
	// Hardware access is mocked by tests and is automatically inlined by
	// the compiler.
	portWriteByteFn    = cpu.PortWriteByte
	waitForInterruptFn = cpu.WaitForInterrupt
	handleIRQFn        = trap.HandleIRQ
	visitCmdLineFn     = multiboot.VisitBootCmdLine

	// timer is the initialized driver instance.
	timer *Driver
)

// Ticks returns the number of timer interrupts serviced since the timer was
// initialized.
func (d *Driver) Ticks() uint64 {
	return atomic.LoadUint64(&d.ticks)
}

// Frequency returns the programmed tick rate in Hz.
func (d *Driver) Frequency() uint32 {
	return d.frequency
}

// UptimeMS returns the elapsed time in milliseconds since the timer was
// initialized.
func (d *Driver) UptimeMS() uint64 {
	if d.frequency == 0 {
		return 0
	}
	return d.Ticks() * 1000 / uint64(d.frequency)
}

// SleepMS blocks for at least ms milliseconds, halting the CPU between timer
// interrupts. Interrupts are enabled while sleeping.
func (d *Driver) SleepMS(ms uint32) {
	if ms == 0 || d.frequency == 0 {
		return
	}

	wait := (uint64(ms)*uint64(d.frequency) + 999) / 1000
	deadline := d.Ticks() + wait
	for d.Ticks() < deadline {
		waitForInterruptFn()
	}
}

// Info writes the timer configuration and tick count to w.
func (d *Driver) Info(w io.Writer) {
	kfmt.Fprintf(w, "PIT frequency: %d Hz (divisor %d)\n", d.frequency, d.divisor)
	kfmt.Fprintf(w, "ticks: %d\n", d.Ticks())
	kfmt.Fprintf(w, "uptime: %d ms\n", d.UptimeMS())
}

func (d *Driver) handleTick(_ *gate.Registers) {
	atomic.AddUint64(&d.ticks, 1)
}

// DriverName returns the name of this driver.
func (d *Driver) DriverName() string {
	return "pit"
}

// DriverVersion returns the version of this driver.
func (d *Driver) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit programs channel 0 with the configured tick rate and starts
// servicing IRQ0.
func (d *Driver) DriverInit(w io.Writer) *kernel.Error {
	d.frequency = configuredFrequency()
	d.divisor = uint16(BaseFrequency / d.frequency)

	portWriteByteFn(commandPort, cmdChannel0SquareWave)
	portWriteByteFn(channel0Port, uint8(d.divisor))
	portWriteByteFn(channel0Port, uint8(d.divisor>>8))

	if err := handleIRQFn(irq.Timer, d.handleTick); err != nil {
		return err
	}

	timer = d
	kfmt.Fprintf(w, "tick rate %d Hz\n", d.frequency)
	return nil
}

// configuredFrequency returns the tick rate selected by the pitHz boot
// option or DefaultFrequency if the option is missing or out of range.
func configuredFrequency() uint32 {
	freq := uint32(DefaultFrequency)
	visitCmdLineFn(func(key, value string) bool {
		if key != "pitHz" {
			return true
		}

		if v, ok := parseUint(value); ok && v >= MinFrequency && v <= MaxFrequency {
			freq = v
		}
		return false
	})

	return freq
}

func parseUint(s string) (uint32, bool) {
	if len(s) == 0 || len(s) > 9 {
		return 0, false
	}

	var v uint32
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		v = v*10 + uint32(s[i]-'0')
	}
	return v, true
}

// Active returns the initialized timer or nil if the timer has not been
// initialized.
func Active() *Driver {
	return timer
}

// SleepMS blocks for at least ms milliseconds using the active timer. It
// returns immediately if the timer has not been initialized.
func SleepMS(ms uint32) {
	if timer != nil {
		timer.SleepMS(ms)
	}
}

func probeForPIT() device.Driver {
	return &Driver{}
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderNormal,
		Probe: probeForPIT,
	})
}
