// Package keyboard implements a driver for the PS/2 keyboard controller. It
// translates scan code set 1 make codes into ASCII and queues them for the
// kernel console.
package keyboard

import (
	"io"
	"reacronium/device"
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"reacronium/kernel/gate"
	"reacronium/kernel/irq"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/trap"
	"sync/atomic"
)

const (
	dataPort   uint16 = 0x60
	statusPort uint16 = 0x64

	// statusOutputFull is set while a byte is waiting in the data port.
	statusOutputFull uint8 = 1 << 0

	// BufferSize is the capacity of the input queue. It must be a power
	// of 2.
	BufferSize = 128

	scanCodeRelease  = 0x80
	scanCodeExtended = 0xe0

	scanCodeLeftShift  = 0x2a
	scanCodeRightShift = 0x36
	scanCodeCapsLock   = 0x3a

	// maxDrain bounds the number of stale bytes discarded by DriverInit.
	maxDrain = 16
)

// none marks scan codes that do not produce a character.
const none = 0

var (
	normalMap = [...]byte{
		none, 0x1b, '1', '2', '3', '4', '5', '6', // 0x00
		'7', '8', '9', '0', '-', '=', '\b', '\t',
		'q', 'w', 'e', 'r', 't', 'y', 'u', 'i', // 0x10
		'o', 'p', '[', ']', '\n', none, 'a', 's',
		'd', 'f', 'g', 'h', 'j', 'k', 'l', ';', // 0x20
		'\'', '`', none, '\\', 'z', 'x', 'c', 'v',
		'b', 'n', 'm', ',', '.', '/', none, '*', // 0x30
		none, ' ', none, none, none, none, none, none,
		none, none, none, none, none, none, none, '7', // 0x40
		'8', '9', '-', '4', '5', '6', '+', '1',
		'2', '3', '0', '.', none, none, none, none, // 0x50
	}

	shiftMap = [...]byte{
		none, 0x1b, '!', '@', '#', '$', '%', '^', // 0x00
		'&', '*', '(', ')', '_', '+', '\b', '\t',
		'Q', 'W', 'E', 'R', 'T', 'Y', 'U', 'I', // 0x10
		'O', 'P', '{', '}', '\n', none, 'A', 'S',
		'D', 'F', 'G', 'H', 'J', 'K', 'L', ':', // 0x20
		'"', '~', none, '|', 'Z', 'X', 'C', 'V',
		'B', 'N', 'M', '<', '>', '?', none, '*', // 0x30
		none, ' ', none, none, none, none, none, none,
		none, none, none, none, none, none, none, '7', // 0x40
		'8', '9', '-', '4', '5', '6', '+', '1',
		'2', '3', '0', '.', none, none, none, none, // 0x50
	}

	// Hardware access is mocked by tests and is automatically inlined by
	// the compiler.
	portReadByteFn = cpu.PortReadByte
	handleIRQFn    = trap.HandleIRQ

	// active is the initialized driver instance.
	active *Driver
)

// Driver services IRQ1 and buffers the translated input. The IRQ handler is
// the only producer and the console the only consumer so the queue indices
// are updated with atomic stores instead of a lock.
type Driver struct {
	buf            [BufferSize]byte
	rIndex, wIndex uint32

	shift    bool
	capsLock bool
	extended bool

	// dropped counts characters discarded because the queue was full.
	dropped uint32
}

// TryRead dequeues the next character. It returns false if no input is
// pending.
func (d *Driver) TryRead() (byte, bool) {
	rIndex := atomic.LoadUint32(&d.rIndex)
	if rIndex == atomic.LoadUint32(&d.wIndex) {
		return 0, false
	}

	ch := d.buf[rIndex&(BufferSize-1)]
	atomic.StoreUint32(&d.rIndex, rIndex+1)
	return ch, true
}

// pending returns the number of queued characters.
func (d *Driver) pending() int {
	return int(atomic.LoadUint32(&d.wIndex) - atomic.LoadUint32(&d.rIndex))
}

func (d *Driver) enqueue(ch byte) {
	wIndex := atomic.LoadUint32(&d.wIndex)
	if wIndex-atomic.LoadUint32(&d.rIndex) == BufferSize {
		d.dropped++
		return
	}

	d.buf[wIndex&(BufferSize-1)] = ch
	atomic.StoreUint32(&d.wIndex, wIndex+1)
}

func (d *Driver) handleIRQ(_ *gate.Registers) {
	if portReadByteFn(statusPort)&statusOutputFull == 0 {
		return
	}

	if ch, ok := d.translate(portReadByteFn(dataPort)); ok {
		d.enqueue(ch)
	}
}

// translate updates the modifier state for scanCode and returns the
// character it produces, if any.
func (d *Driver) translate(scanCode uint8) (byte, bool) {
	if scanCode == scanCodeExtended {
		d.extended = true
		return 0, false
	}

	// Extended keys (arrows, right ctrl/alt, keypad enter) are ignored.
	if d.extended {
		d.extended = false
		return 0, false
	}

	if scanCode&scanCodeRelease != 0 {
		switch scanCode &^ scanCodeRelease {
		case scanCodeLeftShift, scanCodeRightShift:
			d.shift = false
		}
		return 0, false
	}

	switch scanCode {
	case scanCodeLeftShift, scanCodeRightShift:
		d.shift = true
		return 0, false
	case scanCodeCapsLock:
		d.capsLock = !d.capsLock
		return 0, false
	}

	if int(scanCode) >= len(normalMap) {
		return 0, false
	}

	ch := normalMap[scanCode]
	if d.shift {
		ch = shiftMap[scanCode]
	}

	if d.capsLock {
		switch {
		case ch >= 'a' && ch <= 'z':
			ch -= 'a' - 'A'
		case ch >= 'A' && ch <= 'Z':
			ch += 'a' - 'A'
		}
	}

	return ch, ch != none
}

// DriverName returns the name of this driver.
func (d *Driver) DriverName() string {
	return "ps2_keyboard"
}

// DriverVersion returns the version of this driver.
func (d *Driver) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit discards any bytes latched by the controller before the IDT was
// loaded and starts servicing IRQ1.
func (d *Driver) DriverInit(w io.Writer) *kernel.Error {
	for i := 0; i < maxDrain && portReadByteFn(statusPort)&statusOutputFull != 0; i++ {
		portReadByteFn(dataPort)
	}

	if err := handleIRQFn(irq.Keyboard, d.handleIRQ); err != nil {
		return err
	}

	active = d
	kfmt.Fprintf(w, "scan code set 1, %d byte input buffer\n", BufferSize)
	return nil
}

// TryRead dequeues the next character from the active keyboard. It returns
// false if no input is pending or the keyboard has not been initialized.
func TryRead() (byte, bool) {
	if active == nil {
		return 0, false
	}
	return active.TryRead()
}

func probeForKeyboard() device.Driver {
	return &Driver{}
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderNormal,
		Probe: probeForKeyboard,
	})
}
