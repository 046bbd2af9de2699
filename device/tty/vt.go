// Package tty implements the kernel terminal on top of a console device.
package tty

import (
	"io"
	"reacronium/device/video/console"
	"reacronium/kernel"
)

// DefaultTabWidth defines the number of spaces that tabs expand to.
const DefaultTabWidth = 4

// VT implements a terminal that writes straight to its attached console. The
// terminal interprets the following special characters:
//  - \r (carriage-return)
//  - \n (line-feed)
//  - \b (backspace)
//  - \t (tab; expanded to tabWidth spaces)
//
// Output wraps at the right edge of the console and the console contents are
// scrolled up once the cursor moves past the last line. If the console has a
// hardware cursor, it follows the terminal cursor.
type VT struct {
	cons   console.Device
	cursor console.CursorController

	width  uint32
	height uint32

	tabWidth         uint8
	defaultFg, curFg uint8
	defaultBg, curBg uint8
	cursorX          uint32
	cursorY          uint32
}

// NewVT creates a new virtual terminal device. The tabWidth parameter controls
// tab expansion.
func NewVT(tabWidth uint8) *VT {
	return &VT{
		tabWidth: tabWidth,
		cursorX:  1,
		cursorY:  1,
	}
}

// AttachTo connects the terminal to a console instance and resets the cursor
// and colors.
func (t *VT) AttachTo(cons console.Device) {
	if cons == nil {
		return
	}

	t.cons = cons
	t.cursor, _ = cons.(console.CursorController)
	t.width, t.height = cons.Dimensions()
	t.defaultFg, t.defaultBg = cons.DefaultColors()
	t.curFg, t.curBg = t.defaultFg, t.defaultBg
	t.cursorX, t.cursorY = 1, 1
	t.syncCursor()
}

// CursorPosition returns the current cursor position. Both coordinates are
// 1-based.
func (t *VT) CursorPosition() (uint32, uint32) {
	return t.cursorX, t.cursorY
}

// SetCursorPosition sets the current cursor position to (x,y), clipping it
// to the console dimensions.
func (t *VT) SetCursorPosition(x, y uint32) {
	if t.cons == nil {
		return
	}

	if x < 1 {
		x = 1
	} else if x > t.width {
		x = t.width
	}

	if y < 1 {
		y = 1
	} else if y > t.height {
		y = t.height
	}

	t.cursorX, t.cursorY = x, y
	t.syncCursor()
}

// Colors returns the active foreground and background colors.
func (t *VT) Colors() (fg, bg uint8) {
	return t.curFg, t.curBg
}

// SetColors sets the colors used for subsequent output.
func (t *VT) SetColors(fg, bg uint8) {
	t.curFg, t.curBg = fg, bg
}

// ResetColors restores the default colors of the attached console.
func (t *VT) ResetColors() {
	t.curFg, t.curBg = t.defaultFg, t.defaultBg
}

// WriteColored writes data using the supplied colors and then restores the
// previously active colors.
func (t *VT) WriteColored(data []byte, fg, bg uint8) (int, error) {
	prevFg, prevBg := t.curFg, t.curBg
	t.curFg, t.curBg = fg, bg
	n, err := t.Write(data)
	t.curFg, t.curBg = prevFg, prevBg
	return n, err
}

// Clear fills the console with the active background color and moves the
// cursor to the top-left corner.
func (t *VT) Clear() {
	if t.cons == nil {
		return
	}

	t.cons.Fill(1, 1, t.width, t.height, t.curFg, t.curBg)
	t.cursorX, t.cursorY = 1, 1
	t.syncCursor()
}

// EnableCursor shows the hardware cursor if the console has one.
func (t *VT) EnableCursor() {
	if t.cursor != nil {
		t.cursor.EnableCursor()
		t.syncCursor()
	}
}

// DisableCursor hides the hardware cursor if the console has one.
func (t *VT) DisableCursor() {
	if t.cursor != nil {
		t.cursor.DisableCursor()
	}
}

// Write implements io.Writer.
func (t *VT) Write(data []byte) (int, error) {
	if t.cons == nil {
		return 0, io.ErrClosedPipe
	}

	for _, b := range data {
		t.writeByte(b)
	}
	t.syncCursor()

	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *VT) WriteByte(b byte) error {
	if t.cons == nil {
		return io.ErrClosedPipe
	}

	t.writeByte(b)
	t.syncCursor()
	return nil
}

func (t *VT) writeByte(b byte) {
	switch b {
	case '\r':
		t.cursorX = 1
	case '\n':
		t.lf()
	case '\b':
		if t.cursorX > 1 {
			t.cursorX--
			t.cons.Write(' ', t.curFg, t.curBg, t.cursorX, t.cursorY)
		}
	case '\t':
		for i := uint8(0); i < t.tabWidth; i++ {
			t.put(' ')
		}
	default:
		t.put(b)
	}
}

// put writes b at the cursor and advances it, wrapping to the next line when
// the right edge is reached.
func (t *VT) put(b byte) {
	t.cons.Write(b, t.curFg, t.curBg, t.cursorX, t.cursorY)

	t.cursorX++
	if t.cursorX > t.width {
		t.lf()
	}
}

// lf moves the cursor to the start of the next line scrolling the console
// contents if the cursor is already on the last line.
func (t *VT) lf() {
	t.cursorX = 1

	if t.cursorY < t.height {
		t.cursorY++
		return
	}

	t.cons.Scroll(console.ScrollDirUp, 1)
	t.cons.Fill(1, t.height, t.width, 1, t.curFg, t.curBg)
}

func (t *VT) syncCursor() {
	if t.cursor != nil {
		t.cursor.SetCursor(t.cursorX, t.cursorY)
	}
}

// DriverName returns the name of this driver.
func (t *VT) DriverName() string {
	return "vt"
}

// DriverVersion returns the version of this driver.
func (t *VT) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (t *VT) DriverInit(_ io.Writer) *kernel.Error { return nil }
