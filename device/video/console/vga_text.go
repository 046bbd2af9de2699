package console

import (
	"io"
	"reacronium/kernel"
	"reacronium/kernel/cpu"
	"reacronium/kernel/kfmt"
	"reflect"
	"unsafe"
)

// CRT controller registers used for driving the hardware cursor.
const (
	crtcIndexPort uint16 = 0x3d4
	crtcDataPort  uint16 = 0x3d5

	crtcCursorStart   uint8 = 0x0a
	crtcCursorEnd     uint8 = 0x0b
	crtcCursorLocHigh uint8 = 0x0e
	crtcCursorLocLow  uint8 = 0x0f

	// Setting bit 5 of the cursor start register hides the cursor.
	cursorDisableBit uint8 = 0x20

	// Scanlines covered by a visible underline cursor.
	cursorScanlineStart uint8 = 14
	cursorScanlineEnd   uint8 = 15
)

// Default text mode framebuffer used when the boot loader does not report
// one.
const (
	DefaultWidth      = 80
	DefaultHeight     = 25
	DefaultFbPhysAddr = 0xb8000
)

var (
	// portWriteByteFn is mocked by tests and is automatically inlined by
	// the compiler.
	portWriteByteFn = cpu.PortWriteByte

	errNoFramebuffer = &kernel.Error{Module: "vga_text", Message: "framebuffer address not set"}
)

// VgaText implements an EGA-compatible text console using VGA mode 0x3.
//
// Each character in the console framebuffer is represented using two bytes,
// a byte for the character ASCII code and a byte that encodes the foreground
// and background colors (4 bits for each).
//
// The default settings for the console are:
//  - light gray text (color 7) on black background (color 0).
//  - space as the clear character
type VgaText struct {
	width  uint32
	height uint32

	fbPhysAddr uintptr
	fb         []uint16

	defaultFg uint8
	defaultBg uint8
	clearChar uint16
}

// Init sets up the console dimensions and framebuffer address. The
// framebuffer is attached by DriverInit.
func (cons *VgaText) Init(columns, rows uint32, fbPhysAddr uintptr) {
	cons.width = columns
	cons.height = rows
	cons.fbPhysAddr = fbPhysAddr
	cons.clearChar = uint16(' ')
	cons.defaultFg = LightGrey
	cons.defaultBg = Black
	cons.fb = nil
}

// Dimensions returns the console width and height in characters.
func (cons *VgaText) Dimensions() (uint32, uint32) {
	return cons.width, cons.height
}

// DefaultColors returns the default foreground and background colors
// used by this console.
func (cons *VgaText) DefaultColors() (fg uint8, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular region to the requested
// color. Both x and y coordinates are 1-based.
func (cons *VgaText) Fill(x, y, width, height uint32, fg, bg uint8) {
	var (
		clr                  = (uint16(attr(fg, bg)) << 8) | cons.clearChar
		rowOffset, colOffset uint32
	)

	// clip rectangle
	if x == 0 {
		x = 1
	} else if x >= cons.width {
		x = cons.width
	}

	if y == 0 {
		y = 1
	} else if y >= cons.height {
		y = cons.height
	}

	if x+width-1 > cons.width {
		width = cons.width - x + 1
	}

	if y+height-1 > cons.height {
		height = cons.height - y + 1
	}

	rowOffset = ((y - 1) * cons.width) + (x - 1)
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *VgaText) Scroll(dir ScrollDir, lines uint32) {
	if lines == 0 || lines > cons.height {
		return
	}

	var i uint32
	offset := lines * cons.width

	switch dir {
	case ScrollDirUp:
		for ; i < (cons.height-lines)*cons.width; i++ {
			cons.fb[i] = cons.fb[i+offset]
		}
	case ScrollDirDown:
		for i = cons.height*cons.width - 1; i >= lines*cons.width; i-- {
			cons.fb[i] = cons.fb[i-offset]
		}
	}
}

// Write a char to the specified location. Colors outside the 16 color
// palette are replaced by the console defaults. Both x and y coordinates are
// 1-based.
func (cons *VgaText) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x < 1 || x > cons.width || y < 1 || y > cons.height {
		return
	}

	if fg > White {
		fg = cons.defaultFg
	}
	if bg > White {
		bg = cons.defaultBg
	}

	cons.fb[((y-1)*cons.width)+(x-1)] = (uint16(attr(fg, bg)) << 8) | uint16(ch)
}

// SetCursor moves the hardware cursor to (x, y). Both coordinates are
// 1-based; out of range positions are ignored.
func (cons *VgaText) SetCursor(x, y uint32) {
	if x < 1 || x > cons.width || y < 1 || y > cons.height {
		return
	}

	pos := uint16((y-1)*cons.width + (x - 1))
	portWriteByteFn(crtcIndexPort, crtcCursorLocLow)
	portWriteByteFn(crtcDataPort, uint8(pos))
	portWriteByteFn(crtcIndexPort, crtcCursorLocHigh)
	portWriteByteFn(crtcDataPort, uint8(pos>>8))
}

// EnableCursor shows the hardware cursor as an underline.
func (cons *VgaText) EnableCursor() {
	portWriteByteFn(crtcIndexPort, crtcCursorStart)
	portWriteByteFn(crtcDataPort, cursorScanlineStart)
	portWriteByteFn(crtcIndexPort, crtcCursorEnd)
	portWriteByteFn(crtcDataPort, cursorScanlineEnd)
}

// DisableCursor hides the hardware cursor.
func (cons *VgaText) DisableCursor() {
	portWriteByteFn(crtcIndexPort, crtcCursorStart)
	portWriteByteFn(crtcDataPort, cursorDisableBit)
}

// DriverName returns the name of this driver.
func (cons *VgaText) DriverName() string {
	return "vga_text"
}

// DriverVersion returns the version of this driver.
func (cons *VgaText) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit attaches the console to its framebuffer. Memory is identity
// mapped so the physical address is used as is.
func (cons *VgaText) DriverInit(w io.Writer) *kernel.Error {
	if cons.fbPhysAddr == 0 {
		return errNoFramebuffer
	}

	cons.fb = *(*[]uint16)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(cons.width * cons.height),
		Cap:  int(cons.width * cons.height),
		Data: cons.fbPhysAddr,
	}))

	kfmt.Fprintf(w, "%dx%d framebuffer at 0x%x\n", cons.width, cons.height, cons.fbPhysAddr)
	return nil
}

func attr(fg, bg uint8) uint8 {
	return (bg << 4) | (fg & 0xf)
}
