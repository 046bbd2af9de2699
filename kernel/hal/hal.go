// Package hal brings up the kernel terminal and detects the hardware that the
// registered device drivers support.
package hal

import (
	"bytes"
	"reacronium/device"
	"reacronium/device/tty"
	"reacronium/device/video/console"
	"reacronium/kernel"
	"reacronium/kernel/hal/multiboot"
	"reacronium/kernel/kfmt"
	"sort"
)

var (
	vgaText  console.VgaText
	terminal *tty.VT

	// getFramebufferInfoFn is mocked by tests.
	getFramebufferInfoFn = multiboot.GetFramebufferInfo

	strBuf bytes.Buffer
)

// ActiveTerminal returns the terminal that receives kernel output or nil if
// InitTerminal has not been called.
func ActiveTerminal() *tty.VT {
	return terminal
}

// InitTerminal attaches a terminal to the text mode console, clears the
// screen and makes the terminal the kfmt output sink. Output that was
// printed before this call is replayed to the terminal.
func InitTerminal() *kernel.Error {
	width, height, fbAddr := terminalGeometry()
	vgaText.Init(width, height, fbAddr)

	var w kfmt.PrefixWriter
	setDriverPrefix(&w, &vgaText)
	if err := vgaText.DriverInit(&w); err != nil {
		return err
	}

	terminal = tty.NewVT(tty.DefaultTabWidth)
	terminal.AttachTo(&vgaText)
	terminal.Clear()
	terminal.EnableCursor()

	kfmt.SetOutputSink(terminal)
	return nil
}

// terminalGeometry returns the text mode framebuffer reported by the boot
// loader, falling back to the standard 80x25 buffer at 0xb8000.
func terminalGeometry() (uint32, uint32, uintptr) {
	fbInfo := getFramebufferInfoFn()
	if fbInfo == nil || fbInfo.Type != multiboot.FramebufferTypeEGA {
		return console.DefaultWidth, console.DefaultHeight, console.DefaultFbPhysAddr
	}

	return fbInfo.Width, fbInfo.Height, uintptr(fbInfo.PhysAddr)
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	// Get driver list and sort by detection priority
	drivers := device.DriverList()
	sort.Stable(drivers)

	probe(drivers)
}

// probe executes the probe function for each driver and initializes the
// drivers for the hardware that is present. Each driver logs through a
// writer that tags its output with the driver name and version.
func probe(driverInfoList device.DriverInfoList) {
	var w kfmt.PrefixWriter

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		setDriverPrefix(&w, drv)
		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
	}
}

func setDriverPrefix(w *kfmt.PrefixWriter, drv device.Driver) {
	strBuf.Reset()
	major, minor, patch := drv.DriverVersion()
	kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
	w.Prefix = strBuf.Bytes()
}
