// Package mem provides helpers for viewing and manipulating raw memory
// regions that are not owned by the Go allocator: user buffers passed in
// through the syscall ABI, the text framebuffer and the static heap arena.
package mem

import (
	"reflect"
	"unsafe"
)

// Size represents a memory block size in bytes.
type Size uint32

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
)

// Overlay returns a byte slice backed by the size bytes starting at addr.
// The slice does not keep the region alive and must not be retained past
// the lifetime of the underlying memory.
func Overlay(addr uintptr, size Size) []byte {
	if addr == 0 || size == 0 {
		return nil
	}

	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))
}

// Memset sets size bytes at the given address to the supplied value. Instead
// of a byte loop it performs log2(size) copy calls.
func Memset(addr uintptr, value byte, size Size) {
	target := Overlay(addr, size)
	if target == nil {
		return
	}

	target[0] = value
	for index := Size(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}
