// Package heap provides the kernel heap: a pool of fixed-size blocks carved
// out of a statically allocated arena. Allocations span one or more
// contiguous blocks and are located with a first-fit scan.
package heap

import (
	"io"
	"reacronium/kernel"
	"reacronium/kernel/kfmt"
	"reacronium/kernel/mem"
	"reacronium/kernel/sync"
	"unsafe"
)

const (
	// ArenaSize is the number of bytes managed by a Heap.
	ArenaSize = 64 * mem.Kb

	// BlockSize is the allocation granularity.
	BlockSize = 16 * mem.Byte

	numBlocks = int(ArenaSize / BlockSize)

	// blockTail marks a block that continues the allocation started by an
	// earlier block.
	blockTail = ^uint16(0)
)

var (
	errInvalidSize   = &kernel.Error{Module: "heap", Message: "invalid allocation size"}
	errOutOfMemory   = &kernel.Error{Module: "heap", Message: "out of memory"}
	errForeignBuffer = &kernel.Error{Module: "heap", Message: "buffer was not allocated by this heap"}
	errDoubleFree    = &kernel.Error{Module: "heap", Message: "double free"}

	kernelHeap Heap
)

// Stats describes the heap utilization.
type Stats struct {
	TotalBytes  mem.Size
	UsedBytes   mem.Size
	FreeBytes   mem.Size
	Allocations uint32

	// LargestFree is the size of the largest allocation that can
	// currently be satisfied.
	LargestFree mem.Size
}

// Heap manages ArenaSize bytes of memory. The zero value is an empty heap
// ready for use.
type Heap struct {
	lock sync.Spinlock

	arena [ArenaSize]byte

	// blocks holds the length in blocks of the allocation starting at
	// each block, 0 for free blocks or blockTail for the remaining blocks
	// of an allocation.
	blocks [numBlocks]uint16

	allocations uint32
	usedBlocks  int
}

// Alloc reserves a zeroed buffer of size bytes.
func (h *Heap) Alloc(size mem.Size) ([]byte, *kernel.Error) {
	if size == 0 || size > ArenaSize {
		return nil, errInvalidSize
	}

	count := int((size + BlockSize - 1) / BlockSize)

	h.lock.Acquire()
	defer h.lock.Release()

	start, run := 0, 0
	for index := 0; index < numBlocks; index++ {
		if h.blocks[index] != 0 {
			run = 0
			continue
		}

		if run == 0 {
			start = index
		}

		if run++; run == count {
			return h.claim(start, count, size), nil
		}
	}

	return nil, errOutOfMemory
}

func (h *Heap) claim(start, count int, size mem.Size) []byte {
	h.blocks[start] = uint16(count)
	for index := start + 1; index < start+count; index++ {
		h.blocks[index] = blockTail
	}
	h.allocations++
	h.usedBlocks += count

	offset := start * int(BlockSize)
	span := count * int(BlockSize)
	mem.Memset(uintptr(unsafe.Pointer(&h.arena[offset])), 0, mem.Size(span))

	return h.arena[offset : offset+int(size) : offset+span]
}

// Free returns a buffer obtained from Alloc to the heap. The buffer may have
// been resliced as long as it still starts at the first byte of the
// allocation.
func (h *Heap) Free(buf []byte) *kernel.Error {
	if cap(buf) == 0 {
		return errForeignBuffer
	}

	var (
		addr      = uintptr(unsafe.Pointer(&buf[:1][0]))
		arenaAddr = uintptr(unsafe.Pointer(&h.arena[0]))
	)

	if addr < arenaAddr || addr >= arenaAddr+uintptr(ArenaSize) || (addr-arenaAddr)%uintptr(BlockSize) != 0 {
		return errForeignBuffer
	}

	h.lock.Acquire()
	defer h.lock.Release()

	start := int((addr - arenaAddr) / uintptr(BlockSize))
	switch count := h.blocks[start]; count {
	case 0:
		return errDoubleFree
	case blockTail:
		return errForeignBuffer
	default:
		for index := start; index < start+int(count); index++ {
			h.blocks[index] = 0
		}
		h.allocations--
		h.usedBlocks -= int(count)
	}

	return nil
}

// Stats returns a snapshot of the heap utilization.
func (h *Heap) Stats() Stats {
	h.lock.Acquire()
	defer h.lock.Release()

	var largest, run int
	for index := 0; index < numBlocks; index++ {
		if h.blocks[index] != 0 {
			run = 0
			continue
		}

		if run++; run > largest {
			largest = run
		}
	}

	return Stats{
		TotalBytes:  ArenaSize,
		UsedBytes:   mem.Size(h.usedBlocks) * BlockSize,
		FreeBytes:   mem.Size(numBlocks-h.usedBlocks) * BlockSize,
		Allocations: h.allocations,
		LargestFree: mem.Size(largest) * BlockSize,
	}
}

// Info writes the heap utilization to w.
func (h *Heap) Info(w io.Writer) {
	stats := h.Stats()
	kfmt.Fprintf(w, "heap: %d bytes in %d byte blocks\n", uint32(stats.TotalBytes), uint32(BlockSize))
	kfmt.Fprintf(w, "used: %d bytes (%d allocations)\n", uint32(stats.UsedBytes), stats.Allocations)
	kfmt.Fprintf(w, "free: %d bytes (largest block run %d bytes)\n", uint32(stats.FreeBytes), uint32(stats.LargestFree))
}

// Alloc reserves a zeroed buffer of size bytes from the kernel heap.
func Alloc(size mem.Size) ([]byte, *kernel.Error) {
	return kernelHeap.Alloc(size)
}

// Free returns a buffer to the kernel heap.
func Free(buf []byte) *kernel.Error {
	return kernelHeap.Free(buf)
}

// Info writes the kernel heap utilization to w.
func Info(w io.Writer) {
	kernelHeap.Info(w)
}
