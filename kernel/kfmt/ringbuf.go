package kfmt

import "io"

// ringBufferSize is large enough to hold a full 80x25 text screen. It must
// be a power of 2.
const (
	ringBufferSize = 2048
	ringBufferMask = ringBufferSize - 1
)

// ringBuffer keeps the most recent ringBufferSize-1 bytes written to it. When
// full, new writes overwrite the oldest data.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write appends p to the buffer, dropping the oldest bytes on overflow.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & ringBufferMask
		if rb.wIndex == rb.rIndex {
			rb.rIndex = (rb.rIndex + 1) & ringBufferMask
		}
	}

	return len(p), nil
}

// Read drains up to len(p) bytes. It returns io.EOF once the buffer is
// empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.rIndex == rb.wIndex {
		return 0, io.EOF
	}

	var n int
	for ; n < len(p) && rb.rIndex != rb.wIndex; n++ {
		p[n] = rb.buffer[rb.rIndex]
		rb.rIndex = (rb.rIndex + 1) & ringBufferMask
	}

	return n, nil
}
