// File: buffer/simplebuffer.go
// Package buffer implements a growable append/consume byte store for
// socket receive and send queues.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The store is a flat slice with a consume offset. Reads return a view of
// the unread window without consuming; Consume drops a prefix. Consumed
// space is reclaimed by compaction, never by handing out aliased slices.

package buffer

// Compaction thresholds: reclaim the consumed prefix once it exceeds
// compactMin bytes and more than half of the backing array.
const compactMin = 64 * 1024

// SimpleBuffer is a FIFO byte store. Not safe for concurrent use; the
// reactor owns each instance exclusively.
type SimpleBuffer struct {
	buf []byte
	off int
}

// New returns an empty buffer.
func New() *SimpleBuffer {
	return &SimpleBuffer{}
}

// Write appends p to the end of the buffer.
func (b *SimpleBuffer) Write(p []byte) {
	b.buf = append(b.buf, p...)
}

// Bytes returns the unread window without consuming it. The returned slice
// is valid until the next Write or Consume call.
func (b *SimpleBuffer) Bytes() []byte {
	return b.buf[b.off:]
}

// Peek returns up to n unread bytes without consuming them. Same validity
// rules as Bytes.
func (b *SimpleBuffer) Peek(n int) []byte {
	unread := b.buf[b.off:]
	if n > len(unread) {
		n = len(unread)
	}
	return unread[:n]
}

// Consume drops n bytes from the front of the unread window.
// n larger than the unread length drops everything.
func (b *SimpleBuffer) Consume(n int) {
	if n > b.Len() {
		n = b.Len()
	}
	b.off += n
	if b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
		return
	}
	if b.off > compactMin && b.off*2 > len(b.buf) {
		n := copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:n]
		b.off = 0
	}
}

// Len reports the number of unread bytes.
func (b *SimpleBuffer) Len() int {
	return len(b.buf) - b.off
}
