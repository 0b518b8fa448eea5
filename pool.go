// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"math/bits"
	"sync"
)

// Pool size classes. Requests above the largest class are allocated and
// dropped on return.
const (
	// minHandleClass is the smallest pooled handle buffer, in slots.
	minHandleClass = 4

	// handleClasses covers 4..256 slots.
	handleClasses = 7

	// minValueClass is the smallest pooled constant buffer, in bytes.
	minValueClass = 64

	// valueClasses covers 64 B..64 KiB, the largest constant buffer a
	// dispatch can bind.
	valueClasses = 11
)

// bufferPool hands out dispatch data buffers by power-of-two size class.
//
// A buffer is owned by one caller from get until put. Returned buffers are
// not cleared; callers clear the region they use.
//
// bufferPool is safe for concurrent use.
type bufferPool struct {
	handles [handleClasses]sync.Pool
	values  [valueClasses]sync.Pool
}

// newBufferPool creates a pool with one sync.Pool per size class.
func newBufferPool() *bufferPool {
	p := &bufferPool{}
	for i := range p.handles {
		capacity := minHandleClass << i
		p.handles[i].New = func() any {
			buf := make([]uintptr, capacity)
			return &buf
		}
	}
	for i := range p.values {
		capacity := minValueClass << i
		p.values[i].New = func() any {
			buf := make([]byte, capacity)
			return &buf
		}
	}
	return p
}

// sizeClass returns the index of the smallest class of at least n elements,
// where class 0 holds minClass elements.
func sizeClass(n, minClass int) int {
	if n <= minClass {
		return 0
	}
	return bits.Len(uint(n-1)) - bits.Len(uint(minClass-1))
}

// getHandles returns a handle buffer of length n.
func (p *bufferPool) getHandles(n int) *[]uintptr {
	class := sizeClass(n, minHandleClass)
	if class >= handleClasses {
		buf := make([]uintptr, n)
		return &buf
	}
	buf := p.handles[class].Get().(*[]uintptr)
	*buf = (*buf)[:n]
	return buf
}

// putHandles returns a buffer obtained from getHandles.
func (p *bufferPool) putHandles(buf *[]uintptr) {
	if buf == nil {
		return
	}
	c := cap(*buf)
	class := sizeClass(c, minHandleClass)
	if class >= handleClasses || minHandleClass<<class != c {
		return
	}
	p.handles[class].Put(buf)
}

// getValues returns a byte buffer of length n.
func (p *bufferPool) getValues(n int) *[]byte {
	class := sizeClass(n, minValueClass)
	if class >= valueClasses {
		buf := make([]byte, n)
		return &buf
	}
	buf := p.values[class].Get().(*[]byte)
	*buf = (*buf)[:n]
	return buf
}

// putValues returns a buffer obtained from getValues.
func (p *bufferPool) putValues(buf *[]byte) {
	if buf == nil {
		return
	}
	c := cap(*buf)
	class := sizeClass(c, minValueClass)
	if class >= valueClasses || minValueClass<<class != c {
		return
	}
	p.values[class].Put(buf)
}
