// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Resource is a GPU-visible buffer that can be captured by a shader.
//
// Any captured member whose type implements Resource is bound to a resource
// slot instead of being packed into the constant buffer. Before a resource is
// bound, the loader checks IsReleased and then BelongsTo, in that order.
type Resource interface {
	// IsReleased reports whether the underlying GPU memory has been freed.
	IsReleased() bool

	// BelongsTo reports whether the resource was created on device.
	BelongsTo(device gpucontext.Device) bool
}

// DescriptorHandler is implemented by resources that can be bound to a shader
// slot. A Resource that does not implement it fails with ErrResourceBinding.
type DescriptorHandler interface {
	// DescriptorHandle returns the native handle written into the resource
	// slot of the dispatch data.
	DescriptorHandle() (uintptr, error)
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage
}

// Buffer is the standard Resource: a hal.Buffer tagged with the device that
// owns it.
//
// Thread Safety:
// Buffer is safe for concurrent access. Release may race with a dispatch;
// the loader observes either the live or the released state, never a
// half-released one.
type Buffer struct {
	// mu protects mutable state.
	mu sync.RWMutex

	// raw is the underlying buffer handle.
	raw hal.Buffer

	// device is the owning device.
	device gpucontext.Device

	// descriptor holds the buffer configuration (immutable after creation).
	descriptor BufferDescriptor

	// released indicates whether Release has been called.
	released bool
}

// NewBuffer wraps a buffer handle created on device.
//
// Ownership of raw is transferred: Release destroys it.
func NewBuffer(raw hal.Buffer, device gpucontext.Device, desc *BufferDescriptor) *Buffer {
	b := &Buffer{
		raw:    raw,
		device: device,
	}
	if desc != nil {
		b.descriptor = *desc
	}
	return b
}

// AllocateBuffer creates a storage buffer on halDevice and tags it with owner,
// the device context shaders will be dispatched on.
func AllocateBuffer(halDevice hal.Device, owner gpucontext.Device, desc *BufferDescriptor) (*Buffer, error) {
	if halDevice == nil || owner == nil {
		return nil, ErrNilDevice
	}
	if desc == nil {
		desc = &BufferDescriptor{}
	}
	usage := desc.Usage
	if usage == 0 {
		usage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	}
	raw, err := halDevice.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: create buffer %q: %w", desc.Label, err)
	}
	d := *desc
	d.Usage = usage
	return NewBuffer(raw, owner, &d), nil
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string {
	return b.descriptor.Label
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return b.descriptor.Size
}

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage {
	return b.descriptor.Usage
}

// Device returns the owning device.
func (b *Buffer) Device() gpucontext.Device {
	return b.device
}

// IsReleased returns true if the buffer has been released.
func (b *Buffer) IsReleased() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released
}

// BelongsTo returns true if the buffer was created on device. A device whose
// dynamic type cannot be compared never matches.
func (b *Buffer) BelongsTo(device gpucontext.Device) bool {
	return sameDevice(b.device, device)
}

// sameDevice compares two device contexts without panicking on
// uncomparable dynamic types.
func sameDevice(a, b gpucontext.Device) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}

// Raw returns the underlying buffer handle, or nil once released.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return nil
	}
	return b.raw
}

// DescriptorHandle returns the native handle of the underlying buffer.
func (b *Buffer) DescriptorHandle() (uintptr, error) {
	raw := b.Raw()
	if raw == nil {
		return 0, fmt.Errorf("%w: buffer %q has no native buffer", ErrResourceBinding, b.descriptor.Label)
	}
	return raw.NativeHandle(), nil
}

// Release destroys the underlying buffer. Subsequent dispatches capturing
// the buffer fail with ErrResourceReleased. Release is idempotent.
func (b *Buffer) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	raw := b.raw
	b.raw = nil
	b.mu.Unlock()

	if raw != nil {
		raw.Destroy()
	}
}

// String returns a debug description of the buffer.
func (b *Buffer) String() string {
	state := "live"
	if b.IsReleased() {
		state = "released"
	}
	return fmt.Sprintf("Buffer[%s, %d bytes, %s]", b.descriptor.Label, b.descriptor.Size, state)
}
