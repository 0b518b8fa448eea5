// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package bindgroup turns dispatch data into a WebGPU bind group.
//
// A plan with N resources maps to group 0 as:
//
//	@binding(0..N-1)  storage buffers, in resource slot order
//	@binding(N)       uniform buffer holding the constant buffer
//
// Resources marked read-only bind as read-only storage.
package bindgroup

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/dispatch"
)

// Errors returned by NewLayout and Bind.
var (
	// ErrNilDevice is returned when no HAL device or queue is supplied.
	ErrNilDevice = errors.New("bindgroup: nil device or queue")

	// ErrNilData is returned when the dispatch data is nil or released.
	ErrNilData = errors.New("bindgroup: nil dispatch data")

	// ErrNilLayout is returned when the layout or its plan is missing, or
	// the layout has been destroyed.
	ErrNilLayout = errors.New("bindgroup: nil layout")

	// ErrResourceCount is returned when the dispatch data does not match
	// the layout it is bound against.
	ErrResourceCount = errors.New("bindgroup: resource count mismatch")
)

// UniformBinding returns the binding index of the constant buffer for plan.
func UniformBinding(plan *dispatch.Plan) uint32 {
	return uint32(plan.ResourceCount) //nolint:gosec // resource counts are small
}

// UniformSize returns the uniform buffer size for a constant buffer of n
// bytes, rounded up to a whole 16-byte row.
func UniformSize(n int) uint64 {
	rows := (n + dispatch.RowSize - 1) / dispatch.RowSize
	return uint64(rows * dispatch.RowSize) //nolint:gosec // n is non-negative
}

// LayoutEntries returns the bind group layout entries for plan.
func LayoutEntries(plan *dispatch.Plan) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, plan.ResourceCount+1)
	for _, pl := range plan.Resources() {
		bindingType := gputypes.BufferBindingTypeStorage
		if pl.ReadOnly {
			bindingType = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(pl.Slot), //nolint:gosec // slot < resource count
			Visibility: gputypes.ShaderStageCompute,
			Buffer: &gputypes.BufferBindingLayout{
				Type: bindingType,
			},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    UniformBinding(plan),
		Visibility: gputypes.ShaderStageCompute,
		Buffer: &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeUniform,
			MinBindingSize: UniformSize(plan.ConstantBufferSize),
		},
	})
	return entries
}

// LayoutDescriptor returns a HAL bind group layout descriptor for plan.
func LayoutDescriptor(label string, plan *dispatch.Plan) *hal.BindGroupLayoutDescriptor {
	return &hal.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: LayoutEntries(plan),
	}
}

// Entries returns the bind group entries for data, with the constant buffer
// bound from the buffer whose native handle is uniform. Storage buffers bind
// whole.
func Entries(data *dispatch.DispatchData, uniform uintptr) []gputypes.BindGroupEntry {
	handles := data.Resources()
	entries := make([]gputypes.BindGroupEntry, 0, len(handles)+1)
	for slot, h := range handles {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(slot), //nolint:gosec // slot < resource count
			Resource: gputypes.BufferBinding{Buffer: h, Offset: 0, Size: 0},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: uint32(len(handles)), //nolint:gosec // resource counts are small
		Resource: gputypes.BufferBinding{
			Buffer: uniform,
			Offset: 0,
			Size:   UniformSize(data.ValueSize()),
		},
	})
	return entries
}

// GroupCounts returns the workgroup counts covering a dispatch of x*y*z
// threads with the given workgroup size. Zero extents yield zero groups.
func GroupCounts(x, y, z int, workgroup [3]uint32) [3]uint32 {
	extents := [3]int{x, y, z}
	var counts [3]uint32
	for i, n := range extents {
		size := workgroup[i]
		if size == 0 {
			size = 1
		}
		if n <= 0 {
			continue
		}
		counts[i] = uint32((uint64(n) + uint64(size) - 1) / uint64(size)) //nolint:gosec // n fits int32
	}
	return counts
}

// Layout is a bind group layout created for a plan.
type Layout struct {
	plan *dispatch.Plan
	raw  hal.BindGroupLayout
}

// NewLayout creates the bind group layout for plan on device.
func NewLayout(device hal.Device, label string, plan *dispatch.Plan) (*Layout, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if plan == nil {
		return nil, ErrNilLayout
	}
	raw, err := device.CreateBindGroupLayout(LayoutDescriptor(label, plan))
	if err != nil {
		return nil, fmt.Errorf("bindgroup: create layout for %s: %w", plan.Shape, err)
	}
	return &Layout{plan: plan, raw: raw}, nil
}

// Plan returns the plan the layout was created for.
func (l *Layout) Plan() *dispatch.Plan {
	return l.plan
}

// Raw returns the HAL layout.
func (l *Layout) Raw() hal.BindGroupLayout {
	return l.raw
}

// Destroy releases the layout.
func (l *Layout) Destroy(device hal.Device) {
	if l.raw != nil && device != nil {
		device.DestroyBindGroupLayout(l.raw)
		l.raw = nil
	}
}

// Binding is a bind group together with the uniform buffer it owns.
type Binding struct {
	group   hal.BindGroup
	uniform hal.Buffer
}

// Group returns the HAL bind group.
func (b *Binding) Group() hal.BindGroup {
	return b.group
}

// Bind uploads the constant buffer of data and creates a bind group for it
// against layout. The returned Binding owns the uniform buffer; call Destroy
// once the dispatch has completed.
func Bind(device hal.Device, queue hal.Queue, layout *Layout, data *dispatch.DispatchData) (*Binding, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if layout == nil || layout.raw == nil {
		return nil, ErrNilLayout
	}
	if data == nil || data.Values() == nil {
		return nil, ErrNilData
	}
	if data.ResourceCount() != layout.plan.ResourceCount {
		return nil, fmt.Errorf("%w: data has %d, layout has %d",
			ErrResourceCount, data.ResourceCount(), layout.plan.ResourceCount)
	}

	size := UniformSize(data.ValueSize())
	uniform, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "dispatch_constants",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("bindgroup: create uniform buffer: %w", err)
	}

	contents := data.Values()
	if uint64(len(contents)) < size {
		padded := make([]byte, size)
		copy(padded, contents)
		contents = padded
	}
	if err := queue.WriteBuffer(uniform, 0, contents); err != nil {
		device.DestroyBuffer(uniform)
		return nil, fmt.Errorf("bindgroup: upload constants: %w", err)
	}

	group, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "dispatch_bind",
		Layout:  layout.raw,
		Entries: Entries(data, uniform.NativeHandle()),
	})
	if err != nil {
		device.DestroyBuffer(uniform)
		return nil, fmt.Errorf("bindgroup: create bind group: %w", err)
	}

	dispatch.Logger().Debug("bindgroup: bound",
		"shape", layout.plan.Shape.String(),
		"resources", data.ResourceCount(),
		"constants", size)

	return &Binding{group: group, uniform: uniform}, nil
}

// Destroy releases the bind group and its uniform buffer.
func (b *Binding) Destroy(device hal.Device) {
	if device == nil {
		return
	}
	if b.group != nil {
		device.DestroyBindGroup(b.group)
		b.group = nil
	}
	if b.uniform != nil {
		device.DestroyBuffer(b.uniform)
		b.uniform = nil
	}
}
