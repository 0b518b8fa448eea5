// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"fmt"
	"reflect"
	"strings"
)

const (
	// DimensionsSize is the size of the dispatch extents (x, y, z as 32-bit
	// integers) at the head of every constant buffer.
	DimensionsSize = 3 * 4

	// RowSize is the constant buffer packing row. No value may straddle a
	// row boundary.
	RowSize = 16
)

// Placement is where one captured member lands in the dispatch data.
type Placement struct {
	// Member is the captured member name.
	Member string

	// Class is ClassResource or ClassValue.
	Class Classification

	// Slot is the resource slot (resources only).
	Slot int

	// Offset is the constant buffer byte offset (values only).
	Offset int

	// Size is the constant buffer byte size (values only).
	Size int

	// ReadOnly marks a resource the shader only reads (resources only).
	ReadOnly bool
}

// Plan is the dispatch data layout of a shape.
//
// A Plan is built once per shape and shared by every dispatch of that shape.
// It must not be modified.
type Plan struct {
	// Shape is the shader struct type.
	Shape reflect.Type

	// ResourceCount is the number of resource slots.
	ResourceCount int

	// ConstantBufferSize is the number of constant buffer bytes, including
	// the leading DimensionsSize bytes.
	ConstantBufferSize int

	// Placements holds one entry per captured member, in member order.
	Placements []Placement
}

// Resources returns the resource placements in slot order.
func (p *Plan) Resources() []Placement {
	out := make([]Placement, 0, p.ResourceCount)
	for _, pl := range p.Placements {
		if pl.Class == ClassResource {
			out = append(out, pl)
		}
	}
	return out
}

// Values returns the value placements in offset order.
func (p *Plan) Values() []Placement {
	out := make([]Placement, 0, len(p.Placements)-p.ResourceCount)
	for _, pl := range p.Placements {
		if pl.Class == ClassValue {
			out = append(out, pl)
		}
	}
	return out
}

// String returns a human-readable layout, one member per line.
func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v: %d resources, %d constant bytes", p.Shape, p.ResourceCount, p.ConstantBufferSize)
	for _, pl := range p.Placements {
		switch pl.Class {
		case ClassResource:
			fmt.Fprintf(&sb, "\n  slot %d: %s", pl.Slot, pl.Member)
		case ClassValue:
			fmt.Fprintf(&sb, "\n  [%d:%d] %s", pl.Offset, pl.Offset+pl.Size, pl.Member)
		}
	}
	return sb.String()
}

// packOffset returns the offset at which a value of size bytes is placed
// when the constant buffer currently ends at offset.
func packOffset(offset, size int) int {
	if rem := offset % RowSize; rem != 0 && rem+size > RowSize {
		return offset + RowSize - rem
	}
	return offset
}

// BuildPlan lays out members for shape.
//
// Resources take dense slots 0..N-1 in member order. Values are packed after
// the dispatch dimensions in member order, each moved to the next 16-byte row
// when it would otherwise straddle one. Any invalid member aborts the plan
// with a *ClassificationError.
func BuildPlan(shape reflect.Type, members []Member) (*Plan, error) {
	plan := &Plan{
		Shape:              shape,
		ConstantBufferSize: DimensionsSize,
		Placements:         make([]Placement, 0, len(members)),
	}

	for i := range members {
		m := &members[i]
		switch Classify(m.Type) {
		case ClassResource:
			plan.Placements = append(plan.Placements, Placement{
				Member:   m.Name,
				Class:    ClassResource,
				Slot:     plan.ResourceCount,
				ReadOnly: m.ReadOnly,
			})
			plan.ResourceCount++

		case ClassValue:
			size := ValueSize(m.Type)
			offset := packOffset(plan.ConstantBufferSize, size)
			plan.Placements = append(plan.Placements, Placement{
				Member: m.Name,
				Class:  ClassValue,
				Offset: offset,
				Size:   size,
			})
			plan.ConstantBufferSize = offset + size

		default:
			return nil, &ClassificationError{Shape: shape, Member: m.Name, Type: m.Type}
		}
	}

	return plan, nil
}
