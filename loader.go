// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/gogpu/gpucontext"
)

var bufferPtrType = reflect.TypeFor[*Buffer]()

// loadOp writes one captured member of the shader at base into the
// destination buffers.
type loadOp func(device gpucontext.Device, base unsafe.Pointer, handles []uintptr, values []byte) error

// Loader extracts the captured members of one shape into dispatch data.
//
// A Loader is built once per shape by a LoaderCache. It holds no mutable
// state and is safe for concurrent use.
type Loader struct {
	shape reflect.Type
	plan  *Plan
	ops   []loadOp
}

// compileLoader builds the per-member write table for plan. members must be
// the list plan was built from.
func compileLoader(plan *Plan, members []Member) *Loader {
	ops := make([]loadOp, 0, len(members))
	for i, m := range members {
		pl := plan.Placements[i]
		switch pl.Class {
		case ClassResource:
			ops = append(ops, resourceOp(plan.Shape, m, pl.Slot))
		case ClassValue:
			enc, _ := encodingOf(m.Type)
			ops = append(ops, valueOp(m, enc, pl.Offset))
		}
	}
	return &Loader{shape: plan.Shape, plan: plan, ops: ops}
}

// Shape returns the shader type the loader was built for.
func (l *Loader) Shape() reflect.Type {
	return l.shape
}

// Plan returns the layout the loader writes.
func (l *Loader) Plan() *Plan {
	return l.plan
}

// Load writes the captured members of shader into handles and values, in
// member order, stopping at the first resource that fails validation.
//
// shader must be a value of the loader's shape or a pointer to one. handles
// must hold at least Plan().ResourceCount entries and values at least
// Plan().ConstantBufferSize bytes. Load writes only member slots and member
// bytes; the dimension header and padding are left untouched. On error the
// buffers may be partially written and must be discarded.
func (l *Loader) Load(device gpucontext.Device, shader any, handles []uintptr, values []byte) error {
	if device == nil {
		return ErrNilDevice
	}
	base, err := l.base(shader)
	if err != nil {
		return err
	}
	if len(handles) < l.plan.ResourceCount || len(values) < l.plan.ConstantBufferSize {
		return fmt.Errorf("%w: need %d handles and %d bytes, got %d and %d",
			ErrBufferTooSmall, l.plan.ResourceCount, l.plan.ConstantBufferSize, len(handles), len(values))
	}
	return l.load(device, base, handles, values)
}

func (l *Loader) load(device gpucontext.Device, base unsafe.Pointer, handles []uintptr, values []byte) error {
	for _, op := range l.ops {
		if err := op(device, base, handles, values); err != nil {
			return err
		}
	}
	return nil
}

// base returns the address of the shader struct. Shaders passed by value
// are copied so the loader can address their fields.
func (l *Loader) base(shader any) (unsafe.Pointer, error) {
	if shader == nil {
		return nil, ErrNilShader
	}
	v := reflect.ValueOf(shader)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, ErrNilShader
		}
		if v.Type().Elem() != l.shape {
			return nil, fmt.Errorf("%w: got %s, want %s", ErrShapeMismatch, v.Type(), l.shape)
		}
		return v.UnsafePointer(), nil
	}
	if v.Type() != l.shape {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrShapeMismatch, v.Type(), l.shape)
	}
	p := reflect.New(l.shape)
	p.Elem().Set(v)
	return p.UnsafePointer(), nil
}

func resourceOp(shape reflect.Type, m Member, slot int) loadOp {
	read := resourceReader(m.Type)
	fail := func(err error) error {
		return &ResourceError{Shape: shape, Member: m.Name, Err: err}
	}

	return func(device gpucontext.Device, base unsafe.Pointer, handles []uintptr, _ []byte) error {
		r := read(m.addr(base))
		if r == nil {
			return fail(fmt.Errorf("%w: resource is nil", ErrResourceBinding))
		}
		if r.IsReleased() {
			return fail(ErrResourceReleased)
		}
		if !r.BelongsTo(device) {
			return fail(ErrDeviceMismatch)
		}
		h, ok := r.(DescriptorHandler)
		if !ok {
			return fail(fmt.Errorf("%w: %T has no descriptor handle", ErrResourceBinding, r))
		}
		handle, err := h.DescriptorHandle()
		if err != nil {
			if !errors.Is(err, ErrResourceBinding) {
				err = fmt.Errorf("%w: %w", ErrResourceBinding, err)
			}
			return fail(err)
		}
		handles[slot] = handle
		return nil
	}
}

// resourceReader returns a function loading a Resource of type t from memory.
// Nil pointers and nil interfaces load as a nil Resource.
func resourceReader(t reflect.Type) func(p unsafe.Pointer) Resource {
	switch {
	case t == bufferPtrType:
		return func(p unsafe.Pointer) Resource {
			b := *(**Buffer)(p)
			if b == nil {
				return nil
			}
			return b
		}
	case t == resourceType:
		return func(p unsafe.Pointer) Resource {
			return nilIfTypedNil(*(*Resource)(p))
		}
	case t.Kind() == reflect.Pointer:
		return func(p unsafe.Pointer) Resource {
			if *(*unsafe.Pointer)(p) == nil {
				return nil
			}
			r, _ := reflect.NewAt(t, p).Elem().Interface().(Resource)
			return r
		}
	case t.Kind() == reflect.Interface:
		return func(p unsafe.Pointer) Resource {
			v := reflect.NewAt(t, p).Elem()
			if v.IsNil() {
				return nil
			}
			r, _ := v.Interface().(Resource)
			return nilIfTypedNil(r)
		}
	default:
		return func(p unsafe.Pointer) Resource {
			r, _ := reflect.NewAt(t, p).Elem().Interface().(Resource)
			return r
		}
	}
}

// nilIfTypedNil maps an interface holding a nil pointer to a nil Resource.
func nilIfTypedNil(r Resource) Resource {
	if r == nil {
		return nil
	}
	if v := reflect.ValueOf(r); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return r
}

func valueOp(m Member, enc valueEncoding, offset int) loadOp {
	write := valueWriter(enc)
	end := offset + enc.size()

	return func(_ gpucontext.Device, base unsafe.Pointer, _ []uintptr, values []byte) error {
		write(values[offset:end], m.addr(base))
		return nil
	}
}

// valueWriter returns a function copying a value with encoding enc from host
// memory into its little-endian constant buffer form.
func valueWriter(enc valueEncoding) func(dst []byte, src unsafe.Pointer) {
	le := binary.LittleEndian
	n := enc.components

	switch enc.scalar {
	case reflect.Bool:
		return func(dst []byte, src unsafe.Pointer) {
			for i := 0; i < n; i++ {
				var w uint32
				if *(*bool)(unsafe.Add(src, i)) {
					w = 1
				}
				le.PutUint32(dst[i*boolSize:], w)
			}
		}
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		return func(dst []byte, src unsafe.Pointer) {
			for i := 0; i < n; i++ {
				le.PutUint64(dst[i*8:], *(*uint64)(unsafe.Add(src, i*8)))
			}
		}
	default:
		return func(dst []byte, src unsafe.Pointer) {
			for i := 0; i < n; i++ {
				le.PutUint32(dst[i*4:], *(*uint32)(unsafe.Add(src, i*4)))
			}
		}
	}
}
