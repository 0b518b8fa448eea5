// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"errors"
	"fmt"
	"reflect"
)

// Shape errors.
var (
	// ErrInvalidMember is returned when a captured member is neither a
	// resource nor a supported scalar or vector value.
	ErrInvalidMember = errors.New("dispatch: captured member has unsupported type")

	// ErrInvalidShape is returned when a shader type is not a struct.
	ErrInvalidShape = errors.New("dispatch: shader must be a struct or pointer to struct")

	// ErrDuplicateMember is returned when two captured members share a name.
	ErrDuplicateMember = errors.New("dispatch: duplicate captured member")

	// ErrInvalidStatic is returned when a static member does not point at a value.
	ErrInvalidStatic = errors.New("dispatch: static member must be a non-nil pointer")
)

// Dispatch errors.
var (
	// ErrResourceReleased is returned when a captured resource was released
	// before dispatch.
	ErrResourceReleased = errors.New("dispatch: resource has been released")

	// ErrDeviceMismatch is returned when a captured resource belongs to a
	// different device than the one requested for dispatch.
	ErrDeviceMismatch = errors.New("dispatch: resource belongs to a different device")

	// ErrResourceBinding is returned when a resource passes validation but
	// cannot provide a descriptor handle.
	ErrResourceBinding = errors.New("dispatch: resource cannot be bound")

	// ErrNilShader is returned when dispatching a nil shader.
	ErrNilShader = errors.New("dispatch: shader is nil")

	// ErrNilDevice is returned when dispatching without a device.
	ErrNilDevice = errors.New("dispatch: device is nil")

	// ErrShapeMismatch is returned when a loader is invoked with a shader of
	// another shape.
	ErrShapeMismatch = errors.New("dispatch: shader does not match loader shape")

	// ErrInvalidDimensions is returned when a dispatch extent is negative or
	// does not fit in a 32-bit signed integer.
	ErrInvalidDimensions = errors.New("dispatch: invalid dispatch dimensions")

	// ErrBufferTooSmall is returned when destination buffers cannot hold the
	// shape's resources or constant buffer.
	ErrBufferTooSmall = errors.New("dispatch: destination buffer too small")
)

// ClassificationError reports a captured member whose type cannot be sent to
// the GPU. It is permanent for the shape.
type ClassificationError struct {
	Shape  reflect.Type
	Member string
	Type   reflect.Type
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("dispatch: %s.%s has unsupported type %s", e.Shape, e.Member, e.Type)
}

// Unwrap returns ErrInvalidMember.
func (e *ClassificationError) Unwrap() error { return ErrInvalidMember }

// ResourceError reports a captured resource that failed validation or binding
// during a single dispatch. The shape's loader remains valid.
type ResourceError struct {
	Shape  reflect.Type
	Member string
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Shape, e.Member, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
