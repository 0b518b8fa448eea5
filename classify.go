// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"fmt"
	"reflect"
)

// Classification labels how a captured member is sent to the GPU.
type Classification uint8

const (
	// ClassInvalid marks a member that cannot be sent to the GPU.
	ClassInvalid Classification = iota

	// ClassResource marks a GPU buffer bound through a descriptor slot.
	ClassResource

	// ClassValue marks a scalar or vector packed into the constant buffer.
	ClassValue
)

// String returns the string representation of Classification.
func (c Classification) String() string {
	switch c {
	case ClassInvalid:
		return "Invalid"
	case ClassResource:
		return "Resource"
	case ClassValue:
		return "ScalarOrVector"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

const (
	// boolSize is the constant buffer size of a boolean: GPU booleans are
	// 32-bit words regardless of the host representation.
	boolSize = 4

	// maxVectorLen is the largest vector length (float4, int4, ...).
	maxVectorLen = 4
)

var resourceType = reflect.TypeFor[Resource]()

// valueEncoding describes how a scalar or vector is laid out in host memory
// and in the constant buffer.
type valueEncoding struct {
	// scalar is the component kind.
	scalar reflect.Kind

	// components is 1 for scalars, 2-4 for vectors.
	components int

	// stride is the host size of one component in bytes.
	stride uintptr

	// width is the constant buffer size of one component in bytes.
	width int
}

// size returns the constant buffer size of the whole value.
func (e valueEncoding) size() int {
	return e.width * e.components
}

// scalarWidth returns the host and constant buffer widths of a scalar kind,
// or ok=false if the kind cannot be sent to the GPU.
func scalarWidth(k reflect.Kind) (stride uintptr, width int, ok bool) {
	switch k {
	case reflect.Bool:
		return 1, boolSize, true
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4, 4, true
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		return 8, 8, true
	default:
		return 0, 0, false
	}
}

// encodingOf returns the value encoding of t, or ok=false if t is not a
// supported scalar or vector type.
func encodingOf(t reflect.Type) (valueEncoding, bool) {
	if stride, width, ok := scalarWidth(t.Kind()); ok {
		return valueEncoding{scalar: t.Kind(), components: 1, stride: stride, width: width}, true
	}
	if t.Kind() != reflect.Array || t.Len() < 2 || t.Len() > maxVectorLen {
		return valueEncoding{}, false
	}
	elem := t.Elem().Kind()
	stride, width, ok := scalarWidth(elem)
	if !ok {
		return valueEncoding{}, false
	}
	return valueEncoding{scalar: elem, components: t.Len(), stride: stride, width: width}, true
}

// Classify labels a captured member type.
//
// Types implementing [Resource] are resources. Booleans, 32- and 64-bit
// integers and floats, and arrays of 2 to 4 of them (see package vec) are
// values. Everything else, including platform-sized int and uint, is invalid.
func Classify(t reflect.Type) Classification {
	if t == nil {
		return ClassInvalid
	}
	if t.Implements(resourceType) {
		return ClassResource
	}
	if _, ok := encodingOf(t); ok {
		return ClassValue
	}
	return ClassInvalid
}

// ValueSize returns the number of constant buffer bytes a value type
// occupies, or 0 if t is not a value type.
func ValueSize(t reflect.Type) int {
	if t == nil {
		return 0
	}
	e, ok := encodingOf(t)
	if !ok {
		return 0
	}
	return e.size()
}
