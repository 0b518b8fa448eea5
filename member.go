// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"fmt"
	"reflect"
	"strings"
	"unsafe"
)

// tagName is the struct tag key read during member discovery.
//
//	Input  *dispatch.Buffer `dispatch:"readonly"`
//	cached float32          `dispatch:"-"`
const tagName = "dispatch"

// Member is a captured member of a shader shape: a field of the shader
// struct, or a static value shared by every instance of the shape.
//
// Members are immutable once discovered.
type Member struct {
	// Name identifies the member within its shape.
	Name string

	// Type is the declared type of the member.
	Type reflect.Type

	// Static reports whether the member is shared by all instances.
	Static bool

	// ReadOnly marks a resource the shader only reads.
	ReadOnly bool

	// offset is the field offset within the shader struct.
	offset uintptr

	// ptr points at the shared value of a static member.
	ptr unsafe.Pointer
}

// addr returns the address of the member's value given the address of a
// shader instance.
func (m *Member) addr(base unsafe.Pointer) unsafe.Pointer {
	if m.Static {
		return m.ptr
	}
	return unsafe.Add(base, m.offset)
}

// Static returns a static member named name that reads the value ptr points
// at on every dispatch. ptr must be a non-nil pointer, typically to a
// package-level variable.
//
//	var kernel vec.Float4
//
//	func (Blur) CapturedStatics() []dispatch.Member {
//	    return []dispatch.Member{dispatch.Static("Kernel", &kernel)}
//	}
func Static(name string, ptr any) Member {
	m := Member{Name: name, Static: true}
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return m
	}
	m.Type = v.Type().Elem()
	m.ptr = v.UnsafePointer()
	return m
}

// StaticProvider is implemented by shader types that capture shared state.
// CapturedStatics is called once per shape, on the zero value of the shader
// type, and must return the same members every time.
type StaticProvider interface {
	CapturedStatics() []Member
}

var staticProviderType = reflect.TypeFor[StaticProvider]()

// ShapeOf returns the shape of a shader value: its type, or the pointed-to
// type when shader is a pointer.
func ShapeOf(shader any) reflect.Type {
	t := reflect.TypeOf(shader)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Members discovers the captured members of shape, in the order that fixes
// resource slots and constant buffer offsets: exported fields in declaration
// order, then static members in the order CapturedStatics returns them.
//
// Unexported fields and fields tagged `dispatch:"-"` are not captured.
// Members does not classify; see [BuildPlan].
func Members(shape reflect.Type) ([]Member, error) {
	if shape == nil || shape.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, shape)
	}

	members := make([]Member, 0, shape.NumField())
	seen := make(map[string]bool, shape.NumField())

	for i := 0; i < shape.NumField(); i++ {
		f := shape.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get(tagName)
		if tag == "-" {
			continue
		}
		seen[f.Name] = true
		members = append(members, Member{
			Name:     f.Name,
			Type:     f.Type,
			ReadOnly: hasTagOption(tag, "readonly"),
			offset:   f.Offset,
		})
	}

	for _, m := range staticsOf(shape) {
		if m.ptr == nil || m.Type == nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrInvalidStatic, shape, m.Name)
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateMember, shape, m.Name)
		}
		seen[m.Name] = true
		m.Static = true
		members = append(members, m)
	}

	return members, nil
}

// staticsOf calls CapturedStatics on the zero value of shape, if implemented
// with either a value or a pointer receiver.
func staticsOf(shape reflect.Type) []Member {
	var provider StaticProvider
	switch {
	case shape.Implements(staticProviderType):
		provider, _ = reflect.Zero(shape).Interface().(StaticProvider)
	case reflect.PointerTo(shape).Implements(staticProviderType):
		provider, _ = reflect.New(shape).Interface().(StaticProvider)
	}
	if provider == nil {
		return nil
	}
	return provider.CapturedStatics()
}

func hasTagOption(tag, option string) bool {
	for part := range strings.SplitSeq(tag, ",") {
		if strings.TrimSpace(part) == option {
			return true
		}
	}
	return false
}
