// Package wgslcheck verifies that a WGSL compute shader declares the bindings
// dispatch data is bound to.
//
// The shader is expected to use the layout of package bindgroup: one storage
// buffer per resource slot at @group(0) @binding(slot), and a uniform struct
// at @binding(ResourceCount) whose first three 32-bit members are the
// dispatch extents, followed by the captured values at their packed offsets.
package wgslcheck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/dispatch"
)

// ErrMismatch is wrapped by every MismatchError.
var ErrMismatch = errors.New("wgslcheck: shader does not match dispatch layout")

// Mismatch describes one disagreement between the shader and the plan.
type Mismatch struct {
	// Binding is the binding index in group 0.
	Binding uint32

	// Member is the captured member or uniform struct member involved, if any.
	Member string

	// Reason says what disagrees.
	Reason string
}

func (m Mismatch) String() string {
	if m.Member != "" {
		return fmt.Sprintf("@binding(%d) %s: %s", m.Binding, m.Member, m.Reason)
	}
	return fmt.Sprintf("@binding(%d): %s", m.Binding, m.Reason)
}

// MismatchError lists every disagreement found in one shader.
type MismatchError struct {
	Shape      string
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = m.String()
	}
	return fmt.Sprintf("wgslcheck: %s: %s", e.Shape, strings.Join(parts, "; "))
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Verify parses source and checks its group 0 bindings against plan.
//
// Parse and lowering errors are returned as is. Disagreements are collected
// into a single *MismatchError.
func Verify(plan *dispatch.Plan, source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return fmt.Errorf("wgslcheck: %w", err)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return fmt.Errorf("wgslcheck: %w", err)
	}
	return VerifyModule(plan, module)
}

// VerifyModule checks an already lowered module against plan.
func VerifyModule(plan *dispatch.Plan, module *ir.Module) error {
	globals := groupZero(module)
	var found []Mismatch

	for _, pl := range plan.Resources() {
		binding := uint32(pl.Slot) //nolint:gosec // slot < resource count
		gv, ok := globals[binding]
		if !ok {
			found = append(found, Mismatch{Binding: binding, Member: pl.Member, Reason: "not declared"})
			continue
		}
		if gv.Space != ir.SpaceStorage {
			found = append(found, Mismatch{Binding: binding, Member: pl.Member, Reason: "not a storage buffer"})
			continue
		}
		readOnly := gv.Access == ir.StorageRead
		if readOnly != pl.ReadOnly {
			found = append(found, Mismatch{
				Binding: binding,
				Member:  pl.Member,
				Reason:  fmt.Sprintf("access %s, want %s", accessName(readOnly), accessName(pl.ReadOnly)),
			})
		}
	}

	uniform := uint32(plan.ResourceCount) //nolint:gosec // resource counts are small
	gv, ok := globals[uniform]
	switch {
	case !ok:
		found = append(found, Mismatch{Binding: uniform, Reason: "constant buffer not declared"})
	case gv.Space != ir.SpaceUniform:
		found = append(found, Mismatch{Binding: uniform, Reason: "constant buffer is not var<uniform>"})
	default:
		found = append(found, checkConstants(plan, module, gv, uniform)...)
	}

	if len(found) == 0 {
		return nil
	}
	return &MismatchError{Shape: plan.Shape.String(), Mismatches: found}
}

// groupZero indexes the group 0 globals by binding.
func groupZero(module *ir.Module) map[uint32]*ir.GlobalVariable {
	globals := make(map[uint32]*ir.GlobalVariable)
	for i := range module.GlobalVariables {
		gv := &module.GlobalVariables[i]
		if gv.Binding == nil || gv.Binding.Group != 0 {
			continue
		}
		globals[gv.Binding.Binding] = gv
	}
	return globals
}

// checkConstants compares the uniform struct layout with the value
// placements of plan. Struct members are matched to values by position
// after the three extent members.
func checkConstants(plan *dispatch.Plan, module *ir.Module, gv *ir.GlobalVariable, binding uint32) []Mismatch {
	if int(gv.Type) >= len(module.Types) {
		return []Mismatch{{Binding: binding, Reason: "constant buffer type out of range"}}
	}
	st, ok := module.Types[gv.Type].Inner.(ir.StructType)
	if !ok {
		return []Mismatch{{Binding: binding, Reason: "constant buffer is not a struct"}}
	}

	var found []Mismatch
	if st.Span < uint32(plan.ConstantBufferSize) { //nolint:gosec // constant buffers are small
		found = append(found, Mismatch{
			Binding: binding,
			Reason:  fmt.Sprintf("struct is %d bytes, constants need %d", st.Span, plan.ConstantBufferSize),
		})
	}

	const extents = dispatch.DimensionsSize / 4
	if len(st.Members) < extents {
		return append(found, Mismatch{Binding: binding, Reason: "missing dispatch extents"})
	}
	for i := 0; i < extents; i++ {
		if want := uint32(i * 4); st.Members[i].Offset != want { //nolint:gosec // i < 3
			found = append(found, Mismatch{
				Binding: binding,
				Member:  st.Members[i].Name,
				Reason:  fmt.Sprintf("extent at offset %d, want %d", st.Members[i].Offset, want),
			})
		}
	}

	values := plan.Values()
	rest := st.Members[extents:]
	if len(rest) != len(values) {
		found = append(found, Mismatch{
			Binding: binding,
			Reason:  fmt.Sprintf("struct has %d value members, want %d", len(rest), len(values)),
		})
	}
	for i := 0; i < len(rest) && i < len(values); i++ {
		if uint32(values[i].Offset) != rest[i].Offset { //nolint:gosec // offsets are small
			found = append(found, Mismatch{
				Binding: binding,
				Member:  values[i].Member,
				Reason: fmt.Sprintf("%s at offset %d, want %d",
					rest[i].Name, rest[i].Offset, values[i].Offset),
			})
		}
	}
	return found
}

func accessName(readOnly bool) string {
	if readOnly {
		return "read"
	}
	return "read_write"
}
