// Package dispatch marshals compute shader state into GPU dispatch data.
//
// # Overview
//
// A compute shader is described by a Go struct. Its exported fields, plus
// any statics it declares, are the captured members of the shader: the GPU
// buffers it reads and writes, and the scalar and vector values it is
// parameterized by. For every dispatch, dispatch extracts those members into
// two flat buffers:
//
//   - a resource table holding the descriptor handle of each GPU buffer,
//     one slot per resource, in member order
//   - a constant buffer starting with the dispatch extents (x, y, z as
//     little-endian 32-bit integers) followed by every value, packed so
//     that no value straddles a 16-byte row
//
// The layout of a shape is computed once and cached; later dispatches of
// the same shape only copy bytes.
//
// # Quick Start
//
//	type Scale struct {
//	    Input  *dispatch.Buffer `dispatch:"readonly"`
//	    Output *dispatch.Buffer
//	    Factor float32
//	    Bias   vec.Float2
//	}
//
//	d := dispatch.NewDispatcher()
//	data, err := d.Assemble(device, &Scale{Input: in, Output: out, Factor: 2}, 1024, 1, 1)
//	if err != nil {
//	    return err
//	}
//	defer data.Release()
//
// # Captured Members
//
// Member discovery follows these rules:
//   - exported fields are captured in declaration order
//   - fields tagged `dispatch:"-"` are skipped
//   - fields tagged `dispatch:"readonly"` are bound as read-only storage
//   - shapes implementing [StaticProvider] append their statics after the
//     fields
//
// A field type implementing [Resource] is a resource. bool, int32, uint32,
// float32, int64, uint64 and float64 (and named types of them) are values,
// as are arrays of 2 to 4 of them; see package vec. Any other type makes
// the shape invalid.
//
// # Validation
//
// Every resource is checked on every dispatch: a released resource fails
// with [ErrResourceReleased], a resource of another device with
// [ErrDeviceMismatch], and a resource that cannot produce a descriptor
// handle with [ErrResourceBinding]. The first failing member aborts the
// dispatch.
//
// # Subpackages
//
//   - vec: fixed-size vector types accepted as values
//   - bindgroup: bind group layouts and bind groups built from a [Plan]
//   - wgslcheck: verifies a WGSL shader declares the bindings a [Plan] produces
package dispatch
