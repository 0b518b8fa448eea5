// Package vec provides fixed-size vector types that dispatch packs as
// shader vectors.
//
// Each type is an array, so it has the memory layout of the matching WGSL
// vector (vec2<f32>, vec3<i32>, ...). Bool vectors are packed with 4 bytes
// per component.
package vec

// Float vectors (vec2<f32>, vec3<f32>, vec4<f32>).
type (
	Float2 [2]float32
	Float3 [3]float32
	Float4 [4]float32
)

// Signed integer vectors (vec2<i32>, vec3<i32>, vec4<i32>).
type (
	Int2 [2]int32
	Int3 [3]int32
	Int4 [4]int32
)

// Unsigned integer vectors (vec2<u32>, vec3<u32>, vec4<u32>).
type (
	Uint2 [2]uint32
	Uint3 [3]uint32
	Uint4 [4]uint32
)

// Double precision vectors.
type (
	Double2 [2]float64
	Double3 [3]float64
	Double4 [4]float64
)

// Bool vectors (vec2<bool>, vec3<bool>, vec4<bool>).
type (
	Bool2 [2]bool
	Bool3 [3]bool
	Bool4 [4]bool
)

// F2 is a convenience function to create a Float2.
func F2(x, y float32) Float2 { return Float2{x, y} }

// F3 is a convenience function to create a Float3.
func F3(x, y, z float32) Float3 { return Float3{x, y, z} }

// F4 is a convenience function to create a Float4.
func F4(x, y, z, w float32) Float4 { return Float4{x, y, z, w} }

// I2 is a convenience function to create an Int2.
func I2(x, y int32) Int2 { return Int2{x, y} }

// I3 is a convenience function to create an Int3.
func I3(x, y, z int32) Int3 { return Int3{x, y, z} }

// I4 is a convenience function to create an Int4.
func I4(x, y, z, w int32) Int4 { return Int4{x, y, z, w} }

// U2 is a convenience function to create a Uint2.
func U2(x, y uint32) Uint2 { return Uint2{x, y} }

// U3 is a convenience function to create a Uint3.
func U3(x, y, z uint32) Uint3 { return Uint3{x, y, z} }

// U4 is a convenience function to create a Uint4.
func U4(x, y, z, w uint32) Uint4 { return Uint4{x, y, z, w} }

// X returns the first component.
func (v Float2) X() float32 { return v[0] }

// Y returns the second component.
func (v Float2) Y() float32 { return v[1] }

// Add returns the sum of two vectors.
func (v Float2) Add(w Float2) Float2 { return Float2{v[0] + w[0], v[1] + w[1]} }

// Scale returns the vector scaled by s.
func (v Float2) Scale(s float32) Float2 { return Float2{v[0] * s, v[1] * s} }

// Dot returns the dot product of two vectors.
func (v Float2) Dot(w Float2) float32 { return v[0]*w[0] + v[1]*w[1] }

// XY returns the first two components.
func (v Float3) XY() Float2 { return Float2{v[0], v[1]} }

// Add returns the sum of two vectors.
func (v Float3) Add(w Float3) Float3 {
	return Float3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Scale returns the vector scaled by s.
func (v Float3) Scale(s float32) Float3 { return Float3{v[0] * s, v[1] * s, v[2] * s} }

// Dot returns the dot product of two vectors.
func (v Float3) Dot(w Float3) float32 { return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] }

// Cross returns the cross product of two vectors.
func (v Float3) Cross(w Float3) Float3 {
	return Float3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// XYZ returns the first three components.
func (v Float4) XYZ() Float3 { return Float3{v[0], v[1], v[2]} }

// Add returns the sum of two vectors.
func (v Float4) Add(w Float4) Float4 {
	return Float4{v[0] + w[0], v[1] + w[1], v[2] + w[2], v[3] + w[3]}
}

// Scale returns the vector scaled by s.
func (v Float4) Scale(s float32) Float4 {
	return Float4{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

// Dot returns the dot product of two vectors.
func (v Float4) Dot(w Float4) float32 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] + v[3]*w[3]
}

// Splat returns a Float4 with every component set to s.
func Splat(s float32) Float4 { return Float4{s, s, s, s} }

// Any reports whether any component is true.
func (v Bool4) Any() bool { return v[0] || v[1] || v[2] || v[3] }

// All reports whether every component is true.
func (v Bool4) All() bool { return v[0] && v[1] && v[2] && v[3] }
