package math

import (
	"github.com/chewxy/math32"
)

const (
	/** @brief An approximate representation of PI. */
	K_PI float32 = math32.Pi
	/** @brief An approximate representation of PI multiplied by 2. */
	K_PI_2 float32 = 2.0 * math32.Pi
	/** @brief Smallest positive number where 1.0 + FLOAT_EPSILON != 0 */
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func (v Vec2) Compare(o Vec2, tolerance float32) bool {
	return math32.Abs(v.X-o.X) <= tolerance &&
		math32.Abs(v.Y-o.Y) <= tolerance
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) MulScalar(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float32 {
	return math32.Sqrt(v.Dot(v))
}

// Normalized returns a unit-length copy. The zero vector is returned
// unchanged rather than producing NaNs.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l <= K_FLOAT_EPSILON {
		return v
	}
	inv := 1.0 / l
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}

func (v Vec3) Compare(o Vec3, tolerance float32) bool {
	return math32.Abs(v.X-o.X) <= tolerance &&
		math32.Abs(v.Y-o.Y) <= tolerance &&
		math32.Abs(v.Z-o.Z) <= tolerance
}

func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{math32.Min(v.X, o.X), math32.Min(v.Y, o.Y), math32.Min(v.Z, o.Z)}
}

func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{math32.Max(v.X, o.X), math32.Max(v.Y, o.Y), math32.Max(v.Z, o.Z)}
}

// Center returns the midpoint of the box.
func (e Extents3D) Center() Vec3 {
	return e.Min.Add(e.Max).MulScalar(0.5)
}

// Size returns the per-axis extent of the box.
func (e Extents3D) Size() Vec3 {
	return e.Max.Sub(e.Min)
}

// Radius is the half-diagonal length, used for LOD distance scaling and
// by external renderers for sphere culling.
func (e Extents3D) Radius() float32 {
	return e.Size().Length() * 0.5
}
