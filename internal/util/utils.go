package util

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Number is any built-in numeric type the helpers accept
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Lerp performs linear interpolation between a and b with t in [0,1]
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Clamp restricts a value to be between lo and hi
func Clamp[T Number](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// ClampByte rounds v and restricts it to [0,255]
func ClampByte(v float64) uint8 {
	return uint8(Clamp(math.Round(v), 0, 255))
}

// Abs returns the absolute value of v
func Abs[T Number](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// Sign returns -1, 0 or 1
func Sign[T Number](v T) T {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// WrapAngle maps degrees into [0,360)
func WrapAngle(deg float32) float32 {
	a := float32(math.Mod(float64(deg), 360))
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// FloorDiv divides rounding toward negative infinity
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// NextPow2 returns the smallest power of two >= v (1 for v <= 1)
func NextPow2(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

// PivotRotation returns the 2D affine matrix rotating by deg degrees
// (clockwise on a y-down screen) around (px,py).
func PivotRotation(px, py, deg float32) mgl32.Mat3 {
	return mgl32.Translate2D(px, py).
		Mul3(mgl32.HomogRotate2D(mgl32.DegToRad(deg))).
		Mul3(mgl32.Translate2D(-px, -py))
}

// Transform2D applies an affine matrix to a point
func Transform2D(m mgl32.Mat3, x, y float32) (float32, float32) {
	v := m.Mul3x1(mgl32.Vec3{x, y, 1})
	return v[0], v[1]
}
