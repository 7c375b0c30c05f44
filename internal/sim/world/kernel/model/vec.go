package model

import "fmt"

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Up(n int) Vec3i { return Vec3i{X: v.X, Y: v.Y + n, Z: v.Z} }

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

func Manhattan(a, b Vec3i) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y) + abs(a.Z-b.Z)
}

// DistSq is the squared euclidean distance.
func DistSq(a, b Vec3i) int {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return dx*dx + dy*dy + dz*dz
}

// StepToward moves one block along the dominant axis from a toward b.
func StepToward(a, b Vec3i) Vec3i {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	if dx == 0 && dy == 0 && dz == 0 {
		return a
	}
	switch {
	case abs(dx) >= abs(dz) && abs(dx) >= abs(dy):
		a.X += sign(dx)
	case abs(dz) >= abs(dy):
		a.Z += sign(dz)
	default:
		a.Y += sign(dy)
	}
	return a
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
