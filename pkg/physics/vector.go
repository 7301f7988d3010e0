package physics

import "math"

// Vec2 is a point or direction on the track plane.
// Z is the world depth axis, the height axis is not simulated.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func V(x, z float64) Vec2 {
	return Vec2{X: x, Z: z}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Z: v.Z + o.Z}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Z: v.Z - o.Z}
}

func (v Vec2) Scale(f float64) Vec2 {
	return Vec2{X: v.X * f, Z: v.Z * f}
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Z*o.Z
}

func (v Vec2) LenSq() float64 {
	return v.X*v.X + v.Z*v.Z
}

func (v Vec2) Len() float64 {
	return math.Sqrt(v.LenSq())
}

// Normalize returns the unit vector of v. The zero vector stays zero.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Z: v.Z / l}
}

// ClampLen scales v down to max if it is longer.
func (v Vec2) ClampLen(maxLen float64) Vec2 {
	if l := v.Len(); l > maxLen && l > 0 {
		return v.Scale(maxLen / l)
	}
	return v
}

// Perp returns v rotated by 90 degrees (the left hand normal of a direction).
func (v Vec2) Perp() Vec2 {
	return Vec2{X: -v.Z, Z: v.X}
}

func (v Vec2) Lerp(to Vec2, t float64) Vec2 {
	return Vec2{X: Lerp(v.X, to.X, t), Z: Lerp(v.Z, to.Z, t)}
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Vec2) float64 {
	return math.Sqrt(DistanceSquared(a, b))
}

// DistanceSquared avoids the sqrt when only comparing distances.
func DistanceSquared(a, b Vec2) float64 {
	dx := a.X - b.X
	dz := a.Z - b.Z
	return dx*dx + dz*dz
}

// PointInCircle reports whether p lies strictly inside the circle.
func PointInCircle(p, center Vec2, radius float64) bool {
	return DistanceSquared(p, center) < radius*radius
}

// HeadingVector returns the unit direction for a yaw angle.
// Yaw 0 faces +Z, increasing yaw turns towards +X.
func HeadingVector(yaw float64) Vec2 {
	return Vec2{X: math.Sin(yaw), Z: math.Cos(yaw)}
}

// YawOf is the inverse of HeadingVector.
func YawOf(dir Vec2) float64 {
	return math.Atan2(dir.X, dir.Z)
}
