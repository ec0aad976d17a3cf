// Package geom содержит простую 2D-геометрию, общую для симуляции и протокола.
package geom

import "math"

// Vec2 is a 2-D vector in arena units.
type Vec2 struct {
	X, Y float64
}

// V is shorthand for Vec2{X: x, Y: y}.
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

func (v Vec2) LenSq() float64 { return v.X*v.X + v.Y*v.Y }

// DistSq returns the squared distance between v and o.
func (v Vec2) DistSq(o Vec2) float64 { return v.Sub(o).LenSq() }

// IsZero reports whether both components are exactly zero.
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Finite reports whether neither component is NaN or ±Inf.
func (v Vec2) Finite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Normalized returns the unit vector in the direction of v.
// Zero-length and non-finite vectors normalise to the zero vector.
func (v Vec2) Normalized() Vec2 {
	if !v.Finite() {
		return Vec2{}
	}
	l := v.Len()
	if l == 0 || math.IsInf(l, 0) {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Rect is an axis-aligned rectangle given by its top-left corner and size.
type Rect struct {
	X, Y, W, H float64
}

// CenteredRect builds a rectangle of size (w, h) centred on c.
func CenteredRect(c Vec2, w, h float64) Rect {
	return Rect{X: c.X - w/2, Y: c.Y - h/2, W: w, H: h}
}

// Center returns the centre point of r.
func (r Rect) Center() Vec2 { return Vec2{r.X + r.W/2, r.Y + r.H/2} }

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// CircleOverlaps reports whether a circle at c with radius rad overlaps r.
// Touching edges do not count as overlap.
func (r Rect) CircleOverlaps(c Vec2, rad float64) bool {
	nx := clamp(c.X, r.X, r.X+r.W)
	ny := clamp(c.Y, r.Y, r.Y+r.H)
	dx, dy := c.X-nx, c.Y-ny
	return dx*dx+dy*dy < rad*rad
}

// CirclesOverlap reports whether two circles strictly overlap.
func CirclesOverlap(a Vec2, ra float64, b Vec2, rb float64) bool {
	r := ra + rb
	return a.DistSq(b) < r*r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
