// Package geom provides the planar geometry used for lane attribution.
package geom

import "math"

// Point is a position in image coordinates (pixels, origin top-left).
type Point struct {
	X float64
	Y float64
}

// Polygon is a closed region described by an ordered vertex list. The
// closing edge from the last vertex back to the first is implicit.
type Polygon struct {
	Vertices []Point
}

// PointInPolygon tests whether a point lies inside a polygon. The single
// concrete implementation is RayCaster; the interface keeps the
// containment contract (boundary policy included) independently testable
// and swappable.
type PointInPolygon interface {
	Contains(p Point, poly Polygon) bool
}

// RayCaster implements PointInPolygon with an even-odd ray-casting test.
//
// Boundary policy: a point exactly on an edge or vertex counts as
// contained. A bounding-box centre sitting on a shared lane border must
// still attribute to a lane rather than fall through as unassigned.
type RayCaster struct{}

// Contains reports whether p is inside poly or on its boundary.
// Degenerate polygons (fewer than 3 vertices) contain nothing.
func (RayCaster) Contains(p Point, poly Polygon) bool {
	n := len(poly.Vertices)
	if n < 3 {
		return false
	}

	// Boundary check first: on-edge points are contained regardless of
	// what the crossing count would say.
	for i := 0; i < n; i++ {
		a := poly.Vertices[i]
		b := poly.Vertices[(i+1)%n]
		if onSegment(p, a, b) {
			return true
		}
	}

	// Even-odd rule: cast a ray towards +X and count edge crossings.
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a := poly.Vertices[i]
		b := poly.Vertices[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// onSegment reports whether p lies on the closed segment ab, within a
// small tolerance for floating point noise.
func onSegment(p, a, b Point) bool {
	const eps = 1e-9

	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if math.Abs(cross) > eps*(math.Abs(b.X-a.X)+math.Abs(b.Y-a.Y)+1) {
		return false
	}
	if p.X < math.Min(a.X, b.X)-eps || p.X > math.Max(a.X, b.X)+eps {
		return false
	}
	if p.Y < math.Min(a.Y, b.Y)-eps || p.Y > math.Max(a.Y, b.Y)+eps {
		return false
	}
	return true
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
