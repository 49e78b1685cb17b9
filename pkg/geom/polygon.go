package geom

import "math"

// Polygon is a closed ring of points. If the last point differs from the first,
// an edge from the last point back to the first is implied.
type Polygon []Point

// FuzzyCompare returns true if a and b are equal to about 12 significant digits.
// Note that this is never true for a non-zero value compared against zero.
func FuzzyCompare(a, b float64) bool {
	return math.Abs(a-b)*1e12 <= min(math.Abs(a), math.Abs(b))
}

// EdgeWinding returns the contribution of the directed edge p1->p2 to the winding
// number of pos, using the scanline convention:
//   - horizontal edges contribute nothing
//   - an edge covers the half-open interval [ymin, ymax)
//   - the edge counts if its x at pos.Y is <= pos.X
//
// The result is +1 for a downward edge (increasing y), -1 for an upward edge, or 0.
func EdgeWinding(p1, p2, pos Point) int {
	x1 := float64(p1.X)
	y1 := float64(p1.Y)
	x2 := float64(p2.X)
	y2 := float64(p2.Y)
	y := float64(pos.Y)
	dir := 1
	if FuzzyCompare(y1, y2) {
		return 0
	} else if y2 < y1 {
		x1, x2 = x2, x1
		y1, y2 = y2, y1
		dir = -1
	}
	if y >= y1 && y < y2 {
		x := x1 + ((x2-x1)/(y2-y1))*(y-y1)
		if x <= float64(pos.X) {
			return dir
		}
	}
	return 0
}

// Winding returns the winding number of pos with respect to the polygon
func (poly Polygon) Winding(pos Point) int {
	if len(poly) == 0 {
		return 0
	}
	winding := 0
	last := poly[0]
	for _, p := range poly[1:] {
		winding += EdgeWinding(last, p, pos)
		last = p
	}
	if last != poly[0] {
		winding += EdgeWinding(last, poly[0], pos)
	}
	return winding
}

// Contains uses the even-odd rule: pos is inside if its winding number is odd.
// An empty polygon contains nothing.
func (poly Polygon) Contains(pos Point) bool {
	if len(poly) == 0 {
		return false
	}
	return poly.Winding(pos)%2 != 0
}

// Bounds returns the smallest rectangle that touches every corner.
// The right and bottom corners lie on X2 and Y2, so use Contains on the
// polygon itself for exact tests.
func (poly Polygon) Bounds() Rect {
	if len(poly) == 0 {
		return Rect{}
	}
	x1, y1 := poly[0].X, poly[0].Y
	x2, y2 := x1, y1
	for _, p := range poly[1:] {
		x1 = min(x1, p.X)
		y1 = min(y1, p.Y)
		x2 = max(x2, p.X)
		y2 = max(y2, p.Y)
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
