package stats

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/cyclopcam/statsview/pkg/geom"
)

// Shape is one statistics item of a frame. The concrete types are
// ValueItem, VectorItem, AffineTFItem, PolygonValueItem and PolygonVectorItem.
type Shape interface {
	// Bounds of the shape, used for spatial indexing
	Bounds() geom.Rect
	// Contains returns true if pos hits the shape
	Contains(pos geom.Point) bool
	isShape()
}

// A block with a single value (eg a prediction mode or a QP)
type ValueItem struct {
	Rect  geom.Rect `json:"rect"`
	Value int       `json:"value"`
}

// A block with a vector.
// If IsLine is true, the vector runs from Point[0] to Point[1].
// Otherwise the vector is Point[0], and Point[1] is unused.
type VectorItem struct {
	Rect   geom.Rect     `json:"rect"`
	Point  [2]geom.Point `json:"point"`
	IsLine bool          `json:"isLine"`
}

// A block with an affine transform, described by the motion vectors of three control points
type AffineTFItem struct {
	Rect  geom.Rect     `json:"rect"`
	Point [3]geom.Point `json:"point"`
}

// A polygon with a single value
type PolygonValueItem struct {
	Corners geom.Polygon `json:"corners"`
	Value   int          `json:"value"`
}

// A polygon with a vector
type PolygonVectorItem struct {
	Corners geom.Polygon `json:"corners"`
	Point   geom.Point   `json:"point"`
}

func (v ValueItem) Bounds() geom.Rect             { return v.Rect.Normalize() }
func (v ValueItem) Contains(pos geom.Point) bool  { return v.Rect.Contains(pos) }
func (v VectorItem) Bounds() geom.Rect            { return v.Rect.Normalize() }
func (v VectorItem) Contains(pos geom.Point) bool { return v.Rect.Contains(pos) }
func (a AffineTFItem) Bounds() geom.Rect          { return a.Rect.Normalize() }
func (a AffineTFItem) Contains(pos geom.Point) bool {
	return a.Rect.Contains(pos)
}
func (p PolygonValueItem) Bounds() geom.Rect { return p.Corners.Bounds() }
func (p PolygonValueItem) Contains(pos geom.Point) bool {
	return len(p.Corners) != 0 && p.Corners.Contains(pos)
}
func (p PolygonVectorItem) Bounds() geom.Rect { return p.Corners.Bounds() }
func (p PolygonVectorItem) Contains(pos geom.Point) bool {
	return len(p.Corners) != 0 && p.Corners.Contains(pos)
}

func (ValueItem) isShape()         {}
func (VectorItem) isShape()        {}
func (AffineTFItem) isShape()      {}
func (PolygonValueItem) isShape()  {}
func (PolygonVectorItem) isShape() {}

// Vector returns the vector that this item displays, before scaling
func (v VectorItem) Vector() geom.Point {
	if v.IsLine {
		return v.Point[1].Sub(v.Point[0])
	}
	return v.Point[0]
}

// Below this many shapes, a linear scan is faster than building a spatial index
const minShapesForIndex = 32

// FrameTypeData holds all the statistics items of one type, for one frame.
// Once a FrameTypeData has been inserted into StatisticsData, it must not be modified.
type FrameTypeData struct {
	ValueData         []ValueItem         `json:"values,omitempty"`
	VectorData        []VectorItem        `json:"vectors,omitempty"`
	AffineTFData      []AffineTFItem      `json:"affine,omitempty"`
	PolygonValueData  []PolygonValueItem  `json:"polygonValues,omitempty"`
	PolygonVectorData []PolygonVectorItem `json:"polygonVectors,omitempty"`

	index *flatbush.Flatbush[int32] // nil if there are too few shapes to bother
}

func (d *FrameTypeData) AddValue(rect geom.Rect, value int) {
	d.ValueData = append(d.ValueData, ValueItem{Rect: rect, Value: value})
}

func (d *FrameTypeData) AddVector(rect geom.Rect, dx, dy int) {
	d.VectorData = append(d.VectorData, VectorItem{Rect: rect, Point: [2]geom.Point{{X: dx, Y: dy}}})
}

func (d *FrameTypeData) AddLine(rect geom.Rect, from, to geom.Point) {
	d.VectorData = append(d.VectorData, VectorItem{Rect: rect, Point: [2]geom.Point{from, to}, IsLine: true})
}

func (d *FrameTypeData) AddAffineTF(rect geom.Rect, p0, p1, p2 geom.Point) {
	d.AffineTFData = append(d.AffineTFData, AffineTFItem{Rect: rect, Point: [3]geom.Point{p0, p1, p2}})
}

func (d *FrameTypeData) AddPolygonValue(corners geom.Polygon, value int) {
	d.PolygonValueData = append(d.PolygonValueData, PolygonValueItem{Corners: corners, Value: value})
}

func (d *FrameTypeData) AddPolygonVector(corners geom.Polygon, vector geom.Point) {
	d.PolygonVectorData = append(d.PolygonVectorData, PolygonVectorItem{Corners: corners, Point: vector})
}

// NumShapes returns the total number of items of all kinds
func (d *FrameTypeData) NumShapes() int {
	return len(d.ValueData) + len(d.VectorData) + len(d.AffineTFData) + len(d.PolygonValueData) + len(d.PolygonVectorData)
}

func (d *FrameTypeData) IsEmpty() bool {
	return d.NumShapes() == 0
}

// Shapes returns all items as a single sequence.
// The order is: values, vectors, affine transforms, polygon values, polygon vectors.
// Within each kind, items keep their insertion order.
func (d *FrameTypeData) Shapes() []Shape {
	out := make([]Shape, 0, d.NumShapes())
	for i := 0; i < d.NumShapes(); i++ {
		out = append(out, d.shapeAt(i))
	}
	return out
}

// shapeAt returns the i'th shape, in the order defined by Shapes()
func (d *FrameTypeData) shapeAt(i int) Shape {
	if i < len(d.ValueData) {
		return d.ValueData[i]
	}
	i -= len(d.ValueData)
	if i < len(d.VectorData) {
		return d.VectorData[i]
	}
	i -= len(d.VectorData)
	if i < len(d.AffineTFData) {
		return d.AffineTFData[i]
	}
	i -= len(d.AffineTFData)
	if i < len(d.PolygonValueData) {
		return d.PolygonValueData[i]
	}
	i -= len(d.PolygonValueData)
	return d.PolygonVectorData[i]
}

// buildIndex creates the spatial index used by shapesAt
func (d *FrameTypeData) buildIndex() {
	n := d.NumShapes()
	if n < minShapesForIndex {
		d.index = nil
		return
	}
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(n)
	for i := 0; i < n; i++ {
		b := d.shapeAt(i).Bounds()
		fb.Add(int32(b.X), int32(b.Y), int32(b.X2()), int32(b.Y2()))
	}
	fb.Finish()
	d.index = fb
}

// shapesAt returns the shapes that contain pos, in the order defined by Shapes()
func (d *FrameTypeData) shapesAt(pos geom.Point) []Shape {
	var hits []Shape
	if d.index == nil {
		for i := 0; i < d.NumShapes(); i++ {
			if s := d.shapeAt(i); s.Contains(pos) {
				hits = append(hits, s)
			}
		}
		return hits
	}
	candidates := d.index.Search(int32(pos.X), int32(pos.Y), int32(pos.X), int32(pos.Y))
	sort.Ints(candidates)
	for _, i := range candidates {
		if s := d.shapeAt(i); s.Contains(pos) {
			hits = append(hits, s)
		}
	}
	return hits
}
