package stats

import "github.com/cyclopcam/statsview/pkg/geom"

type number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Summary describes the statistics of one type in the current frame
type Summary struct {
	TypeID        int
	NumShapes     int
	ValueMean     float64 // Mean of the block and polygon values
	ValueVariance float64
	ValueMode     int // Most frequent value
	ValueModeN    int // Number of occurrences of ValueMode
	MaxVector     float32 // Longest vector, affine control points included, after VectorScale is applied
}

// Summary of the current frame's data for typeID.
// A type without data produces a zero summary.
func (s *StatisticsData) Summary(typeID int) Summary {
	sum := Summary{TypeID: typeID}
	t, ok := s.Types.Find(typeID)
	if !ok {
		return sum
	}
	d := s.FrameTypeData(typeID)
	sum.NumShapes = d.NumShapes()

	values := make([]int, 0, len(d.ValueData)+len(d.PolygonValueData))
	for _, v := range d.ValueData {
		values = append(values, v.Value)
	}
	for _, v := range d.PolygonValueData {
		values = append(values, v.Value)
	}
	if len(values) != 0 {
		sum.ValueMean, sum.ValueVariance = meanVar(values)
		sum.ValueMode, sum.ValueModeN = mode(values)
	}

	vectors := make([]geom.Point, 0, len(d.VectorData)+3*len(d.AffineTFData)+len(d.PolygonVectorData))
	for _, v := range d.VectorData {
		vectors = append(vectors, v.Vector())
	}
	for _, a := range d.AffineTFData {
		vectors = append(vectors, a.Point[:]...)
	}
	for _, v := range d.PolygonVectorData {
		vectors = append(vectors, v.Point)
	}
	for _, v := range vectors {
		sum.MaxVector = max(sum.MaxVector, v.Length())
	}
	sum.MaxVector /= t.vectorScale()
	return sum
}

// Returns (mean, variance) of the given samples.
func meanVar[T number](samples []T) (float64, float64) {
	mean := 0.0
	for _, v := range samples {
		mean += float64(v)
	}
	mean /= float64(len(samples))
	variance := 0.0
	for _, v := range samples {
		diff := float64(v) - mean
		variance += diff * diff
	}
	return mean, variance / float64(len(samples))
}

// Returns the most frequent element and its count. Ties go to the smallest value.
func mode[T number](src []T) (m T, count int) {
	counts := make(map[T]int)
	for _, v := range src {
		counts[v]++
	}
	for k, v := range counts {
		if v > count || (v == count && k < m) {
			m = k
			count = v
		}
	}
	return
}
