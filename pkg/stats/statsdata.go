package stats

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/statsview/pkg/geom"
)

// ItemLoadingState tells the caller whether statistics must be loaded before a frame can be drawn
type ItemLoadingState int

const (
	LoadingNotNeeded ItemLoadingState = iota
	LoadingNeeded
)

func (s ItemLoadingState) String() string {
	switch s {
	case LoadingNotNeeded:
		return "LoadingNotNeeded"
	case LoadingNeeded:
		return "LoadingNeeded"
	}
	return fmt.Sprintf("ItemLoadingState(%d)", int(s))
}

// NoFrame is the frame index of an empty cache
const NoFrame = -1

// ValuePair is one line of hit-test output, eg {"MV[x]", "2"}
type ValuePair struct {
	Label string
	Text  string
}

// StatisticsData caches the statistics of a single frame, and answers
// "what needs loading" and "what is at this position" queries.
//
// A loader (producer) and the renderer (consumer) use StatisticsData from
// different goroutines. All access to the per-type cache goes through 'lock'.
// The frame index is additionally kept in an atomic, so that NeedsLoading can
// detect a frame change without taking the lock.
type StatisticsData struct {
	Log   logs.Log
	Types Registry

	frameIdx atomic.Int64 // Frame that 'frameCache' belongs to, or NoFrame

	lock       sync.Mutex // Guards frameCache and frameSize
	frameCache map[int]*FrameTypeData
	frameSize  geom.Size
}

func NewStatisticsData(log logs.Log) *StatisticsData {
	s := &StatisticsData{
		Log:        log,
		frameCache: map[int]*FrameTypeData{},
	}
	s.frameIdx.Store(NoFrame)
	return s
}

// AddStatType registers a new statistics type. See Registry.Add.
func (s *StatisticsData) AddStatType(t Type) (Type, bool) {
	return s.Types.Add(t)
}

// FrameIndex returns the frame that the cache currently holds data for, or NoFrame
func (s *StatisticsData) FrameIndex() int {
	return int(s.frameIdx.Load())
}

// SetFrameIndex points the cache at a new frame. If the frame changes, all
// cached data is discarded, and must be loaded again.
func (s *StatisticsData) SetFrameIndex(frameIndex int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.frameIdx.Load() != int64(frameIndex) {
		s.Log.Debugf("Statistics frame index %v -> %v", s.frameIdx.Load(), frameIndex)
		clear(s.frameCache)
		s.frameIdx.Store(int64(frameIndex))
	}
}

func (s *StatisticsData) SetFrameSize(size geom.Size) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.frameSize = size
}

func (s *StatisticsData) FrameSize() geom.Size {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.frameSize
}

// NeedsLoading returns LoadingNeeded if anything that is rendered is missing for frameIndex.
func (s *StatisticsData) NeedsLoading(frameIndex int) ItemLoadingState {
	// A new frame needs loading as soon as anything is rendered at all.
	// This check doesn't need the cache lock. It can only ever err towards LoadingNeeded.
	if int64(frameIndex) != s.frameIdx.Load() && s.Types.AnyRendered() {
		return LoadingNeeded
	}

	types := s.Types.Topmost()

	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range types {
		if types[i].Render && s.frameCache[types[i].TypeID] == nil {
			return LoadingNeeded
		}
	}
	return LoadingNotNeeded
}

// TypesThatNeedLoading returns the IDs of the rendered types that must be loaded
// before frameIndex can be drawn, in registration order.
// If frameIndex is not the cached frame, every rendered type is returned.
func (s *StatisticsData) TypesThatNeedLoading(frameIndex int) []int {
	types := s.Types.Types()

	s.lock.Lock()
	defer s.lock.Unlock()
	loadAll := int64(frameIndex) != s.frameIdx.Load()
	var typeIDs []int
	for i := range types {
		if types[i].Render && (loadAll || s.frameCache[types[i].TypeID] == nil) {
			typeIDs = append(typeIDs, types[i].TypeID)
		}
	}
	return typeIDs
}

// Insert stores the data of one type for frameIndex.
// If the cache has moved on to a different frame in the meantime, the data is
// stale. It is then discarded, and Insert returns false. Data for NoFrame is
// always rejected.
// The cache keeps its own copy of the FrameTypeData struct, but shares the item slices,
// so the caller must not modify them afterwards.
func (s *StatisticsData) Insert(frameIndex, typeID int, data *FrameTypeData) bool {
	d := &FrameTypeData{}
	if data != nil {
		*d = *data
	}
	d.buildIndex()

	s.lock.Lock()
	defer s.lock.Unlock()
	if frameIndex == NoFrame || s.frameIdx.Load() != int64(frameIndex) {
		s.Log.Debugf("Dropping statistics type %v of frame %v, because the cache now holds frame %v", typeID, frameIndex, s.frameIdx.Load())
		return false
	}
	s.frameCache[typeID] = d
	return true
}

// FrameTypeData returns the cached data of one type, for the current frame.
// If nothing is cached, the result is empty.
func (s *StatisticsData) FrameTypeData(typeID int) FrameTypeData {
	s.lock.Lock()
	defer s.lock.Unlock()
	d := s.frameCache[typeID]
	if d == nil {
		return FrameTypeData{}
	}
	return *d
}

// ValuesAt returns the values of all statistics at pos, for the current frame.
// Types are visited from the top of the drawing order down. Only types with
// RenderGrid set, and with data in the cache, take part. A type that has data
// but nothing at pos produces a single {name, "-"} entry.
func (s *StatisticsData) ValuesAt(pos geom.Point) []ValuePair {
	types := s.Types.Topmost()

	s.lock.Lock()
	defer s.lock.Unlock()

	var values []ValuePair
	for i := range types {
		t := &types[i]
		if !t.RenderGrid || t.TypeID == InvalidTypeID {
			continue
		}
		data := s.frameCache[t.TypeID]
		if data == nil {
			continue
		}
		found := false
		for _, shape := range data.shapesAt(pos) {
			n := len(values)
			values = appendShapeValues(values, t, shape)
			if len(values) != n {
				found = true
			}
		}
		if !found {
			values = append(values, ValuePair{t.TypeName, "-"})
		}
	}
	return values
}

// appendShapeValues adds the hit-test output of a single shape
func appendShapeValues(values []ValuePair, t *Type, shape Shape) []ValuePair {
	scale := t.vectorScale()
	switch item := shape.(type) {
	case ValueItem:
		txt := t.ValueText(item.Value)
		if txt == "" && t.ScaleValueToBlockSize {
			txt = blockScaledValueText(item.Value, item.Rect)
		}
		values = append(values, ValuePair{t.TypeName, txt})
	case VectorItem:
		v := item.Vector()
		values = appendVector(values, t.TypeName, v, scale)
	case AffineTFItem:
		for i, p := range item.Point {
			values = appendVector(values, fmt.Sprintf("%v_%v", t.TypeName, i), p, scale)
		}
	case PolygonValueItem:
		values = append(values, ValuePair{t.TypeName, t.ValueText(item.Value)})
	case PolygonVectorItem:
		if t.RenderVectorData {
			values = appendVector(values, t.TypeName, item.Point, scale)
		}
	}
	return values
}

func appendVector(values []ValuePair, label string, v geom.Point, scale float32) []ValuePair {
	return append(values,
		ValuePair{label + "[x]", formatFloat(float32(v.X) / scale)},
		ValuePair{label + "[y]", formatFloat(float32(v.Y) / scale)},
	)
}

func blockScaledValueText(value int, rect geom.Rect) string {
	area := rect.Normalize().Area()
	if area == 0 {
		return fmt.Sprintf("%v", value)
	}
	return formatFloat(float32(value) / float32(area))
}

// Clear resets the session: the cache, the frame index, the frame size, and all registered types
func (s *StatisticsData) Clear() {
	s.lock.Lock()
	clear(s.frameCache)
	s.frameIdx.Store(NoFrame)
	s.frameSize = geom.Size{}
	s.lock.Unlock()

	s.Types.Clear()
}
