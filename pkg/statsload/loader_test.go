package statsload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/statsview/pkg/geom"
	"github.com/cyclopcam/statsview/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("broken type")

// fakeSource produces a single value block per type, whose value is frameIndex*100 + typeID
type fakeSource struct {
	lock   sync.Mutex
	calls  []int // typeIDs, in call order
	broken map[int]bool
	// If not nil, called before returning (on the loader goroutine)
	hook func(ctx context.Context, frameIndex, typeID int) error
}

func (f *fakeSource) LoadStatistics(ctx context.Context, frameIndex, typeID int) (*stats.FrameTypeData, error) {
	f.lock.Lock()
	f.calls = append(f.calls, typeID)
	broken := f.broken[typeID]
	hook := f.hook
	f.lock.Unlock()
	if hook != nil {
		if err := hook(ctx, frameIndex, typeID); err != nil {
			return nil, err
		}
	}
	if broken {
		return nil, errBroken
	}
	d := &stats.FrameTypeData{}
	d.AddValue(geom.Rect{X: 0, Y: 0, Width: 8, Height: 8}, frameIndex*100+typeID)
	return d, nil
}

func (f *fakeSource) Calls() []int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]int{}, f.calls...)
}

func newTestStats(t *testing.T) *stats.StatisticsData {
	s := stats.NewStatisticsData(logs.NewTestingLog(t))
	for i, name := range []string{"A", "B", "C"} {
		st := stats.NewType(i+1, name)
		st.Render = name != "B"
		s.AddStatType(st)
	}
	return s
}

func valueOf(s *stats.StatisticsData, typeID int) int {
	d := s.FrameTypeData(typeID)
	if len(d.ValueData) == 0 {
		return -1
	}
	return d.ValueData[0].Value
}

func TestLoadFrame(t *testing.T) {
	s := newTestStats(t)
	src := &fakeSource{}
	loaded := []int{}
	settings := DefaultSettings()
	settings.OnLoaded = func(frameIndex int) { loaded = append(loaded, frameIndex) }
	l := NewLoader(logs.NewTestingLog(t), s, src, settings)
	defer l.Close()

	require.NoError(t, l.LoadFrame(context.Background(), 4))
	require.Equal(t, []int{1, 3}, src.Calls())
	require.Equal(t, 4, s.FrameIndex())
	require.Equal(t, 401, valueOf(s, 1))
	require.Equal(t, -1, valueOf(s, 2))
	require.Equal(t, 403, valueOf(s, 3))
	require.Equal(t, []int{4}, loaded)
	require.Equal(t, stats.LoadingNotNeeded, s.NeedsLoading(4))

	// Nothing to do the second time around
	require.NoError(t, l.LoadFrame(context.Background(), 4))
	require.Equal(t, []int{1, 3}, src.Calls())
	require.Equal(t, []int{4}, loaded)

	// Turning on another type only loads that type
	s.Types.SetRender(2, true)
	require.NoError(t, l.LoadFrame(context.Background(), 4))
	require.Equal(t, []int{1, 3, 2}, src.Calls())
	require.Equal(t, 402, valueOf(s, 2))

	c := l.Counters()
	require.Equal(t, uint64(3), c.TypesLoaded)
	require.Equal(t, uint64(0), c.StaleDrops)
	require.Equal(t, uint64(0), c.LoadErrors)
}

func TestLoadFrameErrors(t *testing.T) {
	s := newTestStats(t)
	src := &fakeSource{broken: map[int]bool{1: true}}
	onLoadedCalls := 0
	settings := DefaultSettings()
	settings.OnLoaded = func(frameIndex int) { onLoadedCalls++ }
	l := NewLoader(logs.NewTestingLog(t), s, src, settings)
	defer l.Close()

	err := l.LoadFrame(context.Background(), 0)
	require.ErrorIs(t, err, errBroken)
	// The broken type doesn't prevent the others from loading
	require.Equal(t, 3, valueOf(s, 3))
	require.Equal(t, stats.LoadingNeeded, s.NeedsLoading(0))
	require.Equal(t, 0, onLoadedCalls)
	require.Equal(t, uint64(1), l.Counters().LoadErrors)
}

func TestLoadFrameSuperseded(t *testing.T) {
	s := newTestStats(t)
	src := &fakeSource{}
	src.hook = func(ctx context.Context, frameIndex, typeID int) error {
		if frameIndex == 1 && typeID == 1 {
			// The viewer jumps to another frame while we're loading
			s.SetFrameIndex(2)
		}
		return nil
	}
	l := NewLoader(logs.NewTestingLog(t), s, src, DefaultSettings())
	defer l.Close()

	require.NoError(t, l.LoadFrame(context.Background(), 1))
	// Type 3 was never fetched, and nothing of frame 1 ended up in the cache
	require.Equal(t, []int{1}, src.Calls())
	require.Equal(t, 2, s.FrameIndex())
	require.Equal(t, -1, valueOf(s, 1))
	require.Equal(t, uint64(1), l.Counters().StaleDrops)
}

func TestLoadTimeout(t *testing.T) {
	s := newTestStats(t)
	src := &fakeSource{}
	src.hook = func(ctx context.Context, frameIndex, typeID int) error {
		<-ctx.Done()
		return ctx.Err()
	}
	settings := DefaultSettings()
	settings.MaxTypeLoadTime = 5 * time.Millisecond
	l := NewLoader(logs.NewTestingLog(t), s, src, settings)
	defer l.Close()

	err := l.LoadFrame(context.Background(), 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, []int{1, 3}, src.Calls())
	require.Equal(t, uint64(2), l.Counters().LoadErrors)
}

func TestRequest(t *testing.T) {
	s := newTestStats(t)
	release := make(chan bool)
	src := &fakeSource{}
	src.hook = func(ctx context.Context, frameIndex, typeID int) error {
		if frameIndex == 0 {
			<-release
		}
		return nil
	}
	loaded := make(chan int, 10)
	settings := DefaultSettings()
	settings.OnLoaded = func(frameIndex int) { loaded <- frameIndex }
	l := NewLoader(logs.NewTestingLog(t), s, src, settings)
	defer l.Close()

	l.Request(0)
	// Wait for the loader to be stuck inside frame 0
	require.Eventually(t, func() bool { return len(src.Calls()) == 1 }, time.Second, time.Millisecond)

	// These pile up while frame 0 is busy. Only the last one survives.
	for f := 1; f <= 5; f++ {
		l.Request(f)
	}
	close(release)

	require.Equal(t, 0, <-loaded)
	require.Equal(t, 5, <-loaded)
	require.Equal(t, 5, s.FrameIndex())
	require.Equal(t, 501, valueOf(s, 1))
	select {
	case f := <-loaded:
		t.Fatalf("Unexpected load of frame %v", f)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCloseCancelsLoad(t *testing.T) {
	s := newTestStats(t)
	started := make(chan bool)
	src := &fakeSource{}
	src.hook = func(ctx context.Context, frameIndex, typeID int) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	settings := DefaultSettings()
	settings.MaxTypeLoadTime = 0
	l := NewLoader(logs.NewTestingLog(t), s, src, settings)
	l.Request(0)
	<-started
	l.Close()
	require.Equal(t, []int{1}, src.Calls())
	require.Equal(t, uint64(0), l.Counters().LoadErrors)
}

func TestMetrics(t *testing.T) {
	s := newTestStats(t)
	l := NewLoader(logs.NewTestingLog(t), s, &fakeSource{}, DefaultSettings())
	defer l.Close()
	require.NoError(t, l.LoadFrame(context.Background(), 0))

	reg := prometheus.NewRegistry()
	require.NoError(t, l.RegisterMetrics(reg))
	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		m := f.GetMetric()[0]
		if m.GetCounter() != nil {
			values[f.GetName()] = m.GetCounter().GetValue()
		} else {
			values[f.GetName()] = m.GetGauge().GetValue()
		}
	}
	require.Equal(t, float64(2), values["statsview_loader_types_loaded_total"])
	require.Equal(t, float64(0), values["statsview_loader_stale_drops_total"])
	require.Equal(t, float64(0), values["statsview_loader_errors_total"])
	require.Contains(t, values, "statsview_loader_average_load_seconds")

	// Registering twice is an error
	require.Error(t, l.RegisterMetrics(reg))
}

func TestLoggerPrefix(t *testing.T) {
	l := NewLoader(logs.NewTestingLog(t), newTestStats(t), &fakeSource{}, DefaultSettings())
	defer l.Close()
	prefixed, ok := l.Log.(*logs.PrefixLogger)
	require.True(t, ok)
	require.Equal(t, "StatsLoader: ", prefixed.Prefix)
}
