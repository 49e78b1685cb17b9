package statsload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/statsview/pkg/stats"
)

// Source produces the statistics of one type for one frame.
// Typically this is a decoder or a statistics file parser.
type Source interface {
	LoadStatistics(ctx context.Context, frameIndex, typeID int) (*stats.FrameTypeData, error)
}

type Settings struct {
	MaxTypeLoadTime time.Duration        // Timeout for a single Source call. Zero means no timeout.
	OnLoaded        func(frameIndex int) // Called (on the loader goroutine) after all types of a frame have been inserted
}

func DefaultSettings() Settings {
	return Settings{
		MaxTypeLoadTime: 10 * time.Second,
	}
}

// Loader fills a StatisticsData cache from a Source, on its own goroutine.
// The renderer calls Request() for the frame that it wants to show, and the
// Loader fetches whatever is missing. If the renderer requests a new frame
// before the previous one is done, the previous request is abandoned.
type Loader struct {
	Log logs.Log

	data     *stats.StatisticsData
	source   Source
	settings Settings

	requests    chan int // Holds at most one pending request
	ctx         context.Context
	cancel      context.CancelFunc
	loopStopped chan bool // Closed when the loop exits

	typesLoaded atomic.Uint64
	staleDrops  atomic.Uint64
	loadErrors  atomic.Uint64
	loadTime    timeAccumulator
}

func NewLoader(log logs.Log, data *stats.StatisticsData, source Source, settings Settings) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		Log:         logs.NewPrefixLogger(log, "StatsLoader:"),
		data:        data,
		source:      source,
		settings:    settings,
		requests:    make(chan int, 1),
		ctx:         ctx,
		cancel:      cancel,
		loopStopped: make(chan bool),
	}
	go l.loop()
	return l
}

// Close stops the loader goroutine. A Source call that is in flight sees its context cancelled.
func (l *Loader) Close() {
	l.cancel()
	<-l.loopStopped
}

// Request asks for frameIndex to be loaded. This never blocks.
// Any earlier request that has not been started yet is replaced.
func (l *Loader) Request(frameIndex int) {
	for {
		select {
		case l.requests <- frameIndex:
			return
		default:
		}
		// Throw away the stale request, and try again
		select {
		case <-l.requests:
		default:
		}
	}
}

func (l *Loader) loop() {
	defer close(l.loopStopped)
	for {
		select {
		case <-l.ctx.Done():
			return
		case frameIndex := <-l.requests:
			if err := l.LoadFrame(l.ctx, frameIndex); err != nil && !errors.Is(err, context.Canceled) {
				l.Log.Warnf("%v", err)
			}
		}
	}
}

// LoadFrame synchronously loads everything that is needed to draw frameIndex.
// If the cache moves to another frame while we're busy, the remaining types are
// abandoned, and nil is returned. A failure of one type does not stop the others
// from loading. The first such error is returned.
func (l *Loader) LoadFrame(ctx context.Context, frameIndex int) error {
	if l.data.NeedsLoading(frameIndex) == stats.LoadingNotNeeded {
		return nil
	}
	typeIDs := l.data.TypesThatNeedLoading(frameIndex)
	l.data.SetFrameIndex(frameIndex)

	var firstErr error
	for _, typeID := range typeIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		data, err := l.loadType(ctx, frameIndex, typeID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			l.loadErrors.Add(1)
			if firstErr == nil {
				firstErr = fmt.Errorf("Failed to load statistics type %v of frame %v: %w", typeID, frameIndex, err)
			}
			continue
		}
		l.loadTime.AddSample(time.Since(start))
		if !l.data.Insert(frameIndex, typeID, data) {
			l.staleDrops.Add(1)
			l.Log.Debugf("Frame %v superseded while loading type %v", frameIndex, typeID)
			return nil
		}
		l.typesLoaded.Add(1)
	}
	if firstErr == nil && l.settings.OnLoaded != nil {
		l.settings.OnLoaded(frameIndex)
	}
	return firstErr
}

func (l *Loader) loadType(ctx context.Context, frameIndex, typeID int) (*stats.FrameTypeData, error) {
	if l.settings.MaxTypeLoadTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.settings.MaxTypeLoadTime)
		defer cancel()
	}
	return l.source.LoadStatistics(ctx, frameIndex, typeID)
}

// Counters are the lifetime totals of a Loader
type Counters struct {
	TypesLoaded     uint64
	StaleDrops      uint64
	LoadErrors      uint64
	AverageLoadTime time.Duration
}

func (l *Loader) Counters() Counters {
	return Counters{
		TypesLoaded:     l.typesLoaded.Load(),
		StaleDrops:      l.staleDrops.Load(),
		LoadErrors:      l.loadErrors.Load(),
		AverageLoadTime: l.loadTime.Average(),
	}
}
