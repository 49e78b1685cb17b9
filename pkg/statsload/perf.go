package statsload

import (
	"sync"
	"time"
)

// Accumulate samples of how long a Source call took
type timeAccumulator struct {
	lock    sync.Mutex
	samples int64
	total   time.Duration
}

func (a *timeAccumulator) AddSample(v time.Duration) {
	a.lock.Lock()
	a.samples++
	a.total += v
	a.lock.Unlock()
}

func (a *timeAccumulator) Average() time.Duration {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.samples == 0 {
		return 0
	}
	return time.Duration(a.total.Nanoseconds() / a.samples)
}
