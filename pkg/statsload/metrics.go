package statsload

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes the loader counters to Prometheus
func (l *Loader) RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "statsview_loader_types_loaded_total",
				Help: "Statistics types loaded into the frame cache",
			},
			func() float64 { return float64(l.typesLoaded.Load()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "statsview_loader_stale_drops_total",
				Help: "Loaded statistics discarded because the frame changed during the load",
			},
			func() float64 { return float64(l.staleDrops.Load()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "statsview_loader_errors_total",
				Help: "Failed statistics loads",
			},
			func() float64 { return float64(l.loadErrors.Load()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "statsview_loader_average_load_seconds",
				Help: "Average time taken by the statistics source for one type",
			},
			func() float64 { return l.loadTime.Average().Seconds() },
		),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
