package sim

import (
	"iter"
	"sort"
)

// TimeSeriesPoint is one (timestamp, value) sample of a tracked metric.
// Series are append-only with non-decreasing timestamps.
type TimeSeriesPoint struct {
	Timestamp Tick    `json:"t"`
	Value     float64 `json:"v"`
}

// TimeSeries returns the points of a tracked metric with
// from <= timestamp <= to, in chronological order, as a lazy restartable
// sequence — each range over it re-iterates from the start. Fails with
// *UnknownMetricError for a metric the engine never registered. Served from
// the published view, so the sequence is stable for its lifetime even while
// the driver keeps recording.
func (e *AnalyticsEngine) TimeSeries(metric string, from, to Tick) (iter.Seq[TimeSeriesPoint], error) {
	v := e.view.Load()
	pts, ok := v.series[metric]
	if !ok {
		return nil, &UnknownMetricError{Metric: metric}
	}
	start := sort.Search(len(pts), func(i int) bool { return pts[i].Timestamp >= from })
	return func(yield func(TimeSeriesPoint) bool) {
		for i := start; i < len(pts); i++ {
			if pts[i].Timestamp > to {
				return
			}
			if !yield(pts[i]) {
				return
			}
		}
	}, nil
}

// SeriesMetrics returns the registered time-series metric names, sorted.
func (e *AnalyticsEngine) SeriesMetrics() []string {
	v := e.view.Load()
	out := make([]string, 0, len(v.series))
	for name := range v.series {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
