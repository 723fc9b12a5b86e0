package world

import (
	"fmt"

	sim "github.com/venue-sim/venue-sim/sim"
)

// RunMetrics aggregates run-wide statistics for final reporting.
type RunMetrics struct {
	TicksRun         int64
	IncidentsSpawned int
	AlertsResolved   int
	Escalations      int
	DelaysApplied    int
	TotalDelayTicks  int64
	PeakActiveAlerts int

	MeanTimeToResolve float64
	MeanAlertLifetime float64
	SafetyScore       float64
	OpenAlerts        int
}

// finalizeMetrics folds end-of-run component state into the summary.
func (r *Runner) finalizeMetrics() {
	stats := r.Alerts.Statistics()
	r.Metrics.OpenAlerts = stats.Active
	analysis := r.Analytics.IncidentAnalysisSummary()
	r.Metrics.MeanTimeToResolve = analysis.MeanTimeToResolve
	if resolved := r.Alerts.ResolvedAlerts(); len(resolved) > 0 {
		var total sim.Tick
		for _, a := range resolved {
			total += a.Resolved - a.Created
		}
		r.Metrics.MeanAlertLifetime = float64(total) / float64(len(resolved))
	}
	if seq, err := r.Analytics.TimeSeries("safety_score", 0, r.clock); err == nil {
		for p := range seq {
			r.Metrics.SafetyScore = p.Value
		}
	}
}

// Print displays the aggregated run metrics.
func (m *RunMetrics) Print() {
	fmt.Println("=== Run Metrics ===")
	fmt.Printf("Ticks Run            : %d\n", m.TicksRun)
	fmt.Printf("Incidents Spawned    : %d\n", m.IncidentsSpawned)
	fmt.Printf("Alerts Resolved      : %d\n", m.AlertsResolved)
	fmt.Printf("Alerts Still Open    : %d\n", m.OpenAlerts)
	fmt.Printf("Peak Active Alerts   : %d\n", m.PeakActiveAlerts)
	fmt.Printf("Escalations          : %d\n", m.Escalations)
	fmt.Printf("Delays Applied       : %d (%d ticks total)\n", m.DelaysApplied, m.TotalDelayTicks)
	if m.AlertsResolved > 0 {
		fmt.Printf("Mean Time To Resolve : %.2f ticks\n", m.MeanTimeToResolve)
		fmt.Printf("Mean Alert Lifetime  : %.2f ticks\n", m.MeanAlertLifetime)
	}
	fmt.Printf("Final Safety Score   : %.3f\n", m.SafetyScore)
}
