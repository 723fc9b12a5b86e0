package sim

import (
	"fmt"
	"testing"

	"github.com/venue-sim/venue-sim/sim/internal/testutil"
)

func agentsAt(kind AgentKind, pos Coordinate, n int) []AgentState {
	out := make([]AgentState, n)
	for i := range out {
		out[i] = AgentState{ID: fmt.Sprintf("%s-%d", kind, i), Kind: kind, Position: pos}
	}
	return out
}

func TestAnalytics_DimensionFallback(t *testing.T) {
	e := NewAnalyticsEngine(0, -3)
	rows, cols := e.Dimensions()
	if rows != 20 || cols != 20 {
		t.Errorf("dimensions = %dx%d, want 20x20 fallback", rows, cols)
	}
}

func TestAnalytics_CellIndexClampsOutOfRange(t *testing.T) {
	e := NewAnalyticsEngine(4, 4)
	cases := []struct {
		pos  Coordinate
		want int
	}{
		{Coordinate{X: -1, Y: -1}, 0},
		{Coordinate{X: 2, Y: 2}, 15},
		{Coordinate{X: 1, Y: 0}, 3},    // x == 1 lands in the last column
		{Coordinate{X: 0.99, Y: 0}, 3}, // not one past it
	}
	for _, c := range cases {
		if got := e.cellIndex(c.pos); got != c.want {
			t.Errorf("cellIndex(%v) = %d, want %d", c.pos, got, c.want)
		}
	}
}

func TestAnalytics_HotspotDetection(t *testing.T) {
	e := NewAnalyticsEngine(10, 10)
	// 12 athletes packed into one cell, a lone volunteer elsewhere.
	agents := agentsAt(AgentAthlete, Coordinate{X: 0.55, Y: 0.55}, 12)
	agents = append(agents, AgentState{ID: "v-0", Kind: AgentVolunteer, Position: Coordinate{X: 0.05, Y: 0.05}})
	e.RecordStep(Snapshot{Now: 1, Agents: agents})
	e.Publish()

	spots, err := e.Hotspots(MetricCrowdDensity, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(spots) != 1 {
		t.Fatalf("hotspots = %v, want exactly the packed cell", spots)
	}
	if spots[0].Row != 5 || spots[0].Col != 5 {
		t.Errorf("hotspot at (%d,%d), want (5,5)", spots[0].Row, spots[0].Col)
	}
	// 12 agents in one cell: raw density 12/25, and with maximum 12/25 the
	// normalized value is 1.0.
	testutil.AssertNear(t, 1.0, spots[0].Value, 1e-9, "normalized hotspot value")
}

func TestAnalytics_HotspotOrdering(t *testing.T) {
	e := NewAnalyticsEngine(10, 10)
	var agents []AgentState
	agents = append(agents, agentsAt(AgentAthlete, Coordinate{X: 0.15, Y: 0.15}, 10)...)
	agents = append(agents, agentsAt(AgentVolunteer, Coordinate{X: 0.85, Y: 0.85}, 10)...)
	agents = append(agents, agentsAt(AgentSecurity, Coordinate{X: 0.45, Y: 0.45}, 20)...)
	e.RecordStep(Snapshot{Now: 1, Agents: agents})
	e.Publish()

	spots, err := e.Hotspots(MetricCrowdDensity, 0.4)
	if err != nil {
		t.Fatal(err)
	}
	if len(spots) != 3 {
		t.Fatalf("got %d hotspots, want 3", len(spots))
	}
	if spots[0].Row != 4 || spots[0].Col != 4 {
		t.Errorf("highest hotspot at (%d,%d), want (4,4)", spots[0].Row, spots[0].Col)
	}
	// The two equal-density cells keep row-major order.
	if spots[1].Row != 1 || spots[1].Col != 1 || spots[2].Row != 8 || spots[2].Col != 8 {
		t.Errorf("equal-value hotspots ordered %v, want (1,1) before (8,8)", spots[1:])
	}
}

func TestAnalytics_UnknownMetric(t *testing.T) {
	e := NewAnalyticsEngine(5, 5)
	if _, err := e.HeatmapData("nope"); err == nil {
		t.Error("HeatmapData: expected UnknownMetricError")
	} else if _, ok := err.(*UnknownMetricError); !ok {
		t.Errorf("HeatmapData: error type %T", err)
	}
	if _, err := e.Hotspots("nope", 0.5); err == nil {
		t.Error("Hotspots: expected UnknownMetricError")
	}
	if _, err := e.TimeSeries("nope", 0, 10); err == nil {
		t.Error("TimeSeries: expected UnknownMetricError")
	}
}

func TestAnalytics_PerTickCountersReset(t *testing.T) {
	e := NewAnalyticsEngine(10, 10)
	e.RecordStep(Snapshot{Now: 1, Agents: agentsAt(AgentAthlete, Coordinate{X: 0.15, Y: 0.15}, 5)})
	e.RecordStep(Snapshot{Now: 2, Agents: agentsAt(AgentAthlete, Coordinate{X: 0.85, Y: 0.85}, 5)})
	e.Publish()

	grid, err := e.HeatmapData(MetricAthleteCount)
	if err != nil {
		t.Fatal(err)
	}
	if grid[1][1] != 0 {
		t.Errorf("cell (1,1) = %f after the agents moved away, want 0", grid[1][1])
	}
	if grid[8][8] == 0 {
		t.Error("cell (8,8) should hold the current tick's count")
	}
}

func TestAnalytics_IncidentAccumulatorsAreCumulative(t *testing.T) {
	e := NewAnalyticsEngine(10, 10)
	inc := func(id string) IncidentState {
		return IncidentState{ID: id, Category: CategoryMedical, Position: Coordinate{X: 0.25, Y: 0.25}, Created: 1}
	}
	e.RecordStep(Snapshot{Now: 1, Incidents: []IncidentState{inc("i-1")}})
	e.RecordStep(Snapshot{Now: 2, Incidents: []IncidentState{inc("i-1")}})
	e.Publish()

	grid, err := e.HeatmapData(MetricIncidentCount)
	if err != nil {
		t.Fatal(err)
	}
	// Cumulative: the same open incident counts once per tick it is observed.
	if got := grid[2][2]; got != 1.0 {
		t.Errorf("normalized incident count = %f, want 1.0 at the running max", got)
	}
	summary := e.IncidentAnalysisSummary()
	if summary.OpenCount != 1 {
		t.Errorf("open count = %d, want 1", summary.OpenCount)
	}
	if summary.OpenByCategory[CategoryMedical] != 1 {
		t.Errorf("open medical = %d, want 1", summary.OpenByCategory[CategoryMedical])
	}
}

func TestAnalytics_NormalizationUsesRunningMax(t *testing.T) {
	e := NewAnalyticsEngine(10, 10)
	e.RecordStep(Snapshot{Now: 1, Agents: agentsAt(AgentAthlete, Coordinate{X: 0.15, Y: 0.15}, 8)})
	e.Publish()

	grid, _ := e.HeatmapData(MetricAthleteCount)
	testutil.AssertNear(t, 1.0, grid[1][1], 1e-9, "peak cell at its own max")

	// Fewer agents next tick: the old peak still anchors the scale.
	e.RecordStep(Snapshot{Now: 2, Agents: agentsAt(AgentAthlete, Coordinate{X: 0.15, Y: 0.15}, 4)})
	e.Publish()
	grid, _ = e.HeatmapData(MetricAthleteCount)
	testutil.AssertNear(t, 0.5, grid[1][1], 1e-9, "scaled by running max")
}

func TestAnalytics_TimeSeriesWindow(t *testing.T) {
	e := NewAnalyticsEngine(5, 5)
	for tick := Tick(1); tick <= 10; tick++ {
		e.RecordStep(Snapshot{Now: tick, Agents: agentsAt(AgentAthlete, Coordinate{X: 0.5, Y: 0.5}, int(tick))})
	}
	e.Publish()

	seq, err := e.TimeSeries(SeriesTotalAgents, 3, 7)
	if err != nil {
		t.Fatal(err)
	}
	var got []TimeSeriesPoint
	for p := range seq {
		got = append(got, p)
	}
	if len(got) != 5 {
		t.Fatalf("window [3,7] yielded %d points, want 5", len(got))
	}
	for i, p := range got {
		if p.Timestamp != Tick(3+i) {
			t.Errorf("point %d at t=%d, want %d", i, p.Timestamp, 3+i)
		}
		if p.Value != float64(3+i) {
			t.Errorf("point %d value %f, want %d", i, p.Value, 3+i)
		}
	}

	// The sequence restarts from the window start on every range.
	n := 0
	for range seq {
		n++
	}
	if n != 5 {
		t.Errorf("second iteration yielded %d points, want 5", n)
	}
}

func TestAnalytics_TimeSeriesStableAcrossLaterRecording(t *testing.T) {
	e := NewAnalyticsEngine(5, 5)
	e.RecordStep(Snapshot{Now: 1, Agents: agentsAt(AgentAthlete, Coordinate{X: 0.5, Y: 0.5}, 3)})
	e.Publish()

	seq, err := e.TimeSeries(SeriesTotalAgents, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	// Keep recording after the query was issued.
	e.RecordStep(Snapshot{Now: 2, Agents: agentsAt(AgentAthlete, Coordinate{X: 0.5, Y: 0.5}, 6)})
	e.Publish()

	n := 0
	for range seq {
		n++
	}
	if n != 1 {
		t.Errorf("sequence from old view yielded %d points, want 1", n)
	}
}

func TestAnalytics_ResponseTimeAndSafetyScore(t *testing.T) {
	e := NewAnalyticsEngine(10, 10)
	e.RecordStep(Snapshot{
		Now: 5,
		Incidents: []IncidentState{
			{ID: "i-1", Category: CategorySecurityThreat, Position: Coordinate{X: 0.5, Y: 0.5}, Created: 1},
		},
		Ambient: AmbientContext{WeatherSeverity: 0.5, CrowdDensity: 0.25},
		ResponseTimes: []ResponseSample{
			{Position: Coordinate{X: 0.5, Y: 0.5}, Duration: 4},
			{Position: Coordinate{X: 0.5, Y: 0.5}, Duration: 8},
		},
	})
	e.RecordResolution(CategoryMedical)
	e.RecordResolution(CategoryMedical)
	e.Publish()

	grid, err := e.HeatmapData(MetricResponseTime)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertNear(t, 1.0, grid[5][5], 1e-9, "mean response at its own max")

	seq, err := e.TimeSeries(SeriesSafetyScore, 5, 5)
	if err != nil {
		t.Fatal(err)
	}
	for p := range seq {
		// 1 - (0.05*1 + 0.2*0.5 + 0.2*0.25)
		testutil.AssertNear(t, 0.80, p.Value, 1e-9, "safety score")
	}

	summary := e.IncidentAnalysisSummary()
	if summary.ResolvedCount != 2 {
		t.Errorf("resolved count = %d, want 2", summary.ResolvedCount)
	}
	testutil.AssertNear(t, 6.0, summary.MeanTimeToResolve, 1e-9, "mean time to resolve")
	if summary.ResolvedByCategory[CategoryMedical] != 2 {
		t.Errorf("resolved medical = %d, want 2", summary.ResolvedByCategory[CategoryMedical])
	}
}

func TestAnalytics_DensityAtServesPublishedGrid(t *testing.T) {
	e := NewAnalyticsEngine(10, 10)
	pos := Coordinate{X: 0.35, Y: 0.65}
	e.RecordStep(Snapshot{Now: 1, Agents: agentsAt(AgentAthlete, pos, 10)})

	if got := e.DensityAt(pos); got != 0 {
		t.Errorf("density visible before Publish: %f", got)
	}
	e.Publish()
	testutil.AssertNear(t, 10.0/DensityNormAgents, e.DensityAt(pos), 1e-9, "published density")
	if got := e.DensityAt(Coordinate{X: 0.95, Y: 0.05}); got != 0 {
		t.Errorf("empty cell density = %f, want 0", got)
	}
}

func TestAnalytics_SeriesMetricsSorted(t *testing.T) {
	e := NewAnalyticsEngine(5, 5)
	names := e.SeriesMetrics()
	want := []string{
		SeriesActiveIncidents, SeriesAthleteCount, SeriesMeanResponseTime,
		SeriesSafetyScore, SeriesTotalAgents,
	}
	if len(names) != len(want) {
		t.Fatalf("series metrics = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("metric %d = %s, want %s", i, names[i], want[i])
		}
	}
}
