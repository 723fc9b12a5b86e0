package sim

import (
	"sort"
	"sync/atomic"
)

// Grid metric names. Heatmap queries accept exactly these.
const (
	MetricAthleteCount   = "athlete_count"
	MetricVolunteerCount = "volunteer_count"
	MetricSecurityCount  = "security_count"
	MetricMedicalCount   = "medical_count"
	MetricTransportCount = "transport_count"
	MetricVIPCount       = "vip_count"
	MetricIncidentCount  = "incident_count"
	MetricThreatScore    = "threat_score"
	MetricCrowdDensity   = "crowd_density"
	MetricResponseTime   = "response_time"
)

// Time-series metric names. TimeSeries queries accept exactly these.
const (
	SeriesTotalAgents      = "total_agents"
	SeriesAthleteCount     = "athlete_count"
	SeriesActiveIncidents  = "active_incidents"
	SeriesSafetyScore      = "safety_score"
	SeriesMeanResponseTime = "mean_response_time"
)

var agentKindMetric = map[AgentKind]string{
	AgentAthlete:   MetricAthleteCount,
	AgentVolunteer: MetricVolunteerCount,
	AgentSecurity:  MetricSecurityCount,
	AgentMedical:   MetricMedicalCount,
	AgentTransport: MetricTransportCount,
	AgentVIP:       MetricVIPCount,
}

// DensityNormAgents is the per-cell agent count that saturates the
// crowd-density metric at 1.0. Callers that convert a density reading back
// into an approximate headcount multiply by this constant.
const DensityNormAgents = 25.0

// gridCell holds the per-cell accumulators. Agent counts and density are
// per-tick (cleared through the dirty list each RecordStep); incident,
// threat, and response accumulators are cumulative for the run.
type gridCell struct {
	agents      map[AgentKind]int
	density     float64
	incidents   int
	threatSum   float64
	responseSum float64
	responseN   int
}

// Hotspot is one grid cell at or above a query threshold.
type Hotspot struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Value float64 `json:"value"`
}

// IncidentAnalysis aggregates open vs resolved incidents over the run.
type IncidentAnalysis struct {
	OpenCount          int                   `json:"open_count"`
	ResolvedCount      int                   `json:"resolved_count"`
	MeanTimeToResolve  float64               `json:"mean_time_to_resolve"` // ticks
	OpenByCategory     map[AlertCategory]int `json:"open_by_category"`
	ResolvedByCategory map[AlertCategory]int `json:"resolved_by_category"`
	OpenPositions      []Coordinate          `json:"open_positions"`
}

// analyticsView is the immutable published read state: flattened row-major
// grids with their running maxima, the series slice headers (append-only
// storage, so sharing the backing arrays up to the published length is
// safe), and the incident summary.
type analyticsView struct {
	rows, cols int
	grids      map[string][]float64
	maxima     map[string]float64
	series     map[string][]TimeSeriesPoint
	incidents  IncidentAnalysis
}

// AnalyticsEngine aggregates per-tick snapshots into a fixed spatial grid
// and append-only time series. All state is derived: replaying the same
// snapshots rebuilds it exactly. RecordStep is driver-thread-only; the
// query methods serve from the published view.
type AnalyticsEngine struct {
	rows, cols int
	cells      []gridCell // row-major
	dirty      []int      // cells holding per-tick counts from the last step

	maxima map[string]float64
	series map[string][]TimeSeriesPoint

	resolvedCount      int
	resolvedByCategory map[AlertCategory]int
	resolutionSum      Tick
	lastOpen           IncidentAnalysis

	view atomic.Pointer[analyticsView]
}

// NewAnalyticsEngine creates an engine over an R×C partition of the unit
// square. Zero or negative dimensions fall back to the 20×20 default.
func NewAnalyticsEngine(rows, cols int) *AnalyticsEngine {
	if rows <= 0 {
		rows = 20
	}
	if cols <= 0 {
		cols = 20
	}
	e := &AnalyticsEngine{
		rows:               rows,
		cols:               cols,
		cells:              make([]gridCell, rows*cols),
		maxima:             make(map[string]float64),
		series:             make(map[string][]TimeSeriesPoint),
		resolvedByCategory: make(map[AlertCategory]int),
	}
	for i := range e.cells {
		e.cells[i].agents = make(map[AgentKind]int)
	}
	for _, m := range []string{SeriesTotalAgents, SeriesActiveIncidents, SeriesSafetyScore, SeriesMeanResponseTime} {
		e.series[m] = nil
	}
	// athlete_count doubles as a series metric; registering it here keeps
	// the UnknownMetricError contract uniform.
	e.series[SeriesAthleteCount] = nil
	e.Publish()
	return e
}

// Dimensions returns the grid partition (rows, cols).
func (e *AnalyticsEngine) Dimensions() (int, int) {
	return e.rows, e.cols
}

// cellIndex maps a normalized coordinate to its row-major cell index.
// Out-of-range coordinates clamp to the border cells.
func (e *AnalyticsEngine) cellIndex(pos Coordinate) int {
	col := int(clamp01(pos.X) * float64(e.cols))
	if col >= e.cols {
		col = e.cols - 1
	}
	row := int(clamp01(pos.Y) * float64(e.rows))
	if row >= e.rows {
		row = e.rows - 1
	}
	return row*e.cols + col
}

// RecordStep ingests one tick's snapshot: per-agent cell counts, incident
// and threat accumulators, response samples, and one time-series point per
// tracked metric. Cost is O(agents + incidents + touched cells), not
// O(grid × agents) — the previous tick's per-tick counters are cleared via
// the dirty list.
func (e *AnalyticsEngine) RecordStep(snap Snapshot) {
	for _, idx := range e.dirty {
		c := &e.cells[idx]
		for k := range c.agents {
			delete(c.agents, k)
		}
		c.density = 0
	}
	e.dirty = e.dirty[:0]
	touched := make(map[int]bool)

	athletes := 0
	for _, a := range snap.Agents {
		idx := e.cellIndex(a.Position)
		c := &e.cells[idx]
		c.agents[a.Kind]++
		if a.Kind == AgentAthlete {
			athletes++
		}
		if !touched[idx] {
			touched[idx] = true
			e.dirty = append(e.dirty, idx)
		}
	}
	for _, idx := range e.dirty {
		c := &e.cells[idx]
		total := 0
		for _, n := range c.agents {
			total += n
		}
		c.density = clamp01(float64(total) / DensityNormAgents)
	}

	open := IncidentAnalysis{
		OpenCount:          len(snap.Incidents),
		OpenByCategory:     make(map[AlertCategory]int),
		ResolvedByCategory: e.resolvedByCategory,
	}
	for _, inc := range snap.Incidents {
		idx := e.cellIndex(inc.Position)
		c := &e.cells[idx]
		c.incidents++
		c.threatSum += tierBaseWeight[defaultTier[inc.Category]] / tierBaseWeight[TierCritical]
		open.OpenByCategory[inc.Category]++
		open.OpenPositions = append(open.OpenPositions, inc.Position)
	}
	for _, r := range snap.ResponseTimes {
		idx := e.cellIndex(r.Position)
		c := &e.cells[idx]
		c.responseSum += float64(r.Duration)
		c.responseN++
		e.resolvedCount++
		e.resolutionSum += r.Duration
	}
	e.lastOpen = open

	e.appendPoint(SeriesTotalAgents, snap.Now, float64(len(snap.Agents)))
	e.appendPoint(SeriesAthleteCount, snap.Now, float64(athletes))
	e.appendPoint(SeriesActiveIncidents, snap.Now, float64(len(snap.Incidents)))
	e.appendPoint(SeriesSafetyScore, snap.Now, e.safetyScore(snap))
	e.appendPoint(SeriesMeanResponseTime, snap.Now, e.meanTimeToResolve())
}

// safetyScore folds snapshot-level risk signals into a single [0,1] value.
func (e *AnalyticsEngine) safetyScore(snap Snapshot) float64 {
	risk := 0.05*float64(len(snap.Incidents)) +
		0.2*clamp01(snap.Ambient.WeatherSeverity) +
		0.2*clamp01(snap.Ambient.CrowdDensity)
	return clamp01(1 - risk)
}

func (e *AnalyticsEngine) meanTimeToResolve() float64 {
	if e.resolvedCount == 0 {
		return 0
	}
	return float64(e.resolutionSum) / float64(e.resolvedCount)
}

func (e *AnalyticsEngine) appendPoint(metric string, now Tick, value float64) {
	e.series[metric] = append(e.series[metric], TimeSeriesPoint{Timestamp: now, Value: value})
}

// rawValue extracts one metric's raw accumulator from a cell.
func (c *gridCell) rawValue(metric string) (float64, bool) {
	switch metric {
	case MetricAthleteCount:
		return float64(c.agents[AgentAthlete]), true
	case MetricVolunteerCount:
		return float64(c.agents[AgentVolunteer]), true
	case MetricSecurityCount:
		return float64(c.agents[AgentSecurity]), true
	case MetricMedicalCount:
		return float64(c.agents[AgentMedical]), true
	case MetricTransportCount:
		return float64(c.agents[AgentTransport]), true
	case MetricVIPCount:
		return float64(c.agents[AgentVIP]), true
	case MetricIncidentCount:
		return float64(c.incidents), true
	case MetricThreatScore:
		return c.threatSum, true
	case MetricCrowdDensity:
		return c.density, true
	case MetricResponseTime:
		if c.responseN == 0 {
			return 0, true
		}
		return c.responseSum / float64(c.responseN), true
	}
	return 0, false
}

var gridMetrics = []string{
	MetricAthleteCount, MetricVolunteerCount, MetricSecurityCount,
	MetricMedicalCount, MetricTransportCount, MetricVIPCount,
	MetricIncidentCount, MetricThreatScore, MetricCrowdDensity,
	MetricResponseTime,
}

// HeatmapData returns the full grid for one metric as rows of normalized
// values. Normalization divides by the running maximum ever observed for
// that metric (values are raw while the maximum is still zero); the scheme
// is fixed so successive reads are comparable. Served from the published
// view.
func (e *AnalyticsEngine) HeatmapData(metric string) ([][]float64, error) {
	v := e.view.Load()
	flat, ok := v.grids[metric]
	if !ok {
		return nil, &UnknownMetricError{Metric: metric}
	}
	max := v.maxima[metric]
	out := make([][]float64, v.rows)
	for r := 0; r < v.rows; r++ {
		row := make([]float64, v.cols)
		for c := 0; c < v.cols; c++ {
			val := flat[r*v.cols+c]
			if max > 0 {
				val /= max
			}
			row[c] = val
		}
		out[r] = row
	}
	return out, nil
}

// Hotspots returns the cells whose normalized value for the metric is >=
// threshold, sorted by descending value with ties in row-major cell order.
func (e *AnalyticsEngine) Hotspots(metric string, threshold float64) ([]Hotspot, error) {
	grid, err := e.HeatmapData(metric)
	if err != nil {
		return nil, err
	}
	var out []Hotspot
	for r, row := range grid {
		for c, val := range row {
			if val >= threshold {
				out = append(out, Hotspot{Row: r, Col: c, Value: val})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out, nil
}

// DensityAt implements DensityField over the published crowd-density grid,
// wiring analytics back into alert scoring.
func (e *AnalyticsEngine) DensityAt(pos Coordinate) float64 {
	v := e.view.Load()
	flat, ok := v.grids[MetricCrowdDensity]
	if !ok {
		return 0
	}
	col := int(clamp01(pos.X) * float64(v.cols))
	if col >= v.cols {
		col = v.cols - 1
	}
	row := int(clamp01(pos.Y) * float64(v.rows))
	if row >= v.rows {
		row = v.rows - 1
	}
	return flat[row*v.cols+col]
}

// IncidentAnalysisSummary returns the current incident aggregate from the
// published view.
func (e *AnalyticsEngine) IncidentAnalysisSummary() IncidentAnalysis {
	return e.view.Load().incidents
}

// Publish rebuilds the immutable read view: flattened metric grids, updated
// running maxima, series headers, and the incident summary.
func (e *AnalyticsEngine) Publish() {
	v := &analyticsView{
		rows:   e.rows,
		cols:   e.cols,
		grids:  make(map[string][]float64, len(gridMetrics)),
		maxima: make(map[string]float64, len(gridMetrics)),
		series: make(map[string][]TimeSeriesPoint, len(e.series)),
	}
	for _, metric := range gridMetrics {
		flat := make([]float64, len(e.cells))
		for i := range e.cells {
			val, _ := e.cells[i].rawValue(metric)
			flat[i] = val
			if val > e.maxima[metric] {
				e.maxima[metric] = val
			}
		}
		v.grids[metric] = flat
		v.maxima[metric] = e.maxima[metric]
	}
	for name, pts := range e.series {
		v.series[name] = pts
	}

	inc := e.lastOpen
	inc.ResolvedCount = e.resolvedCount
	inc.MeanTimeToResolve = e.meanTimeToResolve()
	if inc.OpenByCategory == nil {
		inc.OpenByCategory = map[AlertCategory]int{}
	}
	resolvedCopy := make(map[AlertCategory]int, len(e.resolvedByCategory))
	for k, n := range e.resolvedByCategory {
		resolvedCopy[k] = n
	}
	inc.ResolvedByCategory = resolvedCopy
	v.incidents = inc
	e.view.Store(v)
}

// RecordResolution attributes a resolved incident to its category for the
// incident analysis. Called by the driver alongside the response sample.
func (e *AnalyticsEngine) RecordResolution(category AlertCategory) {
	e.resolvedByCategory[category]++
}
