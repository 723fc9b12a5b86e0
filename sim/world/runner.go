package world

import (
	"fmt"

	"github.com/sirupsen/logrus"

	sim "github.com/venue-sim/venue-sim/sim"
)

// ItineraryEventSpec is one template entry for generated athlete
// itineraries. Venue "" rotates through the scenario's locations.
type ItineraryEventSpec struct {
	Offset   sim.Tick      `yaml:"offset"`
	Venue    string        `yaml:"venue"`
	Kind     sim.EventKind `yaml:"kind"`
	Flexible bool          `yaml:"flexible"`
}

// RunnerConfig configures a full simulation run.
type RunnerConfig struct {
	Horizon   sim.Tick
	Seed      int64
	GridRows  int
	GridCols  int
	NeighborK int
	World     Config
	Locations []sim.LocationSpec
	Itinerary []ItineraryEventSpec
}

// dispatchKind maps an alert category to the responder kind sent to it.
func dispatchKind(category sim.AlertCategory) sim.AgentKind {
	if category == sim.CategoryMedical {
		return sim.AgentMedical
	}
	return sim.AgentSecurity
}

// assignment tracks one in-flight incident response.
type assignment struct {
	unitID   string
	category sim.AlertCategory
	dueAt    sim.Tick
}

// Runner is the coordinating driver: it owns the world plus the four
// coordination subsystems and invokes them in a fixed order once per tick.
// Every engine error is recoverable here — the runner logs and skips the
// offending operation for the tick, never aborts the run.
type Runner struct {
	cfg RunnerConfig

	World     *World
	Scheduler *sim.Scheduler
	Alerts    *sim.AlertManager
	Routing   *sim.RoutingGraph
	Analytics *sim.AnalyticsEngine

	clock       sim.Tick
	assignments map[string]*assignment
	busyUnits   map[string]bool
	Metrics     *RunMetrics
}

// NewRunner wires the world and subsystems together and creates athlete
// itineraries from the scenario template.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if len(cfg.Locations) == 0 {
		return nil, fmt.Errorf("runner: scenario has no locations")
	}
	if cfg.NeighborK <= 0 {
		cfg.NeighborK = 5
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	graph := sim.NewRoutingGraph(cfg.Locations, sim.KNearest{K: cfg.NeighborK})

	r := &Runner{
		cfg:         cfg,
		World:       New(cfg.World, cfg.Locations, graph, rng),
		Scheduler:   sim.NewScheduler(),
		Alerts:      sim.NewAlertManager(nil),
		Routing:     graph,
		Analytics:   sim.NewAnalyticsEngine(cfg.GridRows, cfg.GridCols),
		assignments: make(map[string]*assignment),
		busyUnits:   make(map[string]bool),
		Metrics:     &RunMetrics{},
	}
	if err := r.buildItineraries(); err != nil {
		return nil, err
	}
	r.Scheduler.Publish()
	return r, nil
}

func (r *Runner) buildItineraries() error {
	if len(r.cfg.Itinerary) == 0 {
		return nil
	}
	venueAt := func(spec ItineraryEventSpec, i int) string {
		if spec.Venue != "" {
			return spec.Venue
		}
		return r.cfg.Locations[i%len(r.cfg.Locations)].ID
	}
	n := 0
	for _, a := range r.World.Agents() {
		if a.Kind != sim.AgentAthlete {
			continue
		}
		events := make([]sim.ScheduleEventSpec, 0, len(r.cfg.Itinerary))
		for _, spec := range r.cfg.Itinerary {
			events = append(events, sim.ScheduleEventSpec{
				Time:     spec.Offset,
				Location: venueAt(spec, n),
				Kind:     spec.Kind,
				Flexible: spec.Flexible,
			})
		}
		if err := r.Scheduler.CreateSchedule(a.ID, events); err != nil {
			return fmt.Errorf("runner: itinerary for %s: %w", a.ID, err)
		}
		n++
	}
	return nil
}

// Run steps the simulation to the horizon and finalizes run metrics.
func (r *Runner) Run() {
	logrus.Infof("starting run: horizon=%d ticks, seed=%d, %d locations, %d agents",
		r.cfg.Horizon, r.cfg.Seed, len(r.cfg.Locations), len(r.World.Agents()))
	for r.clock < r.cfg.Horizon {
		r.Tick()
	}
	r.finalizeMetrics()
	logrus.Infof("[tick %07d] run ended", r.clock)
}

// Tick advances the simulation by one step. Order is fixed: world movement
// and routing → incident detection/registration → alert re-scoring → delay
// detection/application → response completion → analytics ingestion →
// snapshot publication → dispatch.
func (r *Runner) Tick() {
	r.clock++
	now := r.clock
	logrus.Debugf("[tick %07d] stepping", now)

	r.World.Step(now)

	alertCtx := sim.AlertContext{
		Now:             now,
		WeatherSeverity: r.World.Weather(),
		CrowdDensity:    r.World.crowdSample(),
		VIPPositions:    r.vipPositions(),
		Density:         r.Analytics,
	}

	for _, inc := range r.World.DrainNewIncidents() {
		meta := map[string]string{"source": "world"}
		if _, err := r.Alerts.RegisterAlert(inc.ID, inc.Category, inc.Position, meta, alertCtx); err != nil {
			logrus.Warnf("[tick %07d] skipping alert registration: %v", now, err)
			continue
		}
		r.Metrics.IncidentsSpawned++
	}

	r.Alerts.UpdateAllAlerts(alertCtx)
	r.escalateStale(now)

	r.applyDetectedDelays(now)
	samples := r.completeResponses(now)

	snap := r.World.Snapshot(now)
	snap.ResponseTimes = samples
	r.Analytics.RecordStep(snap)
	r.syncNodeLoads(snap)

	r.Scheduler.Publish()
	r.Alerts.Publish()
	r.Routing.Publish()
	r.Analytics.Publish()

	r.dispatch(now)

	if active := r.Alerts.Statistics().Active; active > r.Metrics.PeakActiveAlerts {
		r.Metrics.PeakActiveAlerts = active
	}
	r.Metrics.TicksRun = int64(now)
}

// escalateInterval is how long an alert may stay open before the runner
// bumps its severity tier.
const escalateInterval = sim.Tick(60)

// escalateStale escalates open alerts that have gone unattended for a full
// interval, once per interval of age. Reads the previous tick's published
// ordering; an alert resolved since then just fails the transition and is
// skipped.
func (r *Runner) escalateStale(now sim.Tick) {
	for _, a := range r.Alerts.AlertsByPriority(r.Alerts.Statistics().Active) {
		if a.Status != sim.StatusOpen {
			continue
		}
		age := now - a.Created
		if age <= 0 || age%escalateInterval != 0 {
			continue
		}
		if err := r.Alerts.EscalateAlert(a.ID); err != nil {
			logrus.Debugf("[tick %07d] skipping escalation of %s: %v", now, a.ID, err)
			continue
		}
		r.Metrics.Escalations++
		logrus.Debugf("[tick %07d] escalated %s after %d ticks open", now, a.ID, age)
	}
}

// applyDetectedDelays runs delay detection for every scheduled subject and
// applies what it finds. Detection is pure; each record is applied once.
func (r *Runner) applyDetectedDelays(now sim.Tick) {
	for _, a := range r.World.Agents() {
		if a.Kind != sim.AgentAthlete {
			continue
		}
		ctx := sim.DelayContext{
			Now:                now,
			NearbyAgents:       int(r.Analytics.DensityAt(a.Position) * sim.DensityNormAgents),
			WeatherSeverity:    r.World.Weather(),
			TransportDisrupted: r.World.Weather() > 0.85,
			NearbyIncidents:    r.World.IncidentsNear(a.Position, 0.05),
		}
		records, err := r.Scheduler.CheckDelays(a.ID, a.Position, ctx)
		if err != nil {
			// Athletes without itineraries are fine; anything else is a
			// stale id the runner skips for this tick.
			continue
		}
		if len(records) == 0 {
			continue
		}
		if err := r.Scheduler.ApplyDelays(a.ID, records); err != nil {
			logrus.Warnf("[tick %07d] skipping delay application for %s: %v", now, a.ID, err)
			continue
		}
		r.Metrics.DelaysApplied += len(records)
		for _, rec := range records {
			r.Metrics.TotalDelayTicks += int64(rec.Magnitude)
		}
	}
}

// completeResponses resolves assignments whose response time has elapsed.
func (r *Runner) completeResponses(now sim.Tick) []sim.ResponseSample {
	var samples []sim.ResponseSample
	for alertID, as := range r.assignments {
		if as.dueAt > now {
			continue
		}
		if err := r.Alerts.ResolveAlert(alertID, now); err != nil {
			logrus.Warnf("[tick %07d] skipping resolution of %s: %v", now, alertID, err)
			delete(r.assignments, alertID)
			continue
		}
		if sample, ok := r.World.ResolveIncident(alertID, now); ok {
			samples = append(samples, sample)
		}
		r.Analytics.RecordResolution(as.category)
		delete(r.busyUnits, as.unitID)
		delete(r.assignments, alertID)
		r.Metrics.AlertsResolved++
	}
	return samples
}

// dispatch sends the nearest free responder of the matching kind to the
// highest-priority open alert. Runs after Publish, so it reads the tick's
// complete alert view; the assignment becomes visible next tick.
func (r *Runner) dispatch(now sim.Tick) {
	top := r.Alerts.HighestPriorityAlert()
	if top == nil {
		return
	}
	unit := r.nearestFreeUnit(dispatchKind(top.Category), top.Position)
	if unit == nil {
		return
	}
	if err := r.Alerts.AssignUnit(top.ID, unit.ID); err != nil {
		logrus.Warnf("[tick %07d] skipping dispatch to %s: %v", now, top.ID, err)
		return
	}
	path, err := r.Routing.FindPath(unit.Position, top.Position, false, sim.AlgorithmAStar)
	travel := sim.Tick(5)
	if err == nil {
		travel = sim.Tick(path.Cost/unit.speed) + 1
	}
	unit.setRoute([]sim.Coordinate{top.Position})
	unit.Status = "responding"
	r.busyUnits[unit.ID] = true
	r.assignments[top.ID] = &assignment{
		unitID:   unit.ID,
		category: top.Category,
		dueAt:    now + travel,
	}
	logrus.Debugf("[tick %07d] dispatched %s to alert %s (eta %d)", now, unit.ID, top.ID, travel)
}

func (r *Runner) nearestFreeUnit(kind sim.AgentKind, pos sim.Coordinate) *Agent {
	var best *Agent
	bestDist := 0.0
	for _, a := range r.World.Agents() {
		if a.Kind != kind || r.busyUnits[a.ID] {
			continue
		}
		d := a.Position.DistanceTo(pos)
		if best == nil || d < bestDist {
			best, bestDist = a, d
		}
	}
	return best
}

// syncNodeLoads feeds observed per-venue congestion back into the routing
// graph so the next tick's path costs reflect current crowding.
func (r *Runner) syncNodeLoads(snap sim.Snapshot) {
	nodes := r.Routing.Nodes()
	counts := make(map[string]int, len(nodes))
	for _, a := range snap.Agents {
		if id, dist, ok := r.Routing.SnapCoordinate(a.Position, false); ok && dist < 0.1 {
			counts[id]++
		}
	}
	for _, node := range nodes {
		load := 0.0
		if node.Capacity > 0 {
			load = float64(counts[node.ID]) / float64(node.Capacity)
		}
		if err := r.Routing.UpdateNodeLoad(node.ID, load); err != nil {
			logrus.Warnf("skipping load update for %s: %v", node.ID, err)
		}
	}
}

func (r *Runner) vipPositions() []sim.Coordinate {
	var out []sim.Coordinate
	for _, a := range r.World.Agents() {
		if a.Kind == sim.AgentVIP {
			out = append(out, a.Position)
		}
	}
	return out
}

// Clock returns the current tick.
func (r *Runner) Clock() sim.Tick {
	return r.clock
}
