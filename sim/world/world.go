// Package world supplies the agent/incident model and the tick driver that
// feed the coordination engine in package sim. The engine treats it as an
// external collaborator: the world owns agent identities and positions and
// hands the engine an immutable per-tick snapshot.
package world

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	sim "github.com/venue-sim/venue-sim/sim"
)

// Config sizes the agent roster and tunes the incident process.
type Config struct {
	Athletes     int     `yaml:"athletes"`
	Volunteers   int     `yaml:"volunteers"`
	Security     int     `yaml:"security"`
	Medical      int     `yaml:"medical"`
	Transport    int     `yaml:"transport"`
	VIPs         int     `yaml:"vips"`
	IncidentRate float64 `yaml:"incident_rate"` // expected spawns per tick
}

// Incident is one active incident owned by the world. The driver mirrors it
// into the AlertManager on detection.
type Incident struct {
	ID       string
	Category sim.AlertCategory
	Position sim.Coordinate
	Created  sim.Tick
}

// incidentSpawnTable weights the category draw for spawned incidents.
var incidentSpawnTable = []struct {
	category sim.AlertCategory
	weight   float64
}{
	{sim.CategoryCrowd, 0.30},
	{sim.CategoryMedical, 0.20},
	{sim.CategoryAccessControl, 0.20},
	{sim.CategorySecurityThreat, 0.10},
	{sim.CategoryWeather, 0.10},
	{sim.CategoryInformational, 0.10},
}

// World holds the authoritative agent/incident state and the ambient
// weather process. All methods run on the driver goroutine.
type World struct {
	cfg       Config
	locations []sim.LocationSpec
	graph     *sim.RoutingGraph
	rng       *sim.PartitionedRNG

	agents    []*Agent
	incidents map[string]*Incident
	newborn   []*Incident // spawned this tick, drained by the driver
	weather   float64
}

// New creates a world with the configured roster placed at the given
// locations. The graph is used for agent navigation decisions.
func New(cfg Config, locations []sim.LocationSpec, graph *sim.RoutingGraph, rng *sim.PartitionedRNG) *World {
	w := &World{
		cfg:       cfg,
		locations: locations,
		graph:     graph,
		rng:       rng,
		incidents: make(map[string]*Incident),
	}
	mv := rng.ForSubsystem(sim.SubsystemMovement)
	spawn := func(kind sim.AgentKind, count int) {
		for i := 0; i < count; i++ {
			loc := locations[mv.Intn(len(locations))]
			w.agents = append(w.agents, newAgent(kind, i, loc.Position))
		}
	}
	spawn(sim.AgentAthlete, cfg.Athletes)
	spawn(sim.AgentVolunteer, cfg.Volunteers)
	spawn(sim.AgentSecurity, cfg.Security)
	spawn(sim.AgentMedical, cfg.Medical)
	spawn(sim.AgentTransport, cfg.Transport)
	spawn(sim.AgentVIP, cfg.VIPs)
	return w
}

// Agents returns the live agent list (driver-side iteration only).
func (w *World) Agents() []*Agent {
	return w.agents
}

// Step advances the world by one tick: weather walk, agent movement, and
// incident spawning. New incidents accumulate until DrainNewIncidents.
func (w *World) Step(now sim.Tick) {
	wrng := w.rng.ForSubsystem(sim.SubsystemWeather)
	w.weather = clamp01(w.weather + (wrng.Float64()-0.5)*0.1)

	mv := w.rng.ForSubsystem(sim.SubsystemMovement)
	for _, a := range w.agents {
		if len(a.waypoints) == 0 && mv.Float64() < 0.05 {
			w.routeToRandomVenue(a, mv)
		}
		a.advance(mv)
	}

	irng := w.rng.ForSubsystem(sim.SubsystemIncidents)
	if irng.Float64() < w.cfg.IncidentRate {
		inc := w.spawnIncident(now, irng)
		if inc == nil {
			return
		}
		w.incidents[inc.ID] = inc
		w.newborn = append(w.newborn, inc)
		logrus.Debugf("world: incident %s (%s) at (%.2f, %.2f)", inc.ID, inc.Category, inc.Position.X, inc.Position.Y)
	}
}

// routeToRandomVenue picks a destination venue and routes the agent there.
// Mobility-constrained kinds request accessible paths. An unroutable pair
// falls back to the direct line — the coarse graph allows disconnected
// components, so this is an expected outcome, not an error.
func (w *World) routeToRandomVenue(a *Agent, mv *rand.Rand) {
	dest := w.locations[mv.Intn(len(w.locations))]
	needAccess := a.Kind == sim.AgentVIP
	path, err := w.graph.FindPath(a.Position, dest.Position, needAccess, sim.AlgorithmAStar)
	if err != nil {
		logrus.Debugf("world: %s unroutable to %s: %v", a.ID, dest.ID, err)
		a.setRoute([]sim.Coordinate{dest.Position})
		return
	}
	waypoints := make([]sim.Coordinate, 0, len(path.Nodes)+1)
	for _, id := range path.Nodes {
		n, nerr := w.graph.Node(id)
		if nerr == nil {
			waypoints = append(waypoints, n.Position)
		}
	}
	waypoints = append(waypoints, dest.Position)
	a.setRoute(waypoints)
}

// spawnIncident draws a category and places the incident at a random agent,
// or at a random venue when the roster is empty. Returns nil when there is
// nowhere to place it (no agents, no venues); the step skips the spawn.
func (w *World) spawnIncident(now sim.Tick, irng *rand.Rand) *Incident {
	r := irng.Float64()
	category := incidentSpawnTable[len(incidentSpawnTable)-1].category
	for _, entry := range incidentSpawnTable {
		if r < entry.weight {
			category = entry.category
			break
		}
		r -= entry.weight
	}
	var at sim.Coordinate
	switch {
	case len(w.agents) > 0:
		at = w.agents[irng.Intn(len(w.agents))].Position
	case len(w.locations) > 0:
		at = w.locations[irng.Intn(len(w.locations))].Position
	default:
		return nil
	}
	// Derive the UUID from the incidents RNG stream so a fixed seed yields
	// identical ids across runs.
	id, err := uuid.NewRandomFromReader(irng)
	if err != nil {
		id = uuid.New()
	}
	return &Incident{
		ID:       id.String(),
		Category: category,
		Position: at,
		Created:  now,
	}
}

// DrainNewIncidents returns incidents spawned since the last drain.
func (w *World) DrainNewIncidents() []*Incident {
	out := w.newborn
	w.newborn = nil
	return out
}

// ResolveIncident removes an incident and returns its response sample.
func (w *World) ResolveIncident(id string, now sim.Tick) (sim.ResponseSample, bool) {
	inc, ok := w.incidents[id]
	if !ok {
		return sim.ResponseSample{}, false
	}
	delete(w.incidents, id)
	return sim.ResponseSample{Position: inc.Position, Duration: now - inc.Created}, true
}

// Snapshot projects the current world state into the engine's per-tick
// snapshot format.
func (w *World) Snapshot(now sim.Tick) sim.Snapshot {
	snap := sim.Snapshot{Now: now}
	var vips []sim.Coordinate
	for _, a := range w.agents {
		snap.Agents = append(snap.Agents, sim.AgentState{
			ID:       a.ID,
			Kind:     a.Kind,
			Position: a.Position,
			Status:   a.Status,
		})
		if a.Kind == sim.AgentVIP {
			vips = append(vips, a.Position)
		}
	}
	for _, inc := range w.incidents {
		snap.Incidents = append(snap.Incidents, sim.IncidentState{
			ID:       inc.ID,
			Category: inc.Category,
			Position: inc.Position,
			Created:  inc.Created,
		})
	}
	// Stable order for a reproducible exported document.
	sort.Slice(snap.Incidents, func(i, j int) bool { return snap.Incidents[i].ID < snap.Incidents[j].ID })
	snap.Ambient = sim.AmbientContext{
		CrowdDensity:    w.crowdSample(),
		WeatherSeverity: w.weather,
		VIPPositions:    vips,
	}
	return snap
}

// crowdSample is a cheap global congestion proxy: the share of agents
// currently bunched in the densest decile of positions is approximated by
// roster size against venue capacity.
func (w *World) crowdSample() float64 {
	capacity := 0
	for _, loc := range w.locations {
		capacity += loc.Capacity
	}
	if capacity == 0 {
		return 0
	}
	return clamp01(float64(len(w.agents)) / float64(capacity))
}

// Weather returns the current weather severity in [0,1].
func (w *World) Weather() float64 {
	return w.weather
}

// IncidentsNear returns the categories of active incidents within radius of
// a position (delay-context input for the scheduler).
func (w *World) IncidentsNear(pos sim.Coordinate, radius float64) []sim.AlertCategory {
	var out []sim.AlertCategory
	for _, inc := range w.incidents {
		if pos.DistanceTo(inc.Position) <= radius {
			out = append(out, inc.Category)
		}
	}
	// Map iteration order is random; sort so delay detection sees a
	// reproducible input for a fixed seed.
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
