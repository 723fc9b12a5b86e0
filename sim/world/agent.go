package world

import (
	"fmt"
	"math/rand"

	sim "github.com/venue-sim/venue-sim/sim"
)

// Agent is one entity moving through the venue space. The world owns agent
// identity and position; the coordination engine only ever sees the
// per-tick snapshot projection.
type Agent struct {
	ID       string
	Kind     sim.AgentKind
	Position sim.Coordinate
	Status   string

	// Movement state: waypoints remaining on the current route, if any.
	waypoints []sim.Coordinate
	speed     float64
}

// agentSpeed is the base per-tick movement distance per agent kind.
var agentSpeed = map[sim.AgentKind]float64{
	sim.AgentAthlete:   0.010,
	sim.AgentVolunteer: 0.008,
	sim.AgentSecurity:  0.014,
	sim.AgentMedical:   0.016,
	sim.AgentTransport: 0.020,
	sim.AgentVIP:       0.008,
}

func newAgent(kind sim.AgentKind, n int, pos sim.Coordinate) *Agent {
	return &Agent{
		ID:       fmt.Sprintf("%s-%03d", kind, n),
		Kind:     kind,
		Position: pos,
		Status:   "idle",
		speed:    agentSpeed[kind],
	}
}

// setRoute replaces the agent's waypoint list.
func (a *Agent) setRoute(waypoints []sim.Coordinate) {
	a.waypoints = waypoints
	if len(waypoints) > 0 {
		a.Status = "moving"
	}
}

// advance moves the agent along its waypoints by one tick's travel budget,
// with a little per-tick jitter so co-located agents spread out.
func (a *Agent) advance(rng *rand.Rand) {
	budget := a.speed
	for budget > 0 && len(a.waypoints) > 0 {
		next := a.waypoints[0]
		d := a.Position.DistanceTo(next)
		if d <= budget {
			a.Position = next
			a.waypoints = a.waypoints[1:]
			budget -= d
			continue
		}
		frac := budget / d
		a.Position.X += (next.X - a.Position.X) * frac
		a.Position.Y += (next.Y - a.Position.Y) * frac
		budget = 0
	}
	if len(a.waypoints) == 0 && a.Status == "moving" {
		a.Status = "idle"
	}
	a.Position.X = jitter(a.Position.X, rng)
	a.Position.Y = jitter(a.Position.Y, rng)
}

func jitter(v float64, rng *rand.Rand) float64 {
	v += (rng.Float64() - 0.5) * 0.002
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
