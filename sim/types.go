package sim

import "math"

// Tick is the discrete simulation clock. One tick is one driver step; the
// wall-clock duration of a tick is scenario policy, not engine concern.
type Tick int64

// Coordinate is a position in the normalized world bounding box.
// Both components are in [0,1] for in-bounds positions.
type Coordinate struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DistanceTo returns the straight-line distance between two coordinates.
func (c Coordinate) DistanceTo(o Coordinate) float64 {
	dx := c.X - o.X
	dy := c.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// AgentKind classifies an agent in the per-tick snapshot.
type AgentKind string

const (
	AgentAthlete   AgentKind = "athlete"
	AgentVolunteer AgentKind = "volunteer"
	AgentSecurity  AgentKind = "security"
	AgentMedical   AgentKind = "medical"
	AgentTransport AgentKind = "transport"
	AgentVIP       AgentKind = "vip"
)

// AgentState is one agent's entry in the per-tick snapshot.
type AgentState struct {
	ID       string
	Kind     AgentKind
	Position Coordinate
	Status   string
}

// IncidentState is one active incident's entry in the per-tick snapshot.
type IncidentState struct {
	ID       string
	Category AlertCategory
	Position Coordinate
	Created  Tick
}

// AmbientContext carries the per-tick environmental sample consumed by
// alert scoring and delay detection.
type AmbientContext struct {
	CrowdDensity    float64 // [0,1] global congestion sample
	WeatherSeverity float64 // [0,1], 0 = clear
	VIPPositions    []Coordinate
}

// Snapshot is the per-tick world view handed to the coordination subsystems
// by the driver. The engine never mutates it.
type Snapshot struct {
	Now           Tick
	Agents        []AgentState
	Incidents     []IncidentState
	Ambient       AmbientContext
	ResponseTimes []ResponseSample // responses completed this tick
}

// ResponseSample records one completed incident response for analytics.
type ResponseSample struct {
	Position Coordinate
	Duration Tick // detection to resolution
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
