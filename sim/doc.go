// Package sim provides the core tick-driven coordination engine for the
// venue operations simulator.
//
// # Reading Guide
//
// Start with these three files to understand the tick kernel:
//   - types.go: shared value types (Tick, Coordinate, per-tick Snapshot)
//   - errors.go: the recoverable error taxonomy shared by all subsystems
//   - world/runner.go: the driver loop and the fixed per-tick invocation order
//
// # Architecture
//
// Four subsystems are invoked synchronously, in a fixed order, once per tick:
//   - Scheduler (scheduler.go): per-subject itineraries, delay detection
//     and application
//   - AlertManager (alerts.go): incident ingestion, priority scoring and
//     ordering, unit assignment and resolution
//   - RoutingGraph (routing.go, pathfinding.go): capacity-aware graph over
//     named locations, Dijkstra and A* path queries
//   - AnalyticsEngine (analytics.go, timeseries.go, export.go): spatial grid
//     and time-series aggregation over per-tick snapshots
//
// The agent/world model that produces the per-tick Snapshot lives in
// sim/world; the driver wires it to the four subsystems.
//
// # Key Interfaces
//
// The extension points are single-method or small interfaces:
//   - AlertScorer: compute an alert's priority score from current context
//   - ConnectivityStrategy: build graph edges from a set of nodes
//
// # Concurrency
//
// Mutating calls happen only on the driver goroutine. Each subsystem
// publishes an immutable view of its queryable state at the end of every
// tick (Publish); read-path queries serve from the published view, so a
// concurrent reader always observes a complete tick, never a partial one.
package sim
