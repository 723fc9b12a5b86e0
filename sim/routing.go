package sim

import (
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// RoutingNode is one named location in the routing graph.
type RoutingNode struct {
	ID         string
	Position   Coordinate
	Capacity   int
	Load       float64 // [0,1] fraction of capacity
	Accessible bool
}

// LocationSpec describes one location when constructing the graph.
type LocationSpec struct {
	ID         string     `yaml:"id"`
	Position   Coordinate `yaml:"position"`
	Capacity   int        `yaml:"capacity"`
	Accessible bool       `yaml:"accessible"`
}

// routingEdge is one undirected adjacency entry. Base distance is fixed at
// construction; traversal cost is derived from endpoint loads at query time.
type routingEdge struct {
	To       string
	Distance float64
}

// ConnectivityStrategy builds the edge set for a node list. The neighbor
// heuristic (and its disconnection risk) is tunable policy, so it is an
// interface with one default implementation rather than fixed law.
type ConnectivityStrategy interface {
	Connect(nodes []*RoutingNode) map[string][]routingEdge
}

// KNearest connects each node to its K nearest neighbors by straight-line
// distance. Edges are undirected and deduplicated: if A picks B, the edge
// is inserted once and traversable both ways whether or not B picks A.
// Sparse neighbor counts can leave the graph disconnected; callers must
// treat NoPathError as an expected outcome.
type KNearest struct {
	K int
}

func (s KNearest) Connect(nodes []*RoutingNode) map[string][]routingEdge {
	adj := make(map[string][]routingEdge, len(nodes))
	type pair struct{ a, b string }
	seen := make(map[pair]bool)

	insert := func(a, b string, d float64) {
		key := pair{a, b}
		if a > b {
			key = pair{b, a}
		}
		if seen[key] {
			return
		}
		seen[key] = true
		adj[a] = append(adj[a], routingEdge{To: b, Distance: d})
		adj[b] = append(adj[b], routingEdge{To: a, Distance: d})
	}

	for _, n := range nodes {
		type cand struct {
			id   string
			dist float64
		}
		cands := make([]cand, 0, len(nodes)-1)
		for _, o := range nodes {
			if o.ID == n.ID {
				continue
			}
			cands = append(cands, cand{id: o.ID, dist: n.Position.DistanceTo(o.Position)})
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].dist != cands[j].dist {
				return cands[i].dist < cands[j].dist
			}
			return cands[i].id < cands[j].id
		})
		k := s.K
		if k > len(cands) {
			k = len(cands)
		}
		for _, c := range cands[:k] {
			insert(n.ID, c.id, c.dist)
		}
	}

	// Stable neighbor-iteration order: sorted by (distance, id) so equal-cost
	// paths are discovered in a reproducible order.
	for id := range adj {
		edges := adj[id]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Distance != edges[j].Distance {
				return edges[i].Distance < edges[j].Distance
			}
			return edges[i].To < edges[j].To
		})
	}
	return adj
}

// loadPenaltyWeight scales how strongly endpoint load inflates edge cost.
// Cost = distance * (1 + w*(loadA+loadB)/2), so cost >= distance always and
// the straight-line A* heuristic stays admissible.
const loadPenaltyWeight = 0.5

// routeView is the frozen per-tick search graph: static adjacency plus the
// node loads captured at Publish time.
type routeView struct {
	nodes map[string]RoutingNode
	adj   map[string][]routingEdge
	order []string // node ids sorted, for deterministic snapping
}

// RoutingGraph is the capacity-aware graph over named locations. The graph
// topology is static after construction; only node loads mutate, and only
// via UpdateNodeLoad on the driver goroutine. FindPath serves from the view
// published at end of tick and is safe for concurrent readers. Load changes
// affect edge costs lazily: at the next query after the next Publish.
type RoutingGraph struct {
	nodes map[string]*RoutingNode
	adj   map[string][]routingEdge

	view atomic.Pointer[routeView]
}

// NewRoutingGraph builds nodes from the location specs and connects them
// with the given strategy (KNearest{K: 5} when nil). The initial view is
// published immediately.
func NewRoutingGraph(locations []LocationSpec, strategy ConnectivityStrategy) *RoutingGraph {
	if strategy == nil {
		strategy = KNearest{K: 5}
	}
	g := &RoutingGraph{nodes: make(map[string]*RoutingNode, len(locations))}
	ordered := make([]*RoutingNode, 0, len(locations))
	for _, loc := range locations {
		n := &RoutingNode{
			ID:         loc.ID,
			Position:   loc.Position,
			Capacity:   loc.Capacity,
			Accessible: loc.Accessible,
		}
		g.nodes[n.ID] = n
		ordered = append(ordered, n)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	g.adj = strategy.Connect(ordered)
	g.Publish()
	logrus.Debugf("routing: built graph with %d nodes", len(g.nodes))
	return g
}

// UpdateNodeLoad overwrites a node's load fraction. Edge costs are not
// recomputed eagerly; they derive from loads at the next published query.
func (g *RoutingGraph) UpdateNodeLoad(nodeID string, load float64) error {
	n, ok := g.nodes[nodeID]
	if !ok {
		return &NotFoundError{Kind: "node", ID: nodeID}
	}
	n.Load = clamp01(load)
	return nil
}

// Node returns a copy of the named node.
func (g *RoutingGraph) Node(id string) (RoutingNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return RoutingNode{}, &NotFoundError{Kind: "node", ID: id}
	}
	return *n, nil
}

// Nodes returns copies of all nodes, ordered by id.
func (g *RoutingGraph) Nodes() []RoutingNode {
	out := make([]RoutingNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SnapCoordinate returns the nearest node to a position and its distance,
// from the published view. ok is false for an empty graph or, with
// accessibleOnly set, when no accessible node exists.
func (g *RoutingGraph) SnapCoordinate(pos Coordinate, accessibleOnly bool) (string, float64, bool) {
	v := g.view.Load()
	id, ok := v.snap(pos, accessibleOnly)
	if !ok {
		return "", 0, false
	}
	return id, pos.DistanceTo(v.nodes[id].Position), true
}

// Publish freezes the current node loads into a new read view.
func (g *RoutingGraph) Publish() {
	v := &routeView{
		nodes: make(map[string]RoutingNode, len(g.nodes)),
		adj:   g.adj,
		order: make([]string, 0, len(g.nodes)),
	}
	for id, n := range g.nodes {
		v.nodes[id] = *n
		v.order = append(v.order, id)
	}
	sort.Strings(v.order)
	g.view.Store(v)
}

// edgeCost derives the traversal cost of an edge under current loads.
func (v *routeView) edgeCost(from string, e routingEdge) float64 {
	la := v.nodes[from].Load
	lb := v.nodes[e.To].Load
	return e.Distance * (1 + loadPenaltyWeight*(la+lb)/2)
}

// snap returns the nearest eligible node to a coordinate. Ties break on the
// lower node id via the sorted iteration order.
func (v *routeView) snap(pos Coordinate, accessibleOnly bool) (string, bool) {
	best := ""
	bestDist := 0.0
	for _, id := range v.order {
		n := v.nodes[id]
		if accessibleOnly && !n.Accessible {
			continue
		}
		d := pos.DistanceTo(n.Position)
		if best == "" || d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, best != ""
}
