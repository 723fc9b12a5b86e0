package sim

import "container/heap"

// Algorithm selects the path search used by FindPath.
type Algorithm string

const (
	AlgorithmAStar    Algorithm = "astar"
	AlgorithmDijkstra Algorithm = "dijkstra"
)

// Path is the result of a FindPath query: an ordered node id sequence and
// its total traversal cost under the loads frozen at the last Publish.
type Path struct {
	Nodes []string
	Cost  float64
}

// FindPath snaps start and end to the nearest eligible nodes and runs the
// selected search. Dijkstra explores by increasing tentative cost and is
// optimal under non-negative edge costs. A* adds the straight-line-to-goal
// heuristic; since edge cost >= distance always (load only inflates cost),
// the heuristic never overestimates and A* returns the same total cost
// while typically visiting fewer nodes. When accessibilityRequired is set,
// inaccessible nodes are excluded from the search graph entirely, not
// penalized. Fails with *NoPathError when the snapped endpoints are in
// different connected components after filtering.
func (g *RoutingGraph) FindPath(start, end Coordinate, accessibilityRequired bool, algorithm Algorithm) (Path, error) {
	v := g.view.Load()

	startID, ok := v.snap(start, accessibilityRequired)
	if !ok {
		return Path{}, &NoPathError{AccessibilityRequired: accessibilityRequired}
	}
	endID, _ := v.snap(end, accessibilityRequired)

	var heuristic func(id string) float64
	if algorithm == AlgorithmAStar {
		goal := v.nodes[endID].Position
		heuristic = func(id string) float64 {
			return v.nodes[id].Position.DistanceTo(goal)
		}
	}

	nodes, cost, found := v.search(startID, endID, accessibilityRequired, heuristic)
	if !found {
		return Path{}, &NoPathError{StartNode: startID, EndNode: endID, AccessibilityRequired: accessibilityRequired}
	}
	return Path{Nodes: nodes, Cost: cost}, nil
}

// searchItem is one frontier entry. seq is the insertion sequence number:
// equal-priority entries pop in insertion order, so equal-cost paths resolve
// to the one discovered first (deterministic, reproducible).
type searchItem struct {
	id       string
	cost     float64 // g: tentative cost from start
	priority float64 // g + h (h = 0 for Dijkstra)
	seq      int
}

type searchFrontier []searchItem

func (f searchFrontier) Len() int { return len(f) }

func (f searchFrontier) Less(i, j int) bool {
	if f[i].priority != f[j].priority {
		return f[i].priority < f[j].priority
	}
	return f[i].seq < f[j].seq
}

func (f searchFrontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *searchFrontier) Push(x interface{}) {
	*f = append(*f, x.(searchItem))
}

func (f *searchFrontier) Pop() interface{} {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// search is the shared core of Dijkstra and A*: a nil heuristic degrades
// A* to Dijkstra. Returns the node path (start..end inclusive), its cost,
// and whether the goal was reached.
func (v *routeView) search(startID, endID string, accessibleOnly bool, heuristic func(string) float64) ([]string, float64, bool) {
	if accessibleOnly && !v.nodes[startID].Accessible {
		return nil, 0, false
	}
	if startID == endID {
		return []string{startID}, 0, true
	}

	frontier := &searchFrontier{}
	heap.Init(frontier)
	seq := 0
	push := func(id string, cost float64) {
		priority := cost
		if heuristic != nil {
			priority += heuristic(id)
		}
		heap.Push(frontier, searchItem{id: id, cost: cost, priority: priority, seq: seq})
		seq++
	}

	gScore := map[string]float64{startID: 0}
	prev := map[string]string{}
	visited := map[string]bool{}
	push(startID, 0)

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(searchItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true

		if cur.id == endID {
			return reconstruct(prev, startID, endID), cur.cost, true
		}

		for _, e := range v.adj[cur.id] {
			if visited[e.To] {
				continue
			}
			if accessibleOnly && !v.nodes[e.To].Accessible {
				continue
			}
			tentative := cur.cost + v.edgeCost(cur.id, e)
			if known, ok := gScore[e.To]; !ok || tentative < known {
				gScore[e.To] = tentative
				prev[e.To] = cur.id
				push(e.To, tentative)
			}
		}
	}
	return nil, 0, false
}

func reconstruct(prev map[string]string, startID, endID string) []string {
	path := []string{endID}
	for cur := endID; cur != startID; {
		cur = prev[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
