package sim

import "container/heap"

// alertHeap orders active alerts for the per-tick index rebuild.
// Scores change every tick, so the index is rebuilt from the full active
// set each UpdateAllAlerts rather than maintained incrementally — O(n log n)
// with a deterministic tie-break chain.
// Ordering: score desc → creation tick asc → id asc.
type alertHeap struct {
	alerts []*Alert
}

func newAlertHeap(active map[string]*Alert) *alertHeap {
	h := &alertHeap{alerts: make([]*Alert, 0, len(active))}
	for _, a := range active {
		h.alerts = append(h.alerts, a)
	}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *alertHeap) Len() int {
	return len(h.alerts)
}

// Less implements heap.Interface with deterministic ordering
func (h *alertHeap) Less(i, j int) bool {
	ai, aj := h.alerts[i], h.alerts[j]

	// Primary: score (higher first)
	if ai.Score != aj.Score {
		return ai.Score > aj.Score
	}

	// Secondary: creation tick (earlier first)
	if ai.Created != aj.Created {
		return ai.Created < aj.Created
	}

	// Tertiary: id (lower first, deterministic tie-breaker)
	return ai.ID < aj.ID
}

// Swap implements heap.Interface
func (h *alertHeap) Swap(i, j int) {
	h.alerts[i], h.alerts[j] = h.alerts[j], h.alerts[i]
}

// Push implements heap.Interface
func (h *alertHeap) Push(x interface{}) {
	h.alerts = append(h.alerts, x.(*Alert))
}

// Pop implements heap.Interface
func (h *alertHeap) Pop() interface{} {
	old := h.alerts
	n := len(old)
	item := old[n-1]
	h.alerts = old[0 : n-1]
	return item
}

// popTop removes and returns the highest-priority alert.
func (h *alertHeap) popTop() *Alert {
	return heap.Pop(h).(*Alert)
}
