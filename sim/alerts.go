package sim

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// AlertCategory classifies an incident.
type AlertCategory string

const (
	CategorySecurityThreat AlertCategory = "security-threat"
	CategoryMedical        AlertCategory = "medical"
	CategoryCrowd          AlertCategory = "crowd"
	CategoryWeather        AlertCategory = "weather"
	CategoryAccessControl  AlertCategory = "access-control"
	CategoryInformational  AlertCategory = "informational"
)

// SeverityTier is one of five ordered urgency classes. Lower numeric value
// means more urgent.
type SeverityTier int

const (
	TierCritical SeverityTier = iota
	TierHigh
	TierMedium
	TierLow
	TierInformational
)

func (t SeverityTier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "informational"
	}
}

// defaultTier maps each category to its base severity when the caller does
// not override it at registration.
var defaultTier = map[AlertCategory]SeverityTier{
	CategorySecurityThreat: TierCritical,
	CategoryMedical:        TierCritical,
	CategoryCrowd:          TierHigh,
	CategoryWeather:        TierMedium,
	CategoryAccessControl:  TierLow,
	CategoryInformational:  TierInformational,
}

// AlertStatus is the lifecycle state of an alert. Transitions only move
// forward: open → assigned → resolved. Reopening is a new alert.
type AlertStatus string

const (
	StatusOpen     AlertStatus = "open"
	StatusAssigned AlertStatus = "assigned"
	StatusResolved AlertStatus = "resolved"
)

// Alert is one registered incident with its mutable scoring state.
// Metadata is the single open extension mapping; all other fields are the
// closed well-known set.
type Alert struct {
	ID       string
	Category AlertCategory
	Tier     SeverityTier
	Position Coordinate
	Created  Tick
	Resolved Tick // valid once Status == StatusResolved

	Score    float64
	Status   AlertStatus
	Units    map[string]struct{}
	Metadata map[string]string
}

func (a *Alert) clone() *Alert {
	cp := *a
	cp.Units = make(map[string]struct{}, len(a.Units))
	for u := range a.Units {
		cp.Units[u] = struct{}{}
	}
	cp.Metadata = make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

// AlertStatistics counts alerts by category, status, and severity tier.
type AlertStatistics struct {
	Active          int
	Assigned        int
	ResolvedTotal   int
	HistoricalTotal int
	ByCategory      map[AlertCategory]int
	ByTier          map[SeverityTier]int
	ByStatus        map[AlertStatus]int
}

type alertView struct {
	ordered []*Alert // active alerts, descending score
	stats   AlertStatistics
}

// AlertManager ingests incidents, scores and orders them, and tracks unit
// assignment and resolution. Mutators are driver-thread-only; query methods
// serve from the view published at end of tick.
type AlertManager struct {
	scorer AlertScorer

	active   map[string]*Alert
	resolved map[string]*Alert
	ordered  []*Alert // rebuilt by UpdateAllAlerts / Publish
	total    int      // all registrations ever

	view atomic.Pointer[alertView]
}

// NewAlertManager creates an AlertManager using the given scorer, or the
// default TierAgingScorer when scorer is nil.
func NewAlertManager(scorer AlertScorer) *AlertManager {
	if scorer == nil {
		scorer = NewTierAgingScorer()
	}
	m := &AlertManager{
		scorer:   scorer,
		active:   make(map[string]*Alert),
		resolved: make(map[string]*Alert),
	}
	m.Publish()
	return m
}

// RegisterAlert ingests a new incident. The id is caller-supplied and must
// not collide with an open or assigned alert. A nil tier override uses the
// category default. The initial score is computed from ctx immediately.
func (m *AlertManager) RegisterAlert(id string, category AlertCategory, pos Coordinate, metadata map[string]string, ctx AlertContext) (*Alert, error) {
	return m.RegisterAlertWithTier(id, category, defaultTier[category], pos, metadata, ctx)
}

// RegisterAlertWithTier is RegisterAlert with an explicit severity override.
func (m *AlertManager) RegisterAlertWithTier(id string, category AlertCategory, tier SeverityTier, pos Coordinate, metadata map[string]string, ctx AlertContext) (*Alert, error) {
	if _, ok := m.active[id]; ok {
		return nil, &DuplicateAlertError{ID: id}
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}
	a := &Alert{
		ID:       id,
		Category: category,
		Tier:     tier,
		Position: pos,
		Created:  ctx.Now,
		Status:   StatusOpen,
		Units:    make(map[string]struct{}),
		Metadata: metadata,
	}
	a.Score = m.scorer.Score(a, ctx)
	m.active[id] = a
	m.ordered = append(m.ordered, a)
	m.total++
	logrus.Debugf("alerts: registered %s (%s/%s) score=%.1f", id, category, tier, a.Score)
	return a.clone(), nil
}

// UpdateAllAlerts re-scores every open and assigned alert against current
// context and rebuilds the priority ordering. Called once per tick.
func (m *AlertManager) UpdateAllAlerts(ctx AlertContext) {
	for _, a := range m.active {
		a.Score = m.scorer.Score(a, ctx)
	}
	m.reorder()
}

// reorder rebuilds the ordered index from the active set via a heap drain.
// Tie-break: score desc, then creation tick asc, then id asc.
func (m *AlertManager) reorder() {
	h := newAlertHeap(m.active)
	m.ordered = m.ordered[:0]
	for h.Len() > 0 {
		m.ordered = append(m.ordered, h.popTop())
	}
}

// AssignUnit moves an open alert to assigned (or adds a unit to an already
// assigned one). Resolved or unknown alerts reject the transition.
func (m *AlertManager) AssignUnit(id, unitID string) error {
	a, ok := m.active[id]
	if !ok {
		return m.transitionError(id, "assign")
	}
	a.Units[unitID] = struct{}{}
	a.Status = StatusAssigned
	return nil
}

// ResolveAlert marks an open or assigned alert resolved. Resolving a
// resolved or unknown alert fails with InvalidStateError.
func (m *AlertManager) ResolveAlert(id string, now Tick) error {
	a, ok := m.active[id]
	if !ok {
		return m.transitionError(id, "resolve")
	}
	a.Status = StatusResolved
	a.Resolved = now
	delete(m.active, id)
	m.resolved[id] = a
	m.reorder()
	logrus.Debugf("alerts: resolved %s after %d ticks", id, now-a.Created)
	return nil
}

// EscalateAlert applies a manual escalation bump to an active alert's
// severity tier (one step up, saturating at critical). The new tier takes
// effect on the next re-score.
func (m *AlertManager) EscalateAlert(id string) error {
	a, ok := m.active[id]
	if !ok {
		return m.transitionError(id, "escalate")
	}
	if a.Tier > TierCritical {
		a.Tier--
	}
	return nil
}

func (m *AlertManager) transitionError(id, action string) error {
	if _, ok := m.resolved[id]; ok {
		return &InvalidStateError{ID: id, From: string(StatusResolved), Action: action}
	}
	return &InvalidStateError{ID: id, From: "unknown", Action: action}
}

// HighestPriorityAlert returns the open alert with the maximum current
// score from the published view, or nil when none is open. Ties go to the
// earlier creation tick.
func (m *AlertManager) HighestPriorityAlert() *Alert {
	v := m.view.Load()
	for _, a := range v.ordered {
		if a.Status == StatusOpen {
			return a.clone()
		}
	}
	return nil
}

// AlertsByCategory returns the active alerts of one category, ordered by
// descending score (stable under ties by creation tick).
func (m *AlertManager) AlertsByCategory(category AlertCategory) []*Alert {
	v := m.view.Load()
	var out []*Alert
	for _, a := range v.ordered {
		if a.Category == category {
			out = append(out, a.clone())
		}
	}
	return out
}

// AlertsByPriority returns up to limit active alerts, highest score first.
func (m *AlertManager) AlertsByPriority(limit int) []*Alert {
	v := m.view.Load()
	n := limit
	if n > len(v.ordered) {
		n = len(v.ordered)
	}
	out := make([]*Alert, 0, n)
	for _, a := range v.ordered[:n] {
		out = append(out, a.clone())
	}
	return out
}

// Statistics returns alert counts by category, status, and severity tier.
func (m *AlertManager) Statistics() AlertStatistics {
	return m.view.Load().stats
}

// ResolvedAlerts returns copies of all resolved alerts (driver path; feeds
// end-of-run reporting).
func (m *AlertManager) ResolvedAlerts() []*Alert {
	out := make([]*Alert, 0, len(m.resolved))
	for _, a := range m.resolved {
		out = append(out, a.clone())
	}
	return out
}

// Publish rebuilds the immutable read view from the current ordering.
func (m *AlertManager) Publish() {
	v := &alertView{
		ordered: make([]*Alert, 0, len(m.ordered)),
		stats: AlertStatistics{
			Active:          len(m.active),
			ResolvedTotal:   len(m.resolved),
			HistoricalTotal: m.total,
			ByCategory:      make(map[AlertCategory]int),
			ByTier:          make(map[SeverityTier]int),
			ByStatus:        make(map[AlertStatus]int),
		},
	}
	for _, a := range m.ordered {
		cp := a.clone()
		v.ordered = append(v.ordered, cp)
		v.stats.ByCategory[a.Category]++
		v.stats.ByTier[a.Tier]++
		v.stats.ByStatus[a.Status]++
		if a.Status == StatusAssigned {
			v.stats.Assigned++
		}
	}
	v.stats.ByStatus[StatusResolved] = len(m.resolved)
	m.view.Store(v)
}
