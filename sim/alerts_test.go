package sim

import (
	"errors"
	"fmt"
	"testing"
)

func calmCtx(now Tick) AlertContext {
	return AlertContext{Now: now}
}

func TestRegisterAlert_DuplicateID(t *testing.T) {
	m := NewAlertManager(nil)
	if _, err := m.RegisterAlert("a1", CategoryMedical, Coordinate{}, nil, calmCtx(0)); err != nil {
		t.Fatal(err)
	}
	_, err := m.RegisterAlert("a1", CategoryCrowd, Coordinate{}, nil, calmCtx(1))
	var dup *DuplicateAlertError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateAlertError, got %v", err)
	}
}

func TestRegisterAlert_ReusesIDAfterResolve(t *testing.T) {
	m := NewAlertManager(nil)
	if _, err := m.RegisterAlert("a1", CategoryMedical, Coordinate{}, nil, calmCtx(0)); err != nil {
		t.Fatal(err)
	}
	if err := m.ResolveAlert("a1", 5); err != nil {
		t.Fatal(err)
	}
	// Reopen is modeled as a fresh alert under the same id.
	if _, err := m.RegisterAlert("a1", CategoryMedical, Coordinate{}, nil, calmCtx(10)); err != nil {
		t.Errorf("re-registration after resolve rejected: %v", err)
	}
}

func TestHighestPriorityAlert_OrderAndTieBreak(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "low-1", CategoryAccessControl, 0)
	mustRegister(t, m, "crit-2", CategoryMedical, 0)
	mustRegister(t, m, "crit-1", CategoryMedical, 0) // same score as crit-2, same tick
	m.UpdateAllAlerts(calmCtx(0))
	m.Publish()

	top := m.HighestPriorityAlert()
	if top == nil {
		t.Fatal("no top alert")
	}
	// Equal scores and creation ticks: id ascending breaks the tie.
	if top.ID != "crit-1" {
		t.Errorf("top = %s, want crit-1", top.ID)
	}

	// Score dominates over everything for open alerts.
	for _, a := range m.AlertsByPriority(10) {
		if a.Score > top.Score {
			t.Errorf("alert %s score %.1f exceeds reported top %.1f", a.ID, a.Score, top.Score)
		}
	}
}

func TestHighestPriorityAlert_EarlierCreationWinsTies(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "b", CategoryMedical, 0)
	m2ctx := calmCtx(0)
	if _, err := m.RegisterAlert("a", CategoryMedical, Coordinate{}, nil, m2ctx); err != nil {
		t.Fatal(err)
	}
	// Freeze both at the same score by scoring against the same context.
	m.UpdateAllAlerts(calmCtx(0))
	m.Publish()
	got := m.HighestPriorityAlert()
	if got.ID != "a" { // same creation tick: id asc
		t.Errorf("top = %s, want a", got.ID)
	}
}

func TestHighestPriorityAlert_NoOpenAlerts(t *testing.T) {
	m := NewAlertManager(nil)
	if got := m.HighestPriorityAlert(); got != nil {
		t.Errorf("empty manager returned %v", got)
	}
	mustRegister(t, m, "a1", CategoryCrowd, 0)
	if err := m.AssignUnit("a1", "sec-1"); err != nil {
		t.Fatal(err)
	}
	m.Publish()
	// Assigned alerts are being handled; only open ones surface.
	if got := m.HighestPriorityAlert(); got != nil {
		t.Errorf("assigned alert surfaced as highest priority: %v", got)
	}
}

func TestResolveAlert_Transitions(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "a1", CategoryCrowd, 0)

	var inv *InvalidStateError
	if err := m.ResolveAlert("ghost", 1); !errors.As(err, &inv) {
		t.Errorf("unknown id: expected InvalidStateError, got %v", err)
	}
	if err := m.ResolveAlert("a1", 2); err != nil {
		t.Fatal(err)
	}
	if err := m.ResolveAlert("a1", 3); !errors.As(err, &inv) {
		t.Errorf("double resolve: expected InvalidStateError, got %v", err)
	}
	if err := m.AssignUnit("a1", "sec-1"); !errors.As(err, &inv) {
		t.Errorf("assign after resolve: expected InvalidStateError, got %v", err)
	}
}

func TestResolveAlert_NeverSurfacesAgain(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "a1", CategoryMedical, 0)
	mustRegister(t, m, "a2", CategoryCrowd, 0)
	m.UpdateAllAlerts(calmCtx(0))
	if err := m.ResolveAlert("a1", 1); err != nil {
		t.Fatal(err)
	}
	m.Publish()

	if top := m.HighestPriorityAlert(); top == nil || top.ID == "a1" {
		t.Errorf("resolved alert surfaced: %v", top)
	}
	for _, a := range m.AlertsByCategory(CategoryMedical) {
		if a.ID == "a1" {
			t.Error("resolved alert in category listing")
		}
	}
}

func TestAssignUnit_TracksUnits(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "a1", CategorySecurityThreat, 0)
	if err := m.AssignUnit("a1", "sec-1"); err != nil {
		t.Fatal(err)
	}
	if err := m.AssignUnit("a1", "sec-2"); err != nil {
		t.Fatalf("adding second unit: %v", err)
	}
	m.Publish()
	alerts := m.AlertsByCategory(CategorySecurityThreat)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	a := alerts[0]
	if a.Status != StatusAssigned {
		t.Errorf("status = %s, want assigned", a.Status)
	}
	if len(a.Units) != 2 {
		t.Errorf("units = %d, want 2", len(a.Units))
	}
}

func TestAlertsByCategory_SortedByScoreDescending(t *testing.T) {
	m := NewAlertManager(nil)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("c-%d", i)
		ctx := AlertContext{Now: Tick(i)}
		if _, err := m.RegisterAlert(id, CategoryCrowd, Coordinate{}, nil, ctx); err != nil {
			t.Fatal(err)
		}
	}
	m.UpdateAllAlerts(calmCtx(100))
	m.Publish()
	alerts := m.AlertsByCategory(CategoryCrowd)
	if len(alerts) != 5 {
		t.Fatalf("got %d alerts, want 5", len(alerts))
	}
	for i := 1; i < len(alerts); i++ {
		if alerts[i].Score > alerts[i-1].Score {
			t.Errorf("ordering violated at %d: %.2f > %.2f", i, alerts[i].Score, alerts[i-1].Score)
		}
	}
	// Older crowd alerts aged more, so c-0 leads.
	if alerts[0].ID != "c-0" {
		t.Errorf("lead alert = %s, want c-0", alerts[0].ID)
	}
}

func TestAlertsByPriority_Limit(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "a1", CategoryMedical, 0)
	mustRegister(t, m, "a2", CategoryCrowd, 0)
	mustRegister(t, m, "a3", CategoryInformational, 0)
	m.UpdateAllAlerts(calmCtx(0))
	m.Publish()

	top2 := m.AlertsByPriority(2)
	if len(top2) != 2 {
		t.Fatalf("got %d alerts, want 2", len(top2))
	}
	if top2[0].Score < top2[1].Score {
		t.Error("priority listing not descending")
	}
	if got := len(m.AlertsByPriority(10)); got != 3 {
		t.Errorf("oversized limit returned %d, want 3", got)
	}
}

func TestStatistics_Counts(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "a1", CategoryMedical, 0)
	mustRegister(t, m, "a2", CategoryCrowd, 0)
	mustRegister(t, m, "a3", CategoryCrowd, 0)
	if err := m.AssignUnit("a2", "sec-1"); err != nil {
		t.Fatal(err)
	}
	if err := m.ResolveAlert("a3", 4); err != nil {
		t.Fatal(err)
	}
	m.Publish()

	stats := m.Statistics()
	if stats.Active != 2 {
		t.Errorf("active = %d, want 2", stats.Active)
	}
	if stats.Assigned != 1 {
		t.Errorf("assigned = %d, want 1", stats.Assigned)
	}
	if stats.ResolvedTotal != 1 {
		t.Errorf("resolved = %d, want 1", stats.ResolvedTotal)
	}
	if stats.HistoricalTotal != 3 {
		t.Errorf("historical = %d, want 3", stats.HistoricalTotal)
	}
	if stats.ByCategory[CategoryCrowd] != 1 {
		t.Errorf("active crowd = %d, want 1", stats.ByCategory[CategoryCrowd])
	}
	if stats.ByTier[TierCritical] != 1 {
		t.Errorf("critical tier = %d, want 1", stats.ByTier[TierCritical])
	}
}

func TestEscalateAlert_RaisesTier(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "a1", CategoryAccessControl, 0) // low tier
	if err := m.EscalateAlert("a1"); err != nil {
		t.Fatal(err)
	}
	m.UpdateAllAlerts(calmCtx(0))
	m.Publish()
	a := m.AlertsByPriority(1)[0]
	if a.Tier != TierMedium {
		t.Errorf("tier after escalation = %s, want medium", a.Tier)
	}
	// Escalation saturates at critical.
	for i := 0; i < 5; i++ {
		if err := m.EscalateAlert("a1"); err != nil {
			t.Fatal(err)
		}
	}
	m.UpdateAllAlerts(calmCtx(0))
	m.Publish()
	if got := m.AlertsByPriority(1)[0].Tier; got != TierCritical {
		t.Errorf("tier = %s, want critical", got)
	}

	var inv *InvalidStateError
	if err := m.EscalateAlert("ghost"); !errors.As(err, &inv) {
		t.Errorf("unknown id: expected InvalidStateError, got %v", err)
	}
}

// Escalation-by-age: a low alert left open long enough overtakes a critical
// alert whose age term is pinned at zero. The crossover must be monotonic —
// once overtaken, later ticks keep the same winner.
func TestAging_LowAlertEventuallyOvertakesCritical(t *testing.T) {
	m := NewAlertManager(nil)
	mustRegister(t, m, "A", CategoryMedical, 0)       // critical, never ages
	mustRegister(t, m, "B", CategoryAccessControl, 0) // low, ages at full rate

	crossed := false
	var crossTick Tick
	for now := Tick(0); now <= 400; now += 10 {
		m.UpdateAllAlerts(calmCtx(now))
		m.Publish()
		top := m.HighestPriorityAlert()
		if top == nil {
			t.Fatal("no top alert")
		}
		if !crossed && top.ID == "B" {
			crossed = true
			crossTick = now
		}
		if crossed && top.ID != "B" {
			t.Fatalf("aging not monotonic: winner flipped back at tick %d", now)
		}
	}
	if !crossed {
		t.Fatal("low alert never overtook critical despite aging")
	}
	if crossTick == 0 {
		t.Error("crossover at tick 0: base weights not dominating fresh scores")
	}
	t.Logf("crossover at tick %d", crossTick)
}

func mustRegister(t *testing.T, m *AlertManager, id string, cat AlertCategory, now Tick) {
	t.Helper()
	if _, err := m.RegisterAlert(id, cat, Coordinate{}, nil, calmCtx(now)); err != nil {
		t.Fatal(err)
	}
}
