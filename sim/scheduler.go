package sim

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// EventKind classifies a scheduled itinerary entry.
type EventKind string

const (
	EventCompetition EventKind = "competition"
	EventTraining    EventKind = "training"
	EventTransport   EventKind = "transport"
	EventMeal        EventKind = "meal"
	EventMedia       EventKind = "media"
	EventCeremony    EventKind = "ceremony"
	EventRest        EventKind = "rest"
)

// DelayKind classifies a detected delay.
type DelayKind string

const (
	DelayTransport     DelayKind = "transport"
	DelayCongestion    DelayKind = "congestion"
	DelayCrowd         DelayKind = "crowd"
	DelayWeather       DelayKind = "weather"
	DelayMedical       DelayKind = "medical"
	DelaySecurity      DelayKind = "security"
	DelayAccessControl DelayKind = "access-control"
)

// ScheduleEntry is one itinerary item for a subject. Nominal is the original
// planned time and never changes; Adjusted carries accumulated delay shifts.
type ScheduleEntry struct {
	Nominal   Tick
	Adjusted  Tick
	Location  string
	Kind      EventKind
	Flexible  bool
	Conflict  bool // set instead of shifting when Flexible is false
	Completed bool
}

// ScheduleEventSpec is the caller-supplied description of one itinerary item.
type ScheduleEventSpec struct {
	Time     Tick
	Location string
	Kind     EventKind
	Flexible bool
}

// DelayRecord is a transient detected delay. Trigger anchors causality:
// applying the record only shifts entries with nominal time >= Trigger.
// Position is where the subject was observed at detection time, for history
// and reporting. The driver must submit each detected record exactly once.
type DelayRecord struct {
	SubjectID string
	Kind      DelayKind
	Magnitude Tick
	Detected  Tick
	Trigger   Tick
	Position  Coordinate
}

// DelayContext is the observed-conditions sample the driver supplies to
// CheckDelays. It is the only input besides the subject's own itinerary;
// detection is a pure function of the two.
type DelayContext struct {
	Now                Tick
	NearbyAgents       int
	WeatherSeverity    float64 // [0,1]
	TransportDisrupted bool
	NearbyIncidents    []AlertCategory
}

// Detection thresholds and magnitudes, in ticks. Magnitudes scale with the
// observed severity so detection stays deterministic.
const (
	congestionAgentThreshold = 20
	crowdAgentThreshold      = 35
	weatherSeverityThreshold = 0.6
	transportDelayBase       = Tick(10)
	weatherDelayBase         = Tick(6)
	incidentDelayBase        = Tick(8)
)

// ScheduleMetrics summarizes one subject's itinerary state.
type ScheduleMetrics struct {
	SubjectID       string
	TotalDelay      Tick
	Conflicts       int
	DelaysByKind    map[DelayKind]Tick
	TotalEvents     int
	CompletedEvents int
	Entries         []ScheduleEntry
}

// delayHistoryLimit bounds the rolling record of applied delays.
const delayHistoryLimit = 256

type schedulerView struct {
	metrics map[string]ScheduleMetrics
}

// Scheduler owns per-subject itineraries and the delay bookkeeping around
// them. Mutators run on the driver goroutine only; Metrics serves from the
// view published at the end of each tick and is safe for concurrent readers.
type Scheduler struct {
	schedules    map[string][]*ScheduleEntry
	delaysByKind map[string]map[DelayKind]Tick
	conflicts    map[string]int
	history      []DelayRecord

	view atomic.Pointer[schedulerView]
}

// NewScheduler creates an empty Scheduler with an empty published view.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		schedules:    make(map[string][]*ScheduleEntry),
		delaysByKind: make(map[string]map[DelayKind]Tick),
		conflicts:    make(map[string]int),
	}
	s.Publish()
	return s
}

// CreateSchedule stores an itinerary for a subject. Events must be ordered
// by non-decreasing time; re-creation for an existing subject requires an
// explicit ClearSchedule first.
func (s *Scheduler) CreateSchedule(subjectID string, events []ScheduleEventSpec) error {
	if _, ok := s.schedules[subjectID]; ok {
		return &InvalidScheduleError{SubjectID: subjectID, Reason: "schedule already exists (clear it first)"}
	}
	if len(events) == 0 {
		return &InvalidScheduleError{SubjectID: subjectID, Reason: "empty event list"}
	}
	entries := make([]*ScheduleEntry, 0, len(events))
	var prev Tick
	for i, ev := range events {
		if i > 0 && ev.Time < prev {
			return &InvalidScheduleError{
				SubjectID: subjectID,
				Reason:    fmt.Sprintf("event %d at tick %d precedes event %d at tick %d", i, ev.Time, i-1, prev),
			}
		}
		prev = ev.Time
		entries = append(entries, &ScheduleEntry{
			Nominal:  ev.Time,
			Adjusted: ev.Time,
			Location: ev.Location,
			Kind:     ev.Kind,
			Flexible: ev.Flexible,
		})
	}
	s.schedules[subjectID] = entries
	s.delaysByKind[subjectID] = make(map[DelayKind]Tick)
	logrus.Debugf("scheduler: created itinerary for %s with %d events", subjectID, len(entries))
	return nil
}

// ClearSchedule removes a subject's itinerary and its accumulated metrics.
func (s *Scheduler) ClearSchedule(subjectID string) error {
	if _, ok := s.schedules[subjectID]; !ok {
		return &NotFoundError{Kind: "subject", ID: subjectID}
	}
	delete(s.schedules, subjectID)
	delete(s.delaysByKind, subjectID)
	delete(s.conflicts, subjectID)
	return nil
}

// nextEntry returns the earliest uncompleted entry, or nil.
func nextEntry(entries []*ScheduleEntry) *ScheduleEntry {
	for _, e := range entries {
		if !e.Completed {
			return e
		}
	}
	return nil
}

// NextEvent returns the subject's earliest uncompleted entry with adjusted
// time strictly after now. Returns nil with no error if nothing is upcoming.
func (s *Scheduler) NextEvent(subjectID string, now Tick) (*ScheduleEntry, error) {
	entries, ok := s.schedules[subjectID]
	if !ok {
		return nil, &NotFoundError{Kind: "subject", ID: subjectID}
	}
	for _, e := range entries {
		if !e.Completed && e.Adjusted > now {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

// CompleteEvent marks the subject's earliest uncompleted entry as done.
func (s *Scheduler) CompleteEvent(subjectID string) error {
	entries, ok := s.schedules[subjectID]
	if !ok {
		return &NotFoundError{Kind: "subject", ID: subjectID}
	}
	if e := nextEntry(entries); e != nil {
		e.Completed = true
	}
	return nil
}

// CheckDelays compares the subject's next scheduled entry against observed
// conditions and returns zero or more detected DelayRecords stamped with the
// subject's current position. Pure: no Scheduler state is mutated and equal
// inputs yield equal outputs. The caller applies the records (once each) via
// ApplyDelays.
func (s *Scheduler) CheckDelays(subjectID string, current Coordinate, ctx DelayContext) ([]DelayRecord, error) {
	entries, ok := s.schedules[subjectID]
	if !ok {
		return nil, &NotFoundError{Kind: "subject", ID: subjectID}
	}
	next := nextEntry(entries)
	if next == nil {
		return nil, nil
	}

	record := func(kind DelayKind, magnitude Tick) DelayRecord {
		return DelayRecord{
			SubjectID: subjectID,
			Kind:      kind,
			Magnitude: magnitude,
			Detected:  ctx.Now,
			Trigger:   next.Nominal,
			Position:  current,
		}
	}

	var out []DelayRecord
	if ctx.TransportDisrupted && next.Kind == EventTransport {
		out = append(out, record(DelayTransport, transportDelayBase))
	}
	if ctx.NearbyAgents > crowdAgentThreshold {
		out = append(out, record(DelayCrowd, Tick(4+(ctx.NearbyAgents-crowdAgentThreshold)/5)))
	} else if ctx.NearbyAgents > congestionAgentThreshold {
		out = append(out, record(DelayCongestion, Tick(2+(ctx.NearbyAgents-congestionAgentThreshold)/5)))
	}
	if ctx.WeatherSeverity >= weatherSeverityThreshold {
		out = append(out, record(DelayWeather, Tick(float64(weatherDelayBase)*ctx.WeatherSeverity)+1))
	}
	for _, cat := range ctx.NearbyIncidents {
		switch cat {
		case CategoryMedical:
			out = append(out, record(DelayMedical, incidentDelayBase))
		case CategorySecurityThreat:
			out = append(out, record(DelaySecurity, incidentDelayBase))
		case CategoryAccessControl:
			out = append(out, record(DelayAccessControl, incidentDelayBase/2))
		}
	}
	return out, nil
}

// ApplyDelays shifts the subject's downstream flexible entries by the summed
// delay magnitude and flags fixed entries as conflicted. Only entries with
// nominal time >= the record's trigger are affected; delays never propagate
// across subjects. Each record is consumed exactly once — callers must not
// resubmit a record that was already applied.
func (s *Scheduler) ApplyDelays(subjectID string, delays []DelayRecord) error {
	entries, ok := s.schedules[subjectID]
	if !ok {
		return &NotFoundError{Kind: "subject", ID: subjectID}
	}
	for _, rec := range delays {
		if rec.Magnitude <= 0 {
			continue
		}
		for _, e := range entries {
			if e.Completed || e.Nominal < rec.Trigger {
				continue
			}
			if e.Flexible {
				e.Adjusted += rec.Magnitude
			} else if !e.Conflict {
				e.Conflict = true
				s.conflicts[subjectID]++
			}
		}
		s.delaysByKind[subjectID][rec.Kind] += rec.Magnitude
		s.history = append(s.history, rec)
		if len(s.history) > delayHistoryLimit {
			s.history = s.history[len(s.history)-delayHistoryLimit:]
		}
		logrus.Debugf("scheduler: applied %s delay of %d ticks to %s", rec.Kind, rec.Magnitude, subjectID)
	}
	return nil
}

// DelayHistory returns a copy of the bounded rolling record of applied
// delays, oldest first.
func (s *Scheduler) DelayHistory() []DelayRecord {
	out := make([]DelayRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Metrics returns the subject's schedule metrics from the published view.
// Safe for concurrent callers while the driver keeps stepping.
func (s *Scheduler) Metrics(subjectID string) (ScheduleMetrics, error) {
	v := s.view.Load()
	m, ok := v.metrics[subjectID]
	if !ok {
		return ScheduleMetrics{}, &NotFoundError{Kind: "subject", ID: subjectID}
	}
	return m, nil
}

// Publish rebuilds the immutable read view. Called by the driver after
// setup and at the end of every tick.
func (s *Scheduler) Publish() {
	v := &schedulerView{metrics: make(map[string]ScheduleMetrics, len(s.schedules))}
	for id, entries := range s.schedules {
		m := ScheduleMetrics{
			SubjectID:    id,
			Conflicts:    s.conflicts[id],
			DelaysByKind: make(map[DelayKind]Tick, len(s.delaysByKind[id])),
			TotalEvents:  len(entries),
			Entries:      make([]ScheduleEntry, 0, len(entries)),
		}
		for k, d := range s.delaysByKind[id] {
			m.DelaysByKind[k] = d
		}
		for _, e := range entries {
			m.TotalDelay += e.Adjusted - e.Nominal
			if e.Completed {
				m.CompletedEvents++
			}
			m.Entries = append(m.Entries, *e)
		}
		v.metrics[id] = m
	}
	s.view.Store(v)
}
