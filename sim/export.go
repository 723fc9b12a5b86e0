package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// exportSchemaVersion is the analytics document schema version. Downstream
// tooling depends on the schema; evolution is additive only.
const exportSchemaVersion = 1

// ExportSnapshot is the single self-describing analytics document: grid
// dimensions, metric name → row-major raw cell values, metric name →
// ordered (tick, value) series, and the incident analysis summary. Grid
// values are exported raw (unnormalized) so re-ingesting the document
// reproduces the engine's contents exactly.
type ExportSnapshot struct {
	Version   int                          `json:"version"`
	Rows      int                          `json:"rows"`
	Cols      int                          `json:"cols"`
	Grids     map[string][]float64         `json:"grids"`
	Maxima    map[string]float64           `json:"maxima"`
	Series    map[string][]TimeSeriesPoint `json:"series"`
	Incidents IncidentAnalysis             `json:"incident_analysis"`
}

// Export builds the document from the published view.
func (e *AnalyticsEngine) Export() *ExportSnapshot {
	v := e.view.Load()
	doc := &ExportSnapshot{
		Version: exportSchemaVersion,
		Rows:    v.rows,
		Cols:    v.cols,
		Grids:   make(map[string][]float64, len(v.grids)),
		Maxima:  make(map[string]float64, len(v.maxima)),
		Series:  make(map[string][]TimeSeriesPoint, len(v.series)),
	}
	for name, flat := range v.grids {
		cp := make([]float64, len(flat))
		copy(cp, flat)
		doc.Grids[name] = cp
	}
	for name, max := range v.maxima {
		doc.Maxima[name] = max
	}
	for name, pts := range v.series {
		cp := make([]TimeSeriesPoint, len(pts))
		copy(cp, pts)
		doc.Series[name] = cp
	}
	doc.Incidents = v.incidents
	return doc
}

// ExportData serializes the analytics document to the sink as JSON.
func (e *AnalyticsEngine) ExportData(sink io.Writer) error {
	enc := json.NewEncoder(sink)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e.Export()); err != nil {
		return fmt.Errorf("export analytics: %w", err)
	}
	return nil
}

// ImportSnapshot parses a previously exported document. Documents from any
// schema version <= the current one are accepted (additive evolution).
func ImportSnapshot(r io.Reader) (*ExportSnapshot, error) {
	var doc ExportSnapshot
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("import analytics: %w", err)
	}
	if doc.Version < 1 || doc.Version > exportSchemaVersion {
		return nil, fmt.Errorf("import analytics: unsupported schema version %d", doc.Version)
	}
	if doc.Rows <= 0 || doc.Cols <= 0 {
		return nil, fmt.Errorf("import analytics: invalid grid dimensions %dx%d", doc.Rows, doc.Cols)
	}
	for name, flat := range doc.Grids {
		if len(flat) != doc.Rows*doc.Cols {
			return nil, fmt.Errorf("import analytics: grid %q has %d cells, want %d", name, len(flat), doc.Rows*doc.Cols)
		}
	}
	return &doc, nil
}

// GridMetrics returns the exported grid metric names, sorted.
func (s *ExportSnapshot) GridMetrics() []string {
	out := make([]string, 0, len(s.Grids))
	for name := range s.Grids {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
