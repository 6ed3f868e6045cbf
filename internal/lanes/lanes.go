// Package lanes maps bounding boxes to road lanes using user-defined
// polygon regions of the camera frame.
package lanes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lanewatch-data/lanewatch/internal/geom"
)

// LaneDefinition is one named lane region. Loaded once at startup and
// immutable thereafter.
type LaneDefinition struct {
	ID      string
	Polygon geom.Polygon
}

// LaneSet is an ordered collection of lane definitions. Order matters:
// when polygons overlap, the first lane in configuration order that
// contains a point wins the attribution.
type LaneSet struct {
	defs []LaneDefinition
}

// Lanes returns the definitions in configuration order.
func (s *LaneSet) Lanes() []LaneDefinition {
	return s.defs
}

// Len returns the number of lanes.
func (s *LaneSet) Len() int {
	return len(s.defs)
}

// IDs returns the lane identifiers in configuration order.
func (s *LaneSet) IDs() []string {
	ids := make([]string, len(s.defs))
	for i, d := range s.defs {
		ids[i] = d.ID
	}
	return ids
}

// Load reads a lane polygon file: a JSON object mapping lane ID to a flat
// list of vertex coordinates [x1, y1, x2, y2, ...]. Any malformed entry
// is a startup-time configuration error; the process must not run with a
// partial lane table.
//
// JSON objects carry no order, but first-match-wins attribution requires
// a deterministic one, so the file's own key order is recovered from the
// token stream rather than a map.
func Load(path string) (*LaneSet, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lane file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("lane file %s: %w", cleanPath, err)
	}
	return set, nil
}

// Parse decodes lane definitions from raw JSON, preserving key order.
func Parse(data []byte) (*LaneSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse lane JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("lane JSON must be an object, got %v", tok)
	}

	set := &LaneSet{}
	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse lane JSON: %w", err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("lane key must be a string, got %v", keyTok)
		}
		if id == "" {
			return nil, fmt.Errorf("lane key must not be empty")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate lane %q", id)
		}
		seen[id] = true

		var coords []float64
		if err := dec.Decode(&coords); err != nil {
			return nil, fmt.Errorf("lane %q: expected flat coordinate list: %w", id, err)
		}
		poly, err := polygonFromFlat(coords)
		if err != nil {
			return nil, fmt.Errorf("lane %q: %w", id, err)
		}
		set.defs = append(set.defs, LaneDefinition{ID: id, Polygon: poly})
	}

	if len(set.defs) == 0 {
		return nil, fmt.Errorf("lane file defines no lanes")
	}
	return set, nil
}

// polygonFromFlat converts [x1, y1, x2, y2, ...] to a polygon, rejecting
// odd-length lists, degenerate vertex counts and non-finite coordinates.
func polygonFromFlat(coords []float64) (geom.Polygon, error) {
	if len(coords)%2 != 0 {
		return geom.Polygon{}, fmt.Errorf("coordinate list has odd length %d", len(coords))
	}
	if len(coords) < 6 {
		return geom.Polygon{}, fmt.Errorf("polygon needs at least 3 vertices, got %d", len(coords)/2)
	}

	vertices := make([]geom.Point, 0, len(coords)/2)
	for i := 0; i < len(coords); i += 2 {
		p := geom.Point{X: coords[i], Y: coords[i+1]}
		if !p.IsFinite() {
			return geom.Polygon{}, fmt.Errorf("vertex %d has non-finite coordinates", i/2)
		}
		vertices = append(vertices, p)
	}
	return geom.Polygon{Vertices: vertices}, nil
}
