package lanes

import (
	"github.com/lanewatch-data/lanewatch/internal/geom"
	"github.com/lanewatch-data/lanewatch/internal/video"
)

// Unassigned is the lane value for a box whose centre lies in no lane
// polygon.
const Unassigned = ""

// Assigner attributes bounding boxes to lanes by testing the box centre
// against each lane polygon in configuration order.
type Assigner struct {
	set    *LaneSet
	within geom.PointInPolygon
}

// NewAssigner creates an assigner over the given lane set using the
// default ray-casting containment test.
func NewAssigner(set *LaneSet) *Assigner {
	return &Assigner{set: set, within: geom.RayCaster{}}
}

// Assign returns the lane whose polygon contains the centre of the box,
// or Unassigned if no polygon does. Polygons are tested in configuration
// order and the first match wins; with overlapping polygons this is a
// deterministic tie-break, not a claim that the partition is correct.
// Cost is linear in the total vertex count, which is fine at the tens of
// polygons a single camera view carries.
func (a *Assigner) Assign(box video.BoundingBox) string {
	cx, cy := box.Center()
	p := geom.Point{X: cx, Y: cy}
	for _, def := range a.set.Lanes() {
		if a.within.Contains(p, def.Polygon) {
			return def.ID
		}
	}
	return Unassigned
}

// Lanes exposes the underlying lane definitions, in order, for rendering
// overlays.
func (a *Assigner) Lanes() []LaneDefinition {
	return a.set.Lanes()
}
