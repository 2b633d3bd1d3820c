package mission

import "github.com/zeusync/missionsim/internal/core/systems/physics"

// Zone is a static circular exclusion region.
type Zone struct {
	Center physics.Vec2 `json:"center" msgpack:"center"`
	Radius float64      `json:"radius" msgpack:"radius"`
}

// Detector flags positions inside the zone widened by Margin.
type Detector struct {
	Zone   Zone
	Margin float64
}

// Range is the effective detection radius.
func (d Detector) Range() float64 {
	return d.Zone.Radius + d.Margin
}

// Intrudes reports whether p lies within the detection range; the boundary
// itself counts as intruding.
func (d Detector) Intrudes(p physics.Vec2) bool {
	return physics.Distance(p, d.Zone.Center) <= d.Range()
}
