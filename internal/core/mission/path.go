package mission

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/zeusync/missionsim/internal/core/systems/physics"
)

// Path is the append-only trail of one agent.
type Path struct {
	line orb.LineString
}

func NewPath() *Path {
	return &Path{}
}

func (p *Path) Append(pos physics.Vec2) {
	p.line = append(p.line, orb.Point(pos.Array()))
}

func (p *Path) Len() int {
	return len(p.line)
}

// Clear discards the trail.
func (p *Path) Clear() {
	p.line = nil
}

// Points returns a copy of the recorded positions.
func (p *Path) Points() []physics.Vec2 {
	out := make([]physics.Vec2, len(p.line))
	for i, pt := range p.line {
		out[i] = physics.FromArray(pt)
	}
	return out
}

// Length is the flown distance along the trail.
func (p *Path) Length() float64 {
	if len(p.line) < 2 {
		return 0
	}
	return planar.Length(p.line)
}

// Feature exports the trail as a GeoJSON LineString tagged with the role.
func (p *Path) Feature(role Role) *geojson.Feature {
	line := p.line.Clone()
	if line == nil {
		line = orb.LineString{}
	}
	f := geojson.NewFeature(line)
	f.Properties["role"] = string(role)
	f.Properties["points"] = len(line)
	f.Properties["length"] = p.Length()
	return f
}
