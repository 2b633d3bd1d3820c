package mission

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/zeusync/missionsim/internal/core/systems/physics"
)

// Snapshot is the read-only view handed to render sinks. A published snapshot
// is never modified; Scenario.Snapshot hands out deep copies.
type Snapshot struct {
	RunID        string        `json:"runId" msgpack:"runId"`
	Scenario     string        `json:"scenario" msgpack:"scenario"`
	Fingerprint  string        `json:"fingerprint" msgpack:"fingerprint"`
	Seq          uint64        `json:"seq" msgpack:"seq"`
	Elapsed      time.Duration `json:"elapsed" msgpack:"elapsed"`
	Agents       []AgentState  `json:"agents" msgpack:"agents"`
	Threat       ThreatState   `json:"threat" msgpack:"threat"`
	Accomplished bool          `json:"accomplished" msgpack:"accomplished"`
}

// AgentState is one agent as seen by the renderer.
type AgentState struct {
	Role     Role           `json:"role" msgpack:"role"`
	Phase    string         `json:"phase" msgpack:"phase"`
	Position physics.Vec2   `json:"position" msgpack:"position"`
	Target   physics.Vec2   `json:"target" msgpack:"target"`
	Visible  bool           `json:"visible" msgpack:"visible"`
	Path     []physics.Vec2 `json:"path" msgpack:"path"`
	Flown    float64        `json:"flown" msgpack:"flown"`
}

// ThreatState carries the zone and its display flags.
type ThreatState struct {
	Zone    Zone    `json:"zone" msgpack:"zone"`
	Range   float64 `json:"range" msgpack:"range"`
	Visible bool    `json:"visible" msgpack:"visible"`
	Blink   bool    `json:"blink" msgpack:"blink"`
}

// Agent returns the state for role, if present.
func (s Snapshot) Agent(role Role) (AgentState, bool) {
	for _, a := range s.Agents {
		if a.Role == role {
			return a, true
		}
	}
	return AgentState{}, false
}

// FeatureCollection exports every agent trail plus the threat zone center as
// GeoJSON. The zone feature carries its radius and detection range.
func (s Snapshot) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, a := range s.Agents {
		trail := NewPath()
		for _, p := range a.Path {
			trail.Append(p)
		}
		f := trail.Feature(a.Role)
		f.Properties["phase"] = a.Phase
		f.Properties["visible"] = a.Visible
		fc.Append(f)
	}

	zone := geojson.NewFeature(orb.Point(s.Threat.Zone.Center.Array()))
	zone.Properties["kind"] = "threat"
	zone.Properties["radius"] = s.Threat.Zone.Radius
	zone.Properties["range"] = s.Threat.Range
	zone.Properties["visible"] = s.Threat.Visible
	fc.Append(zone)
	return fc
}
