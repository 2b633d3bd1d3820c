package mission

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/missionsim/internal/core/systems/physics"
)

// Config describes one relay scenario. Nothing about the geometry is built in;
// DefaultConfig only supplies the desert scenario the dashboard ships with.
type Config struct {
	Name        string       `json:"name" yaml:"name"`
	Origin      physics.Vec2 `json:"origin" yaml:"origin"`
	Destination physics.Vec2 `json:"destination" yaml:"destination"`
	Threat      ThreatConfig `json:"threat" yaml:"threat"`
	Detour      DetourConfig `json:"detour" yaml:"detour"`
	Motion      MotionConfig `json:"motion" yaml:"motion"`
	Timing      TimingConfig `json:"timing" yaml:"timing"`
}

// ThreatConfig is the exclusion zone. Margin widens the detection radius past
// the rendered one so the scout turns before it visibly overlaps the zone.
type ThreatConfig struct {
	Center physics.Vec2 `json:"center" yaml:"center"`
	Radius float64      `json:"radius" yaml:"radius"`
	Margin float64      `json:"margin" yaml:"margin"`
}

// DetourConfig places the relay's routing waypoint at
// center + unit(Direction) * (radius + Clearance).
type DetourConfig struct {
	Direction physics.Vec2 `json:"direction" yaml:"direction"`
	Clearance float64      `json:"clearance" yaml:"clearance"`
}

type MotionConfig struct {
	// Speed is in scene units per move tick, shared by every agent.
	Speed float64 `json:"speed" yaml:"speed"`
	// Arrival is the fine threshold for final stops.
	Arrival float64 `json:"arrival" yaml:"arrival"`
	// WaypointArrival is the coarser threshold for routing waypoints.
	WaypointArrival float64 `json:"waypoint_arrival" yaml:"waypoint_arrival"`
	// Completion is the delivery radius around the destination.
	Completion float64 `json:"completion" yaml:"completion"`
}

type TimingConfig struct {
	MoveInterval  time.Duration `json:"move_interval" yaml:"move_interval"`
	BlinkInterval time.Duration `json:"blink_interval" yaml:"blink_interval"`
}

// requiredKeys must be present in a loaded document; zero is a legal value for
// most of them, so absence cannot be detected after decoding.
var requiredKeys = []string{
	"origin.x", "origin.y",
	"destination.x", "destination.y",
	"threat.center.x", "threat.center.y", "threat.radius", "threat.margin",
	"detour.direction.x", "detour.direction.y", "detour.clearance",
	"motion.speed", "motion.arrival", "motion.waypoint_arrival", "motion.completion",
	"timing.move_interval", "timing.blink_interval",
}

// DefaultConfig returns the desert relay scenario.
func DefaultConfig() Config {
	return Config{
		Name:        "desert-resupply",
		Origin:      physics.Vec2{X: 202, Y: 420},
		Destination: physics.Vec2{X: 1340, Y: 356},
		Threat: ThreatConfig{
			Center: physics.Vec2{X: 915, Y: 422},
			Radius: 180,
			Margin: 61,
		},
		Detour: DetourConfig{
			Direction: physics.Vec2{X: 0, Y: -1},
			Clearance: 80,
		},
		Motion: MotionConfig{
			Speed:           20,
			Arrival:         3,
			WaypointArrival: 50,
			Completion:      80,
		},
		Timing: TimingConfig{
			MoveInterval:  time.Second,
			BlinkInterval: 500 * time.Millisecond,
		},
	}
}

// LoadYAML reads a scenario, rejecting unknown fields and missing required
// ones, and validates it.
func LoadYAML(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err = checkRequired(&doc); err != nil {
		return nil, err
	}

	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func checkRequired(doc *yaml.Node) error {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	var missing []string
	for _, key := range requiredKeys {
		if lookup(root, strings.Split(key, ".")) == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

func lookup(n *yaml.Node, path []string) *yaml.Node {
	if len(path) == 0 {
		return n
	}
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == path[0] {
			return lookup(n.Content[i+1], path[1:])
		}
	}
	return nil
}

// Validate checks that the scenario produces well defined geometry.
func (c *Config) Validate() error {
	points := map[string]physics.Vec2{
		"origin":           c.Origin,
		"destination":      c.Destination,
		"threat.center":    c.Threat.Center,
		"detour.direction": c.Detour.Direction,
	}
	for name, p := range points {
		if !p.IsFinite() {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidConfig, name)
		}
	}

	switch {
	case c.Origin == c.Destination:
		return fmt.Errorf("%w: origin and destination coincide", ErrInvalidConfig)
	case !positive(c.Threat.Radius):
		return fmt.Errorf("%w: threat.radius must be positive", ErrInvalidConfig)
	case !nonNegative(c.Threat.Margin):
		return fmt.Errorf("%w: threat.margin must not be negative", ErrInvalidConfig)
	case c.Detour.Direction.IsZero():
		return fmt.Errorf("%w: detour.direction must not be the zero vector", ErrInvalidConfig)
	case !positive(c.Detour.Clearance):
		return fmt.Errorf("%w: detour.clearance must be positive", ErrInvalidConfig)
	case !positive(c.Motion.Speed):
		return fmt.Errorf("%w: motion.speed must be positive", ErrInvalidConfig)
	case !nonNegative(c.Motion.Arrival):
		return fmt.Errorf("%w: motion.arrival must not be negative", ErrInvalidConfig)
	case !nonNegative(c.Motion.WaypointArrival) || c.Motion.WaypointArrival < c.Motion.Arrival:
		return fmt.Errorf("%w: motion.waypoint_arrival must be at least motion.arrival", ErrInvalidConfig)
	case !positive(c.Motion.Completion):
		return fmt.Errorf("%w: motion.completion must be positive", ErrInvalidConfig)
	case c.Timing.MoveInterval <= 0:
		return fmt.Errorf("%w: timing.move_interval must be positive", ErrInvalidConfig)
	case c.Timing.BlinkInterval <= 0:
		return fmt.Errorf("%w: timing.blink_interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// Waypoint is the relay's intermediate target outside the threat zone.
func (c *Config) Waypoint() physics.Vec2 {
	offset := physics.Normalize(c.Detour.Direction).Scale(c.Threat.Radius + c.Detour.Clearance)
	return c.Threat.Center.Add(offset)
}

// Zone returns the threat zone as configured.
func (c *Config) Zone() Zone {
	return Zone{Center: c.Threat.Center, Radius: c.Threat.Radius}
}

// Fingerprint identifies the scenario geometry and timing; two configs with the
// same fingerprint replay identically.
func (c *Config) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		// Config only holds plain values; Marshal cannot fail on it.
		panic(err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

func nonNegative(f float64) bool {
	return f >= 0 && !math.IsInf(f, 1)
}
