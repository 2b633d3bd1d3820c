package mission

import (
	"time"

	"github.com/zeusync/missionsim/internal/core/systems/physics"
)

// Event types published on the bus by a running scenario.
const (
	EventPhaseChanged   = "mission.phase_changed"
	EventThreatDetected = "mission.threat_detected"
	EventHandOff        = "mission.handoff"
	EventAccomplished   = "mission.accomplished"
	EventSnapshot       = "mission.snapshot"
)

// PhaseChange is the payload of EventPhaseChanged.
type PhaseChange struct {
	Role     Role
	From     Phase
	To       Phase
	At       time.Duration
	Position physics.Vec2
}

// ThreatDetection is the payload of EventThreatDetected.
type ThreatDetection struct {
	Role     Role
	Position physics.Vec2
	Distance float64
	At       time.Duration
}

// HandOff is the payload of EventHandOff.
type HandOff struct {
	From Role
	To   Role
	At   time.Duration
}

// Accomplishment is the payload of EventAccomplished.
type Accomplishment struct {
	RunID    string
	Role     Role
	Position physics.Vec2
	At       time.Duration
}
