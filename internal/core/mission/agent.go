package mission

import (
	"fmt"

	"github.com/zeusync/missionsim/internal/core/systems/physics"
)

// Role names an agent by the job it does in the relay.
type Role string

const (
	RoleScout Role = "surveillance"
	RoleRelay Role = "supply"
)

// Phase is a state of an agent's mission state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota

	// scout lineage
	PhaseOutbound
	PhaseReturning
	PhaseDone

	// relay lineage
	PhaseStage1
	PhaseStage2
	PhaseComplete
)

var phaseNames = [...]string{
	PhaseIdle:      "IDLE",
	PhaseOutbound:  "OUTBOUND",
	PhaseReturning: "RETURNING",
	PhaseDone:      "DONE",
	PhaseStage1:    "STAGE_1",
	PhaseStage2:    "STAGE_2",
	PhaseComplete:  "COMPLETE",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Terminal reports whether no further ticks are processed in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseComplete
}

// lineages lists each role's phases in the only order they may be visited.
var lineages = map[Role][]Phase{
	RoleScout: {PhaseIdle, PhaseOutbound, PhaseReturning, PhaseDone},
	RoleRelay: {PhaseIdle, PhaseStage1, PhaseStage2, PhaseComplete},
}

func rank(role Role, p Phase) int {
	for i, cur := range lineages[role] {
		if cur == p {
			return i
		}
	}
	return -1
}

// Agent is the state owned by one simulated vehicle. Only the process that
// drives the agent mutates it.
type Agent struct {
	role     Role
	position physics.Vec2
	target   physics.Vec2
	visible  bool
	phase    Phase
	path     *Path
}

func newAgent(role Role, at physics.Vec2) *Agent {
	return &Agent{
		role:     role,
		position: at,
		target:   at,
		path:     NewPath(),
	}
}

func (a *Agent) Role() Role             { return a.role }
func (a *Agent) Position() physics.Vec2 { return a.position }
func (a *Agent) Target() physics.Vec2   { return a.target }
func (a *Agent) Visible() bool          { return a.visible }
func (a *Agent) Phase() Phase           { return a.phase }
func (a *Agent) Path() *Path            { return a.path }

// transition moves the agent forward in its lineage and returns the previous phase.
func (a *Agent) transition(to Phase) (Phase, error) {
	from := a.phase
	next := rank(a.role, to)
	if next < 0 {
		return from, fmt.Errorf("%w: %s cannot enter %s", ErrPhaseNotInLineage, a.role, to)
	}
	if next <= rank(a.role, from) {
		return from, fmt.Errorf("%w: %s %s -> %s", ErrPhaseRegression, a.role, from, to)
	}
	a.phase = to
	return from, nil
}

func (a *Agent) state() AgentState {
	return AgentState{
		Role:     a.role,
		Phase:    a.phase.String(),
		Position: a.position,
		Target:   a.target,
		Visible:  a.visible,
		Path:     a.path.Points(),
		Flown:    a.path.Length(),
	}
}
