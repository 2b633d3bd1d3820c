package mission

import "github.com/zeusync/missionsim/internal/core/systems/physics"

// Navigator moves an agent toward its target by one tick. It reports arrival
// but never decides what happens next; the agent's state machine does.
type Navigator struct {
	Speed   float64
	Arrival float64
}

// Advance steps the agent and records the new position when it moved.
func (n Navigator) Advance(a *Agent) physics.StepResult {
	res := physics.Step(a.position, a.target, n.Speed, n.Arrival)
	if !res.Arrived {
		a.position = res.Position
		a.path.Append(res.Position)
	}
	return res
}
