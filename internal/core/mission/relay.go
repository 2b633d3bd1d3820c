package mission

import (
	"github.com/zeusync/missionsim/internal/core/clock"
	"github.com/zeusync/missionsim/internal/core/systems/physics"
)

// Relay carries the supplies. It routes around the threat zone through a
// detour waypoint, then flies to the destination.
//
//	STAGE_1 --waypoint reached--> STAGE_2 --within completion radius--> COMPLETE
type Relay struct {
	agent       *Agent
	routing     Navigator
	final       Navigator
	waypoint    physics.Vec2
	destination physics.Vec2
	completion  float64
	sink        transitionSink
}

func newRelay(cfg *Config, sink transitionSink) *Relay {
	return &Relay{
		agent:       newAgent(RoleRelay, cfg.Origin),
		routing:     Navigator{Speed: cfg.Motion.Speed, Arrival: cfg.Motion.WaypointArrival},
		final:       Navigator{Speed: cfg.Motion.Speed, Arrival: cfg.Motion.Arrival},
		waypoint:    cfg.Waypoint(),
		destination: cfg.Destination,
		completion:  cfg.Motion.Completion,
		sink:        sink,
	}
}

func (r *Relay) Agent() *Agent { return r.agent }

// activate launches the relay from launch. It runs inside the tick that
// finished the scout, before the relay's own process exists.
func (r *Relay) activate(launch physics.Vec2) error {
	if _, err := r.agent.transition(PhaseStage1); err != nil {
		return err
	}
	r.agent.position = launch
	r.agent.target = r.waypoint
	r.agent.visible = true
	r.agent.path.Clear()
	return nil
}

// Tick advances the relay by one step. Ticking an idle or completed relay does nothing.
func (r *Relay) Tick(t *clock.Tick) {
	switch r.agent.phase {
	case PhaseStage1:
		if res := r.routing.Advance(r.agent); res.Arrived {
			r.enter(t, PhaseStage2)
		}
	case PhaseStage2:
		res := r.final.Advance(r.agent)
		if res.Arrived || physics.Distance(r.agent.position, r.destination) <= r.completion {
			r.enter(t, PhaseComplete)
		}
	}
}

func (r *Relay) enter(t *clock.Tick, to Phase) {
	from, err := r.agent.transition(to)
	if err != nil {
		r.sink.fault(t, r.agent, err)
		return
	}

	switch to {
	case PhaseStage2:
		r.agent.target = r.destination
	case PhaseComplete:
		r.agent.visible = false
	}
	r.sink.phaseChanged(t, r.agent, from)

	if to == PhaseComplete {
		t.Stop()
		r.sink.accomplished(t, r.agent)
	}
}
