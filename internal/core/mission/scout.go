package mission

import (
	"github.com/zeusync/missionsim/internal/core/clock"
	"github.com/zeusync/missionsim/internal/core/systems/physics"
)

// transitionSink receives the side effects of phase transitions. Calls happen
// inside the tick that caused them.
type transitionSink interface {
	phaseChanged(t *clock.Tick, a *Agent, from Phase)
	threatDetected(t *clock.Tick, a *Agent, distance float64)
	handOff(t *clock.Tick, from *Agent)
	accomplished(t *clock.Tick, a *Agent)
	fault(t *clock.Tick, a *Agent, err error)
}

// Scout flies toward the destination, turns home when it senses the threat
// zone, and hands the mission to the relay once it has landed.
//
//	OUTBOUND --intrusion or destination reached--> RETURNING --home--> DONE
type Scout struct {
	agent       *Agent
	nav         Navigator
	detector    Detector
	home        physics.Vec2
	destination physics.Vec2
	sink        transitionSink
}

func newScout(cfg *Config, sink transitionSink) *Scout {
	return &Scout{
		agent:       newAgent(RoleScout, cfg.Origin),
		nav:         Navigator{Speed: cfg.Motion.Speed, Arrival: cfg.Motion.Arrival},
		detector:    Detector{Zone: cfg.Zone(), Margin: cfg.Threat.Margin},
		home:        cfg.Origin,
		destination: cfg.Destination,
		sink:        sink,
	}
}

func (s *Scout) Agent() *Agent { return s.agent }

// activate launches the scout from home. It runs before the scout's process
// is scheduled.
func (s *Scout) activate() error {
	if _, err := s.agent.transition(PhaseOutbound); err != nil {
		return err
	}
	s.agent.position = s.home
	s.agent.target = s.destination
	s.agent.visible = true
	return nil
}

// Tick advances the scout by one step. Ticking an idle or finished scout does nothing.
func (s *Scout) Tick(t *clock.Tick) {
	switch s.agent.phase {
	case PhaseOutbound:
		res := s.nav.Advance(s.agent)
		if res.Arrived {
			s.enter(t, PhaseReturning)
			return
		}
		if s.detector.Intrudes(s.agent.position) {
			s.sink.threatDetected(t, s.agent, physics.Distance(s.agent.position, s.detector.Zone.Center))
			s.enter(t, PhaseReturning)
		}
	case PhaseReturning:
		if res := s.nav.Advance(s.agent); res.Arrived {
			s.enter(t, PhaseDone)
		}
	}
}

func (s *Scout) enter(t *clock.Tick, to Phase) {
	from, err := s.agent.transition(to)
	if err != nil {
		s.sink.fault(t, s.agent, err)
		return
	}

	switch to {
	case PhaseReturning:
		s.agent.target = s.home
	case PhaseDone:
		// dock exactly at home; the hand-off discards the outbound trail
		s.agent.position = s.home
		s.agent.path.Clear()
		s.agent.visible = false
	}
	s.sink.phaseChanged(t, s.agent, from)

	if to == PhaseDone {
		t.Stop()
		s.sink.handOff(t, s.agent)
	}
}
