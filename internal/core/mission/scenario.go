package mission

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/brunoga/deep"
	"github.com/google/uuid"

	"github.com/zeusync/missionsim/internal/core/clock"
	"github.com/zeusync/missionsim/internal/core/events/bus"
	"github.com/zeusync/missionsim/internal/core/observability/log"
)

// Process names registered with the scheduler.
const (
	ProcessScout = "scout"
	ProcessRelay = "relay"
	ProcessBlink = "threat-blink"
)

// Scenario runs one scout/relay mission on a scheduler.
//
// Simulation state is owned by the scheduler handlers: the scout process owns
// the scout, the relay process owns the relay, and the blink process owns the
// blink flag. After every handler a fresh Snapshot is published so readers on
// other goroutines never see a half applied tick.
type Scenario struct {
	cfg         Config
	fingerprint string
	runID       string
	sched       *clock.Scheduler
	bus         bus.EventBus
	logger      log.Log

	scout         *Scout
	relay         *Relay
	threatVisible bool
	blink         bool
	delivered     bool
	seq           uint64

	started atomic.Bool
	stopped atomic.Bool
	mu      sync.Mutex // guards procs
	procs   []*clock.Process

	current atomic.Pointer[Snapshot]
	done    chan struct{}
}

var _ transitionSink = (*Scenario)(nil)

// New validates cfg and prepares a scenario. Nothing is scheduled until Start.
func New(cfg Config, sched *clock.Scheduler, eventBus bus.EventBus, logger log.Log) (*Scenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scenario{
		cfg:         cfg,
		fingerprint: cfg.Fingerprint(),
		runID:       uuid.NewString(),
		sched:       sched,
		bus:         eventBus,
		done:        make(chan struct{}),
	}
	s.logger = logger.With(
		log.String("component", "scenario"),
		log.String("scenario", cfg.Name),
		log.String("run_id", s.runID))
	s.scout = newScout(&s.cfg, s)
	s.relay = newRelay(&s.cfg, s)
	s.publish(0)

	s.logger.Info("Scenario created",
		log.String("fingerprint", s.fingerprint),
		log.Float64("detection_range", s.scout.detector.Range()),
		log.Any("waypoint", s.relay.waypoint))
	return s, nil
}

func (s *Scenario) RunID() string       { return s.runID }
func (s *Scenario) Config() Config      { return s.cfg }
func (s *Scenario) Fingerprint() string { return s.fingerprint }

// Done is closed when the mission is accomplished.
func (s *Scenario) Done() <-chan struct{} { return s.done }

// Start launches the scout and the threat-blink signal.
func (s *Scenario) Start() error {
	if s.stopped.Load() {
		return ErrScenarioStopped
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if err := s.scout.activate(); err != nil {
		return err
	}
	s.publish(s.sched.Now())

	scout, err := s.sched.Start(ProcessScout, s.cfg.Timing.MoveInterval, s.tickScout)
	if err != nil {
		return err
	}
	s.track(scout, false)

	blink, err := s.sched.Start(ProcessBlink, s.cfg.Timing.BlinkInterval, s.tickBlink)
	if err != nil {
		s.Stop()
		return err
	}
	s.track(blink, false)

	s.logger.Info("Scenario started",
		log.Duration("move_interval", s.cfg.Timing.MoveInterval),
		log.Duration("blink_interval", s.cfg.Timing.BlinkInterval))
	return nil
}

// Stop tears the scenario down. When it returns no handler of this scenario
// will run again. Stopping twice is a no-op. Must not be called from inside a
// scheduler handler.
func (s *Scenario) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	// Stopping a process waits for the in-flight handler, which may still
	// append the relay process, so re-read procs on every iteration.
	for i := 0; ; i++ {
		s.mu.Lock()
		if i >= len(s.procs) {
			s.mu.Unlock()
			break
		}
		p := s.procs[i]
		s.mu.Unlock()
		p.Stop()
		s.logger.Debug("Process released",
			log.String("process", p.Name()),
			log.Uint64("fired", p.Fired()))
	}
	s.logger.Info("Scenario stopped")
}

func (s *Scenario) track(p *clock.Process, inTick bool) {
	s.mu.Lock()
	s.procs = append(s.procs, p)
	s.mu.Unlock()
	if !inTick && s.stopped.Load() {
		p.Stop()
	}
}

// Snapshot returns a deep copy of the latest published state.
func (s *Scenario) Snapshot() Snapshot {
	return deep.MustCopy(*s.current.Load())
}

func (s *Scenario) tickScout(t *clock.Tick) {
	s.scout.Tick(t)
	s.publish(t.Now)
}

func (s *Scenario) tickRelay(t *clock.Tick) {
	s.relay.Tick(t)
	s.publish(t.Now)
}

func (s *Scenario) tickBlink(t *clock.Tick) {
	s.blink = !s.blink
	s.publish(t.Now)
}

func (s *Scenario) publish(at time.Duration) {
	s.seq++
	snap := &Snapshot{
		RunID:       s.runID,
		Scenario:    s.cfg.Name,
		Fingerprint: s.fingerprint,
		Seq:         s.seq,
		Elapsed:     at,
		Agents:      []AgentState{s.scout.agent.state(), s.relay.agent.state()},
		Threat: ThreatState{
			Zone:    s.scout.detector.Zone,
			Range:   s.scout.detector.Range(),
			Visible: s.threatVisible,
			Blink:   s.blink,
		},
		Accomplished: s.delivered,
	}
	s.current.Store(snap)
	s.emit(EventSnapshot, *snap)
}

func (s *Scenario) emit(eventType string, data any) {
	if s.bus == nil {
		return
	}
	meta := map[string]any{"run_id": s.runID}
	if err := s.bus.Publish(bus.NewEvent(eventType, s.runID, data, meta)); err != nil {
		s.logger.Warn("Event handler failed",
			log.String("event", eventType),
			log.Error(err))
	}
}

func (s *Scenario) phaseChanged(t *clock.Tick, a *Agent, from Phase) {
	s.logger.Info("Phase changed",
		log.String("role", string(a.role)),
		log.Stringer("from", from),
		log.Stringer("to", a.phase),
		log.Duration("at", t.Now))
	s.emit(EventPhaseChanged, PhaseChange{
		Role:     a.role,
		From:     from,
		To:       a.phase,
		At:       t.Now,
		Position: a.position,
	})
}

func (s *Scenario) threatDetected(t *clock.Tick, a *Agent, distance float64) {
	s.threatVisible = true
	s.logger.Warn("Threat detected",
		log.String("role", string(a.role)),
		log.Float64("distance", distance),
		log.Duration("at", t.Now))
	s.emit(EventThreatDetected, ThreatDetection{
		Role:     a.role,
		Position: a.position,
		Distance: distance,
		At:       t.Now,
	})
}

// handOff runs inside the scout's final tick and starts the relay process.
func (s *Scenario) handOff(t *clock.Tick, from *Agent) {
	if s.stopped.Load() {
		return
	}
	if err := s.relay.activate(s.cfg.Origin); err != nil {
		s.fault(t, s.relay.agent, err)
		return
	}
	p, err := t.Start(ProcessRelay, s.cfg.Timing.MoveInterval, s.tickRelay)
	if err != nil {
		s.fault(t, s.relay.agent, err)
		return
	}
	s.track(p, true)

	s.phaseChanged(t, s.relay.agent, PhaseIdle)
	s.logger.Info("Hand-off",
		log.String("from", string(from.role)),
		log.String("to", string(s.relay.agent.role)),
		log.String("process", p.Name()),
		log.Duration("interval", p.Interval()),
		log.Duration("at", t.Now))
	s.emit(EventHandOff, HandOff{From: from.role, To: s.relay.agent.role, At: t.Now})
}

func (s *Scenario) accomplished(t *clock.Tick, a *Agent) {
	if s.delivered {
		return
	}
	s.delivered = true
	close(s.done)

	s.logger.Info("Mission accomplished",
		log.String("role", string(a.role)),
		log.Duration("at", t.Now),
		log.Float64("flown", a.path.Length()))
	s.emit(EventAccomplished, Accomplishment{
		RunID:    s.runID,
		Role:     a.role,
		Position: a.position,
		At:       t.Now,
	})
}

func (s *Scenario) fault(t *clock.Tick, a *Agent, err error) {
	s.logger.Error("Transition rejected",
		log.String("role", string(a.role)),
		log.Stringer("phase", a.phase),
		log.Duration("at", t.Now),
		log.Error(err))
}
