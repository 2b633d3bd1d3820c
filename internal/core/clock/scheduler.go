// Package clock drives periodic simulation processes.
//
// Every handler registered with a Scheduler runs to completion before any
// other handler of the same scheduler starts, so simulation state touched
// only from handlers needs no further locking. Time is virtual: it moves
// forward either explicitly through Advance (deterministic, used by tests
// and replays) or by Run, which follows the wall clock.
package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/missionsim/internal/core/observability/log"
	"github.com/zeusync/missionsim/pkg/sequence"
)

// idleWait bounds how long Run sleeps when nothing is scheduled.
const idleWait = time.Minute

// Handler is one invocation of a periodic process.
type Handler func(t *Tick)

type Scheduler struct {
	// mu guards all scheduler state and is held while a handler runs.
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	queue *sequence.PriorityQueue[*Process]
	procs map[uint64]*Process

	wake    chan struct{}
	running atomic.Bool
	logger  log.Log
}

// Process is a periodic callback registered with a Scheduler.
type Process struct {
	sched    *Scheduler
	id       uint64
	name     string
	interval time.Duration
	handler  Handler

	next    time.Duration
	item    *sequence.Item[*Process]
	stopped bool
	fired   uint64
}

// Tick is passed to a handler for the duration of one invocation. Its methods
// may only be used from inside that handler.
type Tick struct {
	sched *Scheduler
	proc  *Process

	// Seq counts invocations of the owning process, starting at 1.
	Seq uint64
	// Now is the scheduler time at which this invocation was due.
	Now time.Duration
}

func NewScheduler(logger log.Log) *Scheduler {
	return &Scheduler{
		queue:  sequence.NewPriorityQueue(processLess),
		procs:  make(map[uint64]*Process),
		wake:   make(chan struct{}, 1),
		logger: logger.With(log.String("component", "scheduler")),
	}
}

func processLess(a, b *Process) bool {
	if a.next != b.next {
		return a.next < b.next
	}
	return a.id < b.id
}

// Start registers a process whose first invocation is due one interval from now.
// It must not be called from inside a handler; use Tick.Start there.
func (s *Scheduler) Start(name string, interval time.Duration, fn Handler) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(name, interval, fn)
}

func (s *Scheduler) startLocked(name string, interval time.Duration, fn Handler) (*Process, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if fn == nil {
		return nil, ErrNilHandler
	}

	s.seq++
	p := &Process{
		sched:    s,
		id:       s.seq,
		name:     name,
		interval: interval,
		handler:  fn,
		next:     s.now + interval,
	}
	p.item = s.queue.Enqueue(p)
	s.procs[p.id] = p

	s.logger.Debug("Process started",
		log.String("process", name),
		log.Duration("interval", interval),
		log.Duration("at", s.now))

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return p, nil
}

// Now returns the current scheduler time.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Active returns the number of processes that have not been stopped.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// StopAll cancels every registered process.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.procs {
		p.stopLocked()
	}
}

// Advance moves virtual time forward by d, firing every invocation that falls
// due on the way in (due time, registration order). It returns how many
// handlers ran.
func (s *Scheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	return s.advanceTo(target)
}

func (s *Scheduler) advanceTo(target time.Duration) int {
	fired := 0
	for s.fireNext(target) {
		fired++
	}
	return fired
}

// fireNext runs the earliest invocation due at or before target. The lock is
// released between invocations so Stop calls from other goroutines interleave
// at tick boundaries only.
func (s *Scheduler) fireNext(target time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.queue.Peek()
	if !ok || p.next > target {
		if target > s.now {
			s.now = target
		}
		return false
	}
	s.queue.Dequeue()

	s.now = p.next
	p.fired++
	p.handler(&Tick{sched: s, proc: p, Seq: p.fired, Now: s.now})

	if !p.stopped {
		p.next += p.interval
		p.item = s.queue.Enqueue(p)
	}
	return true
}

// Run follows the wall clock until ctx is cancelled. Virtual time continues
// from wherever Advance left it.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	base := s.Now()
	start := time.Now()
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	s.logger.Info("Scheduler running", log.Duration("from", base))
	for {
		s.advanceTo(base + time.Since(start))

		wait := idleWait
		s.mu.Lock()
		if p, ok := s.queue.Peek(); ok {
			wait = p.next - (base + time.Since(start))
		}
		s.mu.Unlock()
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped", log.Duration("at", s.Now()))
			return nil
		case <-timer.C:
		case <-s.wake:
		}
	}
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// Interval returns the period between invocations.
func (p *Process) Interval() time.Duration { return p.interval }

// Fired returns how many times the handler has run.
func (p *Process) Fired() uint64 {
	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()
	return p.fired
}

// Stopped reports whether the process has been cancelled.
func (p *Process) Stopped() bool {
	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()
	return p.stopped
}

// Stop cancels the process. It waits for an in-flight invocation of any
// process to finish, and once it returns the handler never runs again.
// Stopping twice is a no-op. It must not be called from inside a handler of
// the same scheduler; use Tick.Stop there.
func (p *Process) Stop() {
	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()
	p.stopLocked()
}

func (p *Process) stopLocked() {
	if p.stopped {
		return
	}
	p.stopped = true
	p.sched.queue.Remove(p.item)
	delete(p.sched.procs, p.id)
	p.sched.logger.Debug("Process stopped",
		log.String("process", p.name),
		log.Uint64("fired", p.fired),
		log.Duration("at", p.sched.now))
}

// Stop cancels the owning process; the current invocation finishes normally.
func (t *Tick) Stop() {
	t.proc.stopLocked()
}

// Start registers a new process from inside a handler. Its first invocation
// is due one interval after the current tick.
func (t *Tick) Start(name string, interval time.Duration, fn Handler) (*Process, error) {
	return t.sched.startLocked(name, interval, fn)
}
