package server

import (
	"maps"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/zeusync/missionsim/internal/core/events/bus"
	"github.com/zeusync/missionsim/internal/core/observability/log"
)

// Stats contains server statistics
type Stats struct {
	ClientCount   int64  `json:"clientCount"`
	DroppedFrames uint64 `json:"droppedFrames"`
	Running       bool   `json:"running"`
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		ClientCount:   atomic.LoadInt64(&s.clientCount),
		DroppedFrames: atomic.LoadUint64(&s.dropped),
		Running:       atomic.LoadInt32(&s.running) == 1,
	}
}

// eventCounter observes the bus: it counts events per type and logs handler
// failures, which Publish callers inside the simulation only see as a warning.
type eventCounter struct {
	mu     sync.Mutex
	counts map[string]uint64
	logger log.Log
}

var _ bus.EventBusObserver = (*eventCounter)(nil)

func newEventCounter(logger log.Log) *eventCounter {
	return &eventCounter{counts: make(map[string]uint64), logger: logger}
}

func (c *eventCounter) OnPublish(eventType string, _ bus.Event) {
	c.mu.Lock()
	c.counts[eventType]++
	c.mu.Unlock()
}

func (c *eventCounter) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	if err != nil {
		c.logger.Warn("Event delivery failed",
			log.String("event", eventType),
			log.Int("handlers", handlers),
			log.Int64("duration_us", durationMicros),
			log.Error(err))
	}
}

func (c *eventCounter) snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}

type statsResponse struct {
	Server Stats               `json:"server"`
	Bus    bus.EventBusMetrics `json:"bus"`
	Events map[string]uint64   `json:"events"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statsResponse{
		Server: s.GetStats(),
		Bus:    s.bus.GetMetrics(),
		Events: s.events.snapshot(),
	})
}
