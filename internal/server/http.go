package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zeusync/missionsim/internal/core/eligibility"
	"github.com/zeusync/missionsim/internal/core/mission"
	"github.com/zeusync/missionsim/internal/core/observability/log"
)

// Handler returns the HTTP routes of the server. It is usable without Start,
// e.g. behind httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/paths", s.handlePaths)
	mux.HandleFunc("GET /api/missions", s.handleMissions)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/eligibility", s.handleEligibility)
	mux.HandleFunc("POST /api/submissions", s.handleSubmission)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.Snapshot())
}

func (s *Server) handlePaths(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(snap.FeatureCollection()); err != nil {
		s.logger.Warn("Failed to write response", log.Error(err))
	}
}

func (s *Server) handleMissions(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNoCatalog)
		return
	}
	s.writeJSON(w, http.StatusOK, s.catalog.Missions())
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	report, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleSubmission builds the create-mission payload for the running
// scenario once every role has an eligible device.
func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	report, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	if !report.Ready() {
		s.writeJSON(w, http.StatusUnprocessableEntity, report)
		return
	}

	sub, err := mission.NewSubmission(report.Mission, s.source.Config(), report.Selections())
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.logger.Info("Mission submission prepared",
		log.String("submission_id", sub.ID),
		log.String("mission", report.Mission),
		log.String("fingerprint", sub.Fingerprint))
	s.writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) (eligibility.Report, bool) {
	if s.catalog == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNoCatalog)
		return eligibility.Report{}, false
	}

	var req eligibility.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return eligibility.Report{}, false
	}

	report, err := s.catalog.Evaluate(req)
	switch {
	case errors.Is(err, eligibility.ErrUnknownMission):
		s.writeError(w, http.StatusNotFound, err)
		return eligibility.Report{}, false
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err)
		return eligibility.Report{}, false
	}
	return report, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", log.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
