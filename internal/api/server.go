package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Goodman667/NeuraSense/internal/decision"
	"github.com/Goodman667/NeuraSense/internal/engine"
	"github.com/Goodman667/NeuraSense/internal/features"
	"github.com/Goodman667/NeuraSense/internal/logging"
	"github.com/Goodman667/NeuraSense/internal/outcome"
	"github.com/Goodman667/NeuraSense/internal/tailoring"
)

// #region contracts

// Decider is the decision surface the handlers need. *engine.Engine
// satisfies it.
type Decider interface {
	Decide(ctx context.Context, userID string, obs *features.Observation, maxResults int) (decision.Result, []string, error)
	QuickRecommendations(ctx context.Context, mood, stress, energy, sleep float64, max int) []engine.QuickItem
}

// OutcomeStore is the outcome surface the handlers need. *outcome.Tracker
// satisfies it.
type OutcomeStore interface {
	UpdateStatus(ctx context.Context, id, userID string, status outcome.Status, extra map[string]any) error
	History(ctx context.Context, userID string, limit int) ([]outcome.Record, error)
	Stats(ctx context.Context, userID string) (outcome.Stats, error)
}

// #endregion contracts

// #region server

// Server exposes the decision engine over HTTP.
type Server struct {
	decider  Decider
	outcomes OutcomeStore
	maxTools int
}

func NewServer(decider Decider, outcomes OutcomeStore, maxTools int) *Server {
	if maxTools <= 0 {
		maxTools = decision.DefaultMaxResults
	}
	return &Server{decider: decider, outcomes: outcomes, maxTools: maxTools}
}

// Handler builds the route table with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jitai/decide", s.handleDecide)
	mux.HandleFunc("POST /jitai/outcome", s.handleOutcome)
	mux.HandleFunc("POST /jitai/quick", s.handleQuick)
	mux.HandleFunc("GET /jitai/history/{user_id}", s.handleHistory)
	mux.HandleFunc("GET /jitai/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return requestLogger(mux)
}

// #endregion server

// #region decide

// checkinPayload uses pointer fields so a partially filled check-in is
// distinguishable from one reporting zeros: absent indicators fall back to
// the neutral scale value, never to 0.
type checkinPayload struct {
	Mood         *float64 `json:"mood"`
	Stress       *float64 `json:"stress"`
	Energy       *float64 `json:"energy"`
	SleepQuality *float64 `json:"sleep_quality"`
}

func orNeutral(v *float64) float64 {
	if v == nil {
		return tailoring.NeutralScale
	}
	return *v
}

type decideRequest struct {
	UserID   string          `json:"user_id"`
	Checkin  *checkinPayload `json:"checkin"`
	MaxTools int             `json:"max_tools"`
}

type decideResponse struct {
	Tools        []decision.SelectedAction `json:"tools"`
	Task         any                       `json:"task,omitempty"`
	MatchedRules []string                  `json:"matched_rules"`
	TrackingIDs  []string                  `json:"tracking_ids"`
	Tracking     string                    `json:"tracking,omitempty"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var obs *features.Observation
	if req.Checkin != nil {
		obs = &features.Observation{
			Mood:         orNeutral(req.Checkin.Mood),
			Stress:       orNeutral(req.Checkin.Stress),
			Energy:       orNeutral(req.Checkin.Energy),
			SleepQuality: orNeutral(req.Checkin.SleepQuality),
		}
	}

	maxTools := req.MaxTools
	if maxTools <= 0 {
		maxTools = s.maxTools
	}

	result, ids, err := s.decider.Decide(r.Context(), req.UserID, obs, maxTools)
	resp := decideResponse{
		Tools:        result.Tools,
		Task:         result.Task,
		MatchedRules: result.MatchedRules,
		TrackingIDs:  ids,
	}
	switch {
	case errors.Is(err, engine.ErrTrackingUnavailable):
		// The decision is still valid; flag the degraded tracking.
		resp.Tracking = "unavailable"
		resp.TrackingIDs = []string{}
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if resp.TrackingIDs == nil {
		resp.TrackingIDs = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// #endregion decide

// #region outcome

type outcomeRequest struct {
	RecommendationID string         `json:"recommendation_id"`
	UserID           string         `json:"user_id"`
	Status           string         `json:"status"`
	Extra            map[string]any `json:"extra"`
}

// handleOutcome acknowledges owned, foreign, and unknown ids identically so
// the response never reveals whether a recommendation id exists.
func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.RecommendationID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "recommendation_id and user_id are required")
		return
	}

	status := outcome.Status(req.Status)
	if !status.Terminal() {
		writeError(w, http.StatusBadRequest, "unrecognized status")
		return
	}
	if err := s.outcomes.UpdateStatus(r.Context(), req.RecommendationID, req.UserID, status, req.Extra); err != nil {
		writeError(w, http.StatusInternalServerError, "outcome update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

// #endregion outcome

// #region quick

type quickRequest struct {
	Mood         *float64 `json:"mood"`
	Stress       *float64 `json:"stress"`
	Energy       *float64 `json:"energy"`
	SleepQuality *float64 `json:"sleep_quality"`
	MaxTools     int      `json:"max_tools"`
}

func (s *Server) handleQuick(w http.ResponseWriter, r *http.Request) {
	var req quickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	maxTools := req.MaxTools
	if maxTools <= 0 {
		maxTools = s.maxTools
	}
	items := s.decider.QuickRecommendations(r.Context(),
		orNeutral(req.Mood), orNeutral(req.Stress), orNeutral(req.Energy), orNeutral(req.SleepQuality), maxTools)
	writeJSON(w, http.StatusOK, map[string]any{"tools": items})
}

// #endregion quick

// #region reads

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.outcomes.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if records == nil {
		records = []outcome.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "recommendations": records})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.outcomes.Stats(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// #endregion reads

// #region plumbing

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("[API] response encoding failed")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("[API] request")
	})
}

// #endregion plumbing
