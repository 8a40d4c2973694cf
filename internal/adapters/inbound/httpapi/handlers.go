package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/charleschow/market-matcher/internal/core/indexcache"
	"github.com/charleschow/market-matcher/internal/core/matcher"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

const (
	maxBodyBytes = 1 << 20
	maxBatch     = 500
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		telemetry.Warnf("httpapi: encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		if status >= 500 {
			telemetry.Warnf("httpapi: %s: %v", message, err)
		}
		message = fmt.Sprintf("%s: %v", message, err)
	}
	respondJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"indexes":   s.deps.Cache.Stats(),
	}
	if s.deps.Pool != nil {
		body["pool"] = s.deps.Pool.PoolStats()
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	var ev matcher.Event
	if err := decodeBody(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event", err)
		return
	}
	res := s.deps.Matcher.Match(r.Context(), ev)
	s.publish(res)
	respondJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Events []matcher.Event `json:"events"`
}

type batchResponse struct {
	Results []matcher.Result `json:"results"`
	Count   int              `json:"count"`
}

func (s *Server) matchBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch", err)
		return
	}
	if len(req.Events) > maxBatch {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("batch exceeds %d events", maxBatch), nil)
		return
	}
	results := s.deps.Matcher.MatchBatch(r.Context(), req.Events)
	for _, res := range results {
		s.publish(res)
	}
	if results == nil {
		results = []matcher.Result{}
	}
	respondJSON(w, http.StatusOK, batchResponse{Results: results, Count: len(results)})
}

func (s *Server) publish(res matcher.Result) {
	s.deps.Bus.Emit(events.EventMatchResolved, res.Event.Sport, events.MatchResolvedEvent{
		AwayTeam:   res.Event.AwayTeam,
		HomeTeam:   res.Event.HomeTeam,
		Status:     string(res.Status),
		Confidence: res.Confidence,
		TickerAway: res.TickerAway,
		TickerHome: res.TickerHome,
		Reason:     string(res.Reason),
	})
}

func sportParam(w http.ResponseWriter, r *http.Request) (events.Sport, bool) {
	sport, err := events.ParseSport(chi.URLParam(r, "sport"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sport", err)
		return "", false
	}
	return sport, true
}

type unindexedJSON struct {
	EventKey string   `json:"event_key"`
	Tickers  []string `json:"tickers"`
	Title    string   `json:"title,omitempty"`
	Reason   string   `json:"reason"`
	Partial  bool     `json:"partial"`
}

type indexResponse struct {
	Sport        events.Sport    `json:"sport"`
	Generation   string          `json:"generation"`
	AliasVersion string          `json:"alias_version"`
	BuiltAt      time.Time       `json:"built_at"`
	Stale        bool            `json:"stale"`
	Contracts    int             `json:"contracts"`
	Pairs        int             `json:"pairs"`
	Keys         int             `json:"keys"`
	Skipped      map[string]int  `json:"skipped"`
	Unindexed    []unindexedJSON `json:"unindexed"`
}

func describe(snap indexcache.Snapshot) indexResponse {
	ix := snap.Index
	out := indexResponse{
		Sport:        ix.Sport,
		Generation:   ix.Generation,
		AliasVersion: ix.AliasVersion,
		BuiltAt:      snap.BuiltAt,
		Stale:        snap.Stale,
		Contracts:    ix.Contracts,
		Pairs:        len(ix.Pairs()),
		Keys:         ix.KeyCount(),
		Skipped:      ix.Skipped,
		Unindexed:    make([]unindexedJSON, 0, len(ix.Unindexed)),
	}
	if out.Skipped == nil {
		out.Skipped = map[string]int{}
	}
	for _, u := range ix.Unindexed {
		out.Unindexed = append(out.Unindexed, unindexedJSON(u))
	}
	return out
}

// index builds the sport's index if needed and reports its contents.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	sport, ok := sportParam(w, r)
	if !ok {
		return
	}
	snap, err := s.deps.Cache.Get(r.Context(), sport)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, indexcache.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, "index unavailable", err)
		return
	}
	respondJSON(w, http.StatusOK, describe(snap))
}

func (s *Server) indexStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"indexes": s.deps.Cache.Stats()})
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	sport, ok := sportParam(w, r)
	if !ok {
		return
	}
	s.deps.Cache.Invalidate(sport, "http")
	respondJSON(w, http.StatusAccepted, map[string]any{"sport": sport, "invalidated": true})
}

func (s *Server) reloadAliases(w http.ResponseWriter, _ *http.Request) {
	t, err := s.deps.Aliases.Reload()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "alias reload failed", err)
		return
	}
	issues := make([]string, 0, len(t.Issues()))
	for _, is := range t.Issues() {
		issues = append(issues, is.Error())
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"version": t.Version(),
		"teams":   t.TeamCount(),
		"issues":  issues,
	})
}
