// Package leaderboard serves the leaderboard REST contract.
//
//	GET  {prefix}/{laps}  list, fastest first
//	POST {prefix}/{laps}  body {name, time, position}
package leaderboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mpapenbr/nebula-racers-go/log"
	"github.com/mpapenbr/nebula-racers-go/pkg/leaderboard"
	"github.com/mpapenbr/nebula-racers-go/pkg/model"
	"github.com/mpapenbr/nebula-racers-go/version"
)

// Prefixes under which the leaderboard is served.
var Prefixes = []string{"/leaderboard", "/api/leaderboard"}

type (
	Option  func(*Handler)
	Handler struct {
		store leaderboard.Store
		l     *log.Logger
	}
	endpointHandler struct {
		pattern string
		handler http.HandlerFunc
	}
)

func WithLogger(l *log.Logger) Option {
	return func(h *Handler) {
		h.l = l
	}
}

func NewHandler(store leaderboard.Store, opts ...Option) *Handler {
	ret := &Handler{
		store: store,
		l:     log.Default().Named("endpoints.leaderboard"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Register adds all leaderboard routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	endpoints := []endpointHandler{
		{pattern: "GET /version", handler: h.getVersion},
	}
	for _, prefix := range Prefixes {
		endpoints = append(endpoints,
			endpointHandler{pattern: "GET " + prefix + "/{laps}", handler: h.list},
			endpointHandler{pattern: "POST " + prefix + "/{laps}", handler: h.add},
		)
	}
	for _, e := range endpoints {
		mux.HandleFunc(e.pattern, e.handler)
		h.l.Debug("registered endpoint", log.String("pattern", e.pattern))
	}
}

type (
	errorResponse struct {
		Error string `json:"error"`
	}
	addResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	// missing fields are detected via nil
	addRequest struct {
		Name     *string `json:"name"`
		Time     *int64  `json:"time"`
		Position *int    `json:"position"`
	}
)

const invalidLaps = "Invalid lap count. Must be 3, 5, or 10."

func (h *Handler) laps(w http.ResponseWriter, r *http.Request) (int, bool) {
	laps, err := strconv.Atoi(r.PathValue("laps"))
	if err != nil || leaderboard.ValidateLaps(laps) != nil {
		h.write(w, http.StatusBadRequest, errorResponse{Error: invalidLaps})
		return 0, false
	}
	return laps, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	laps, ok := h.laps(w, r)
	if !ok {
		return
	}
	entries, err := h.store.List(r.Context(), laps)
	if err != nil {
		h.l.Error("Error getting leaderboard", log.Int("laps", laps), log.ErrorField(err))
		h.write(w, http.StatusInternalServerError,
			errorResponse{Error: "Failed to get leaderboard data"})
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	h.write(w, http.StatusOK, entries)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	laps, ok := h.laps(w, r)
	if !ok {
		return
	}
	var req addRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.write(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if req.Name == nil || *req.Name == "" || req.Time == nil || req.Position == nil {
		h.write(w, http.StatusBadRequest,
			errorResponse{Error: "Missing required fields: name, time, position"})
		return
	}
	sub := leaderboard.Submission{Name: *req.Name, Time: *req.Time, Position: *req.Position}
	if err := h.store.Add(r.Context(), laps, sub); err != nil {
		if errors.Is(err, leaderboard.ErrMissingField) {
			h.write(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.l.Error("Error adding leaderboard entry", log.Int("laps", laps), log.ErrorField(err))
		h.write(w, http.StatusInternalServerError,
			errorResponse{Error: "Failed to add leaderboard entry"})
		return
	}
	h.l.Info("leaderboard entry added",
		log.Int("laps", laps), log.String("name", sub.Name), log.Int64("time", sub.Time))
	h.write(w, http.StatusCreated, addResponse{Success: true, Message: "Leaderboard entry added"})
}

func (h *Handler) getVersion(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, map[string]string{
		"version":   version.Version,
		"gitCommit": version.GitCommit,
		"buildDate": version.BuildDate,
	})
}

func (h *Handler) write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.l.Warn("could not write response", log.ErrorField(err))
	}
}
