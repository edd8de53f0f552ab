package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/config"
	"github.com/aqlens/airsync/internal/data"
)

type Server struct {
	cache  *data.LatestCache
	config *config.ServerConfig
	logger *zap.Logger
}

func NewServer(cache *data.LatestCache, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		cache:  cache,
		config: cfg,
		logger: logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// getCurrent serves the latest snapshot for one location.
func (s *Server) getCurrent(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")

	s.logger.Debug("current snapshot request",
		zap.String("location", location),
	)

	if !config.ValidLocations[location] {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown location: " + location})
		return
	}

	snap, ok := s.cache.Get(location)
	if !ok {
		// Streamer has not produced a tick for this location yet.
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no snapshot for " + location})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

type locationsResponse struct {
	Locations []string `json:"locations"`
	Count     int      `json:"count"`
}

// getLocations lists the locations this backend serves.
func (s *Server) getLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, locationsResponse{
		Locations: s.config.Locations,
		Count:     len(s.config.Locations),
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	StreamID  string `json:"stream_id"`
	Locations int    `json:"locations"`
	WSEnabled bool   `json:"ws_enabled"`
}

// getHealth reports liveness and basic configuration.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		StreamID:  s.config.StreamID,
		Locations: len(s.config.Locations),
		WSEnabled: s.config.WSEnabled,
	})
}

type resetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// resetCache clears cached snapshots so the next ticks rebuild them.
func (s *Server) resetCache(w http.ResponseWriter, r *http.Request) {
	count := s.cache.Reset()

	s.logger.Info("cache reset",
		zap.Int("count", count),
	)

	writeJSON(w, http.StatusOK, resetResponse{
		Status:  "success",
		Message: "All cached snapshots cleared",
		Count:   count,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
