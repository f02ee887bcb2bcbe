package http_rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/erdashboard/internal/refresher"
)

// SnapshotSource is what the HTTP surface needs from the refresher
type SnapshotSource interface {
	Latest() (refresher.Snapshot, bool)
	Refresh(ctx context.Context) (refresher.Snapshot, error)
}

type handlers struct {
	source SnapshotSource
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// healthHandler reports liveness
func (h *handlers) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// latestHandler returns the most recent snapshot
func (h *handlers) latestHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.source.Latest()
	if !ok {
		log.Warn().
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Msg("Snapshot requested before the first refresh cycle")

		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "Data not ready",
			"message": "The first refresh cycle has not completed yet",
		})
		return
	}

	log.Debug().
		Str("cycle_id", snapshot.CycleID).
		Str("remote_addr", r.RemoteAddr).
		Msg("Serving latest snapshot")

	writeJSON(w, http.StatusOK, snapshot)
}

// refreshHandler runs an on-demand cycle
func (h *handlers) refreshHandler(w http.ResponseWriter, r *http.Request) {
	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote_addr", r.RemoteAddr).
		Msg("Refresh endpoint called")

	snapshot, err := h.source.Refresh(r.Context())
	if errors.Is(err, refresher.ErrRateLimited) {
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":   "Too many refresh requests",
			"message": "Wait a few seconds before refreshing again",
		})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("On-demand refresh failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Refresh failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
