package http_rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"stealthcompany.com/erdashboard/internal/metrics"
)

// SetupRoutes configures and returns the HTTP router
func SetupRoutes(source SnapshotSource, push http.HandlerFunc) *mux.Router {
	h := &handlers{source: source}

	r := mux.NewRouter()

	// Add metrics middleware to all routes
	r.Use(metrics.MetricsMiddleware)

	r.HandleFunc("/health", h.healthHandler).Methods("GET")

	// Dashboard data
	r.HandleFunc("/api/emergency-rooms", h.latestHandler).Methods("GET")
	r.HandleFunc("/api/emergency-rooms/refresh", h.refreshHandler).Methods("POST")

	// Live push feed
	if push != nil {
		r.HandleFunc("/ws", push).Methods("GET")
	}

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	return r
}
