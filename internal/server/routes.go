package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Distribution catalog.
	mux.HandleFunc("GET /v1/distributions", s.handleDistributions)
	mux.HandleFunc("GET /v1/distributions/{dist}/patches", s.handlePatches)
	mux.HandleFunc("GET /v1/distributions/{dist}/history", s.handleHistory)

	// Snapshot resolution and archive builds.
	mux.HandleFunc("GET /v1/distributions/{dist}/snapshots/{patch}", s.handleSnapshot)
	mux.HandleFunc("GET /v1/distributions/{dist}/builds/{patch}", s.handleBuild)

	return s.withRequestLogging(mux)
}
