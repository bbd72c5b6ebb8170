package api

import (
	"net/http"

	"go.uber.org/zap"
)

func SetupRoutes(handler *Handler, corsOrigins []string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)

	mux.HandleFunc("POST /api/videos/upload", handler.UploadVideo)
	mux.HandleFunc("GET /api/videos/{session_id}/status", handler.GetStatus)
	mux.HandleFunc("GET /api/videos/{session_id}/frames", handler.ListFrames)
	mux.HandleFunc("GET /api/videos/{session_id}/frames/{frame_name}", handler.GetFrame)
	mux.HandleFunc("GET /api/videos/{session_id}/archive", handler.GetArchive)
	mux.HandleFunc("POST /api/videos/{session_id}/cancel", handler.CancelExtraction)

	var h http.Handler = mux
	h = LoggingMiddleware(logger, h)
	h = RecoveryMiddleware(logger, h)
	h = CORSMiddleware(corsOrigins, h)
	return h
}
