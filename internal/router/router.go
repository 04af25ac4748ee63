package router

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"rlchat-backend/internal/handlers"
	"rlchat-backend/internal/middleware"
	"rlchat-backend/internal/websocket"
)

func New(
	transcriptHandler *handlers.TranscriptHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	staticDir string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Generation is the expensive path; keep it from being hammered.
	chatLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", transcriptHandler.Stats)
		r.Post("/messages", transcriptHandler.RecordMessage)
		r.Post("/feedback", transcriptHandler.RecordFeedback)
		r.Get("/best-examples", transcriptHandler.BestExamples)

		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", chatHandler.Ask)
		})

		r.Get("/ws", wsHub.HandleWebSocket)
	})

	// Built client bundle, with index.html fallback for client-side routes.
	if staticDir != "" {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
			path := filepath.Join(staticDir, filepath.Clean(req.URL.Path))
			if _, err := os.Stat(path); err != nil {
				http.ServeFile(w, req, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, req)
		})
	}

	return r
}
