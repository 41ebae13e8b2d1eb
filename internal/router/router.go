package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mockmate-backend/internal/handlers"
	"mockmate-backend/internal/middleware"
	"mockmate-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	interviewHandler *handlers.InterviewHandler,
	codeHandler *handlers.CodeHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/me", authHandler.Me)
			})
		})

		// ──── Interview Routes ────
		r.Route("/interviews", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/start", interviewHandler.Start)
			r.Post("/submit", interviewHandler.Submit)
			r.Post("/start-new", interviewHandler.StartNew)
			r.Get("/results", interviewHandler.UserResults)
			r.Get("/results/{sessionId}", interviewHandler.Results)
			r.Get("/progress", interviewHandler.Progress)
			r.Get("/feedback", interviewHandler.Feedback)
		})

		// ──── Code Execution Routes ────
		r.Route("/code", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/run", codeHandler.Run)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
