package web

import (
	"log/slog"
	"net/http"

	"quitcoach/auth"
	"quitcoach/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP surface. Everything except the health
// endpoint sits behind token authentication.
func NewRouter(log *slog.Logger, tokens *auth.Tokens, appointments *AppointmentHandler,
	messages *MessageHandler, ws *WSHandler, monitor *observability.Monitor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, monitor.Snapshot())
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokens))
		r.Route("/appointments", func(r chi.Router) {
			r.Get("/ws", ws.ServeWS)
			appointments.RegisterRoutes(r)
			messages.RegisterRoutes(r)
		})
	})

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			log.Debug("Request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"bytes", wrapped.BytesWritten())
		})
	}
}
