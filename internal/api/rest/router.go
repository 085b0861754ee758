package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "ar-overlay/internal/application"
	"ar-overlay/internal/domain/entity"
)

// Sessions то, что HTTP-слой умеет делать с сессией виджета
type Sessions interface {
	Mount() (*app.Session, error)
	Unmount() error
	Snapshot() (app.SessionSnapshot, error)
	Reset() error
	Flip(ctx context.Context) (entity.FacingMode, error)
}

// NewRouter собирает маршруты HTTP API
func NewRouter(sessions Sessions, logger *slog.Logger) *mux.Router {
	h := &handlers{sessions: sessions, logger: logger}

	r := mux.NewRouter()
	r.Use(logRequests(logger))

	r.HandleFunc("/health", h.health).Methods("GET")
	r.HandleFunc("/state", h.state).Methods("GET")
	r.HandleFunc("/diagnostic", h.diagnostic).Methods("GET")
	r.HandleFunc("/flip", h.flip).Methods("POST")
	r.HandleFunc("/reset", h.reset).Methods("POST")
	r.HandleFunc("/retake", h.reset).Methods("POST")
	r.HandleFunc("/session", h.mount).Methods("POST")
	r.HandleFunc("/session", h.unmount).Methods("DELETE")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}
