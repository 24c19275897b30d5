package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Router chi router with the engine's route groups
type Router struct {
	mux    chi.Router
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(requestLogger(logger))
	return &Router{mux: mux, logger: logger}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterPresenceRoutes check-in, session lookup and administrative checkout
func (r *Router) RegisterPresenceRoutes(h *PresenceHandler) {
	r.mux.Post("/api/v1/checkin", h.CheckIn)
	r.mux.Post("/api/v1/checkin/remote", h.CheckInRemote)
	r.mux.Get("/api/v1/workers/{handle}/session", h.OpenSession)
	r.mux.Post("/api/v1/admin/sessions/{sessionID}/checkout", h.Checkout)
}

// RegisterReminderRoutes probe and response endpoints for the mini-app
func (r *Router) RegisterReminderRoutes(h *ReminderHandler) {
	r.mux.Post("/api/v1/presence/probe", h.Probe)
	r.mux.Post("/api/v1/reminders/respond", h.Respond)
}

func (r *Router) RegisterBotRoutes(h *BotWebhookHandler) {
	r.mux.Post("/webhook/bot", h.Handle)
}

// RegisterOpsRoutes health and metrics. ping may be nil.
func (r *Router) RegisterOpsRoutes(metrics http.Handler, ping func(ctx context.Context) error) {
	r.mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error()))
				return
			}
		}
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
	if metrics != nil {
		r.mux.Method(http.MethodGet, "/metrics", metrics)
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			logger.Debug("HTTP request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(req.Context())),
			)
		})
	}
}
