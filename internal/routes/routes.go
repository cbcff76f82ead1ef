package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/CyberwizD/driver-status-relay/pkg/metrics"
)

// Options are the pieces NewRouter wires together.
type Options struct {
	Relay   Relay
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Started time.Time
	// WellKnownDir, when set, is served under /.well-known/.
	WellKnownDir string
}

// NewRouter builds the HTTP surface of the relay.
func NewRouter(opts Options) http.Handler {
	h := &Handler{relay: opts.Relay, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "Servidor de notificaciones funcionando")
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"success": true,
			"message": "relay healthy",
			"meta": map[string]interface{}{
				"uptime_seconds": int(time.Since(opts.Started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	if opts.WellKnownDir != "" {
		r.Handle("/.well-known/*", http.StripPrefix("/.well-known/", http.FileServer(http.Dir(opts.WellKnownDir))))
	}

	r.Post("/registrar-token", h.RegisterAdminToken)
	r.Post("/registrar-token-usuario", h.RegisterUserToken)
	r.Post("/registrar-token-conductor", h.RegisterDriverToken)
	r.Post("/notificar", h.NotifyAdmin)
	r.Post("/notificar-conductor", h.NotifyDriver)

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
