package daemon

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediaferry/internal/api"
	"mediaferry/internal/logging"
	"mediaferry/internal/services"
)

// socketRouter serves the websocket endpoint. It carries no auth: clients
// authenticate per transfer with their session cookie.
func (d *Daemon) socketRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Handle("/socket", d.sockets.Handler())
	r.Get("/healthz", d.handleHealthz)
	return r
}

// adminRouter serves the task manager, status, metrics and health routes.
func (d *Daemon) adminRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(d.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", d.handleHealthz)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(d.cfg.Server.APIToken))
		manager := api.NewTaskManager(d.comp.Store, d.comp.Registry, d.logger)
		api.NewHandlers(manager, d.logger).Mount(r)
		r.Get("/api/status", d.handleStatus)
		if d.comp.Metrics != nil {
			r.Handle("/metrics", promhttp.HandlerFor(d.comp.Metrics, promhttp.HandlerOpts{}))
		}
	})
	return r
}

// requestLogger tags the request context with chi's request id and logs
// each admin call at debug level.
func (d *Daemon) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = services.WithRequestID(ctx, id)
			r = r.WithContext(ctx)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(ctx, d.logger).Debug("admin request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, d.logger, http.StatusOK, d.Status(r.Context()))
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := d.comp.Store.Ping(r.Context()); err != nil {
		api.WriteError(w, d.logger, http.StatusServiceUnavailable, "queue: "+err.Error())
		return
	}
	if err := d.comp.Catalog.Healthcheck(r.Context()); err != nil {
		api.WriteError(w, d.logger, http.StatusServiceUnavailable, "catalog: "+err.Error())
		return
	}
	api.WriteJSON(w, d.logger, http.StatusOK, map[string]string{"status": "ok"})
}
