package application

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lk2023060901/msgrelay/internal/json"
	"github.com/lk2023060901/msgrelay/internal/relay"
	"github.com/lk2023060901/msgrelay/internal/server"
	"github.com/lk2023060901/msgrelay/pkg/metrics"
)

type healthStatus struct {
	Status      string `json:"status"`
	Accounts    int    `json:"accounts"`
	Sessions    int    `json:"sessions"`
	Pending     int    `json:"pendingMessages"`
	Connections int    `json:"connections"`
}

// newMetricsRouter 暴露 /metrics 与 /healthz。
func newMetricsRouter(core *relay.Core, srv *server.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	gatherer := prometheus.DefaultGatherer
	if g, ok := metrics.GetRegisterer().(prometheus.Gatherer); ok {
		gatherer = g
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		stats := core.Stats()
		body, err := json.Marshal(healthStatus{
			Status:      "ok",
			Accounts:    stats.Accounts,
			Sessions:    stats.Sessions,
			Pending:     stats.Pending,
			Connections: srv.OpenConnections(),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
	return r
}
