package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/snaptab/snaptab/internal/config"
	"github.com/snaptab/snaptab/internal/httpapi"
	"github.com/snaptab/snaptab/internal/recordstore"
	"github.com/snaptab/snaptab/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var store recordstore.Store
	if cfg.RedisURL != "" {
		rs, err := recordstore.NewRedisStore(cfg.RedisURL, cfg.RecordTTL)
		if err != nil {
			slog.Error("Failed to connect record store", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		store = rs
		slog.Info("Record store initialized", "backend", "redis", "ttl", cfg.RecordTTL)
	} else {
		store = recordstore.NewMemoryStore()
		slog.Warn("Record store is in-memory; splits will not survive a restart")
	}

	api := httpapi.NewServer(store, cfg.CORSOrigin)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.Handler())

	// h2c lets SSE watch streams multiplex over HTTP/2 without TLS.
	h2cHandler := h2c.NewHandler(mux, &http2.Server{})

	slog.Info("Record server starting", "address", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
