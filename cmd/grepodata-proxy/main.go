package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grepotools/grepodata-proxy/pkg/cache"
	"github.com/grepotools/grepodata-proxy/pkg/coalesce"
	"github.com/grepotools/grepodata-proxy/pkg/config"
	"github.com/grepotools/grepodata-proxy/pkg/logging"
	"github.com/grepotools/grepodata-proxy/pkg/proxy"
	"github.com/grepotools/grepodata-proxy/pkg/upstream"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	client, err := upstream.New(upstream.Config{
		BaseURL:   cfg.Origin.BaseURL,
		Timeout:   cfg.Origin.Timeout.Std(),
		UserAgent: cfg.Origin.UserAgent,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Create origin client")
	}

	ttls := make(map[string]time.Duration, len(cfg.Cache.TTL))
	for datafile, ttl := range cfg.Cache.TTL {
		ttls[datafile] = ttl.Std()
	}

	handler, err := proxy.New(proxy.Config{
		Store:         cache.NewStore(cfg.Cache.Capacity, clock.New()),
		Group:         coalesce.New(cfg.Origin.Timeout.Std(), cfg.WaitTimeout()),
		Client:        client,
		Endpoints:     proxy.Endpoints(ttls),
		AllowedOrigin: cfg.CORS.AllowedOrigin,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Create proxy handler")
	}

	router := handler.Router()
	router.HandleFunc("/healthz", healthHandler)
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("listen", cfg.Listen).
			Str("origin", cfg.Origin.BaseURL).
			Int("cache_capacity", cfg.Cache.Capacity).
			Msg("Proxy listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
