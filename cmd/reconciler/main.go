package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/db"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/repo/postgres"
	"github.com/nbclinic/portal/internal/worker"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	if cfg.CredStoreServiceKey == "" {
		log.Error("CREDSTORE_SERVICE_KEY is required; the reconciler uses admin identity listing")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := credstore.New(credstore.Config{
		BaseURL:    cfg.CredStoreURL,
		AnonKey:    cfg.CredStoreAnonKey,
		ServiceKey: cfg.CredStoreServiceKey,
	})

	prom := observability.NewProm(prometheus.NewRegistry())
	profilesRepo := postgres.NewProfilesRepo(pool, prom)

	r := worker.NewReconciler(store, profilesRepo, prom, log)

	// sidecar health endpoints for the orchestrator
	var shuttingDown atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", worker.Healthz)
	mux.Handle("/readyz", worker.Readyz(pool, shuttingDown.Load))

	healthSrv := &http.Server{
		Addr:              ":8081",
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("reconciler started", "interval", r.Interval.String())

	r.Run(ctx)

	shuttingDown.Store(true)

	sctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	if err := healthSrv.Shutdown(sctx); err != nil {
		log.Error("health server shutdown failed", "err", err)
	}

	log.Info("reconciler shutdown complete")
}
