package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nbclinic/portal/internal/auth"
	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/credstore"
	"github.com/nbclinic/portal/internal/database"
	"github.com/nbclinic/portal/internal/db"
	httpx "github.com/nbclinic/portal/internal/http"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/repo/postgres"
	"github.com/nbclinic/portal/internal/sessioncache"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// tracing is optional; without an endpoint the provider is a no-op
	shutdownTracer, err := observability.InitTracer(ctx, "portal-api", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DBURL); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// session mirror + fallback record live in redis
	mirror := sessioncache.NewRedisStore(sessioncache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer mirror.Close()

	store := credstore.New(credstore.Config{
		BaseURL:    cfg.CredStoreURL,
		AnonKey:    cfg.CredStoreAnonKey,
		ServiceKey: cfg.CredStoreServiceKey,
	})

	// auth wiring
	profilesRepo := postgres.NewProfilesRepo(pool, prom)
	resolver := auth.NewProfileResolver(profilesRepo, log)
	tokens := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)

	verifier := auth.NewVerifier(store, resolver, tokens, mirror, cfg.ProfileFallbackRole, prom, log)
	bootstrapper := auth.NewBootstrapper(store, resolver, mirror, auth.DefaultProfilePolicy(), prom, log)
	provisioner := auth.NewProvisioner(store, profilesRepo, mirror, prom, log)

	recoverSender := credstore.NewProtectedRecover(store, credstore.BreakerConfig{})

	configured := cfg.CredStoreConfigured()
	if !configured {
		log.Warn("credential store not configured; only dev credentials will work")
	}

	session := auth.NewContext(verifier, bootstrapper, mirror, store, recoverSender.Recover, configured, log)
	session.Bootstrap(ctx)

	// optional first-admin provisioning from the environment
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		pctx, cancel := config.WithTimeout(15 * time.Second)
		if err := provisioner.CreateFirstAdmin(pctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
			log.Warn("first admin provisioning failed", "err", err)
		}
		cancel()
	}

	c := cache.New(30 * time.Second)

	router := httpx.NewRouter(httpx.Deps{
		Cfg:         cfg,
		Log:         log,
		Pool:        pool,
		Prom:        prom,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Cache:       c,
		Session:     session,
		Provisioner: provisioner,
		Tokens:      tokens,
		CachePing: func() error {
			pingCtx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()
			return mirror.Ping(pingCtx)
		},
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}

		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
