package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/expensehub/internal/auth"
	"github.com/geocoder89/expensehub/internal/cache"
	"github.com/geocoder89/expensehub/internal/config"
	"github.com/geocoder89/expensehub/internal/db"
	httpx "github.com/geocoder89/expensehub/internal/http"
	"github.com/geocoder89/expensehub/internal/http/handlers"
	"github.com/geocoder89/expensehub/internal/http/middlewares"
	"github.com/geocoder89/expensehub/internal/observability"
	"github.com/geocoder89/expensehub/internal/redisclient"
	"github.com/geocoder89/expensehub/internal/repo/memory"
	"github.com/geocoder89/expensehub/internal/repo/postgres"
	"github.com/geocoder89/expensehub/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTELEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg, reg)

	deps := httpx.Deps{
		Config:    cfg,
		Log:       log,
		Prom:      prom,
		Hasher:    security.NewHasher(),
		Tokens:    auth.NewManager(cfg.JWTSecret),
		Readiness: map[string]handlers.Pinger{},
		Tracing:   cfg.OTELEndpoint != "",
	}

	var closers []func()

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; data is lost on restart")

		users := memory.NewUsersRepo()
		deps.Users = users
		deps.Expenses = memory.NewExpensesRepo(users)

	default:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			log.Error("database connect failed", "err", err)
			os.Exit(1)
		}
		closers = append(closers, pool.Close)

		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = db.Migrate(migrateCtx, pool)
		cancel()
		if err != nil {
			log.Error("database migration failed", "err", err)
			os.Exit(1)
		}

		deps.Users = postgres.NewUsersRepo(pool, prom)
		deps.Expenses = postgres.NewExpensesRepo(pool, prom)
		deps.Readiness["postgres"] = pool
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = rdb.Close() })

		deps.LimitStore = middlewares.NewRedisLimitStore(rdb.Raw())
		deps.Readiness["redis"] = rdb
	}

	summaries, err := cache.New(ctx, cfg.SummaryCacheTTL)
	if err != nil {
		log.Error("cache init failed", "err", err)
		os.Exit(1)
	}
	closers = append(closers, func() { _ = summaries.Close() })
	deps.Summaries = summaries

	// set up routers with the deps
	router := httpx.NewRouter(deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}

		// release stores in reverse order of acquisition
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
