package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/medicareplus/portal/internal/auth"
	"github.com/medicareplus/portal/internal/chat"
	"github.com/medicareplus/portal/internal/config"
	"github.com/medicareplus/portal/internal/db"
	httpx "github.com/medicareplus/portal/internal/http"
	"github.com/medicareplus/portal/internal/observability"
	"github.com/medicareplus/portal/internal/repo/postgres"
	"github.com/medicareplus/portal/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	_ = godotenv.Load()

	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	// tracing is optional; without an endpoint the shutdown is a no-op
	traceCtx, traceCancel := config.WithTimeout(5 * time.Second)
	shutdownTracer, err := observability.InitTracer(traceCtx, "medicare-portal", cfg.OTLPEndpoint)
	traceCancel()

	if err != nil {
		log.Error("tracer init failed", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	// run schema migrations before taking traffic

	err = db.RunMigrations(cfg.DBURL)

	if err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	// session event bus

	bus := session.NewRedisBus(session.BusConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	defer bus.Close()

	pingCtx, pingCancel := config.WithTimeout(2 * time.Second)

	if err := bus.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, session resolver will see no events", "err", err)
	}

	pingCancel()

	// metrics

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(registry)

	// auth + chat upstream

	jwtManager := auth.NewManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLDays)*24*time.Hour,
	)

	chatClient := chat.NewClient(chat.ClientConfig{
		APIURL:    cfg.ChatAPIURL,
		APIKey:    cfg.ChatAPIKey,
		Model:     cfg.ChatModel,
		MaxTokens: cfg.ChatMaxTokens,
	}, prom)

	completer := chat.NewProtectedCompleter(chatClient, chat.ProtectedConfig{})

	// session resolver consumes the bus in the background

	resolver := session.NewResolver(postgres.NewRolesRepo(pool), log, prom)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	go func() {
		if err := resolver.Run(runCtx, bus); err != nil && runCtx.Err() == nil {
			log.Error("session resolver stopped", "err", err)
		}
	}()

	// set up routers

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:       cfg,
		Log:       log,
		Pool:      pool,
		Bus:       bus,
		Resolver:  resolver,
		Completer: completer,
		Prom:      prom,
		Registry:  registry,
		JWT:       jwtManager,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	runCancel()

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}

		if err := shutdownTracer(ctx); err != nil {
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
