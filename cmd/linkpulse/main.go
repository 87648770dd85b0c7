package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/linkpulse/internal/auth"
	"github.com/roniherschmann/linkpulse/internal/cache"
	"github.com/roniherschmann/linkpulse/internal/config"
	"github.com/roniherschmann/linkpulse/internal/core"
	"github.com/roniherschmann/linkpulse/internal/geo"
	httpapi "github.com/roniherschmann/linkpulse/internal/http"
	"github.com/roniherschmann/linkpulse/internal/store"
)

func main() {
	// Fast JSON logs by default; pretty if running in a TTY/dev
	if isatty() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
	}

	var dsnFlag string
	flag.StringVar(&dsnFlag, "dsn", "", "SQLite or postgres:// DSN (overrides env DB_DSN)")
	flag.Parse()
	if dsnFlag != "" {
		cfg.DBDSN = dsnFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	linkCache := newCache(ctx, cfg)

	var resolver geo.Resolver = geo.Noop{}
	if cfg.GeoEndpoint != "" {
		resolver = geo.NewIPAPI(cfg.GeoEndpoint, cfg.GeoTimeout)
	}
	visits := core.NewVisitLog(st, resolver, cfg.GeoTimeout)

	// Visit recording
	var (
		recorder core.Recorder
		queued   *core.QueuedRecorder
	)
	if cfg.VisitAsync {
		queued = core.NewQueuedRecorder(visits, cfg.VisitQueueSize, cfg.VisitWorkers)
		recorder = queued
	} else {
		recorder = core.NewSyncRecorder(visits)
	}

	svc := core.NewService(st, linkCache, recorder, core.WithCacheTTL(cfg.CacheTTL))
	agg := core.NewAggregator(st, core.Windows{
		Alias: cfg.AliasWindow,
		Topic: cfg.TopicWindow,
		Owner: cfg.OwnerWindow,
	}, nil)

	var tokens *auth.Tokens
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokens(cfg.JWTSecret, 0)
	} else {
		log.Warn().Msg("JWT_SECRET not set, /analytics/overall will reject every caller")
	}

	// Prewarm cache
	if n := cfg.CachePrewarm; n > 0 {
		if err := svc.PrewarmCache(ctx, n); err != nil {
			log.Warn().Err(err).Msg("cache prewarm")
		}
	}

	// HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewRouter(cfg, svc, agg, tokens),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.Port).Bool("async_visits", cfg.VisitAsync).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if queued != nil {
		if err := queued.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("drain visit queue")
		}
	}
	log.Info().Msg("bye")
}

// newCache connects to Redis when configured. An unreachable Redis is still used: every
// cache failure degrades to a store read.
func newCache(ctx context.Context, cfg config.Config) cache.Cache {
	if cfg.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR not set, using in-process cache")
		return cache.NewMemory()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	c := cache.NewRedis(client)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
	}
	return c
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
