package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/charleschow/market-matcher/internal/adapters/inbound/httpapi"
	"github.com/charleschow/market-matcher/internal/adapters/inbound/invalidation"
	"github.com/charleschow/market-matcher/internal/adapters/outbound/marketstore"
	"github.com/charleschow/market-matcher/internal/config"
	"github.com/charleschow/market-matcher/internal/core/indexcache"
	"github.com/charleschow/market-matcher/internal/core/matcher"
	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/fanout"
	"github.com/charleschow/market-matcher/internal/process"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting matcher")

	bus := events.NewBus()

	// ── Alias table ─────────────────────────────────────────────
	table, err := teams.Load(cfg.AliasTablePath)
	if err != nil {
		telemetry.Errorf("Failed to load alias table: %v", err)
		os.Exit(1)
	}
	teams.Report(table)
	norm := teams.NewNormalizer(table)

	// ── Confidence weights ──────────────────────────────────────
	weights := matcher.DefaultWeights()
	if cfg.ConfidenceWeightsPath != "" {
		w, err := config.LoadConfidenceWeights(cfg.ConfidenceWeightsPath)
		if err != nil {
			telemetry.Errorf("Failed to load confidence weights: %v", err)
			os.Exit(1)
		}
		weights = matcher.WeightsFromConfig(w)
	}

	// ── Market store ────────────────────────────────────────────
	store, err := marketstore.Open(cfg.MarketStoreDSN, marketstore.Options{
		PoolSize:       cfg.StorePoolSize,
		AcquireTimeout: cfg.StoreAcquireTimeout,
		ReadRPS:        cfg.StoreReadRPS,
	})
	if err != nil {
		telemetry.Errorf("Market store: %v", err)
		os.Exit(1)
	}

	// ── Index cache + matcher ───────────────────────────────────
	cache := indexcache.NewManager(store, norm, indexcache.Options{
		TTL:          cfg.CacheTTL,
		BuildTimeout: cfg.CacheBuildTimeout,
		ServeStale:   cfg.CacheServeStale,
		Bus:          bus,
	})
	m := matcher.New(cache, norm, matcher.Options{
		Window:    cfg.MatchWindow,
		Tolerance: decimal.NewFromFloat(cfg.PriceTolerance),
		Weights:   weights,
	})
	reloader := teams.NewReloader(norm, cfg.AliasTablePath, cache, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Index warmer ────────────────────────────────────────────
	sports := events.ParseSports(cfg.Sports)
	var warmer *process.Warmer
	if cfg.WarmSchedule != "" && len(sports) > 0 {
		warmer, err = process.NewWarmer(cache, sports, cfg.WarmSchedule, cfg.CacheBuildTimeout)
		if err != nil {
			telemetry.Errorf("Warmer: %v", err)
			os.Exit(1)
		}
		warmer.Start(ctx)
	}

	// ── Redis invalidation ──────────────────────────────────────
	var sub *invalidation.Subscriber
	if cfg.RedisURL != "" {
		sub, err = invalidation.New(cfg.RedisURL, cfg.InvalidationChannel, cache, reloader)
		if err != nil {
			telemetry.Errorf("Invalidation: %v", err)
			os.Exit(1)
		}
		go func() {
			if err := sub.Run(ctx); err != nil {
				telemetry.Warnf("Invalidation subscriber stopped: %v", err)
			}
		}()
	} else {
		telemetry.Infof("REDIS_URL not set, cross-process invalidation disabled")
	}

	// ── HTTP API + fanout ───────────────────────────────────────
	fan := fanout.NewServer(bus)
	api := httpapi.New(httpapi.Deps{
		Matcher: m,
		Cache:   cache,
		Aliases: reloader,
		Pool:    store,
		WS:      fan.HandleWS,
		Bus:     bus,
	}, httpapi.Options{
		Host:        cfg.HTTPHost,
		Port:        cfg.HTTPPort,
		CORSOrigins: cfg.CORSOrigins,
	})
	go func() {
		if err := api.ListenAndServe(); err != nil {
			telemetry.Errorf("HTTP server: %v", err)
			os.Exit(1)
		}
	}()

	// ── Shutdown ────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		if _, err := reloader.Reload(); err != nil {
			telemetry.Warnf("SIGHUP alias reload: %v", err)
		}
	}

	telemetry.Infof("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		telemetry.Warnf("HTTP shutdown: %v", err)
	}
	if warmer != nil {
		warmer.Stop()
	}
	if sub != nil {
		sub.Close()
	}
	stats := store.PoolStats()
	if err := store.Close(); err != nil {
		telemetry.Warnf("Market store close: %v", err)
	}

	telemetry.Infof("Shutdown complete  indexes=%d  pool_size=%d  fanout_clients=%d",
		len(cache.Stats()), stats.Size, fan.Clients())
}
