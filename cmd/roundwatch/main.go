package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/roundwatch/config"
	"github.com/alejandrodnm/roundwatch/internal/adapters/httpapi"
	"github.com/alejandrodnm/roundwatch/internal/adapters/notify"
	"github.com/alejandrodnm/roundwatch/internal/adapters/onchain"
	"github.com/alejandrodnm/roundwatch/internal/adapters/pyth"
	"github.com/alejandrodnm/roundwatch/internal/adapters/storage"
	"github.com/alejandrodnm/roundwatch/internal/application/round"
	"github.com/alejandrodnm/roundwatch/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one aggregation pass, print it and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the full ranking table (default: compact 1-line)")
	noHTTP := flag.Bool("no-http", false, "do not start the dashboard API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("roundwatch starting",
		"config", *configPath,
		"contract", cfg.Ledger.ContractAddress,
		"interval", cfg.PollInterval(),
		"once", *once,
	)

	ledger, err := onchain.NewLedgerClient(cfg.Ledger.RPCURL, cfg.Ledger.ContractAddress, onchain.Options{
		RatePerSec: cfg.Ledger.RatePerSec,
	})
	if err != nil {
		slog.Error("failed to connect ledger", "err", err, "rpc", cfg.Ledger.RPCURL)
		os.Exit(1)
	}
	defer ledger.Close()

	// store stays a nil interface when history is disabled
	var store ports.SnapshotStore
	if cfg.Storage.DSN != "" && !*once {
		db, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer db.Close()
		store = db
	}

	notifier := notify.NewConsole(*table || *once)
	agg := round.NewAggregator(ledger, cfg.Poll.ResolverWorkers)
	sched := round.NewScheduler(round.Config{Interval: cfg.PollInterval()}, agg, store, notifier)
	feed := round.NewPriceFeed(pyth.NewClient(cfg.Price.HermesBase, cfg.Price.FeedID), sched, cfg.PriceInterval())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		runOnce(ctx, feed, sched)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return feed.Run(gctx) })

	if cfg.HTTP.Addr != "" && !*noHTTP {
		srv := httpapi.New(httpapi.Config{Addr: cfg.HTTP.Addr, Source: sched, Store: store})
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("roundwatch exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("roundwatch stopped cleanly")
}

// runOnce fetches one reference price, runs a single pass and exits non-zero
// if the pass fails. A missing price still produces an unranked snapshot.
func runOnce(ctx context.Context, feed *round.PriceFeed, sched *round.Scheduler) {
	if _, err := feed.Poll(ctx); err != nil {
		slog.Warn("reference price unavailable", "err", err)
	}

	snap, err := sched.RunOnce(ctx)
	if err != nil {
		slog.Error("aggregation pass failed", "err", err)
		os.Exit(1)
	}
	slog.Info("pass complete", "round", snap.Round.ID, "phase", snap.Phase, "predictions", len(snap.Predictions))
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
