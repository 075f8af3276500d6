package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/httpdwatch/httpdwatch/internal/collector"
	"github.com/httpdwatch/httpdwatch/internal/config"
	"github.com/httpdwatch/httpdwatch/internal/events"
	"github.com/httpdwatch/httpdwatch/internal/export"
	"github.com/httpdwatch/httpdwatch/internal/scraper"
	"github.com/httpdwatch/httpdwatch/internal/sink"
	"github.com/httpdwatch/httpdwatch/internal/stream"
)

// pipelineDepth is the buffer between the scrape loop and the exporters.
// A full buffer blocks the producing tick rather than dropping samples.
const pipelineDepth = 1024

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("httpdwatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"targets", len(cfg.Agent.Targets),
		"scrape_interval", cfg.Agent.ScrapeInterval,
		"namespace", cfg.Agent.Namespace,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec := events.NewRecorder()
	store := export.NewStore(cfg.Agent.Export.SeriesTTL)

	scrapers := make([]*scraper.Scraper, 0, len(cfg.Agent.Targets))
	for _, target := range cfg.Agent.Targets {
		s, err := scraper.New(target, cfg.Agent.Namespace, cfg.Agent.Tags, rec)
		if err != nil {
			slog.Error("skipping target, could not build scraper", "target", target.ID, "err", err)
			continue
		}
		scrapers = append(scrapers, s)
		store.SetEndpoint(target.ID, target.Endpoint)
		slog.Info("registered target", "id", target.ID, "endpoint", target.Endpoint)
	}

	// Watch the config file for hot reload. Reloads currently adjust nothing
	// live; a changed file takes effect on restart, but a broken edit is
	// reported immediately.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config changed on disk, restart to apply",
				"targets", len(updated.Agent.Targets))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	hub := stream.New()
	go hub.Run(ctx)
	go store.Run(ctx)

	pipe := sink.NewPipeline(pipelineDepth)
	col := collector.New(scrapers, cfg.Agent.ScrapeInterval, pipe, store, hub)

	if cfg.Agent.Export.Listen != "" {
		srv := export.NewServer(store, rec, col.State, cfg.Agent.Targets, hub)
		go func() {
			if err := srv.Listen(ctx, cfg.Agent.Export.Listen); err != nil {
				slog.Error("export server failed", "err", err)
				cancel()
			}
		}()
	}

	// Drain the pipeline into the exposition store until the collector has
	// stopped and the buffer is empty.
	done := make(chan struct{})
	go func() {
		defer close(done)
		col.Run(ctx)
	}()
	for {
		select {
		case m := <-pipe.Out():
			store.Record(m)
		case <-done:
			for {
				select {
				case m := <-pipe.Out():
					store.Record(m)
				default:
					slog.Info("httpdwatch shutting down")
					return
				}
			}
		}
	}
}
