package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/eternalApril/distkv/internal/config"
	"github.com/eternalApril/distkv/internal/dispatch"
	"github.com/eternalApril/distkv/internal/keyspace"
	"github.com/eternalApril/distkv/internal/logger"
	"github.com/eternalApril/distkv/internal/persistence"
	"github.com/eternalApril/distkv/internal/server"
)

func main() {
	fs := pflag.NewFlagSet("distkv-server", pflag.ContinueOnError)
	configPath := fs.String("config", ".", "directory to search for config.yaml")
	help := fs.BoolP("help", "h", false, "print usage and exit")
	config.BindFlags(fs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *help {
		fmt.Fprintln(os.Stderr, "distkv-server: an in-memory, typed, TTL-aware key-value store")
		fs.PrintDefaults()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync() //nolint:errcheck

	log.Info("distkv starting",
		zap.String("port", cfg.Server.Port),
		zap.Uint("shards", cfg.Storage.Shards),
	)

	ks, err := keyspace.New(cfg.Storage.Shards)
	if err != nil {
		log.Error("cannot initialize keyspace", zap.Error(err))
		os.Exit(1)
	}

	var snap *persistence.Snapshot
	if cfg.Persistence.Snapshot.Enabled {
		snap = persistence.NewSnapshot(cfg.Persistence.Snapshot.Filename, logger.Component(log, "persistence"))
		entries, err := snap.Load()
		if err != nil {
			log.Warn("failed to load snapshot, starting with an empty keyspace", zap.Error(err))
		} else if len(entries) > 0 {
			ks.Restore(entries)
			log.Info("keyspace restored from snapshot", zap.Int("entries", len(entries)))
		}
	}

	engine := dispatch.NewEngine()
	srv := server.New(ks, engine, logger.Component(log, "server"))

	address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	if err := srv.Listen(context.Background(), address); err != nil {
		log.Error("listen error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("listening", zap.String("address", address))

	stopGC := make(chan struct{})
	var gcOnce sync.Once
	if cfg.GC.Enabled {
		go runGCLoop(ks, cfg.GC, stopGC, logger.Component(log, "gc"))
	}

	if cfg.Persistence.Snapshot.Enabled && cfg.Persistence.Snapshot.SaveOnInterval != "" {
		interval, err := time.ParseDuration(cfg.Persistence.Snapshot.SaveOnInterval)
		if err != nil {
			log.Warn("invalid persistence.snapshot.save_on_interval, autosave disabled", zap.Error(err))
		} else {
			go runAutosaveLoop(ks, snap, interval, stopGC, logger.Component(log, "persistence"))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	gcOnce.Do(func() { close(stopGC) })

	if err := srv.Shutdown(); err != nil {
		log.Warn("listener close error", zap.Error(err))
	}

	if snap != nil {
		if err := snap.Save(ks.Snapshot()); err != nil {
			log.Error("failed to save snapshot on shutdown", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("all connections closed gracefully")
	case <-time.After(5 * time.Second):
		log.Warn("shutdown timed out, forcing exit", zap.Duration("timeout", 5*time.Second))
	}

	log.Info("distkv stopped")
}

func runGCLoop(ks *keyspace.Keyspace, cfg config.GCConfig, stop <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ratio := ks.SweepExpired(cfg.SamplesPerCheck)
			if ratio > 0 {
				log.Debug("swept expired keys", zap.Float64("expired_ratio", ratio))
			}
			if ratio >= cfg.MatchThreshold {
				ks.SweepExpired(cfg.SamplesPerCheck)
			}
		case <-stop:
			log.Info("gc loop stopped")
			return
		}
	}
}

func runAutosaveLoop(ks *keyspace.Keyspace, snap *persistence.Snapshot, interval time.Duration, stop <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := snap.Save(ks.Snapshot()); err != nil {
				log.Warn("periodic snapshot save failed", zap.Error(err))
			}
		case <-stop:
			return
		}
	}
}
