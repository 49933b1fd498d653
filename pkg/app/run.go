// Package app provides the shared entry point for the chime binary: it
// loads configuration, wires the store, scheduler, runner and HTTP
// server together, and runs until a shutdown signal arrives.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/chime/internal/beat"
	"github.com/flemzord/chime/internal/config"
	"github.com/flemzord/chime/internal/gateway"
	"github.com/flemzord/chime/internal/lifecycle"
	"github.com/flemzord/chime/internal/notify"
	"github.com/flemzord/chime/internal/runner"
	"github.com/flemzord/chime/internal/schedule"
	"github.com/flemzord/chime/internal/scheduling"
	"github.com/flemzord/chime/internal/store"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string
}

// Run loads configuration, starts the scheduler, and blocks until a
// shutdown signal is received. SIGHUP triggers a reconcile pass.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	sys, err := buildSystem(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sys.store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The cron store is in-memory; replay the active definitions into it
	// before anything can fire.
	if err := sys.sched.Restore(ctx); err != nil {
		return err
	}

	sys.cron.Start(ctx)
	if err := sys.server.Start(ctx); err != nil {
		_ = sys.cron.Stop(ctx)
		return err
	}

	sys.logger.Info("chime started",
		"version", params.Version,
		"config", cfgPath,
		"entries", sys.cron.Len(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		sig := <-sigCh
		if sig == syscall.SIGHUP {
			sys.logger.Info("SIGHUP received, reconciling definitions")
			if _, err := sys.sched.Reconcile(ctx); err != nil {
				sys.logger.Error("reconcile failed", "error", err)
			}
			continue
		}

		sys.logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		if err := sys.server.Stop(context.Background()); err != nil {
			sys.logger.Error("gateway shutdown failed", "error", err)
		}
		if err := sys.cron.Stop(context.Background()); err != nil {
			sys.logger.Error("beat shutdown failed", "error", err)
		}
		sys.logger.Info("shutdown complete")
		return nil
	}
}

// system holds the wired application components.
type system struct {
	logger *slog.Logger
	store  *store.Store
	cron   *beat.CronStore
	sched  *scheduling.Service
	server *gateway.Server
}

// buildSystem constructs every component from cfg. The handler map is
// shared by reference: the cron store is created first with an empty
// map, and the runner's handlers are filled in before anything starts.
func buildSystem(cfg *config.Config) (*system, error) {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.Path, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handlers := beat.Handlers{}
	cronStore := beat.NewCronStore(logger, handlers)

	hub := runner.NewHub()
	metrics := runner.NewMetrics(registry)
	recorder := runner.NewRecorder(st, hub, metrics, logger)
	enforcer := lifecycle.NewEnforcer(st, cronStore, logger)
	client := notify.NewClient(notify.Config{
		MessageURL:    cfg.Notify.MessageURL,
		MonitorURL:    cfg.Notify.MonitorURL,
		LanguageCode:  cfg.Notify.LanguageCode,
		Timeout:       cfg.Notify.Timeout.Std(),
		RatePerSecond: cfg.Notify.RatePerSecond,
		Burst:         cfg.Notify.Burst,
	}, nil, logger)

	run := runner.New(st, enforcer, client, recorder, metrics, logger)
	for ref, h := range run.Handlers() {
		handlers[ref] = h
	}

	if err := scheduleMaintenance(cronStore, handlers, st, logger, cfg.Storage.RetentionDays); err != nil {
		_ = st.Close()
		return nil, err
	}

	sched := scheduling.NewService(st, cronStore, logger)
	server := gateway.New(cfg.Server, st, sched, hub, registry, logger)

	return &system{
		logger: logger,
		store:  st,
		cron:   cronStore,
		sched:  sched,
		server: server,
	}, nil
}

// pruneRef is the internal handler reference of the history-retention
// job. It is not listed in internal/job and cannot be attached to a
// definition through the admin API.
const pruneRef = "chime.prune_history"

// scheduleMaintenance registers the nightly history-prune entry when a
// retention window is configured.
func scheduleMaintenance(cronStore *beat.CronStore, handlers beat.Handlers, st *store.Store, logger *slog.Logger, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	handlers[pruneRef] = func(ctx context.Context, _ []string) error {
		n, err := st.PruneExecutions(ctx, retentionDays)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("pruned execution history", "removed", n, "retention_days", retentionDays)
		}
		return nil
	}

	nightly := schedule.Descriptor{
		Kind: schedule.KindCrontab, Minute: "0", Hour: "3",
		DayOfMonth: "*", Month: "*", DayOfWeek: "*",
	}
	if _, err := cronStore.Register(context.Background(), "history-prune", pruneRef, nightly, nil); err != nil {
		return fmt.Errorf("app: schedule history prune: %w", err)
	}
	return nil
}

// newLogger builds the slog logger described by cfg.
func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("app: bad log level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/chime/chime.yaml → ~/.config/chime/chime.yaml → ./chime.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "chime", "chime.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "chime", "chime.yaml"))
	}

	candidates = append(candidates, "chime.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
