package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"go.ntppool.org/common/logger"
	"go.ntppool.org/common/metricsserver"
	"go.ntppool.org/common/version"

	"github.com/illicitonion/timetravel/internal/cachecheck"
	"github.com/illicitonion/timetravel/internal/config"
	"github.com/illicitonion/timetravel/internal/confwatch"
	"github.com/illicitonion/timetravel/internal/httpapi"
	"github.com/illicitonion/timetravel/internal/timeline"
	"github.com/illicitonion/timetravel/internal/upstream"
)

// CLI defines the command-line interface for timetravel-server.
type CLI struct {
	ConfigFile string `arg:"" help:"Path to YAML configuration file." type:"path"`

	LogLevel string `default:"info" help:"Log level (debug, info, warn, error)."`

	ConsistencyCheckInterval time.Duration `default:"5m" help:"How often to run the background cache consistency check."`

	Verbose bool `short:"v" help:"Enable verbose logging."`

	Version kong.VersionFlag `short:"V" help:"Show version."`
}

// metrics holds Prometheus metrics collectors.
type metrics struct {
	cacheViolations     prometheus.Gauge
	cacheUsersChecked   prometheus.Gauge
	consistencyDuration prometheus.Histogram
}

// server holds the application state for timetravel-server.
type server struct {
	cache *timeline.Cache
	api   *httpapi.Server

	metrics *metrics
	log     *slog.Logger
}

func main() {
	var cli CLI

	kctx := kong.Parse(&cli,
		kong.Name("timetravel-server"),
		kong.Description("Per-user time-range cache in front of a timeline API"),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version()},
	)

	if cli.Verbose {
		os.Setenv("LOG_LEVEL", "DEBUG")
	} else if cli.LogLevel != "" {
		os.Setenv("LOG_LEVEL", cli.LogLevel)
	}

	log := logger.Setup()

	if err := run(context.Background(), &cli, log); err != nil {
		log.Error("fatal error", "error", err)
		kctx.Exit(1)
	}
}

func run(ctx context.Context, cli *CLI, log *slog.Logger) error {
	initial, err := config.Load(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("load initial configuration: %w", err)
	}

	log.Info("starting timetravel-server",
		"version", version.Version(),
		"config_file", cli.ConfigFile,
		"metrics_port", initial.MetricsPort,
		"consistency_check_interval", cli.ConsistencyCheckInterval,
	)

	metricsSrv := metricsserver.New()

	m := &metrics{
		cacheViolations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timetravel_cache_violations",
			Help: "Invariant violations found by the most recent consistency check",
		}),
		cacheUsersChecked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timetravel_cache_users_checked",
			Help: "Number of users examined by the most recent consistency check",
		}),
		consistencyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetravel_consistency_check_duration_seconds",
			Help:    "Time taken to run a cache consistency check",
			Buckets: prometheus.DefBuckets,
		}),
	}
	metricsSrv.Registry().MustRegister(m.cacheViolations, m.cacheUsersChecked, m.consistencyDuration)

	go func() {
		log.Info("metrics server starting", "port", initial.MetricsPort)
		if err := metricsSrv.ListenAndServe(ctx, initial.MetricsPort); err != nil {
			log.Error("metrics server error", "error", err)
		}
	}()

	cache := timeline.NewCache()

	srv := &server{
		cache:   cache,
		metrics: m,
		log:     log,
	}

	up := upstream.NewHTTPClient(initial.Upstream.BaseURL, initial.Upstream.RequestTimeout, upstream.NoopSigner{})
	searchEnabled := timeline.NewMutableSearchEnabled(initial.SearchEnabledPrincipals)
	orchestrator := timeline.NewOrchestrator(cache, up, searchEnabled)

	// Only the search-enabled principal list is hot-reloaded; listen
	// address and upstream settings need a restart to change.
	cw, err := confwatch.New(cli.ConfigFile, func(cfg *config.Config) {
		searchEnabled.Update(cfg.SearchEnabledPrincipals)
		log.Info("configuration reloaded",
			"search_enabled_principals", len(cfg.SearchEnabledPrincipals),
		)
	}, confwatch.WithErrorHandler(func(err error) {
		log.Error("config watcher error", "error", err)
	}))
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := cw.Start(); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	log.Info("config watcher started", "file", cli.ConfigFile)

	var assets map[string][]byte
	if initial.StaticAssetsPath != "" {
		assets, err = httpapi.LoadAssets(initial.StaticAssetsPath)
		if err != nil {
			return fmt.Errorf("load static assets: %w", err)
		}
	}
	srv.api = httpapi.New(orchestrator, cache, assets, log)

	httpSrv := &http.Server{
		Addr:    initial.ListenAddress,
		Handler: srv.api,
	}

	go func() {
		log.Info("http server starting", "address", initial.ListenAddress)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
		}
	}()

	stopConsistency := make(chan struct{})
	consistencyDone := make(chan struct{})
	go srv.periodicConsistencyCheck(cli.ConsistencyCheckInterval, stopConsistency, consistencyDone)
	log.Info("periodic consistency check started", "interval", cli.ConsistencyCheckInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received shutdown signal", "signal", sig.String())

	close(stopConsistency)
	<-consistencyDone

	if err := cw.Stop(); err != nil {
		log.Error("stop config watcher", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// periodicConsistencyCheck runs cachecheck.Run at regular intervals and
// reports its findings to Prometheus.
func (s *server) periodicConsistencyCheck(interval time.Duration, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			result, err := cachecheck.Run(s.cache, cachecheck.Options{Logger: s.log})
			duration := time.Since(start)
			s.metrics.consistencyDuration.Observe(duration.Seconds())

			if err != nil {
				s.log.Error("consistency check error", "error", err)
				continue
			}

			s.metrics.cacheViolations.Set(float64(result.Violations))
			s.metrics.cacheUsersChecked.Set(float64(result.UsersChecked))

			s.log.Debug("consistency check complete",
				"duration", duration,
				"violations", result.Violations,
				"users_checked", result.UsersChecked,
			)

		case <-stop:
			return
		}
	}
}
