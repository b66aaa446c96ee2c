package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hearthdata/hearth/internal/job"
	"github.com/hearthdata/hearth/internal/store"
	syncjob "github.com/hearthdata/hearth/internal/sync"
	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/connector/health"
	"github.com/hearthdata/hearth/pkg/connector/registry"
	"github.com/hearthdata/hearth/pkg/connector/router"
	"github.com/hearthdata/hearth/pkg/logger"

	// Import all available source connectors to register them
	_ "github.com/hearthdata/hearth/pkg/connector/sources/restapi"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string

	root := &cobra.Command{
		Use:   "hearth",
		Short: "Hearth - Property data orchestration service",
		Long: `Hearth aggregates property listings from multiple upstream providers with
automatic failover, deduplicates them, and maintains a canonical property store.`,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "hearth.yaml", "Path to configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Hearth v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "connectors",
		Short: "List registered connector types and configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			fmt.Println("Registered connector types:")
			for _, name := range registry.List() {
				fmt.Printf("  - %s\n", name)
			}
			fmt.Println("\nConfigured sources (in failover order):")
			for _, cc := range cfg.OrderedConnectors() {
				state := "enabled"
				if !cc.Enabled {
					state = "disabled"
				}
				auth := "authenticated"
				if !cc.Authenticated() {
					auth = "no credentials"
				}
				fmt.Printf("  - %s (type=%s, priority=%d, %s, %s)\n",
					cc.Name, cc.Type, cc.Priority, state, auth)
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "plugins",
		Short: "List available job plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile)
			if err != nil {
				return err
			}
			defer app.close()
			for _, info := range app.manager.ListAvailablePlugins() {
				fmt.Printf("  - %s: %s\n", info.Name, info.Description)
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show the latest persisted health snapshot per source",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile)
			if err != nil {
				return err
			}
			defer app.close()
			snaps, err := app.store.LatestHealthSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Println("No health snapshots recorded yet.")
				return nil
			}
			for _, s := range snaps {
				fmt.Printf("  - %s: %s (error rate %.1f%%, %d requests, checked %s)\n",
					s.Source, s.Status, s.ErrorRate*100, s.Requests,
					s.CheckedAt.Format(time.RFC3339))
			}
			return nil
		},
	})

	var runConfigJSON string
	runCmd := &cobra.Command{
		Use:   "run [plugin]",
		Short: "Run a job plugin once and wait for its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile)
			if err != nil {
				return err
			}
			defer app.close()
			return runOnce(app, args[0], runConfigJSON)
		},
	}
	runCmd.Flags().StringVar(&runConfigJSON, "job-config", "", "Job configuration as a JSON object")
	root.AddCommand(runCmd)

	var metricsAddr string
	serveCmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"serve"},
		Short:   "Run the periodic property sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile)
			if err != nil {
				return err
			}
			defer app.close()
			return serve(app, metricsAddr)
		},
	}
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address for the Prometheus metrics endpoint (empty to disable)")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app wires the long-lived collaborators: config, store, connectors, router,
// and the job manager with its plugins.
type app struct {
	cfg        *config.Config
	store      *store.Store
	router     *router.Router
	manager    *job.Manager
	connectors []core.Connector
	log        *zap.Logger
}

func buildApp(configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
		OutputPaths: cfg.Logging.OutputPaths,
	}); err != nil {
		return nil, err
	}
	log := logger.Get()

	db, err := store.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	st := store.New(db)

	var connectors []core.Connector
	for _, cc := range cfg.OrderedConnectors() {
		c, err := registry.Create(cc)
		if err != nil {
			return nil, fmt.Errorf("failed to create connector %q: %w", cc.Name, err)
		}
		connectors = append(connectors, c)
	}

	rt, err := router.New(cfg.Router.Primary, connectors...)
	if err != nil {
		return nil, err
	}

	plugins := job.NewRegistry()
	if err := syncjob.Register(plugins, syncjob.Deps{
		Router: rt,
		Store:  st,
		Config: cfg.Sync,
		Logger: log,
	}); err != nil {
		return nil, err
	}

	engine := job.NewEngine(log)
	manager := job.NewManager(plugins, engine, cfg.Jobs.HistoryLimit, log)

	return &app{
		cfg:        cfg,
		store:      st,
		router:     rt,
		manager:    manager,
		connectors: connectors,
		log:        log,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range a.connectors {
		if err := c.Close(ctx); err != nil {
			a.log.Warn("failed to close connector",
				zap.String("connector", c.Name()), zap.Error(err))
		}
	}
	_ = logger.Sync()
}

func runOnce(a *app, plugin, configJSON string) error {
	var jobCfg map[string]interface{}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &jobCfg); err != nil {
			return fmt.Errorf("invalid --job-config: %w", err)
		}
	}

	jobID, err := a.manager.StartJob(plugin, jobCfg, false, nil, "")
	if err != nil {
		return err
	}

	rec, err := a.manager.GetJobStatus(jobID)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if rec.Status != job.StatusCompleted {
		return fmt.Errorf("job %s finished with status %s", jobID, rec.Status)
	}
	return nil
}

// serve runs the sync plugin immediately and then on every interval tick
// until SIGINT or SIGTERM. Ticks that arrive while a sync is still running
// are skipped rather than queued.
func serve(a *app, metricsAddr string) error {
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		a.log.Info("metrics endpoint listening", zap.String("addr", metricsAddr))
	}

	interval := a.cfg.Sync.Interval
	a.log.Info("starting periodic sync",
		zap.Duration("interval", interval),
		zap.Strings("locations", a.cfg.Sync.Locations),
		zap.String("primary", a.router.Primary()))

	done := make(chan job.Record, 1)
	startSync := func() {
		_, err := a.manager.StartJob(syncjob.PluginName, nil, true, func(rec job.Record) {
			select {
			case done <- rec:
			default:
			}
		}, "scheduler")
		if err != nil {
			a.log.Error("failed to start sync job", zap.Error(err))
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	startSync()
	for {
		select {
		case rec := <-done:
			logSyncOutcome(a.log, rec)
		case <-ticker.C:
			if len(a.manager.GetActiveJobs()) > 0 {
				a.log.Warn("previous sync still running, skipping this cycle")
				continue
			}
			startSync()
		case sig := <-stop:
			a.log.Info("shutting down", zap.String("signal", sig.String()))
			logHealth(a)
			return nil
		}
	}
}

func logSyncOutcome(log *zap.Logger, rec job.Record) {
	fields := []zap.Field{
		zap.String("job_id", rec.ID),
		zap.String("status", string(rec.Status)),
	}
	if rec.Result != nil {
		fields = append(fields,
			zap.Int("records_processed", rec.Result.RecordsProcessed),
			zap.Float64("duration_seconds", rec.Result.DurationSeconds))
	}
	if rec.Status == job.StatusCompleted {
		log.Info("sync cycle finished", fields...)
	} else {
		log.Error("sync cycle failed", append(fields, zap.String("error", rec.Error))...)
	}
}

func logHealth(a *app) {
	for _, c := range a.router.Connectors() {
		snap := health.Evaluate(c)
		a.log.Info("final connector health",
			zap.String("source", snap.Source),
			zap.String("status", string(snap.Status)),
			zap.Float64("error_rate", snap.ErrorRate),
			zap.Int64("requests", snap.Requests))
	}
}
