package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/thereceipt/printbridge/internal/api"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/config"
	"github.com/thereceipt/printbridge/internal/database"
	"github.com/thereceipt/printbridge/internal/logger"
	"github.com/thereceipt/printbridge/internal/metrics"
	"github.com/thereceipt/printbridge/internal/printer"
	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Version is set during build via ldflags
var Version = "dev"

const (
	migrateTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

type options struct {
	console bool
	port    string
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:          "printbridge",
		Short:        "Receipt printing service for ESC/POS printers",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(opts)
		},
	}
	root.Flags().BoolVar(&opts.console, "console", false, "Run the interactive console in this terminal")
	root.Flags().StringVar(&opts.port, "port", "", "HTTP port (overrides SERVER_PORT)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Load()
	if opts.port != "" {
		cfg.ServerPort = opts.port
	}
	if Version != "dev" {
		cfg.AppVersion = Version
	}

	var sink *logger.Sink
	if opts.console {
		sink = &logger.Sink{}
	}

	var (
		profiles     command.ProfileRegistry
		orchestrator *command.Orchestrator
	)

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func() (*zap.Logger, error) {
				return logger.New(logger.Config{
					ServiceName: cfg.AppName,
					Environment: cfg.Environment,
					Version:     cfg.AppVersion,
					Level:       cfg.LogLevel,
					Format:      cfg.LogFormat,
					Quiet:       opts.console,
				}, sink)
			},
			newDatabase,
			newStore,
			func(s *registry.Store) command.ProfileRegistry { return s },
			func(cfg config.Config, log *zap.Logger) (command.LayoutSource, error) {
				return config.NewLayoutHolder(cfg.ReceiptLayoutFile, log)
			},
			func(cfg config.Config, log *zap.Logger) printer.Drivers {
				return printer.DefaultDrivers(cfg.SerialBaud, log)
			},
			printer.NewLocks,
			func(cfg config.Config) *command.JobHistory {
				return command.NewJobHistory(cfg.JobHistorySize)
			},
			func(cfg config.Config) *metrics.Metrics {
				return metrics.New(metrics.Config{
					ServiceName: cfg.AppName,
					Environment: cfg.Environment,
				})
			},
			newOrchestrator,
			api.NewServer,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(registerServer),
		fx.Populate(&profiles, &orchestrator),
	)
	if err := app.Err(); err != nil {
		return err
	}

	var console *tui.TViewApp
	if opts.console {
		console = tui.NewTViewApp(profiles, orchestrator, ":"+cfg.ServerPort)
		sink.Attach(console.LogWriter())
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		select {
		case <-app.Done():
			stop()
		case <-ctx.Done():
		}
	}()

	var runErr error
	if console != nil {
		runErr = console.Run(ctx)
		sink.Attach(nil)
	} else {
		<-ctx.Done()
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newDatabase(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func newStore(db *gorm.DB, log *zap.Logger) (*registry.Store, error) {
	store := registry.NewStore(db, log)

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate printer profiles: %w", err)
	}
	return store, nil
}

func newOrchestrator(
	cfg config.Config,
	store command.ProfileRegistry,
	layout command.LayoutSource,
	drivers printer.Drivers,
	locks *printer.Locks,
	jobs *command.JobHistory,
	m *metrics.Metrics,
	log *zap.Logger,
) *command.Orchestrator {
	return command.NewOrchestrator(store, layout, drivers, locks, jobs, m, command.OrchestratorOptions{
		Session: printer.SessionOptions{
			ConnectTimeout: cfg.PrinterConnectTimeout,
			ProbeTimeout:   cfg.PrinterProbeTimeout,
			WriteTimeout:   cfg.PrinterWriteTimeout,
		},
	}, log)
}

func registerServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, server *api.Server, cfg config.Config, log *zap.Logger) {
	addr := "0.0.0.0:" + cfg.ServerPort

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Run(addr); err != nil {
					log.Error("api server stopped", zap.String("addr", addr), zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}
