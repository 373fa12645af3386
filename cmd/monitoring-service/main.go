package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "rivalwatch/docs"

	"rivalwatch/internal/broker"
	"rivalwatch/internal/config"
	"rivalwatch/internal/constants"
	"rivalwatch/internal/logger"
	"rivalwatch/pkg/bootstrap"
	"rivalwatch/pkg/logging"
	"rivalwatch/pkg/migrations"
	"rivalwatch/pkg/models"
)

var (
	configFile string
)

// @title           Rivalwatch Monitoring Service API
// @version         1.0
// @description     Tracks competitor product listings per keyword and reports price, rank and review changes

// @host      localhost:8080
// @BasePath  /api/v1/monitoring

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "monitoring-service",
		Short: "Competitor snapshot monitoring service",
		Long:  "Monitoring Service fetches competitor listings per keyword, diffs them against the previous capture and raises alerts",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(checkAllCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(watchAlertsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config file, reads it and builds the logger.
func loadConfig() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		earlyLog.Warn("Failed to read .env file: %v", err)
	}

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}

	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx = logging.WithServiceName(ctx, constants.ServiceName)

			log.InfowCtx(ctx, "Starting Monitoring Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <keyword>",
		Short: "Run one check cycle for a keyword and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, log)
			defer app.Shutdown(ctx)

			if err := app.initService(ctx); err != nil {
				return err
			}

			result, err := app.service.Check(ctx, args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func checkAllCmd() *cobra.Command {
	var dueOnly bool
	cmd := &cobra.Command{
		Use:   "check-all",
		Short: "Run one check cycle for every configured keyword and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, log)
			defer app.Shutdown(ctx)

			if err := app.initService(ctx); err != nil {
				return err
			}

			report, err := app.service.CheckAll(ctx, dueOnly)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d keywords failed", len(report.Failed), len(report.Failed)+len(report.Checked)+len(report.Skipped))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dueOnly, "due", false, "Skip keywords whose latest result is still fresh")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL config schema",
	}

	run := func(name string, fn func(ctx context.Context, dc *bootstrap.DatabaseConnector) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Run migrations %s", name),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadConfig()
				if err != nil {
					return err
				}
				defer log.Sync()

				return fn(cmd.Context(), bootstrap.NewDatabaseConnector(cfg, log))
			},
		}
	}

	cmd.AddCommand(run("up", func(ctx context.Context, dc *bootstrap.DatabaseConnector) error {
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.RunPostgres(db); err != nil {
			return err
		}
		dc.Logger.Info("Migrations applied")
		return nil
	}))

	cmd.AddCommand(run("down", func(ctx context.Context, dc *bootstrap.DatabaseConnector) error {
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.RollbackPostgres(db); err != nil {
			return err
		}
		dc.Logger.Info("Migrations rolled back")
		return nil
	}))

	return cmd
}

func watchAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch-alerts",
		Short: "Tail the alert topic and log every alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			consumer, err := broker.NewConsumer(cfg.Notify.Kafka, log)
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			err = consumer.Consume(ctx, cfg.Notify.Kafka.Topic, func(ctx context.Context, msg models.MessageEnvelope) error {
				keyword, _ := msg.GetPayloadField("keyword")
				competitors, _ := msg.GetPayloadField("competitors")
				log.InfowCtx(ctx, "Competitor alert",
					"id", msg.ID,
					"keyword", keyword,
					"checked_at", msg.Timestamp,
					"degraded", msg.Metadata.Degraded,
					"competitors", competitors,
				)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
