package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-overrides/internal/api"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-overrides/internal/overrides"
)

func newServeCmd(opts *globalOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the overrides service until interrupted",
		Long: `serve runs the startup hook (auto import, optional export), then answers
service calls on the MQTT bus and the HTTP API until it receives a shutdown signal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging, version)
			return runServe(cmd.Context(), cfg, log, version)
		},
	}
}

// runServe is the long-running service, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Loaded configuration
//   - log: Root logger
//   - version: Build version reported by the API
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func runServe(ctx context.Context, cfg *config.Config, log *logging.Logger, version string) error {
	log = log.With("site_id", cfg.Site.ID)
	log.Info("starting entity overrides service", "version", version, "site", cfg.Site.Name)

	a, err := openAppWithConfig(ctx, cfg, log)
	if err != nil {
		return err
	}
	checks := map[string]api.HealthChecker{"database": a.db}
	defer func() {
		log.Info("closing database")
		a.Close()
	}()

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT, log.With("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()

		bridge := overrides.NewBusBridge(ctx, a.svc, mqttClient, mqttClient.QoS())
		bridge.SetLogger(log.With("component", "bus"))
		if err := bridge.Start(); err != nil {
			return fmt.Errorf("subscribing to service calls: %w", err)
		}
		defer bridge.Stop()
		a.svc.SetNotifier(bridge)
		a.svc.SetEventPublisher(bridge)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxLog := log.With("component", "influxdb")
		influxClient, err := influxdb.Connect(cfg.InfluxDB, func(err error) {
			influxLog.Error("metrics write failed", "error", err)
		})
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		a.svc.SetMetrics(influxClient)
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := a.svc.Start(ctx); err != nil {
		return fmt.Errorf("starting overrides service: %w", err)
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:  cfg.API,
			Site:    cfg.Site,
			Logger:  log.With("component", "api"),
			Service: a.svc,
			Version: version,
			Checks:  checks,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API, InfluxDB, bus bridge, MQTT, database.
	return nil
}
