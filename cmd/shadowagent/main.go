// Shadow Agent - device shadow synchronisation for a soil moisture planter.
//
// The agent samples a soil moisture probe, drives an emotional servo and
// keeps both in sync with the thing's device shadow over MQTT.
//
// Commands:
//
//	shadowagent run      start the agent (default)
//	shadowagent journal  print recent shadow traffic from the local journal
//	shadowagent version  print build information
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/nerrad567/shadow-agent/migrations"

	"github.com/nerrad567/shadow-agent/internal/agent"
	"github.com/nerrad567/shadow-agent/internal/api"
	"github.com/nerrad567/shadow-agent/internal/boot"
	"github.com/nerrad567/shadow-agent/internal/device/moisture"
	"github.com/nerrad567/shadow-agent/internal/device/servo"
	"github.com/nerrad567/shadow-agent/internal/infrastructure/config"
	"github.com/nerrad567/shadow-agent/internal/infrastructure/database"
	"github.com/nerrad567/shadow-agent/internal/infrastructure/influxdb"
	"github.com/nerrad567/shadow-agent/internal/infrastructure/logging"
	"github.com/nerrad567/shadow-agent/internal/infrastructure/mqtt"
	"github.com/nerrad567/shadow-agent/internal/journal"
	"github.com/nerrad567/shadow-agent/internal/shadow"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv overrides the default config path.
const configEnv = "SHADOWAGENT_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "shadowagent",
		Short:         "Device shadow agent for a soil moisture planter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(".env")
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config file (default $"+configEnv+" or "+defaultConfigPath+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the agent",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), resolveConfigPath(configPath))
			},
		},
		newJournalCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "shadowagent %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

func newJournalCmd(configPath *string) *cobra.Command {
	var (
		limit     int
		direction string
		kind      string
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent shadow traffic as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJournal(cmd.Context(), cmd.OutOrStdout(), resolveConfigPath(*configPath), journal.Filter{
				Direction: direction,
				Kind:      kind,
				Limit:     limit,
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to print (max 200)")
	cmd.Flags().StringVar(&direction, "direction", "", "filter by direction (inbound|outbound)")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by message kind")
	return cmd
}

// loadDotEnv applies a .env file if present. Existing variables win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the agent's lifecycle, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting shadow agent",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version, cfg.Device.ThingName)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Network then clock, each with its own attempt budget.
	if err := boot.Wait(ctx, boot.Config{
		Attempts: cfg.Boot.Attempts,
		Interval: cfg.Boot.Interval,
	}, log.Component("boot"),
		boot.NetworkCheck(nil, cfg.ProbeHost()),
		boot.ClockCheck(nil),
	); err != nil {
		return fmt.Errorf("boot preconditions: %w", err)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)
	journalRepo := journal.NewSQLiteRepository(db.DB)

	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ThingName)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	sensor, err := moisture.New(cfg.Sensor)
	if err != nil {
		return fmt.Errorf("opening moisture sensor: %w", err)
	}

	actuator, err := servo.New(cfg.Servo)
	if err != nil {
		return fmt.Errorf("opening servo: %w", err)
	}
	defer func() {
		if closeErr := actuator.Close(); closeErr != nil {
			log.Error("error closing servo", "error", closeErr)
		}
	}()
	log.Info("devices ready", "sensor", cfg.Sensor.Driver, "servo", cfg.Servo.Driver)

	mqttClient, err := mqtt.New(cfg.MQTT, cfg.ClientID())
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	deps := agent.Deps{
		Config:    agentConfig(cfg),
		Logger:    log,
		Sensor:    sensor,
		Actuator:  actuator,
		Transport: mqttClient,
		Journal:   journalRepo,
	}
	if influxClient != nil {
		deps.Metrics = influxClient
	}
	ag, err := agent.New(deps)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	// Subscriptions are registered before connecting so the first
	// connect hook both subscribes and requests the shadow.
	if err := ag.Subscribe(mqttClient); err != nil {
		return fmt.Errorf("subscribing to shadow topics: %w", err)
	}
	if err := mqttClient.Connect(ctx); err != nil {
		if !errors.Is(err, mqtt.ErrTimeout) {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		log.Warn("MQTT broker not reachable yet, reconnecting in background", "error", err)
	} else {
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.ClientID(),
		)
	}

	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"mqtt":     mqttClient,
			"database": db,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}
		server, err := api.New(api.Deps{
			Config:  cfg,
			Logger:  log,
			Status:  ag,
			Journal: journalRepo,
			Checks:  checks,
			Version: version,
			Thing:   cfg.Device.ThingName,
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

	log.Info("initialisation complete, running shadow loop")
	if err := ag.Run(ctx); err != nil {
		return fmt.Errorf("running agent: %w", err)
	}

	log.Info("shadow agent stopped")
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func agentConfig(cfg *config.Config) agent.Config {
	return agent.Config{
		Thing: cfg.Device.ThingName,
		QoS:   byte(cfg.MQTT.QoS),
		Poses: shadow.Poses{
			Happy:   cfg.Servo.HappyAngle,
			Sad:     cfg.Servo.SadAngle,
			Neutral: cfg.Servo.NeutralAngle,
		},
		TickInterval:      cfg.Shadow.TickInterval,
		MinReportInterval: cfg.Shadow.MinReportInterval,
		GetRetryInterval:  cfg.Shadow.GetRetryInterval,
		QueueSize:         cfg.Shadow.QueueSize,
		Retention:         cfg.Database.Retention,
		SampleInterval:    cfg.InfluxDB.SampleInterval,
	}
}

// printJournal writes matching journal entries to w, newest first.
func printJournal(ctx context.Context, w io.Writer, configPath string, filter journal.Filter) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only command

	entries, err := journal.NewSQLiteRepository(db.DB).List(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing journal: %w", err)
	}

	enc := json.NewEncoder(w)
	for i := range entries {
		if err := enc.Encode(entries[i]); err != nil {
			return fmt.Errorf("writing entry: %w", err)
		}
	}
	return nil
}
