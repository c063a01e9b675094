// Ironlatch Core - Entry-Control Management
//
// This is the main entry point for the Ironlatch Core application.
// Ironlatch manages numeric user codes on entry-control devices:
//   - Capability-aware code provisioning across protocol generations
//   - Persisted endpoint state with differential resynchronization
//   - Offline-first operation against a local MQTT gateway
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/ironlatch/ironlatch-core/migrations"

	"github.com/ironlatch/ironlatch-core/internal/gateway"
	"github.com/ironlatch/ironlatch-core/internal/infrastructure/config"
	"github.com/ironlatch/ironlatch-core/internal/infrastructure/database"
	"github.com/ironlatch/ironlatch-core/internal/infrastructure/influxdb"
	"github.com/ironlatch/ironlatch-core/internal/infrastructure/logging"
	"github.com/ironlatch/ironlatch-core/internal/infrastructure/mqtt"
	"github.com/ironlatch/ironlatch-core/internal/usercode"
	"github.com/ironlatch/ironlatch-core/internal/valuestore"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// managedLock bundles one endpoint's transport and manager.
type managedLock struct {
	name    string
	client  *gateway.Client
	manager *usercode.Manager
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Ironlatch Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise the endpoint value store
	repo := valuestore.NewSQLiteRepository(db.DB)
	store := valuestore.NewStore(repo)
	store.SetLogger(log)

	if refreshErr := store.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading value store: %w", refreshErr)
	}
	log.Info("value store initialised", "values", store.Count())

	// Connect to MQTT broker under the configured topic prefix
	topics := mqtt.NewTopics(cfg.Gateway.TopicPrefix)
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_prefix", topics.Prefix(),
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Bring up each configured lock endpoint
	locks, err := startLocks(cfg, mqttClient, topics, influxClient, store, log)
	if err != nil {
		return fmt.Errorf("starting locks: %w", err)
	}
	defer func() {
		for _, lock := range locks {
			if closeErr := lock.client.Close(); closeErr != nil {
				log.Error("error closing gateway client", "lock", lock.name, "error", closeErr)
			}
		}
	}()
	log.Info("locks initialised", "count", len(locks))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Initial full synchronization for every endpoint
	for _, lock := range locks {
		stats, syncErr := lock.manager.Synchronize(ctx, true)
		if syncErr != nil {
			log.Error("initial synchronization failed", "lock", lock.name, "error", syncErr)
			continue
		}
		log.Info("initial synchronization complete",
			"lock", lock.name,
			"run_id", stats.RunID,
			"requests", stats.Requests,
			"codes_seen", stats.CodesSeen,
		)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Periodic differential resync until shutdown
	runResyncLoop(ctx, cfg.GetResyncInterval(), locks, log)

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Gateway clients
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("Ironlatch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IRONLATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IRONLATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startLocks creates a gateway client and user code manager for every
// configured lock endpoint.
func startLocks(cfg *config.Config, mqttClient *mqtt.Client, topics mqtt.Topics, influxClient *influxdb.Client, store *valuestore.Store, log *logging.Logger) ([]managedLock, error) {
	locks := make([]managedLock, 0, len(cfg.Gateway.Locks))

	for _, lockCfg := range cfg.Gateway.Locks {
		client, err := gateway.NewClient(mqttClient, topics, lockCfg.NodeID, lockCfg.Endpoint, cfg.GetResponseTimeout())
		if err != nil {
			// Release clients brought up so far
			for _, lock := range locks {
				_ = lock.client.Close()
			}
			return nil, fmt.Errorf("lock %q: %w", lockCfg.Name, err)
		}
		client.SetLogger(log)

		mgr := usercode.NewManager(uint8(lockCfg.Endpoint), lockCfg.ProtocolVersion, client, store)
		mgr.SetLogger(log)
		mgr.SetClearPadding(cfg.UserCode.ClearCodeNullPadding)
		if influxClient != nil {
			mgr.SetRecorder(influxdb.NewSyncRecorder(influxClient, lockCfg.NodeID))
		}

		log.Info("lock configured",
			"name", lockCfg.Name,
			"node_id", lockCfg.NodeID,
			"endpoint", lockCfg.Endpoint,
			"protocol_version", lockCfg.ProtocolVersion,
		)

		locks = append(locks, managedLock{
			name:    lockCfg.Name,
			client:  client,
			manager: mgr,
		})
	}

	return locks, nil
}

// runResyncLoop re-runs differential synchronization on a timer until the
// context is cancelled. An interval of zero disables periodic resync and
// the loop just waits for shutdown.
func runResyncLoop(ctx context.Context, interval time.Duration, locks []managedLock, log *logging.Logger) {
	if interval <= 0 || len(locks) == 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, lock := range locks {
				stats, err := lock.manager.Synchronize(ctx, false)
				if err != nil {
					log.Error("resync failed", "lock", lock.name, "error", err)
					continue
				}
				log.Info("resync complete",
					"lock", lock.name,
					"run_id", stats.RunID,
					"skipped", stats.Skipped,
					"requests", stats.Requests,
				)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
