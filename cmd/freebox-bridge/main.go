// Freebox Bridge - router to MQTT adapter
//
// This is the main entry point for the Freebox Bridge application.
// The bridge polls one Freebox router over its local HTTP API, publishes
// atomic state snapshots and health to MQTT, and executes commands
// (reboot, Wi-Fi, LEDs) received from the broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/freebox-bridge/migrations"

	"github.com/nerrad567/freebox-bridge/internal/bridge"
	"github.com/nerrad567/freebox-bridge/internal/credentials"
	"github.com/nerrad567/freebox-bridge/internal/freebox"
	"github.com/nerrad567/freebox-bridge/internal/infrastructure/config"
	"github.com/nerrad567/freebox-bridge/internal/infrastructure/database"
	"github.com/nerrad567/freebox-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/freebox-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/freebox-bridge/internal/infrastructure/mqtt"
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

// healthReportInterval is how often the retained health payload refreshes.
const healthReportInterval = 60 * time.Second

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Freebox Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and run migrations; it holds the app token, so this
	// happens before anything touches the router.
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Discover the router's API version; a failure here falls back to the
	// default base path so a temporarily unreachable router does not stop
	// startup when credentials already exist.
	transport := freebox.NewTransport(cfg.Device, cfg.GetRequestTimeout())
	if _, discoverErr := transport.Discover(ctx); discoverErr != nil {
		log.Warn("API discovery failed, using default base path", "error", discoverErr)
	}

	auth := freebox.NewAuthenticator(transport, cfg.App)
	auth.SetLogger(log)

	appCreds, err := loadOrRegister(ctx, credentials.NewRepository(db.DB), auth, cfg, log)
	if err != nil {
		return fmt.Errorf("obtaining router credentials: %w", err)
	}

	sessions := freebox.NewSessionManager(auth, appCreds)
	sessions.SetLogger(log)
	gateway := freebox.NewGateway(transport, sessions)
	gateway.SetLogger(log)

	// Best-effort logout so the router does not accumulate dead sessions.
	defer func() {
		if token := sessions.Current(); token != nil {
			logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer logoutCancel()
			if logoutErr := auth.Logout(logoutCtx, token.Token); logoutErr != nil {
				log.Debug("logout failed", "error", logoutErr)
			}
		}
	}()

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var metrics bridge.MetricsWriter
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		influxClient = nil
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
		metrics = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	deviceKey := fmt.Sprintf("%s:%d", cfg.Device.Host, cfg.Device.Port)
	qos := byte(cfg.MQTT.QoS)

	coordinator := bridge.NewCoordinator(bridge.CoordinatorOptions{
		Client:          gateway,
		Publisher:       mqttClient,
		Metrics:         metrics,
		Device:          deviceKey,
		Interval:        cfg.GetPollInterval(),
		ResourceTimeout: cfg.GetResourceTimeout(),
		StaleAfter:      cfg.GetStaleAfter(),
		QoS:             qos,
		TrackLanDevices: cfg.Poll.TrackLanDevices,
		TrackCallLog:    cfg.Poll.TrackCallLog,
		Logger:          log,
	})

	// A mutation may renew the session and retry once, so the command
	// deadline covers two round trips.
	dispatcher := bridge.NewDispatcher(gateway, 2*cfg.GetRequestTimeout(), log)

	health := bridge.NewHealthReporter(bridge.HealthReporterOptions{
		Publisher:   mqttClient,
		Store:       coordinator.Store(),
		Coordinator: coordinator,
		Version:     version,
		Interval:    healthReportInterval,
		QoS:         qos,
		Logger:      log,
	})

	br := bridge.New(bridge.BridgeOptions{
		MQTT:        mqttClient,
		Coordinator: coordinator,
		Dispatcher:  dispatcher,
		Health:      health,
		QoS:         qos,
		Logger:      log,
	})
	if err := br.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		br.Stop()
	}()

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		health.PublishNow()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// loadOrRegister returns the stored app credentials for this router, or
// runs the one-time registration flow when none exist. Registration
// requires the user to confirm on the router's front panel.
func loadOrRegister(ctx context.Context, repo *credentials.SQLiteRepository, auth *freebox.Authenticator, cfg *config.Config, log *logging.Logger) (*freebox.AppCredentials, error) {
	deviceKey := fmt.Sprintf("%s:%d", cfg.Device.Host, cfg.Device.Port)

	stored, err := repo.Get(ctx, deviceKey)
	if err == nil {
		log.Info("using stored credentials", "device", deviceKey, "app_id", stored.AppID)
		return &freebox.AppCredentials{
			AppID:    stored.AppID,
			AppToken: stored.AppToken,
			TrackID:  stored.TrackID,
		}, nil
	}
	if !errors.Is(err, credentials.ErrNotFound) {
		return nil, err
	}

	log.Info("no stored credentials, starting registration",
		"device", deviceKey,
		"hint", "confirm access on the router front panel",
	)
	granted, err := auth.Register(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if saveErr := repo.Save(ctx, &credentials.Credentials{
		DeviceKey: deviceKey,
		AppID:     granted.AppID,
		AppToken:  granted.AppToken,
		TrackID:   granted.TrackID,
		GrantedAt: now,
		UpdatedAt: now,
	}); saveErr != nil {
		return nil, fmt.Errorf("persisting credentials: %w", saveErr)
	}
	log.Info("registration granted", "device", deviceKey, "app_id", granted.AppID)
	return granted, nil
}

// getConfigPath returns the configuration file path.
// Uses FBXBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FBXBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
