// Gray Media Core - renderer identification service.
//
// graymedia loads the renderer profiles, applies the configured default and
// address override policy, and serves identification over the HTTP API.
// Policy changes arrive through the admin API or the MQTT config topic.
//
// Usage:
//
//	graymedia                       run the service
//	graymedia token -role admin     print a signed API token
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-media-core/migrations"

	"github.com/nerrad567/gray-media-core/internal/api"
	"github.com/nerrad567/gray-media-core/internal/auth"
	"github.com/nerrad567/gray-media-core/internal/identify"
	"github.com/nerrad567/gray-media-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-media-core/internal/infrastructure/database"
	"github.com/nerrad567/gray-media-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-media-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-media-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-media-core/internal/renderer"
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

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Media Core",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Renderer profiles and policy
	custom := renderer.NewSQLiteRepository(db.DB)
	reg, err := identify.LoadRegistry(ctx, identify.ProfileSources{
		Dir:    cfg.Renderers.ProfileDir,
		Custom: custom,
	}, log)
	if err != nil {
		return fmt.Errorf("loading renderer profiles: %w", err)
	}

	opts := []renderer.Option{
		renderer.WithLogger(log),
		renderer.WithCacheLimit(cfg.Renderers.CacheSize),
	}
	if cfg.Renderers.ReportAmbiguous {
		opts = append(opts, renderer.WithAmbiguityHook(identify.AmbiguityLogger(log)))
	}
	resolver := renderer.NewResolver(reg, renderer.Policy{
		DefaultRenderer: cfg.Renderers.Default,
		ForceDefault:    cfg.Renderers.ForceDefault,
		ForceIP:         cfg.Renderers.ForceIP,
	}, opts...)

	stats := resolver.LastRebuild()
	log.Info("renderer profiles loaded",
		"profiles", reg.Len(),
		"override_exact", stats.Exact,
		"override_ranges", stats.Ranges,
		"override_dropped", stats.Dropped,
		"force_default", cfg.Renderers.ForceDefault,
	)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
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
	} else {
		log.Info("InfluxDB disabled")
	}

	hub := api.NewHub(cfg.WebSocket, log)

	// Optional collaborators are only set when present; a typed nil would
	// defeat the service's nil checks.
	deps := identify.Deps{
		Resolver:   resolver,
		Custom:     custom,
		Hub:        hub,
		ProfileDir: cfg.Renderers.ProfileDir,
		Logger:     log,
	}
	if cfg.Renderers.RecordSightings {
		deps.Sightings = identify.NewSQLiteSightingStore(db.DB)
	}
	if mqttClient != nil {
		deps.Publisher = mqttClient
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}

	svc, err := identify.NewService(deps)
	if err != nil {
		return fmt.Errorf("creating identify service: %w", err)
	}
	defer svc.Close()

	if mqttClient != nil {
		watcher := identify.NewWatcher(svc, mqttClient, byte(cfg.MQTT.QoS), log) //nolint:gosec // QoS validated to 0-2
		if startErr := watcher.Start(); startErr != nil {
			return fmt.Errorf("starting config watcher: %w", startErr)
		}
		defer func() {
			if stopErr := watcher.Stop(); stopErr != nil {
				log.Warn("error stopping config watcher", "error", stopErr)
			}
		}()
		svc.PublishPolicy(svc.PolicyState())
	}

	apiDeps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Identify:    svc,
		DB:          db,
		ExternalHub: hub,
		Version:     version,
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
	}
	if influxClient != nil {
		apiDeps.InfluxDB = influxClient
	}

	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Media Core stopped")
	return nil
}

// runToken prints a signed API token for the configured JWT secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	role := fs.String("role", string(auth.RoleAdmin), "token role (viewer or admin)")
	subject := fs.String("subject", "operator", "token subject")
	ttl := fs.Int("ttl", 0, "lifetime in minutes (default: security.jwt.access_token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	minutes := *ttl
	if minutes <= 0 {
		minutes = cfg.Security.JWT.AccessTokenTTL
	}

	token, err := auth.GenerateAccessToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, minutes)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// getConfigPath returns the configuration file path.
// Uses GRAYMEDIA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYMEDIA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. The MQTT and InfluxDB
// clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
