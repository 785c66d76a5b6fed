// Gray Logic Voice Bridge
//
// The bridge lets voice assistants control the house by name: "accendi la
// luce da pranzo", "tapparella cucina sud al 40%". It resolves the spoken
// name against the room/device catalog, updates the state document and
// announces the change over MQTT, WebSocket, InfluxDB and the controller
// link.
//
// Usage:
//
//	graylogic-bridge                      run the bridge
//	graylogic-bridge token -subject NAME  print an API token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-bridge/migrations"

	"github.com/nerrad567/gray-logic-bridge/internal/api"
	"github.com/nerrad567/gray-logic-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-bridge/internal/auth"
	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/control"
	"github.com/nerrad567/gray-logic-bridge/internal/controller"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bridge/internal/resolve"
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

// controllerStopTimeout bounds the wait for the controller link to exit.
const controllerStopTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = runToken(os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic voice bridge",
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

	// Audit database
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
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// MQTT (optional)
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

	// InfluxDB (optional)
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

	// Controller link (optional), started once the service exists
	var link *controller.Link
	if cfg.Controller.Enabled {
		link = controller.New(cfg.Controller)
		link.SetLogger(log)
	} else {
		log.Info("controller link disabled")
	}

	// Catalog
	store := catalog.NewStore(catalog.StoreConfig{
		StatePath:   cfg.Catalog.StatePath,
		AliasesPath: cfg.Catalog.AliasesPath,
	})
	store.SetLogger(log)
	if doc, loadErr := store.LoadDocument(ctx); loadErr != nil {
		if !errors.Is(loadErr, catalog.ErrStateNotFound) {
			return fmt.Errorf("loading state document: %w", loadErr)
		}
		log.Warn("state document not found, commands will fail until it exists", "path", cfg.Catalog.StatePath)
	} else {
		log.Info("catalog loaded",
			"path", cfg.Catalog.StatePath,
			"rooms", len(doc.Catalog.Rooms),
			"devices", doc.Catalog.DeviceCount(),
			"scenes", len(doc.Scenes),
		)
	}

	engine := resolve.NewEngine(resolve.NewCategory(
		catalog.KindBlind,
		cfg.Catalog.Blinds.Triggers,
		cfg.Catalog.Blinds.Qualifiers,
	))

	hub := api.NewHub(log)
	go hub.Run(ctx)

	svc, err := control.New(serviceDeps(store, engine, auditRepo, hub, mqttClient, influxClient, link, log))
	if err != nil {
		return fmt.Errorf("creating command service: %w", err)
	}

	if mqttClient != nil {
		topic := mqtt.Topics{}.AllFieldStates()
		// #nosec G115 -- QoS validated to 0..2
		if subErr := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), svc.HandleFieldState(ctx)); subErr != nil {
			return fmt.Errorf("subscribing to field state: %w", subErr)
		}
		log.Info("subscribed to field state reports", "topic", topic)
	}

	if link != nil {
		link.SetOnState(svc.HandleControllerState)

		linkCtx, stopLink := context.WithCancel(ctx)
		linkDone := make(chan struct{})
		go func() {
			defer close(linkDone)
			link.Run(linkCtx)
		}()
		defer func() {
			log.Info("stopping controller link")
			stopLink()
			select {
			case <-linkDone:
			case <-time.After(controllerStopTimeout):
				log.Warn("controller link did not stop in time")
			}
		}()
		log.Info("controller link started", "url", cfg.Controller.URL)
	}

	// HTTP API
	apiDeps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Service:     svc,
		Store:       store,
		Audit:       auditRepo,
		DB:          db,
		ExternalHub: hub,
		Version:     version,
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
	}
	if influxClient != nil {
		apiDeps.InfluxDB = influxClient
		apiDeps.History = influxClient
	}
	if link != nil {
		apiDeps.Controller = link
	}

	server, err := api.New(apiDeps)
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

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed", "auth", cfg.AuthEnabled())

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse order: API server, controller link,
	// InfluxDB, MQTT, database.

	log.Info("Gray Logic voice bridge stopped")
	return nil
}

// serviceDeps wires the optional collaborators. A nil client stays out of
// the interface fields so the service sees it as disabled.
func serviceDeps(
	store *catalog.Store,
	engine *resolve.Engine,
	auditRepo audit.Repository,
	hub *api.Hub,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	link *controller.Link,
	log *logging.Logger,
) control.Deps {
	deps := control.Deps{
		Store:    store,
		Engine:   engine,
		Audit:    auditRepo,
		Notifier: hub,
		Logger:   log,
	}
	if mqttClient != nil {
		deps.Publisher = mqttClient
	}
	if influxClient != nil {
		deps.Metrics = influxClient
	}
	if link != nil {
		deps.Forwarder = link
	}
	return deps
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. Nil clients are
// disabled and skipped.
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

// runToken prints a signed API token for -subject.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "", "caller name recorded in the audit log (required)")
	ttl := fs.Duration("ttl", 0, "token lifetime, e.g. 720h (default security.jwt.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.AuthEnabled() {
		return errors.New("security.jwt.secret is not set; the API accepts requests without a token")
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.GetTokenTTL()
	}

	token, err := auth.GenerateToken(*subject, cfg.Security.JWT.Secret, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
