package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"climate_hub/internal/availability"
	"climate_hub/internal/dispatch"
	"climate_hub/internal/handlers"
	"climate_hub/internal/logger"
	"climate_hub/internal/models"
	"climate_hub/internal/poll"
	"climate_hub/internal/push"
	"climate_hub/internal/repository"
	"climate_hub/internal/server"
	"climate_hub/internal/service"
	"climate_hub/internal/store"
	"climate_hub/internal/transport"

	"github.com/spf13/viper"
)

const saveBacklog = 128

func main() {
	// load config.yml first; the logger needs level and file from it
	if err := loadConfig(); err != nil {
		logger.Get("info", "").Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"), viper.GetString("log.file"))

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(db)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// canonical store, warm-started from the last persisted snapshot so
	// reads work before the first upstream fetch completes
	st := store.New()
	warmStart(ctx, st, repos, log)
	startPersistence(ctx, st, repos, log)

	tracker := availability.NewTracker(availability.Policy{
		Threshold: viper.GetDuration("availability.threshold"),
		MaxErrors: viper.GetInt("availability.max_errors"),
	})

	// upstream transports
	timeout := viper.GetDuration("upstream.timeout")
	creds := transport.Credentials{
		Username: viper.GetString("upstream.username"),
		Password: viper.GetString("upstream.password"),
	}
	auth := transport.NewRESTAuth(viper.GetString("upstream.auth_url"), timeout)
	tokens := transport.NewTokenSource(auth, creds, viper.GetDuration("upstream.token_margin"))
	rest := transport.NewRESTClient(viper.GetString("upstream.base_url"), timeout)
	catalog := transport.NewCachedCatalog(viper.GetString("upstream.base_url"), timeout)

	realtime, err := newRealtime(log)
	if err != nil {
		log.Fatalw("failed to configure realtime transport", "err", err)
	}

	// ingestion channels
	pushCh := push.New(tokens, realtime, rest, st, tracker, repos.Events, log, push.Config{
		BackoffBase:   viper.GetDuration("push.backoff_base"),
		BackoffMax:    viper.GetDuration("push.backoff_max"),
		BackoffFactor: viper.GetFloat64("push.backoff_factor"),
		BackoffJitter: viper.GetFloat64("push.backoff_jitter"),
		HealthyAfter:  viper.GetDuration("push.healthy_after"),
	})
	go pushCh.Run(ctx)

	poller := poll.New(tokens, rest, st, tracker, log, poll.Config{
		Interval:    viper.GetDuration("poll.interval"),
		Concurrency: viper.GetInt("poll.concurrency"),
	})
	go poller.Run(ctx)

	dispatcher := dispatch.New(st, catalog, pushCh, rest, tokens, repos.Events, log, dispatch.Config{
		ConfirmTimeout: viper.GetDuration("dispatch.confirm_timeout"),
	})

	services := service.NewService(st, tracker, pushCh, dispatcher, repos, service.AuthConfig{
		Username:     viper.GetString("api.username"),
		PasswordHash: viper.GetString("api.password_hash"),
		SigningKey:   viper.GetString("api.signing_key"),
		TokenTTL:     viper.GetDuration("api.token_ttl"),
	})
	apiHandler := handlers.NewHandler(services, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, dispatcher, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "climate_hub.db")
		dbPath = "climate_hub.db"
	}
	return repository.InitDB(dbPath)
}

// newRealtime selects the push transport from configuration.
func newRealtime(log *logger.Logger) (transport.Realtime, error) {
	kind := viper.GetString("upstream.realtime")
	switch kind {
	case "mqtt":
		return transport.NewMQTTRealtime(
			viper.GetString("mqtt.broker"),
			viper.GetString("mqtt.client_id"),
			viper.GetString("mqtt.topic_prefix"),
		), nil
	case "", "websocket":
		if kind == "" {
			log.Infow("upstream.realtime not set; defaulting to websocket")
		}
		return transport.NewWSRealtime(viper.GetString("upstream.ws_url")), nil
	default:
		return nil, fmt.Errorf("unknown realtime transport %q", kind)
	}
}

// warmStart replays persisted snapshots into the store with their
// original source and clock, so the merge rules treat fresher live data
// the same way they would after any reconnect.
func warmStart(ctx context.Context, st *store.DeviceStore, repos *repository.Repository, log *logger.Logger) {
	devices, err := repos.Devices.LoadAll(ctx)
	if err != nil {
		log.Errorw("warm start skipped", "err", err)
		return
	}
	for _, dev := range devices {
		st.Merge(dev.ID, models.SnapshotUpdate(dev), dev.ConnectionSource, dev.LastUpdated)
	}
	if len(devices) > 0 {
		log.Infow("warm start complete", "devices", len(devices))
	}
}

// startPersistence saves accepted merges in the background. Store
// callbacks must not block, so updates queue into a buffered channel;
// a dropped save only delays persistence until the device's next merge.
func startPersistence(ctx context.Context, st *store.DeviceStore, repos *repository.Repository, log *logger.Logger) {
	saves := make(chan models.Device, saveBacklog)
	st.Subscribe(func(dev models.Device) {
		select {
		case saves <- dev:
		default:
		}
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case dev := <-saves:
				if err := repos.Devices.Save(ctx, dev); err != nil {
					log.Errorw("snapshot save failed", "device", dev.ID, "err", err)
				}
			}
		}
	}()
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, d *dispatch.Dispatcher, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines and fail pending commands
	cancel()
	d.Close()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
