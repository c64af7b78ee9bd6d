package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GenAmed/pointage/internal/config"
	"github.com/GenAmed/pointage/internal/connectivity"
	"github.com/GenAmed/pointage/internal/location"
	"github.com/GenAmed/pointage/internal/model"
	"github.com/GenAmed/pointage/internal/remote"
	"github.com/GenAmed/pointage/internal/storage"
	"github.com/GenAmed/pointage/internal/syncer"
	"github.com/GenAmed/pointage/internal/tracker"
)

var (
	verbose      bool
	forceOffline bool
)

var rootCmd = &cobra.Command{
	Use:   "pointage",
	Short: "pointage - offline-first field time tracking",
	Long: `pointage records clock-in/out and break punches against worksites,
stores them durably on the device, and reconciles them with the hosted
workforce backend whenever connectivity allows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&forceOffline, "offline", false, "Treat the device as offline")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(breakCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the CLI's structured logger on stderr; stdout stays
// reserved for command output.
func newLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// engine bundles the wired components a command needs.
type engine struct {
	cfg     config.Config
	log     *zap.Logger
	queue   storage.Queue
	monitor connectivity.Monitor
	tracker *tracker.Tracker
	syncer  *syncer.Syncer
	client  *remote.Client // nil when not authenticated or no remote configured
	close   func()
}

// buildQueue selects the durable queue backend from config.
func buildQueue(cfg config.Config) (storage.Queue, func(), error) {
	path := cfg.Storage.Path
	switch cfg.Storage.Backend {
	case "sqlite":
		if path == "" {
			def, err := storage.DefaultSQLitePath()
			if err != nil {
				return nil, nil, err
			}
			path = def
		}
		s, err := storage.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "file", "":
		if path == "" {
			def, err := storage.DefaultPath()
			if err != nil {
				return nil, nil, err
			}
			path = def
		}
		return storage.NewFileStore(path), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildProvider selects the positioning source from config.
func buildProvider(cfg config.Config) location.Provider {
	if cfg.Location.Mode == "static" {
		return &location.StaticProvider{Coordinates: model.Coordinates{
			Latitude:  cfg.Location.Latitude,
			Longitude: cfg.Location.Longitude,
		}}
	}
	return location.NewHTTPProvider(cfg.Location.Endpoint)
}

// buildEngine wires queue, connectivity, location, remote and tracker for a
// one-shot command. probe controls whether reachability is checked now.
func buildEngine(ctx context.Context, probe bool) (*engine, error) {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("no user configured: set user_id in ~/.pointage/config.json or POINTAGE_USER_ID")
	}

	queue, closeQueue, err := buildQueue(cfg)
	if err != nil {
		return nil, err
	}

	var client *remote.Client
	var sync *syncer.Syncer
	healthURL := ""
	if cfg.Remote.URL != "" {
		deviceID, err := config.DeviceID()
		if err != nil {
			closeQueue()
			return nil, err
		}
		httpClient, authErr := remote.AuthenticatedHTTPClient(ctx, cfg.Remote.URL, cfg.Remote.APIKey)
		if authErr != nil {
			log.Debug("remote sync unavailable", zap.Error(authErr))
		} else {
			client = remote.NewClient(cfg.Remote.URL, cfg.Remote.APIKey, deviceID, httpClient)
			sync = syncer.New(queue, client, log)
			healthURL = client.HealthURL()
		}
	}

	var monitor connectivity.Monitor
	switch {
	case forceOffline || cfg.Remote.ForceOffline || healthURL == "":
		monitor = connectivity.NewStaticMonitor(false)
	case probe:
		monitor = connectivity.NewStaticMonitor(connectivity.CheckOnce(ctx, healthURL))
	default:
		monitor = connectivity.NewStaticMonitor(false)
	}

	var geocoder location.Geocoder
	if cfg.Location.GeocodeURL != "" {
		geocoder = location.NewNominatimGeocoder(cfg.Location.GeocodeURL)
	}

	trk, err := tracker.New(tracker.Config{
		UserID:   cfg.UserID,
		Queue:    queue,
		Location: buildProvider(cfg),
		Monitor:  monitor,
		Geocoder: geocoder,
		Syncer:   sync,
		Notifier: tracker.LogNotifier{Log: log},
		Logger:   log,
	})
	if err != nil {
		closeQueue()
		return nil, err
	}

	return &engine{
		cfg:     cfg,
		log:     log,
		queue:   queue,
		monitor: monitor,
		tracker: trk,
		syncer:  sync,
		client:  client,
		close: func() {
			_ = log.Sync()
			closeQueue()
		},
	}, nil
}
