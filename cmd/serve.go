package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GenAmed/pointage/internal/config"
	"github.com/GenAmed/pointage/internal/connectivity"
	"github.com/GenAmed/pointage/internal/location"
	"github.com/GenAmed/pointage/internal/remote"
	"github.com/GenAmed/pointage/internal/server"
	"github.com/GenAmed/pointage/internal/syncer"
	"github.com/GenAmed/pointage/internal/tracker"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the UI-facing agent (HTTP API + event feed)",
	Long: `serve runs pointage as a long-lived agent for the mobile UI shell:
punch operations and status over a loopback HTTP API, a websocket feed of
tracker events, and automatic reconciliation whenever connectivity returns.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.UserID == "" {
		return fmt.Errorf("no user configured: set user_id in ~/.pointage/config.json or POINTAGE_USER_ID")
	}

	queue, closeQueue, err := buildQueue(cfg)
	if err != nil {
		return err
	}
	defer closeQueue()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sync *syncer.Syncer
	healthURL := ""
	if cfg.Remote.URL != "" {
		deviceID, err := config.DeviceID()
		if err != nil {
			return err
		}
		httpClient, authErr := remote.AuthenticatedHTTPClient(ctx, cfg.Remote.URL, cfg.Remote.APIKey)
		if authErr != nil {
			return fmt.Errorf("serve mode needs backend access: %w", authErr)
		}
		client := remote.NewClient(cfg.Remote.URL, cfg.Remote.APIKey, deviceID, httpClient)
		sync = syncer.New(queue, client, log)
		healthURL = client.HealthURL()
	} else {
		return fmt.Errorf("no backend configured: set remote.url in ~/.pointage/config.json")
	}

	var monitor connectivity.Monitor
	if forceOffline || cfg.Remote.ForceOffline {
		monitor = connectivity.NewStaticMonitor(false)
	} else {
		probe := connectivity.NewProbeMonitor(healthURL,
			time.Duration(cfg.Remote.ProbeIntervalSeconds)*time.Second, log)
		probe.Start(ctx)
		defer probe.Stop()
		monitor = probe
	}

	var geocoder location.Geocoder
	if cfg.Location.GeocodeURL != "" {
		geocoder = location.NewNominatimGeocoder(cfg.Location.GeocodeURL)
	}

	hub := server.NewHub(log)
	trk, err := tracker.New(tracker.Config{
		UserID:   cfg.UserID,
		Queue:    queue,
		Location: buildProvider(cfg),
		Monitor:  monitor,
		Geocoder: geocoder,
		Syncer:   sync,
		Notifier: hub,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	srv := server.New(trk, sync, monitor, hub, log)
	srv.Start()
	defer srv.Stop()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("agent listening", zap.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
