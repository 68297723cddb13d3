package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/if-inbounds/internal/api"
	"github.com/yegors/if-inbounds/internal/cache"
	"github.com/yegors/if-inbounds/internal/config"
	"github.com/yegors/if-inbounds/internal/ifapi"
	"github.com/yegors/if-inbounds/internal/inbound"
	"github.com/yegors/if-inbounds/internal/proxy"
	"github.com/yegors/if-inbounds/internal/storage/sqlite"
	"github.com/yegors/if-inbounds/internal/tracker"
	"github.com/yegors/if-inbounds/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML config file")
	icao := flag.String("icao", "", "airport to start tracking at boot (defaults to the remembered one)")
	flag.Parse()

	if err := run(*configPath, *icao); err != nil {
		fmt.Fprintf(os.Stderr, "if-inbounds: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, icao string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	db, err := sqlite.Open(cfg.Storage.Path, log)
	if err != nil {
		return err
	}
	defer db.Close()

	prefs, err := sqlite.NewPreferenceStorage(db, log)
	if err != nil {
		return err
	}
	airports, err := sqlite.NewAirportStorage(db, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := prefs.PurgeExpired(ctx); err != nil {
		log.Warn("Failed to purge expired preferences", logger.Error(err))
	}

	client := ifapi.NewClient(cfg.API, log)
	if !client.HasAPIKey() {
		log.Warn("No API key configured, upstream requests will be rejected")
	}

	store := cache.NewStore(cache.ExpirationsFrom(cfg.Cache))
	aggregator := inbound.NewAggregator(client, store, airports, cfg.Cache, log)
	trk := tracker.New(aggregator, cfg.Tracker, log)
	defer trk.Stop()

	if icao == "" {
		icao = rememberedICAO(ctx, prefs, log)
	}
	if icao != "" {
		if err := trk.Start(ctx, icao); err != nil {
			log.Warn("Failed to start tracking at boot", logger.String("icao", icao), logger.Error(err))
		}
	}

	router := api.NewRouter(aggregator, trk, prefs, proxy.New(client, log).Routes(), cfg, log)
	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router.Routes(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server",
			logger.String("address", server.Addr),
			logger.String("session", client.SessionID()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	trk.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// rememberedICAO returns the last airport searched for, if it has not expired
func rememberedICAO(ctx context.Context, prefs *sqlite.PreferenceStorage, log *logger.Logger) string {
	record, err := prefs.GetPreference(ctx, "icao")
	if err != nil {
		log.Warn("Failed to read remembered airport", logger.Error(err))
		return ""
	}
	if record == nil {
		return ""
	}
	var icao string
	if err := json.Unmarshal([]byte(record.Value), &icao); err != nil {
		return ""
	}
	return icao
}
