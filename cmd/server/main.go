package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codeBaron-dev/Rider/internal/config"
	"github.com/codeBaron-dev/Rider/internal/dispatch"
	httpapi "github.com/codeBaron-dev/Rider/internal/http"
	"github.com/codeBaron-dev/Rider/internal/ingest"
	"github.com/codeBaron-dev/Rider/internal/location"
	"github.com/codeBaron-dev/Rider/internal/logging"
	"github.com/codeBaron-dev/Rider/internal/matcher"
	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/places"
	"github.com/codeBaron-dev/Rider/internal/pricing"
	"github.com/codeBaron-dev/Rider/internal/ride"
	"github.com/codeBaron-dev/Rider/internal/simulator"
	"github.com/codeBaron-dev/Rider/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("rider-api", cfg.LogLevel)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		locations storage.LocationStore = storage.NewMemoryLocationStore()
		drivers   storage.DriverStore   = storage.NewMemoryDriverStore()
	)

	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN, logger)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		if cfg.RunMigrations {
			if err := ps.Migrate(ctx); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		locations = ps
		drivers = ps.Drivers()
	}

	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("redis unavailable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		drivers = storage.NewRedisDriverStore(rc, cfg.RedisGeoKey)
		logger.Info("driver roster backed by redis", "addr", cfg.RedisAddr, "key", cfg.RedisGeoKey)
	}

	var (
		lookup   places.Lookup = places.Disabled{}
		geocoder location.Geocoder
	)
	if cfg.GoogleMapsAPIKey != "" {
		client, err := places.NewMapsClient(cfg.GoogleMapsAPIKey)
		if err != nil {
			logger.Error("maps client", "error", err)
			os.Exit(1)
		}
		lookup = places.NewGoogleLookup(client)
		geocoder = places.NewGoogleGeocoder(client)
	} else {
		logger.Warn("GOOGLE_MAPS_API_KEY not set, places lookup and geocoding disabled")
	}

	var positions ride.PositionSink
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		positions = kp
	}

	pricer := pricing.NewEngine(pricing.WallClock{Location: cfg.SurgeLocation()})
	provider := location.NewStaticProvider(
		models.Coord{Lat: cfg.RiderLat, Lon: cfg.RiderLon},
		cfg.RiderPermission,
		geocoder,
		logger,
	)

	opts := ride.DefaultOptions()
	opts.Movement = simulator.Options{
		StepMeters:             cfg.StepMeters,
		TickInterval:           cfg.TickInterval,
		ArrivalThresholdMeters: cfg.ArrivalThresholdMeters,
		SpeedKmh:               cfg.AverageSpeedKmh,
	}
	machine, err := ride.New(ride.Deps{
		Locations: locations,
		Drivers:   drivers,
		Provider:  provider,
		Places:    lookup,
		Simulator: simulator.New(pricer, logger),
		Positions: positions,
		Logger:    logger,
	}, opts)
	if err != nil {
		logger.Error("ride machine", "error", err)
		os.Exit(1)
	}
	if err := machine.Start(ctx); err != nil {
		logger.Error("ride machine start", "error", err)
		os.Exit(1)
	}

	wsreg := dispatch.NewWSRegistry(logger)
	ranker := &matcher.Service{Pricer: pricer, SpeedKmh: cfg.AverageSpeedKmh}
	srv := httpapi.NewServer(machine, ranker, wsreg, logger)
	go srv.PumpNavigation(ctx)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rider api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	wsreg.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	machine.Stop()
	machine.Wait()
	logger.Info("bye")
}
