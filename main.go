package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nmcweather/api"
	"nmcweather/config"
	"nmcweather/internal/geo"
	"nmcweather/internal/logger"
	"nmcweather/internal/scheduler"
	"nmcweather/internal/weather"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", getDefaultConfigPath(), "Path to TOML configuration file")
	envFile := flag.String("env", ".env", "Path to an optional .env file with NMC_* overrides")
	logLevel := flag.String("log-level", "", "Logging level (debug, info, warn, error), overrides the config")
	logFile := flag.String("log-file", "", "Log output file (default: per config)")
	generateConfig := flag.Bool("generate-config", false, "Generate a sample configuration file and exit")
	lat := flag.Float64("lat", 0, "Latitude to reverse geocode")
	lon := flag.Float64("lon", 0, "Longitude to reverse geocode")
	province := flag.String("province", "", "Province of the placemark (empty for municipalities)")
	city := flag.String("city", "", "City of the placemark")
	district := flag.String("district", "", "District of the placemark")
	watch := flag.Bool("watch", false, "Keep running and refresh on the configured schedule")
	flag.Parse()

	if *generateConfig {
		if err := config.GenerateSampleConfig(*configPath); err != nil {
			logger.Fatal("Failed to generate sample config: %v", err)
		}
		logger.Info("Sample configuration file created at: %s", *configPath)
		logger.Info("Please edit the file to set your location and fallback station")
		return
	}

	if err := config.LoadEnvFiles(*envFile); err != nil {
		logger.Warn("Ignoring environment file: %v", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		var configNotFound *config.ConfigNotFoundError
		if errors.As(err, &configNotFound) {
			logger.Fatal("%v", err)
		} else {
			logger.Fatal("Failed to load configuration: %v", err)
		}
	}

	applyFlagOverrides(cfg, *lat, *lon, *province, *city, *district)
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.Directory = filepath.Dir(*logFile)
		cfg.Logging.FilenamePattern = filepath.Base(*logFile)
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Configuration validation failed: %v", err)
	}

	if err := logger.Initialize(logger.Config{
		Enabled:         cfg.Logging.Enabled,
		Directory:       cfg.Logging.Directory,
		FilenamePattern: cfg.Logging.FilenamePattern,
		Level:           cfg.Logging.Level,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		ConsoleOutput:   cfg.Logging.ConsoleOutput,
	}); err != nil {
		logger.Fatal("Failed to initialize logging: %v", err)
	}
	defer logger.Get().Close()

	logger.Info("NMC Weather")
	logger.Debug("Configuration loaded and validated from: %s", *configPath)

	app := newApp(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.update(ctx)
	if !*watch {
		return
	}

	refresher := scheduler.New(ctx, cfg.Schedule.Refresh, app.refresh)
	if err := refresher.Start(); err != nil {
		logger.Fatal("Failed to start scheduler: %v", err)
	}
	logger.Info("Watching for updates (%s), press Ctrl+C to stop", cfg.Schedule.Refresh)

	<-ctx.Done()
	refresher.Stop()
	logger.Info("Stopped")
}

// app wires the configured components together
type app struct {
	cfg      *config.Config
	geocoder *api.Geocoder
	updater  *weather.Updater
}

func newApp(cfg *config.Config) *app {
	nmc := api.NewNMCClient(api.Endpoints{
		ProvinceURL:   cfg.Endpoints.ProvinceURL,
		RealtimeURL:   cfg.Endpoints.RealtimeURL,
		DetailURL:     cfg.Endpoints.DetailURL,
		AirQualityURL: cfg.Endpoints.AirQualityURL,
	}, seconds(cfg.Network.TimeoutSeconds))

	bootstrapper := geo.NewBootstrapper(nmc)
	bootstrapper.StageTimeout = seconds(cfg.Network.StageTimeoutSeconds)
	bootstrapper.MaxConcurrent = cfg.Network.MaxConcurrent
	directory := geo.NewService(geo.NewCache(cfg.Cache.Directory), bootstrapper)

	fallback := fallbackLocation(cfg.Fallback)
	client := weather.NewClient(nmc, weather.NewSnapshot(fallback))
	client.RefreshTimeout = seconds(cfg.Network.RefreshTimeoutSeconds)

	return &app{
		cfg:      cfg,
		geocoder: api.NewGeocoder(cfg.Endpoints.GeocodeURL, cfg.Network.UserAgent, cfg.Location.Language),
		updater:  weather.NewUpdater(directory, client, fallback),
	}
}

// update resolves the configured location and refreshes it, falling back to
// the last known station when resolution fails
func (a *app) update(ctx context.Context) {
	placemark, err := a.placemark(ctx)
	if err != nil {
		logger.Warn("Could not determine placemark, using last known station: %v", err)
	}

	if err := a.updater.ResolveAndRefresh(ctx, placemark, nil); err != nil {
		logger.Warn("Location not resolved, refreshing %s instead: %v", a.updater.Location().CityName, err)
		a.updater.RefreshByLastKnownStation(ctx, nil)
	}
	printReport(os.Stdout, a.updater.Snapshot())
}

// refresh is the scheduled tick: re-fetch weather for the station already resolved
func (a *app) refresh(ctx context.Context) {
	if outcome := a.updater.RefreshByLastKnownStation(ctx, nil); !outcome.Any() {
		logger.Warn("Scheduled refresh updated nothing, keeping previous values")
	}
	printReport(os.Stdout, a.updater.Snapshot())
}

// placemark returns nil when no location is configured
func (a *app) placemark(ctx context.Context) (*geo.Placemark, error) {
	loc := a.cfg.Location
	if loc.HasCoordinates() {
		result, err := a.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return nil, err
		}
		pm := geo.PlacemarkFromAddress(result.Address)
		return &pm, nil
	}
	if loc.HasPlacemark() {
		return &geo.Placemark{
			Country:            loc.Country,
			AdministrativeArea: loc.Province,
			Locality:           loc.City,
			SubLocality:        loc.District,
		}, nil
	}
	return nil, nil
}

func applyFlagOverrides(cfg *config.Config, lat, lon float64, province, city, district string) {
	if lat != 0 || lon != 0 {
		cfg.Location.Latitude = lat
		cfg.Location.Longitude = lon
	}
	if province != "" || city != "" || district != "" {
		// A textual placemark on the command line replaces the configured one
		cfg.Location.Province = province
		cfg.Location.City = city
		cfg.Location.District = district
		if lat == 0 && lon == 0 {
			cfg.Location.Latitude, cfg.Location.Longitude = 0, 0
		}
	}
}

func fallbackLocation(f config.Fallback) geo.ResolvedLocation {
	return geo.ResolvedLocation{
		CountryName:  f.Country,
		ProvinceName: f.Province,
		CityName:     f.City,
		DistrictName: f.District,
		Province:     geo.Province{Code: f.ProvinceCode, Name: f.ProvinceName},
		Station: &geo.Station{
			ProvinceName: f.ProvinceName,
			Name:         f.StationName,
			Code:         f.StationCode,
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// getDefaultConfigPath returns a cross-platform default config path
func getDefaultConfigPath() string {
	return filepath.Clean("config.toml")
}
