package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Endpoints contains the base URLs of the remote services
type Endpoints struct {
	ProvinceURL   string `toml:"province_url"`
	RealtimeURL   string `toml:"realtime_url"`
	DetailURL     string `toml:"detail_url"`
	AirQualityURL string `toml:"aqi_url"`     // Optional; empty disables air quality
	GeocodeURL    string `toml:"geocode_url"` // Nominatim reverse endpoint
}

// Network contains request timing configuration
type Network struct {
	TimeoutSeconds        int    `toml:"timeout_seconds"`         // Per-request transport timeout
	StageTimeoutSeconds   int    `toml:"stage_timeout_seconds"`   // Bound on each bootstrap stage
	RefreshTimeoutSeconds int    `toml:"refresh_timeout_seconds"` // Bound on a whole refresh
	MaxConcurrent         int    `toml:"max_concurrent"`          // Station-list requests in flight, 0 = unlimited
	UserAgent             string `toml:"user_agent"`              // Sent to the geocoder
}

// Cache contains reference data caching configuration
type Cache struct {
	Directory string `toml:"directory"` // Holds provinceData.json and stationData.json
}

// Fallback is the location used until a placemark resolves
type Fallback struct {
	Country      string `toml:"country"`
	Province     string `toml:"province"`
	City         string `toml:"city"`
	District     string `toml:"district"`
	ProvinceCode string `toml:"province_code"`
	ProvinceName string `toml:"province_name"`
	StationName  string `toml:"station_name"`
	StationCode  string `toml:"station_code"`
}

// Location describes where to resolve a placemark from. Coordinates take
// precedence over the textual fields when both are set.
type Location struct {
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	Country   string  `toml:"country"`
	Province  string  `toml:"province"`
	City      string  `toml:"city"`
	District  string  `toml:"district"`
	Language  string  `toml:"language"` // Accept-Language for reverse geocoding
}

// HasCoordinates reports whether a latitude/longitude pair is configured
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// HasPlacemark reports whether any textual placemark field is configured
func (l Location) HasPlacemark() bool {
	return l.Province != "" || l.City != "" || l.District != ""
}

// Schedule contains watch mode configuration
type Schedule struct {
	Refresh string `toml:"refresh"` // cron spec, e.g. "@every 30m" or "*/30 * * * *"
}

// Logging contains logging configuration with rotation and cross-platform support
type Logging struct {
	Enabled         bool   `toml:"enabled"`          // Enable file logging
	Directory       string `toml:"directory"`        // Log directory (relative or absolute)
	FilenamePattern string `toml:"filename_pattern"` // Log filename with date patterns
	Level           string `toml:"level"`            // Log level: debug, info, warn, error
	MaxSizeMB       int    `toml:"max_size_mb"`      // Rotate when file exceeds this size
	ConsoleOutput   bool   `toml:"console_output"`   // Also output to console
}

// Config represents the complete application configuration
type Config struct {
	Endpoints Endpoints `toml:"endpoints"`
	Network   Network   `toml:"network"`
	Cache     Cache     `toml:"cache"`
	Fallback  Fallback  `toml:"fallback"`
	Location  Location  `toml:"location"`
	Schedule  Schedule  `toml:"schedule"`
	Logging   Logging   `toml:"logging"`
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file, then applies
// NMC_* environment overrides and defaults
func LoadConfig(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				Path: cleanPath,
			}
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	err = toml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML configuration: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	return &config, nil
}

// ApplyEnv overrides fields from NMC_* environment variables
func (c *Config) ApplyEnv() error {
	strVars := map[string]*string{
		"NMC_PROVINCE_URL": &c.Endpoints.ProvinceURL,
		"NMC_REALTIME_URL": &c.Endpoints.RealtimeURL,
		"NMC_DETAIL_URL":   &c.Endpoints.DetailURL,
		"NMC_AQI_URL":      &c.Endpoints.AirQualityURL,
		"NMC_GEOCODE_URL":  &c.Endpoints.GeocodeURL,
		"NMC_CACHE_DIR":    &c.Cache.Directory,
		"NMC_SCHEDULE":     &c.Schedule.Refresh,
		"NMC_LOG_LEVEL":    &c.Logging.Level,
		"NMC_USER_AGENT":   &c.Network.UserAgent,
	}
	for key, field := range strVars {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*field = v
		}
	}

	floatVars := map[string]*float64{
		"NMC_LATITUDE":  &c.Location.Latitude,
		"NMC_LONGITUDE": &c.Location.Longitude,
	}
	for key, field := range floatVars {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*field = f
	}

	if v := strings.TrimSpace(os.Getenv("NMC_TIMEOUT_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NMC_TIMEOUT_SECONDS: %w", err)
		}
		c.Network.TimeoutSeconds = n
	}
	return nil
}

// ApplyDefaults sets default values for optional configuration fields
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Endpoints.ProvinceURL) == "" {
		c.Endpoints.ProvinceURL = "http://www.nmc.cn/f/rest/province/"
	}
	if strings.TrimSpace(c.Endpoints.RealtimeURL) == "" {
		c.Endpoints.RealtimeURL = "http://www.nmc.cn/f/rest/real/"
	}
	if strings.TrimSpace(c.Endpoints.DetailURL) == "" {
		c.Endpoints.DetailURL = "http://www.nmc.cn/f/rest/weather/"
	}
	if strings.TrimSpace(c.Endpoints.GeocodeURL) == "" {
		c.Endpoints.GeocodeURL = "https://nominatim.openstreetmap.org/reverse"
	}

	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = 10
	}
	if c.Network.StageTimeoutSeconds <= 0 {
		c.Network.StageTimeoutSeconds = 10
	}
	if c.Network.RefreshTimeoutSeconds <= 0 {
		c.Network.RefreshTimeoutSeconds = 10
	}

	if strings.TrimSpace(c.Cache.Directory) == "" {
		if cacheDir, err := os.UserCacheDir(); err == nil {
			c.Cache.Directory = filepath.Join(cacheDir, "nmcweather")
		} else {
			c.Cache.Directory = filepath.Join(os.TempDir(), "nmcweather")
		}
	}

	// 北京市 大兴区, station 54594
	if strings.TrimSpace(c.Fallback.StationCode) == "" {
		c.Fallback = Fallback{
			Country:      "中国",
			Province:     "北京",
			City:         "北京市",
			District:     "大兴区",
			ProvinceCode: "ABJ",
			ProvinceName: "北京市",
			StationName:  "大兴",
			StationCode:  "54594",
		}
	}

	if strings.TrimSpace(c.Location.Language) == "" {
		c.Location.Language = "zh-CN"
	}

	if strings.TrimSpace(c.Schedule.Refresh) == "" {
		c.Schedule.Refresh = "@every 30m"
	}

	if strings.TrimSpace(c.Logging.Directory) == "" {
		c.Logging.Directory = "logs"
	}
	if strings.TrimSpace(c.Logging.FilenamePattern) == "" {
		c.Logging.FilenamePattern = "nmcweather-YYYYMMDD.log"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
}

// ConfigNotFoundError represents a missing configuration file
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found: %s\n\nTo create a sample configuration file, run:\n  %s -generate-config", e.Path, filepath.Base(os.Args[0]))
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors
type MultiValidationError struct {
	Errors []ValidationError
}

func (e *MultiValidationError) Error() string {
	var messages []string
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  %s", strings.Join(messages, "\n  "))
}

// Validate checks the configuration for correctness and completeness
func (c *Config) Validate() error {
	var errors []ValidationError

	errors = append(errors, c.validateEndpoints()...)
	errors = append(errors, c.validateNetwork()...)
	errors = append(errors, c.validateFallback()...)
	errors = append(errors, c.validateLocation()...)
	errors = append(errors, c.validateSchedule()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return &MultiValidationError{Errors: errors}
	}
	return nil
}

func (c *Config) validateEndpoints() []ValidationError {
	var errors []ValidationError

	required := []struct {
		field string
		value string
	}{
		{"endpoints.province_url", c.Endpoints.ProvinceURL},
		{"endpoints.realtime_url", c.Endpoints.RealtimeURL},
		{"endpoints.detail_url", c.Endpoints.DetailURL},
		{"endpoints.geocode_url", c.Endpoints.GeocodeURL},
	}
	for _, r := range required {
		if err := checkAbsoluteURL(r.value); err != nil {
			errors = append(errors, ValidationError{Field: r.field, Message: err.Error()})
		}
	}

	if strings.TrimSpace(c.Endpoints.AirQualityURL) != "" {
		if err := checkAbsoluteURL(c.Endpoints.AirQualityURL); err != nil {
			errors = append(errors, ValidationError{Field: "endpoints.aqi_url", Message: err.Error()})
		}
	}

	return errors
}

func checkAbsoluteURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

func (c *Config) validateNetwork() []ValidationError {
	var errors []ValidationError

	timeouts := []struct {
		field string
		value int
	}{
		{"network.timeout_seconds", c.Network.TimeoutSeconds},
		{"network.stage_timeout_seconds", c.Network.StageTimeoutSeconds},
		{"network.refresh_timeout_seconds", c.Network.RefreshTimeoutSeconds},
	}
	for _, t := range timeouts {
		if t.value < 1 || t.value > 300 {
			errors = append(errors, ValidationError{
				Field:   t.field,
				Message: fmt.Sprintf("must be between 1 and 300 seconds, got %d", t.value),
			})
		}
	}

	if c.Network.MaxConcurrent < 0 || c.Network.MaxConcurrent > 100 {
		errors = append(errors, ValidationError{
			Field:   "network.max_concurrent",
			Message: fmt.Sprintf("max_concurrent must be between 0 and 100, got %d", c.Network.MaxConcurrent),
		})
	}

	return errors
}

func (c *Config) validateFallback() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Fallback.StationCode) == "" {
		errors = append(errors, ValidationError{
			Field:   "fallback.station_code",
			Message: "a fallback station code is required",
		})
	}
	if strings.TrimSpace(c.Fallback.ProvinceCode) == "" {
		errors = append(errors, ValidationError{
			Field:   "fallback.province_code",
			Message: "a fallback province code is required",
		})
	}

	return errors
}

func (c *Config) validateLocation() []ValidationError {
	var errors []ValidationError

	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		errors = append(errors, ValidationError{
			Field:   "location.latitude",
			Message: fmt.Sprintf("latitude must be between -90 and 90, got %.6f", c.Location.Latitude),
		})
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		errors = append(errors, ValidationError{
			Field:   "location.longitude",
			Message: fmt.Sprintf("longitude must be between -180 and 180, got %.6f", c.Location.Longitude),
		})
	}

	return errors
}

func (c *Config) validateSchedule() []ValidationError {
	if _, err := cron.ParseStandard(c.Schedule.Refresh); err != nil {
		return []ValidationError{{
			Field:   "schedule.refresh",
			Message: fmt.Sprintf("invalid cron spec %q: %v", c.Schedule.Refresh, err),
		}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	validLevels := []string{"debug", "info", "warn", "error"}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level != "" {
		valid := false
		for _, validLevel := range validLevels {
			if level == validLevel {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "logging.level",
				Message: fmt.Sprintf("level must be one of: %s, got '%s'", strings.Join(validLevels, ", "), c.Logging.Level),
			})
		}
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxSizeMB > 1000 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Message: fmt.Sprintf("max_size_mb must be between 0 and 1000, got %d", c.Logging.MaxSizeMB),
		})
	}

	if c.Logging.Enabled {
		if strings.TrimSpace(c.Logging.Directory) == "" {
			errors = append(errors, ValidationError{
				Field:   "logging.directory",
				Message: "directory is required when logging is enabled",
			})
		}
		// Pattern syntax is checked by the logger when it opens the file
		if strings.TrimSpace(c.Logging.FilenamePattern) == "" {
			errors = append(errors, ValidationError{
				Field:   "logging.filename_pattern",
				Message: "filename_pattern is required when logging is enabled",
			})
		}
	}

	return errors
}

// GenerateSampleConfig creates a sample configuration file at the specified path
func GenerateSampleConfig(configPath string) error {
	sampleConfig := `# NMC Weather Configuration File
# Weather from the National Meteorological Center (nmc.cn)

[endpoints]
# NMC REST endpoints; a station or province code is appended as a path segment
province_url = "http://www.nmc.cn/f/rest/province/"
realtime_url = "http://www.nmc.cn/f/rest/real/"
detail_url = "http://www.nmc.cn/f/rest/weather/"

# Air quality endpoint (optional, leave empty to skip air quality)
aqi_url = ""

# Nominatim reverse geocoding endpoint, used when coordinates are configured
geocode_url = "https://nominatim.openstreetmap.org/reverse"

[network]
timeout_seconds = 10                       # Per-request timeout
stage_timeout_seconds = 10                 # Bound on each reference data download stage
refresh_timeout_seconds = 10               # Bound on one weather refresh
max_concurrent = 0                         # Station list requests in flight (0 = one per province)
user_agent = ""                            # Nominatim requires an identifying User-Agent

[cache]
# Directory for provinceData.json and stationData.json
# Leave empty for the user cache directory (e.g. ~/.cache/nmcweather)
directory = ""

[fallback]
# Used until a location resolves, and whenever resolution fails
country = "中国"
province = "北京"
city = "北京市"
district = "大兴区"
province_code = "ABJ"
province_name = "北京市"
station_name = "大兴"
station_code = "54594"

[location]
# Either coordinates (reverse geocoded) or a placemark
# Leave province empty for municipalities such as 北京市 or 上海市
latitude = 0.0
longitude = 0.0
country = "中国"
province = ""
city = "北京市"
district = "大兴区"
language = "zh-CN"

[schedule]
# Refresh cadence for -watch mode (cron spec or @every descriptor)
refresh = "@every 30m"

[logging]
enabled = false                            # Enable file logging
directory = "logs"                         # Log directory (relative to working dir or absolute path)
filename_pattern = "nmcweather-YYYYMMDD.log"  # YYYY=year, MM=month, DD=day, HH=hour
level = "info"                             # Log level: debug, info, warn, error
max_size_mb = 10                           # Rotate when file exceeds 10MB (0 = unlimited)
console_output = true                      # Also output to console
`

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}

	return nil
}
