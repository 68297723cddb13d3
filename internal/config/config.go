package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// Config is the complete service configuration
type Config struct {
	Server      ServerConfig      `toml:"server"`
	API         APIConfig         `toml:"api"`
	Cache       CacheConfig       `toml:"cache"`
	Tracker     TrackerConfig     `toml:"tracker"`
	Storage     StorageConfig     `toml:"storage"`
	Preferences PreferencesConfig `toml:"preferences"`
	Logging     logger.Config     `toml:"logging"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	ReadTimeoutSeconds int      `toml:"read_timeout_seconds"`
}

// APIConfig configures access to the upstream flight-simulation API
type APIConfig struct {
	BaseURL               string  `toml:"base_url"`
	APIKey                string  `toml:"api_key"`
	SessionID             string  `toml:"session_id"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RequestsPerSecond     float64 `toml:"requests_per_second"`
	Burst                 int     `toml:"burst"`
}

// CacheConfig holds the TTL for each cached resource type
type CacheConfig struct {
	AirportCoordinatesDays int `toml:"airport_coordinates_days"`
	InboundFlightIDsMins   int `toml:"inbound_flight_ids_minutes"`
	ATISMinutes            int `toml:"atis_minutes"`
	ControllersMinutes     int `toml:"controllers_minutes"`
	SharedSeconds          int `toml:"shared_seconds"`
	FlightDetailsSeconds   int `toml:"flight_details_seconds"`
	FlightDetailsSize      int `toml:"flight_details_size"`
}

// TrackerConfig configures the periodic refresh loops
type TrackerConfig struct {
	RefreshIntervalSeconds     int `toml:"refresh_interval_seconds"`
	ATCIntervalSeconds         int `toml:"atc_interval_seconds"`
	InterpolationIntervalMs    int `toml:"interpolation_interval_ms"`
	InterpolationHorizonSecond int `toml:"interpolation_horizon_seconds"`
	ActiveAirportsLimit        int `toml:"active_airports_limit"`
}

// StorageConfig configures the SQLite database
type StorageConfig struct {
	Path string `toml:"path"`
}

// PreferencesConfig holds expirations for persisted dashboard preferences
type PreferencesConfig struct {
	SearchDays int `toml:"search_days"`
	FilterDays int `toml:"filter_days"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSeconds: 15,
		},
		API: APIConfig{
			BaseURL:               "https://api.infiniteflight.com/public/v2",
			SessionID:             "9bdfef34-f03b-4413-b8fa-c29949bb18f8",
			RequestTimeoutSeconds: 10,
			RequestsPerSecond:     2,
			Burst:                 4,
		},
		Cache: CacheConfig{
			AirportCoordinatesDays: 90,
			InboundFlightIDsMins:   5,
			ATISMinutes:            30,
			ControllersMinutes:     10,
			SharedSeconds:          15,
			FlightDetailsSeconds:   15,
			FlightDetailsSize:      2048,
		},
		Tracker: TrackerConfig{
			RefreshIntervalSeconds:     18,
			ATCIntervalSeconds:         60,
			InterpolationIntervalMs:    1000,
			InterpolationHorizonSecond: 20,
			ActiveAirportsLimit:        4,
		},
		Storage: StorageConfig{
			Path: "inbounds.db",
		},
		Preferences: PreferencesConfig{
			SearchDays: 30,
			FilterDays: 180,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  32,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the defaults.
// The IF_API_KEY and IF_SESSION_ID environment variables override the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config keys: %v", undecoded)
		}
	}

	if v := os.Getenv("IF_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("IF_SESSION_ID"); v != "" {
		cfg.API.SessionID = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var icaoPattern = regexp.MustCompile(`^[A-Z]{4}$`)

// ValidICAO reports whether s is a 4-letter uppercase ICAO airport code.
func ValidICAO(s string) bool {
	return icaoPattern.MatchString(s)
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := uuid.Parse(c.API.SessionID); err != nil {
		return fmt.Errorf("api.session_id must be a UUID: %w", err)
	}
	if c.API.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("api.request_timeout_seconds must be positive")
	}
	if c.API.RequestsPerSecond <= 0 || c.API.Burst <= 0 {
		return fmt.Errorf("api.requests_per_second and api.burst must be positive")
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if c.Tracker.RefreshIntervalSeconds <= 0 || c.Tracker.ATCIntervalSeconds <= 0 || c.Tracker.InterpolationIntervalMs <= 0 {
		return fmt.Errorf("tracker intervals must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// validate rejects lifetimes that would make every entry stale on arrival
func (c CacheConfig) validate() error {
	ttls := []struct {
		key   string
		value int
	}{
		{"cache.airport_coordinates_days", c.AirportCoordinatesDays},
		{"cache.inbound_flight_ids_minutes", c.InboundFlightIDsMins},
		{"cache.atis_minutes", c.ATISMinutes},
		{"cache.controllers_minutes", c.ControllersMinutes},
		{"cache.shared_seconds", c.SharedSeconds},
		{"cache.flight_details_seconds", c.FlightDetailsSeconds},
		{"cache.flight_details_size", c.FlightDetailsSize},
	}
	for _, ttl := range ttls {
		if ttl.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", ttl.key, ttl.value)
		}
	}
	return nil
}

// RequestTimeout returns the per-request upstream deadline
func (c APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RefreshInterval returns the network refresh period
func (c TrackerConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// ATCInterval returns the ATC refresh period
func (c TrackerConfig) ATCInterval() time.Duration {
	return time.Duration(c.ATCIntervalSeconds) * time.Second
}

// InterpolationInterval returns the display smoothing period
func (c TrackerConfig) InterpolationInterval() time.Duration {
	return time.Duration(c.InterpolationIntervalMs) * time.Millisecond
}

// Address returns host:port for the HTTP listener
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
