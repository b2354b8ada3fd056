// Package config loads agent configuration from defaults, an optional YAML
// file, .env files and PAGETRACE_* environment variables.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vincentbai/pagetrace/internal/analytics"
	"github.com/vincentbai/pagetrace/internal/browser"
	"github.com/vincentbai/pagetrace/internal/errors"
	"github.com/vincentbai/pagetrace/internal/logging"
	"github.com/vincentbai/pagetrace/internal/tracking"
)

// EnvPrefix prefixes every environment override, e.g. PAGETRACE_SERVER_ADDRESS.
const EnvPrefix = "PAGETRACE"

type Config struct {
	Tracking  TrackingConfig  `mapstructure:"tracking" yaml:"tracking"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Analytics AnalyticsConfig `mapstructure:"analytics" yaml:"analytics"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type TrackingConfig struct {
	ScrollMilestones    []int         `mapstructure:"scroll_milestones" yaml:"scroll_milestones"`
	SectionDwellMin     time.Duration `mapstructure:"section_dwell_min" yaml:"section_dwell_min"`
	InteractionInterval time.Duration `mapstructure:"interaction_interval" yaml:"interaction_interval"`
	EngagementDelay     time.Duration `mapstructure:"engagement_delay" yaml:"engagement_delay"`
	GeolocationTimeout  time.Duration `mapstructure:"geolocation_timeout" yaml:"geolocation_timeout"`
	GeolocationMaxAge   time.Duration `mapstructure:"geolocation_max_age" yaml:"geolocation_max_age"`
	RevealThreshold     float64       `mapstructure:"reveal_threshold" yaml:"reveal_threshold"`
	RevealRootMargin    string        `mapstructure:"reveal_root_margin" yaml:"reveal_root_margin"`
	SectionThreshold    float64       `mapstructure:"section_threshold" yaml:"section_threshold"`
	SectionRootMargin   string        `mapstructure:"section_root_margin" yaml:"section_root_margin"`
	MarkerClass         string        `mapstructure:"marker_class" yaml:"marker_class"`
	RevealClass         string        `mapstructure:"reveal_class" yaml:"reveal_class"`
	SectionClass        string        `mapstructure:"section_class" yaml:"section_class"`
	TrackLocation       bool          `mapstructure:"track_location" yaml:"track_location"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type AnalyticsConfig struct {
	MeasurementID string        `mapstructure:"measurement_id" yaml:"measurement_id"`
	APISecret     string        `mapstructure:"api_secret" yaml:"api_secret"`
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// New returns a viper instance carrying every default and bound to the
// PAGETRACE_ environment.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	defaults := tracking.DefaultOptions()

	v.SetDefault("tracking.scroll_milestones", defaults.Audience.Milestones)
	v.SetDefault("tracking.section_dwell_min", defaults.Audience.SectionDwellMin)
	v.SetDefault("tracking.interaction_interval", defaults.Audience.InteractionInterval)
	v.SetDefault("tracking.engagement_delay", defaults.EngagementDelay)
	v.SetDefault("tracking.geolocation_timeout", defaults.Audience.GeolocationTimeout)
	v.SetDefault("tracking.geolocation_max_age", defaults.Audience.GeolocationMaxAge)
	v.SetDefault("tracking.reveal_threshold", defaults.Animation.Threshold)
	v.SetDefault("tracking.reveal_root_margin", defaults.Animation.RootMargin.String())
	v.SetDefault("tracking.section_threshold", defaults.Audience.SectionThreshold)
	v.SetDefault("tracking.section_root_margin", defaults.Audience.SectionRootMargin.String())
	v.SetDefault("tracking.marker_class", defaults.Animation.MarkerClass)
	v.SetDefault("tracking.reveal_class", defaults.Animation.RevealClass)
	v.SetDefault("tracking.section_class", defaults.Audience.SectionClass)
	v.SetDefault("tracking.track_location", defaults.TrackLocation)

	v.SetDefault("server.address", "127.0.0.1:8123")
	v.SetDefault("database.path", DefaultDatabasePath())

	v.SetDefault("analytics.measurement_id", analytics.DefaultMeasurementID)
	v.SetDefault("analytics.api_secret", "")
	v.SetDefault("analytics.endpoint", analytics.DefaultEndpoint)
	v.SetDefault("analytics.timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
}

// Load reads configuration into v and decodes it. With an empty file, a
// .pagetrace.yaml in the home or working directory is used when present.
// .env and .env.local are loaded into the process environment first.
func Load(v *viper.Viper, file string) (*Config, error) {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".pagetrace")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	t := c.Tracking
	for _, m := range t.ScrollMilestones {
		if m < 1 || m > 100 {
			return errors.NewValidationError("tracking.scroll_milestones", m, "milestones must be between 1 and 100")
		}
	}
	for key, th := range map[string]float64{
		"tracking.reveal_threshold":  t.RevealThreshold,
		"tracking.section_threshold": t.SectionThreshold,
	} {
		if th < 0 || th > 1 {
			return errors.NewValidationError(key, th, "threshold must be between 0 and 1")
		}
	}
	for key, d := range map[string]time.Duration{
		"tracking.interaction_interval": t.InteractionInterval,
		"tracking.geolocation_timeout":  t.GeolocationTimeout,
		"analytics.timeout":             c.Analytics.Timeout,
	} {
		if d <= 0 {
			return errors.NewValidationError(key, d, "duration must be positive")
		}
	}
	if _, err := browser.ParseRootMargin(t.RevealRootMargin); err != nil {
		return fmt.Errorf("tracking.reveal_root_margin: %w", err)
	}
	if _, err := browser.ParseRootMargin(t.SectionRootMargin); err != nil {
		return fmt.Errorf("tracking.section_root_margin: %w", err)
	}
	if c.Server.Address == "" {
		return errors.NewValidationError("server.address", c.Server.Address, "cannot be empty")
	}
	return nil
}

// TrackingOptions builds session options from the tracking section.
func (c *Config) TrackingOptions() (tracking.Options, error) {
	t := c.Tracking
	revealMargin, err := browser.ParseRootMargin(t.RevealRootMargin)
	if err != nil {
		return tracking.Options{}, err
	}
	sectionMargin, err := browser.ParseRootMargin(t.SectionRootMargin)
	if err != nil {
		return tracking.Options{}, err
	}

	opts := tracking.DefaultOptions()
	opts.EngagementDelay = t.EngagementDelay
	opts.TrackLocation = t.TrackLocation

	opts.Animation.Threshold = t.RevealThreshold
	opts.Animation.RootMargin = revealMargin
	opts.Animation.MarkerClass = t.MarkerClass
	opts.Animation.RevealClass = t.RevealClass

	opts.Audience.Milestones = t.ScrollMilestones
	opts.Audience.SectionDwellMin = t.SectionDwellMin
	opts.Audience.SectionThreshold = t.SectionThreshold
	opts.Audience.SectionRootMargin = sectionMargin
	opts.Audience.SectionClass = t.SectionClass
	opts.Audience.InteractionInterval = t.InteractionInterval
	opts.Audience.GeolocationTimeout = t.GeolocationTimeout
	opts.Audience.GeolocationMaxAge = t.GeolocationMaxAge
	return opts, nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() *logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	cfg.Output = c.Log.Output
	return cfg
}

// Measurement returns the Measurement Protocol settings.
func (c *Config) Measurement() analytics.MeasurementConfig {
	return analytics.MeasurementConfig{
		Endpoint:      c.Analytics.Endpoint,
		MeasurementID: c.Analytics.MeasurementID,
		APISecret:     c.Analytics.APISecret,
		Timeout:       c.Analytics.Timeout,
	}
}

// AppDir is the platform-specific application data directory.
func AppDir() string {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDirectory, "Library", "Application Support", "Pagetrace")
	case "windows":
		return filepath.Join(homeDirectory, "AppData", "Roaming", "Pagetrace")
	default: // linux and others
		return filepath.Join(homeDirectory, ".local", "share", "Pagetrace")
	}
}

// DefaultDatabasePath is events.db inside AppDir.
func DefaultDatabasePath() string {
	return filepath.Join(AppDir(), "events.db")
}
