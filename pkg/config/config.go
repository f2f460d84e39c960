// Package config provides configuration loading and validation for the
// flowrt coordinator process.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
)

// Sentinel validation errors.
var (
	ErrInvalidHeartbeat     = errors.New("heartbeat interval must be positive")
	ErrInvalidWorkUnitBkt   = errors.New("work unit bucket count must be positive")
	ErrInvalidWorkUnitWin   = errors.New("work unit window must be positive")
	ErrLicenseTokenConflict = errors.New("licenseToken and licenseFilePath are mutually exclusive")
)

// Default configuration values.
const (
	defaultHeartbeatInterval    = 30 * time.Second
	defaultWorkUnitWindow       = 60 * time.Second
	defaultWorkUnitBuckets      = 60
	defaultLicenseGracePeriod   = 5 * time.Minute
	defaultFreeTierMaxSlots     = 10
	defaultFreeTierMaxWorkUnits = 1000
	defaultFreeTierMaxNodes     = 3
)

func defaultWorkUnitThresholds() []float64 { return []float64{80, 90, 100} }

// Config holds all configuration for the coordinator process.
type Config struct {
	LicenseToken    string `mapstructure:"license_token"`
	LicenseFilePath string `mapstructure:"license_file_path"`
	VendorPublicKey string `mapstructure:"vendor_public_key"`

	LicenseOverrides LicenseOverrides `mapstructure:"license_overrides"`

	EnableMesh bool `mapstructure:"enable_mesh"`

	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"`
	WorkUnitWindow      time.Duration `mapstructure:"work_unit_window"`
	WorkUnitBuckets     int           `mapstructure:"work_unit_buckets"`
	LicenseGracePeriod  time.Duration `mapstructure:"license_grace_period"`
	WorkUnitThresholds  []float64     `mapstructure:"work_unit_thresholds"`

	FreeTierMaxSlots              int `mapstructure:"free_tier_max_slots"`
	FreeTierMaxWorkUnitsPerMinute int `mapstructure:"free_tier_max_work_units_per_minute"`
	FreeTierMaxNodes              int `mapstructure:"free_tier_max_nodes"`

	Lanes   LaneConfig   `mapstructure:"lanes"`
	Logging LoggingConfig `mapstructure:"logging"`
	MCP     MCPConfig     `mapstructure:"mcp"`

	// CustomLicenseValidator and CustomWorkUnitCalculator are programmatic
	// overrides, not set from file/env; callers assign them after Load.
	CustomLicenseValidator   func([]byte) (license.Token, error) `mapstructure:"-"`
	CustomWorkUnitCalculator func(amount float64, kind string) float64 `mapstructure:"-"`
	OnLicenseStateChanged    func(license.Transition)                 `mapstructure:"-"`
	OnWorkUnitThreshold      func(meter.ThresholdEvent)                `mapstructure:"-"`
}

// LicenseOverrides lets an operator pin license attributes without issuing
// a new signed token, e.g. for local development.
type LicenseOverrides struct {
	MaxSlots              int      `mapstructure:"max_slots"`
	MaxWorkUnitsPerMinute int      `mapstructure:"max_work_units_per_minute"`
	MaxNodes              int      `mapstructure:"max_nodes"`
	Tier                  string   `mapstructure:"tier"`
	Features              []string `mapstructure:"features"`
	Expiry                string   `mapstructure:"expiry"`
}

// LaneConfig holds per-lane concurrency bounds.
type LaneConfig struct {
	Fast int `mapstructure:"fast"`
	IO   int `mapstructure:"io"`
	ML   int `mapstructure:"ml"`
	LLM  int `mapstructure:"llm"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig holds the Model Context Protocol server's bind configuration.
type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/flowrt")
	}

	viperCfg.SetEnvPrefix("FLOWRT")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	if validateErr := validateConfig(&config); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("enable_mesh", false)
	viperCfg.SetDefault("heartbeat_interval", defaultHeartbeatInterval.String())
	viperCfg.SetDefault("work_unit_window", defaultWorkUnitWindow.String())
	viperCfg.SetDefault("work_unit_buckets", defaultWorkUnitBuckets)
	viperCfg.SetDefault("license_grace_period", defaultLicenseGracePeriod.String())
	viperCfg.SetDefault("work_unit_thresholds", defaultWorkUnitThresholds())

	viperCfg.SetDefault("free_tier_max_slots", defaultFreeTierMaxSlots)
	viperCfg.SetDefault("free_tier_max_work_units_per_minute", defaultFreeTierMaxWorkUnits)
	viperCfg.SetDefault("free_tier_max_nodes", defaultFreeTierMaxNodes)

	viperCfg.SetDefault("lanes.fast", 8)
	viperCfg.SetDefault("lanes.io", 4)
	viperCfg.SetDefault("lanes.ml", 2)
	viperCfg.SetDefault("lanes.llm", 1)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")

	viperCfg.SetDefault("mcp.enabled", false)
	viperCfg.SetDefault("mcp.addr", "127.0.0.1:8090")
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.LicenseToken != "" && config.LicenseFilePath != "" {
		return ErrLicenseTokenConflict
	}

	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidHeartbeat, config.HeartbeatInterval)
	}

	if config.WorkUnitBuckets <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkUnitBkt, config.WorkUnitBuckets)
	}

	if config.WorkUnitWindow <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidWorkUnitWin, config.WorkUnitWindow)
	}

	return nil
}
