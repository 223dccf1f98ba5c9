package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP server
	HTTPAddr string

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Game math
	DiceHouseEdgePercent decimal.Decimal // subtracted from 100 in the dice payout formula
	MinesHouseEdge       decimal.Decimal // fraction discounted from the fair mines multiplier

	// External slot provider
	ProviderAPIURL     string
	ProviderAPIKey     string
	ProviderTimeout    time.Duration
	ProviderMaxRetries int
	ProviderCurrency   string

	// Slot modes
	SlotNormalBias   float64
	SlotBonusBias    float64
	SlotAnteCost     decimal.Decimal
	SlotBonusCost    decimal.Decimal
	SlotBonusMinCost decimal.Decimal
	SlotBonusMaxCost decimal.Decimal

	// Reservation recovery
	ReservationTTL    time.Duration
	ReconcileInterval time.Duration

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("dice_house_edge_percent", "1")
	v.SetDefault("mines_house_edge", "0.05")
	v.SetDefault("provider_timeout", 10*time.Second)
	v.SetDefault("provider_max_retries", 3)
	v.SetDefault("provider_currency", "RUB")
	v.SetDefault("slot_normal_bias", 50.0)
	v.SetDefault("slot_bonus_bias", 3.0)
	v.SetDefault("slot_ante_cost", "3")
	v.SetDefault("slot_bonus_cost", "100")
	v.SetDefault("slot_bonus_min_cost", "1000")
	v.SetDefault("slot_bonus_max_cost", "10000")
	v.SetDefault("reservation_ttl", 5*time.Minute)
	v.SetDefault("reconcile_interval", time.Minute)
	v.SetDefault("environment", "development")
}

// load loads configuration from environment variables
func load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range []string{"database_url", "database_name", "provider_api_url", "provider_api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		DatabaseURL:        v.GetString("database_url"),
		DatabaseName:       v.GetString("database_name"),
		HTTPAddr:           v.GetString("http_addr"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		ProviderAPIURL:     strings.TrimRight(v.GetString("provider_api_url"), "/"),
		ProviderAPIKey:     v.GetString("provider_api_key"),
		ProviderTimeout:    v.GetDuration("provider_timeout"),
		ProviderMaxRetries: v.GetInt("provider_max_retries"),
		ProviderCurrency:   v.GetString("provider_currency"),
		SlotNormalBias:     v.GetFloat64("slot_normal_bias"),
		SlotBonusBias:      v.GetFloat64("slot_bonus_bias"),
		ReservationTTL:     v.GetDuration("reservation_ttl"),
		ReconcileInterval:  v.GetDuration("reconcile_interval"),
		Environment:        v.GetString("environment"),
	}

	decimals := map[string]*decimal.Decimal{
		"dice_house_edge_percent": &config.DiceHouseEdgePercent,
		"mines_house_edge":        &config.MinesHouseEdge,
		"slot_ante_cost":          &config.SlotAnteCost,
		"slot_bonus_cost":         &config.SlotBonusCost,
		"slot_bonus_min_cost":     &config.SlotBonusMinCost,
		"slot_bonus_max_cost":     &config.SlotBonusMaxCost,
	}
	for key, dst := range decimals {
		parsed, err := decimal.NewFromString(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
		}
		*dst = parsed
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DiceHouseEdgePercent.IsNegative() || c.DiceHouseEdgePercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("DICE_HOUSE_EDGE_PERCENT must be in [0, 100)")
	}
	if c.MinesHouseEdge.IsNegative() || c.MinesHouseEdge.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("MINES_HOUSE_EDGE must be in [0, 1)")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.ReservationTTL <= 0 || c.ReconcileInterval <= 0 {
		return fmt.Errorf("RESERVATION_TTL and RECONCILE_INTERVAL must be positive")
	}
	if c.ReservationTTL <= c.ProviderTimeout {
		return fmt.Errorf("RESERVATION_TTL (%s) must exceed PROVIDER_TIMEOUT (%s)", c.ReservationTTL, c.ProviderTimeout)
	}
	if c.SlotBonusMinCost.GreaterThan(c.SlotBonusMaxCost) {
		return fmt.Errorf("SLOT_BONUS_MIN_COST exceeds SLOT_BONUS_MAX_COST")
	}

	if c.Environment != "test" {
		// Validate required configuration
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	}

	return nil
}

// ForTest returns a configuration populated with defaults and no environment lookups
func ForTest() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("environment", "test")
	cfg, err := fromViper(v)
	if err != nil {
		panic(fmt.Sprintf("failed to build test config: %v", err))
	}
	return cfg
}
