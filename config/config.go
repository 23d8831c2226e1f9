// Package config loads venue parameters from a config file, environment
// variables, and optional flag bindings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	TradingFeePPM      uint32
	RewardsPPM         uint32
	PriceDecayHalfLife time.Duration
	TargetToken        string
	BurnAddress        string
	EventLog           string
	PgDSN              string
	LogLevel           string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CARBON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("trading-fee-ppm", uint32(2000))
	v.SetDefault("rewards-ppm", uint32(100_000))
	v.SetDefault("price-decay-half-life", 12*time.Hour)
	v.SetDefault("burn-address", common.Address{}.Hex())
	v.SetDefault("event-log", "")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		TradingFeePPM:      v.GetUint32("trading-fee-ppm"),
		RewardsPPM:         v.GetUint32("rewards-ppm"),
		PriceDecayHalfLife: v.GetDuration("price-decay-half-life"),
		TargetToken:        v.GetString("target-token"),
		BurnAddress:        v.GetString("burn-address"),
		EventLog:           v.GetString("event-log"),
		PgDSN:              v.GetString("pg-dsn"),
		LogLevel:           v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TradingFeePPM >= 1_000_000 {
		return fmt.Errorf("trading fee ppm out of range: %d", c.TradingFeePPM)
	}
	if c.RewardsPPM > 1_000_000 {
		return fmt.Errorf("rewards ppm out of range: %d", c.RewardsPPM)
	}
	if c.PriceDecayHalfLife <= 0 {
		return fmt.Errorf("price decay half life must be positive")
	}
	if c.TargetToken != "" && !common.IsHexAddress(c.TargetToken) {
		return fmt.Errorf("invalid target token address: %s", c.TargetToken)
	}
	if c.BurnAddress != "" && !common.IsHexAddress(c.BurnAddress) {
		return fmt.Errorf("invalid burn address: %s", c.BurnAddress)
	}
	return nil
}
