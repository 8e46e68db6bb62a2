package config

import (
	"encoding/hex"
	"os"

	"github.com/erisprotocol/ve3engine/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the engine's on-disk configuration: listen address, data
// directory, the node's own identity key, and the deterministic
// accounting Policy.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	ValidatorKey  string `toml:"ValidatorKey"`

	Policy Policy `toml:"Policy"`
}

// Policy carries the accounting engine's deterministic parameters: the
// coefficient table bounds, period length, and per-book ceilings.
type Policy struct {
	PeriodLengthSeconds uint64 `toml:"PeriodLengthSeconds"`
	MinLockPeriods      uint64 `toml:"MinLockPeriods"`
	MaxLockPeriods      uint64 `toml:"MaxLockPeriods"`

	// MaxYearlyTakeRateWad is a take-rate ceiling expressed in
	// native/stake.RateScale units. ValidatePolicy checks that it parses;
	// stake.Book.RegisterAsset does not read it, so registered take rates
	// are not bounded by it.
	MaxYearlyTakeRateWad string `toml:"MaxYearlyTakeRateWad"`

	// MinGaugeFloorBps is a min_gauge_percentage numerator (denominator
	// 10_000). ValidatePolicy checks its range; gauge.Book.CreateGauge
	// takes its floor from its caller and does not read this value.
	MinGaugeFloorBps uint64 `toml:"MinGaugeFloorBps"`
}

// Load loads the configuration from path, writing out a fresh default
// file if none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.Policy.MaxLockPeriods == 0 {
		cfg.Policy = defaultConfig().Policy
	}

	if cfg.ValidatorKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.ValidatorKey = hex.EncodeToString(key.Bytes())

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress: ":8090",
		DataDir:       "./ve3-data",
		Policy: Policy{
			PeriodLengthSeconds:  7 * 24 * 3600,
			MinLockPeriods:       1,
			MaxLockPeriods:       104,
			MaxYearlyTakeRateWad: "500000000000000000", // 0.5 WAD, 50%
			MinGaugeFloorBps:     100,                  // 1%
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	cfg.ValidatorKey = hex.EncodeToString(key.Bytes())

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
