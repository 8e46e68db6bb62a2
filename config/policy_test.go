package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesAndReloadsDefaultPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ve3.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(104), cfg.Policy.MaxLockPeriods)
	require.NoError(t, ValidatePolicy(cfg.Policy))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Policy, reloaded.Policy)
	require.NotEmpty(t, reloaded.ValidatorKey)
}

func TestValidatePolicyRejectsInvertedLockBounds(t *testing.T) {
	p := defaultConfig().Policy
	p.MinLockPeriods = p.MaxLockPeriods + 1
	require.Error(t, ValidatePolicy(p))
}

func TestValidatePolicyRejectsOversizedGaugeFloor(t *testing.T) {
	p := defaultConfig().Policy
	p.MinGaugeFloorBps = 10_001
	require.Error(t, ValidatePolicy(p))
}

func TestValidatePolicyRejectsMalformedTakeRate(t *testing.T) {
	p := defaultConfig().Policy
	p.MaxYearlyTakeRateWad = "not-a-number"
	require.Error(t, ValidatePolicy(p))
}
