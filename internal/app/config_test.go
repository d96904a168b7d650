package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.TestMode)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 200, cfg.ApprovalSweepBatch)
	assert.Equal(t, "*/10 * * * *", cfg.ApprovalSweepCron)
	assert.Equal(t, "0 3 * * *", cfg.IntegrityCheckCron)
	assert.EqualValues(t, 1_000_000, cfg.HighValueThreshold())
}

func TestLoadConfigTestMode(t *testing.T) {
	t.Setenv("MERIDIAN_TEST_MODE", "1")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.TestMode)
}

func TestLoadConfigSweepBatchesAreIndependent(t *testing.T) {
	t.Setenv("APPROVAL_SWEEP_BATCH", "50")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.ApprovalSweepBatch)
}
