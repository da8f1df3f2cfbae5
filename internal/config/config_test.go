package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, time.Second, cfg.Pipeline.BaseDelay())
	assert.Equal(t, 10*time.Second, cfg.Pipeline.MaxDelay())
	assert.Equal(t, 3, cfg.Pipeline.MaxVariationRetries)
	assert.Equal(t, 9900, cfg.Pipeline.ContentTruncationChar)
	assert.Equal(t, 1, cfg.Batch.MaxConcurrency)
	assert.Equal(t, 1.0, cfg.Batch.ItemsPerSecond)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TUITION_PIPELINE_MAX_RETRIES", "5")
	t.Setenv("TUITION_BATCH_MAX_CONCURRENCY", "4")
	t.Setenv("TUITION_GEMINI_MODEL", "gemini-2.5-pro")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrency)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "not-a-level"})
	require.Error(t, err)
}
