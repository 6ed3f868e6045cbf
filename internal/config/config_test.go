package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyDefaults(t *testing.T) {
	t.Parallel()

	cfg := Empty()
	assert.Equal(t, "camera0", cfg.GetCameraID())
	assert.Equal(t, "config/lanes.json", cfg.GetLanesPath())
	assert.Equal(t, 3, cfg.GetMinActiveFrames())
	assert.Equal(t, 5, cfg.GetVoteWindow())
	assert.Equal(t, 30, cfg.GetTrackBuffer())
	assert.Equal(t, 1920, cfg.GetFrameWidth())
	assert.Equal(t, 1080, cfg.GetFrameHeight())
	assert.Equal(t, 32.0, cfg.GetEdgeTolerancePx())
	assert.Equal(t, 15*time.Minute, cfg.GetRetention())
	assert.Equal(t, "", cfg.GetEventDB())
	assert.Equal(t, 2*time.Second, cfg.GetDetectorTimeout())
	assert.Equal(t, 30, cfg.GetFPSWindow())
	assert.True(t, cfg.GetDisplayEnabled())
	assert.False(t, cfg.GetFrameLogEnabled())
	assert.True(t, cfg.GetWebEnabled())
	assert.Equal(t, ":8080", cfg.GetWebListen())
	assert.False(t, cfg.GetBusEnabled())
	assert.Equal(t, time.Second, cfg.GetBusInterval())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"camera_id": "gate-cam",
			"vote_window": 7,
			"retention": "5m",
			"bus_enabled": true
		}`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "gate-cam", cfg.GetCameraID())
		assert.Equal(t, 7, cfg.GetVoteWindow())
		assert.Equal(t, 5*time.Minute, cfg.GetRetention())
		assert.True(t, cfg.GetBusEnabled())
		// Untouched fields report defaults.
		assert.Equal(t, 3, cfg.GetMinActiveFrames())
		assert.Equal(t, 9870, cfg.GetBusPort())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		_, err := Load("config.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ".json extension")
	})

	t.Run("rejects missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})

	t.Run("rejects bad JSON", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	bad := func(mutate func(*AppConfig)) error {
		cfg := Empty()
		mutate(cfg)
		return cfg.Validate()
	}

	intp := func(v int) *int { return &v }
	strp := func(v string) *string { return &v }
	floatp := func(v float64) *float64 { return &v }

	assert.NoError(t, Empty().Validate())
	assert.Error(t, bad(func(c *AppConfig) { c.MinActiveFrames = intp(0) }))
	assert.Error(t, bad(func(c *AppConfig) { c.VoteWindow = intp(-1) }))
	assert.Error(t, bad(func(c *AppConfig) { c.TrackBuffer = intp(0) }))
	assert.Error(t, bad(func(c *AppConfig) { c.FrameWidth = intp(0) }))
	assert.Error(t, bad(func(c *AppConfig) { c.EdgeTolerancePx = floatp(-1) }))
	assert.Error(t, bad(func(c *AppConfig) { c.Retention = strp("not-a-duration") }))
	assert.Error(t, bad(func(c *AppConfig) { c.DetectorTimeout = strp("5 parsecs") }))
	assert.Error(t, bad(func(c *AppConfig) { c.WebQuality = intp(101) }))
	assert.Error(t, bad(func(c *AppConfig) { c.FrameLogQuality = intp(0) }))
	assert.Error(t, bad(func(c *AppConfig) { c.BusPort = intp(70000) }))
	assert.NoError(t, bad(func(c *AppConfig) { c.Retention = strp("90s") }))
}
