// Package config loads the application configuration. Fields are
// pointers so the loader can tell "omitted" from "zero": fields absent
// from the JSON fall back to defaults through the Get* accessors, and
// partial config files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppConfig is the root configuration for a lanewatch deployment.
type AppConfig struct {
	// Identity
	CameraID *string `json:"camera_id,omitempty"`

	// Lane geometry
	LanesPath *string `json:"lanes_path,omitempty"`

	// Lifecycle tuning
	MinActiveFrames *int `json:"min_active_frames,omitempty"`
	VoteWindow      *int `json:"vote_window,omitempty"`
	TrackBuffer     *int `json:"track_buffer,omitempty"`

	// Frame geometry for bounding-box validation
	FrameWidth      *int     `json:"frame_width,omitempty"`
	FrameHeight     *int     `json:"frame_height,omitempty"`
	EdgeTolerancePx *float64 `json:"edge_tolerance_px,omitempty"`

	// Statistics
	Retention *string `json:"retention,omitempty"` // duration string like "15m"
	EventDB   *string `json:"event_db,omitempty"`  // sqlite path, empty disables persistence

	// Detector
	DetectorEndpoint *string `json:"detector_endpoint,omitempty"`
	DetectorTimeout  *string `json:"detector_timeout,omitempty"` // duration string like "2s"

	// FPS measurement
	FPSWindow *int `json:"fps_window,omitempty"`

	// Sinks
	DisplayEnabled  *bool   `json:"display_enabled,omitempty"`
	FrameLogEnabled *bool   `json:"framelog_enabled,omitempty"`
	FrameLogDir     *string `json:"framelog_dir,omitempty"`
	FrameLogQuality *int    `json:"framelog_quality,omitempty"`
	WebEnabled      *bool   `json:"web_enabled,omitempty"`
	WebListen       *string `json:"web_listen,omitempty"`
	WebQuality      *int    `json:"web_quality,omitempty"`
	BusEnabled      *bool   `json:"bus_enabled,omitempty"`
	BusAddress      *string `json:"bus_address,omitempty"`
	BusPort         *int    `json:"bus_port,omitempty"`
	BusInterval     *string `json:"bus_interval,omitempty"` // duration string like "1s"
}

// Empty returns an AppConfig with every field nil, so every accessor
// reports its default.
func Empty() *AppConfig {
	return &AppConfig{}
}

// Load reads and validates an AppConfig from a JSON file.
func Load(path string) (*AppConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable. Only set fields
// are checked; nil fields fall back to defaults and need no validation.
func (c *AppConfig) Validate() error {
	if c.MinActiveFrames != nil && *c.MinActiveFrames < 1 {
		return fmt.Errorf("min_active_frames must be at least 1, got %d", *c.MinActiveFrames)
	}
	if c.VoteWindow != nil && *c.VoteWindow < 1 {
		return fmt.Errorf("vote_window must be at least 1, got %d", *c.VoteWindow)
	}
	if c.TrackBuffer != nil && *c.TrackBuffer < 1 {
		return fmt.Errorf("track_buffer must be at least 1, got %d", *c.TrackBuffer)
	}
	if c.FrameWidth != nil && *c.FrameWidth < 1 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight < 1 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	if c.EdgeTolerancePx != nil && *c.EdgeTolerancePx < 0 {
		return fmt.Errorf("edge_tolerance_px must be non-negative, got %f", *c.EdgeTolerancePx)
	}
	if c.FPSWindow != nil && *c.FPSWindow < 1 {
		return fmt.Errorf("fps_window must be at least 1, got %d", *c.FPSWindow)
	}
	for name, v := range map[string]*string{
		"retention":        c.Retention,
		"detector_timeout": c.DetectorTimeout,
		"bus_interval":     c.BusInterval,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	for name, v := range map[string]*int{
		"framelog_quality": c.FrameLogQuality,
		"web_quality":      c.WebQuality,
	} {
		if v != nil && (*v < 1 || *v > 100) {
			return fmt.Errorf("%s must be between 1 and 100, got %d", name, *v)
		}
	}
	if c.BusPort != nil && (*c.BusPort < 1 || *c.BusPort > 65535) {
		return fmt.Errorf("bus_port must be between 1 and 65535, got %d", *c.BusPort)
	}
	return nil
}

// GetCameraID returns the camera identifier or the default.
func (c *AppConfig) GetCameraID() string {
	if c.CameraID == nil || *c.CameraID == "" {
		return "camera0"
	}
	return *c.CameraID
}

// GetLanesPath returns the lane geometry file path or the default.
func (c *AppConfig) GetLanesPath() string {
	if c.LanesPath == nil || *c.LanesPath == "" {
		return "config/lanes.json"
	}
	return *c.LanesPath
}

// GetMinActiveFrames returns min_active_frames or the default.
func (c *AppConfig) GetMinActiveFrames() int {
	if c.MinActiveFrames == nil {
		return 3
	}
	return *c.MinActiveFrames
}

// GetVoteWindow returns vote_window or the default.
func (c *AppConfig) GetVoteWindow() int {
	if c.VoteWindow == nil {
		return 5
	}
	return *c.VoteWindow
}

// GetTrackBuffer returns track_buffer or the default.
func (c *AppConfig) GetTrackBuffer() int {
	if c.TrackBuffer == nil {
		return 30
	}
	return *c.TrackBuffer
}

// GetFrameWidth returns frame_width or the default.
func (c *AppConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 1920
	}
	return *c.FrameWidth
}

// GetFrameHeight returns frame_height or the default.
func (c *AppConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 1080
	}
	return *c.FrameHeight
}

// GetEdgeTolerancePx returns edge_tolerance_px or the default.
func (c *AppConfig) GetEdgeTolerancePx() float64 {
	if c.EdgeTolerancePx == nil {
		return 32
	}
	return *c.EdgeTolerancePx
}

// GetRetention parses and returns the windowed-statistics retention.
func (c *AppConfig) GetRetention() time.Duration {
	if c.Retention == nil || *c.Retention == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(*c.Retention)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// GetEventDB returns the sqlite event database path; empty means
// persistence is disabled.
func (c *AppConfig) GetEventDB() string {
	if c.EventDB == nil {
		return ""
	}
	return *c.EventDB
}

// GetDetectorEndpoint returns the inference sidecar URL or the default.
func (c *AppConfig) GetDetectorEndpoint() string {
	if c.DetectorEndpoint == nil || *c.DetectorEndpoint == "" {
		return "http://127.0.0.1:9090/infer"
	}
	return *c.DetectorEndpoint
}

// GetDetectorTimeout parses and returns the per-frame inference deadline.
func (c *AppConfig) GetDetectorTimeout() time.Duration {
	if c.DetectorTimeout == nil || *c.DetectorTimeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.DetectorTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetFPSWindow returns fps_window or the default.
func (c *AppConfig) GetFPSWindow() int {
	if c.FPSWindow == nil {
		return 30
	}
	return *c.FPSWindow
}

// GetDisplayEnabled returns display_enabled or the default.
func (c *AppConfig) GetDisplayEnabled() bool {
	if c.DisplayEnabled == nil {
		return true
	}
	return *c.DisplayEnabled
}

// GetFrameLogEnabled returns framelog_enabled or the default.
func (c *AppConfig) GetFrameLogEnabled() bool {
	if c.FrameLogEnabled == nil {
		return false
	}
	return *c.FrameLogEnabled
}

// GetFrameLogDir returns framelog_dir; empty means a temp directory.
func (c *AppConfig) GetFrameLogDir() string {
	if c.FrameLogDir == nil {
		return ""
	}
	return *c.FrameLogDir
}

// GetFrameLogQuality returns framelog_quality or the default.
func (c *AppConfig) GetFrameLogQuality() int {
	if c.FrameLogQuality == nil {
		return 85
	}
	return *c.FrameLogQuality
}

// GetWebEnabled returns web_enabled or the default.
func (c *AppConfig) GetWebEnabled() bool {
	if c.WebEnabled == nil {
		return true
	}
	return *c.WebEnabled
}

// GetWebListen returns the HTTP listen address or the default.
func (c *AppConfig) GetWebListen() string {
	if c.WebListen == nil || *c.WebListen == "" {
		return ":8080"
	}
	return *c.WebListen
}

// GetWebQuality returns web_quality or the default.
func (c *AppConfig) GetWebQuality() int {
	if c.WebQuality == nil {
		return 75
	}
	return *c.WebQuality
}

// GetBusEnabled returns bus_enabled or the default.
func (c *AppConfig) GetBusEnabled() bool {
	if c.BusEnabled == nil {
		return false
	}
	return *c.BusEnabled
}

// GetBusAddress returns bus_address or the default.
func (c *AppConfig) GetBusAddress() string {
	if c.BusAddress == nil || *c.BusAddress == "" {
		return "127.0.0.1"
	}
	return *c.BusAddress
}

// GetBusPort returns bus_port or the default.
func (c *AppConfig) GetBusPort() int {
	if c.BusPort == nil {
		return 9870
	}
	return *c.BusPort
}

// GetBusInterval parses and returns the bus publish interval.
func (c *AppConfig) GetBusInterval() time.Duration {
	if c.BusInterval == nil || *c.BusInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.BusInterval)
	if err != nil {
		return time.Second
	}
	return d
}
