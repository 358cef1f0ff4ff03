// Package config loads player configuration from a YAML file with
// environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/doInfinitely/video-generation-pipeline/go-player/internal/statespace"
)

// #region types

// ServerConfig locates the frame server.
type ServerConfig struct {
	URL         string `yaml:"url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PlaybackConfig tunes the tick loop.
type PlaybackConfig struct {
	FPS    float64 `yaml:"fps"`
	Easing string  `yaml:"easing"`
}

// BlinkConfig tunes the autonomous blink.
type BlinkConfig struct {
	Enabled bool    `yaml:"enabled"`
	MinSecs float64 `yaml:"min_secs"`
	MaxSecs float64 `yaml:"max_secs"`
}

// InitialConfig is the logical state at startup.
type InitialConfig struct {
	Expr string `yaml:"expr"`
	Pose string `yaml:"pose"`
}

// Config is the full player configuration.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Playback  PlaybackConfig `yaml:"playback"`
	Blink     BlinkConfig    `yaml:"blink"`
	Initial   InitialConfig  `yaml:"initial"`
	APIAddr   string         `yaml:"api_addr"`
	HistoryDB string         `yaml:"history_db"` // empty disables the route log
}

// #endregion types

// #region defaults

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{URL: "http://localhost:8000", TimeoutSecs: 10},
		Playback: PlaybackConfig{FPS: 12, Easing: "linear"},
		Blink:    BlinkConfig{Enabled: true, MinSecs: 2, MaxSecs: 6},
		Initial:  InitialConfig{Expr: string(statespace.ExprHub), Pose: string(statespace.PoseHub)},
		APIAddr:  ":8090",
	}
}

// #endregion defaults

// #region load

// Load reads the YAML file at path (skipped when path is empty), applies env
// overrides, and validates. Env vars: FRAME_SERVER_URL, PLAYER_FPS,
// PLAYER_EASING, PLAYER_API_ADDR, PLAYER_HISTORY_DB, BLINK_ENABLED.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	if v := os.Getenv("FRAME_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("PLAYER_FPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Playback.FPS = f
		}
	}
	if v := os.Getenv("PLAYER_EASING"); v != "" {
		cfg.Playback.Easing = v
	}
	if v := os.Getenv("PLAYER_API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("PLAYER_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}
	if v := os.Getenv("BLINK_ENABLED"); v != "" {
		cfg.Blink.Enabled = v == "true" || v == "1"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unusable configurations.
func (c Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Playback.FPS <= 0 {
		return fmt.Errorf("playback.fps must be positive, got %v", c.Playback.FPS)
	}
	if c.Blink.MinSecs < 0 || c.Blink.MaxSecs < c.Blink.MinSecs {
		return fmt.Errorf("blink range [%v, %v] is invalid", c.Blink.MinSecs, c.Blink.MaxSecs)
	}
	if !statespace.ValidState(c.InitialState()) {
		return fmt.Errorf("initial state %s/%s is not authored", c.Initial.Expr, c.Initial.Pose)
	}
	return nil
}

// #endregion load

// #region derived

// InitialState returns the configured startup state.
func (c Config) InitialState() statespace.State {
	return statespace.State{
		Expr: statespace.Expression(c.Initial.Expr),
		Pose: statespace.Pose(c.Initial.Pose),
	}
}

// ServerTimeout returns the frame server request timeout.
func (c Config) ServerTimeout() time.Duration {
	if c.Server.TimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.TimeoutSecs) * time.Second
}

// BlinkRange returns the [min, max] idle delay before a blink.
func (c Config) BlinkRange() (time.Duration, time.Duration) {
	min := time.Duration(c.Blink.MinSecs * float64(time.Second))
	max := time.Duration(c.Blink.MaxSecs * float64(time.Second))
	return min, max
}

// #endregion derived
