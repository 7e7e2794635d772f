// Package config loads and validates govncd's runtime configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-rfb/govncd/internal/rfb"
	"gopkg.in/yaml.v3"
)

// Config mirrors spec.md §6's enumerated configuration fields.
type Config struct {
	ListenHost string `yaml:"listen_host"`
	ListenPort int    `yaml:"listen_port"`

	Password string `yaml:"password"`

	MaxConnections int `yaml:"max_connections"`
	MaxFPS         int `yaml:"max_fps"`
	TileSize       int `yaml:"tile_size"`
	IdleTimeoutS   int `yaml:"idle_timeout_s"`

	MaxSetEncodings        int `yaml:"max_set_encodings"`
	MaxClientCutTextBytes  int `yaml:"max_client_cut_text_bytes"`

	WebSocketEnabled          bool `yaml:"websocket_enabled"`
	WebSocketMaxPayloadBytes  int  `yaml:"websocket_max_payload_bytes"`

	ZlibCompressionLevel int `yaml:"zlib_compression_level"`
	JPEGDefaultQuality   int `yaml:"jpeg_default_quality"`

	ScaleFactor float64 `yaml:"scale_factor"`

	// OfferVNCAuthWithNoPassword, when true, offers VNC Authentication even
	// with no password configured (Open Question resolution, DESIGN.md).
	OfferVNCAuthWithNoPassword bool `yaml:"offer_vnc_auth_with_no_password"`

	// TightResetStreamsEachRect is loaded and defaults to false (Open
	// Question resolution, DESIGN.md). Nothing copies it into the Tight
	// encoder's ResetEachRect, so Tight's Basic zlib stream stays
	// persistent across rectangles whatever its value.
	TightResetStreamsEachRect bool `yaml:"tight_reset_streams_each_rect"`

	// TightGradientFilter is loaded and defaults to false. Nothing copies it
	// into the Tight encoder's GradientFilter, so the gradient prediction
	// filter stays off whatever its value.
	TightGradientFilter bool `yaml:"tight_gradient_filter"`

	MetricsListenAddr string `yaml:"metrics_listen_addr"`

	RecorderPath string `yaml:"recorder_path"`
	RecorderGzip bool   `yaml:"recorder_gzip"`
}

// Default returns a Config populated with spec.md §6's defaults.
func Default() Config {
	return Config{
		ListenHost: "0.0.0.0",
		ListenPort: 5900,

		MaxConnections: 32,
		MaxFPS:         30,
		TileSize:       64,
		IdleTimeoutS:   60,

		MaxSetEncodings:       1024,
		MaxClientCutTextBytes: 16 << 20,

		WebSocketEnabled:         false,
		WebSocketMaxPayloadBytes: 8 << 20,

		ZlibCompressionLevel: 6,
		JPEGDefaultQuality:   80,

		ScaleFactor: 1.0,
	}
}

// Load reads and parses a YAML config file, layering it onto Default() so
// an omitted field keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &rfb.ConfigurationError{Msg: fmt.Sprintf("reading %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &rfb.ConfigurationError{Msg: fmt.Sprintf("parsing %s: %v", path, err)}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration's invariants, returning a
// *rfb.ConfigurationError describing the first violation found.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return &rfb.ConfigurationError{Msg: fmt.Sprintf(format, args...)}
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fail("listen_port %d out of range", c.ListenPort)
	}
	if c.MaxConnections <= 0 {
		return fail("max_connections must be positive, got %d", c.MaxConnections)
	}
	if c.MaxFPS <= 0 {
		return fail("max_fps must be positive, got %d", c.MaxFPS)
	}
	if c.TileSize <= 0 {
		return fail("tile_size must be positive, got %d", c.TileSize)
	}
	if c.IdleTimeoutS <= 0 {
		return fail("idle_timeout_s must be positive, got %d", c.IdleTimeoutS)
	}
	if c.MaxSetEncodings <= 0 {
		return fail("max_set_encodings must be positive, got %d", c.MaxSetEncodings)
	}
	if c.MaxClientCutTextBytes <= 0 {
		return fail("max_client_cut_text_bytes must be positive, got %d", c.MaxClientCutTextBytes)
	}
	if c.WebSocketMaxPayloadBytes <= 0 {
		return fail("websocket_max_payload_bytes must be positive, got %d", c.WebSocketMaxPayloadBytes)
	}
	if c.ZlibCompressionLevel < 1 || c.ZlibCompressionLevel > 9 {
		return fail("zlib_compression_level must be in [1,9], got %d", c.ZlibCompressionLevel)
	}
	if c.JPEGDefaultQuality < 1 || c.JPEGDefaultQuality > 100 {
		return fail("jpeg_default_quality must be in [1,100], got %d", c.JPEGDefaultQuality)
	}
	if c.ScaleFactor <= 0 {
		return fail("scale_factor must be positive, got %v", c.ScaleFactor)
	}
	return nil
}
