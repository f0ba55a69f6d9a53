// CLAUDE:SUMMARY Defines skuprobe config structs and parses the YAML configuration file with defaults.
// Package config handles skuprobe configuration from a YAML file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level skuprobe configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Inspect  InspectConfig  `yaml:"inspect"`
	Store    StoreConfig    `yaml:"store"`
	Images   ImagesConfig   `yaml:"images"`
	API      APIConfig      `yaml:"api"`
	Uploader UploaderConfig `yaml:"uploader"`
	Pages    []PageConfig   `yaml:"pages"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome.
	Remote     string        `yaml:"remote"`
	Stealth    bool          `yaml:"stealth"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
	// XvfbDisplay runs Chrome headful under Xvfb. Empty = headless.
	XvfbDisplay string `yaml:"xvfb_display"`
}

// InspectConfig controls the instrumented extraction engine.
type InspectConfig struct {
	PanelSelector    string        `yaml:"panel_selector"`
	PanelMarker      string        `yaml:"panel_marker"`
	ChartSelector    string        `yaml:"chart_selector"`
	OverlaySelectors []string      `yaml:"overlay_selectors"`
	MaxAttempts      int           `yaml:"max_attempts"`
	Backoff          time.Duration `yaml:"backoff"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	// AnalyticsDelay is the wait between primary-field capture and the
	// instrumented extraction, giving the panel time to render.
	AnalyticsDelay time.Duration `yaml:"analytics_delay"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ImagesConfig controls local product-image downloads.
type ImagesConfig struct {
	// Dir enables image downloads when non-empty.
	Dir string `yaml:"dir"`
	// Max caps downloads per product. Default: 5.
	Max int `yaml:"max"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// UploaderConfig controls the batch uploader.
type UploaderConfig struct {
	// Endpoint is the remote collect API. Empty disables uploading;
	// records stay spooled locally.
	Endpoint  string        `yaml:"endpoint"`
	Token     string        `yaml:"token"`
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

// PageConfig is one product page to collect.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Inspect.PanelSelector == "" {
		c.Inspect.PanelSelector = `div[class*="goods-analytics"]`
	}
	if c.Inspect.PanelMarker == "" {
		c.Inspect.PanelMarker = "goods-analytics"
	}
	if c.Inspect.ChartSelector == "" {
		c.Inspect.ChartSelector = `div[class*="sales-chart"]`
	}
	if c.Inspect.MaxAttempts <= 0 {
		c.Inspect.MaxAttempts = 3
	}
	if c.Inspect.Backoff <= 0 {
		c.Inspect.Backoff = 2 * time.Second
	}
	if c.Inspect.SettleDelay <= 0 {
		c.Inspect.SettleDelay = time.Second
	}
	if c.Inspect.AnalyticsDelay <= 0 {
		c.Inspect.AnalyticsDelay = 8 * time.Second
	}
	if c.Store.Path == "" {
		c.Store.Path = "skuprobe.db"
	}
	if c.Images.Max <= 0 {
		c.Images.Max = 5
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8470"
	}
	if c.Uploader.Interval <= 0 {
		c.Uploader.Interval = time.Minute
	}
	if c.Uploader.BatchSize <= 0 {
		c.Uploader.BatchSize = 20
	}
}
