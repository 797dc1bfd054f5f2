package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config represents the main configuration
type Config struct {
	Display  DisplayConfig  `yaml:"display"`
	Renderer RendererConfig `yaml:"renderer"`
	Text     TextConfig     `yaml:"text"`
	Effects  EffectsConfig  `yaml:"effects"`
	Window   WindowConfig   `yaml:"window"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DisplayConfig is the virtual display the engine draws into
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RendererConfig contains batching and front buffer configuration
type RendererConfig struct {
	BatchVertices   int    `yaml:"batch_vertices"`    // largest pooled mesh, in vertices
	PoolMinVertices int    `yaml:"pool_min_vertices"` // smallest pooled mesh
	MaxFrontBuffers int    `yaml:"max_front_buffers"`
	ClearColor      string `yaml:"clear_color"` // RRGGBB or RRGGBBAA
	Filter          string `yaml:"filter"`      // point, linear
}

// TextConfig contains text layout configuration
type TextConfig struct {
	EscapeChar   string `yaml:"escape_char"`
	ShakeCadence int    `yaml:"shake_cadence"` // ticks between shake table rolls
}

// EffectsConfig contains effect tuning and start-up values
type EffectsConfig struct {
	ShakePixels int `yaml:"shake_pixels"` // display shake at intensity 1
	// Startup maps effect names (e.g. "scanlines") to intensities applied
	// after every ResetEffects.
	Startup map[string]float64 `yaml:"startup"`
}

// WindowConfig contains presentation window configuration
type WindowConfig struct {
	Title      string `yaml:"title"`
	Scale      int    `yaml:"scale"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	FrameRate  int    `yaml:"framerate"`
	Backend    string `yaml:"backend"` // gl, terminal, headless
}

// LoggingConfig contains logger configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig creates a default configuration
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			Width:  320,
			Height: 180,
		},
		Renderer: RendererConfig{
			BatchVertices:   16384,
			PoolMinVertices: 64,
			MaxFrontBuffers: 8,
			ClearColor:      "000000",
			Filter:          "point",
		},
		Text: TextConfig{
			EscapeChar:   "@",
			ShakeCadence: 2,
		},
		Effects: EffectsConfig{
			ShakePixels: 8,
			Startup:     map[string]float64{},
		},
		Window: WindowConfig{
			Title:     "retrogfx",
			Scale:     3,
			VSync:     true,
			FrameRate: 60,
			Backend:   "gl",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads the configuration from a file. The defaults are returned
// along with the error when the file cannot be read or parsed.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return config, errors.Wrap(err, "config file not found, using defaults")
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), errors.Wrap(err, "error parsing config")
	}

	if err := config.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "error serializing config")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}
	return nil
}

// Validate checks value ranges that would make the renderer unusable
func (c *Config) Validate() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return errors.Errorf("display size %dx%d must be positive", c.Display.Width, c.Display.Height)
	}
	r := c.Renderer
	if r.BatchVertices < 4 || r.BatchVertices > 65536 {
		return errors.Errorf("batch_vertices %d out of range [4,65536]", r.BatchVertices)
	}
	if r.PoolMinVertices < 4 || r.PoolMinVertices > r.BatchVertices {
		return errors.Errorf("pool_min_vertices %d out of range [4,%d]", r.PoolMinVertices, r.BatchVertices)
	}
	if r.MaxFrontBuffers < 1 {
		return errors.New("max_front_buffers must be at least 1")
	}
	if _, err := ParseColor(r.ClearColor); err != nil {
		return errors.Wrap(err, "clear_color")
	}
	switch r.Filter {
	case "point", "linear":
	default:
		return errors.Errorf("unknown filter %q", r.Filter)
	}
	if len([]rune(c.Text.EscapeChar)) != 1 {
		return errors.Errorf("escape_char %q must be a single character", c.Text.EscapeChar)
	}
	if c.Text.ShakeCadence < 1 {
		return errors.New("shake_cadence must be at least 1")
	}
	switch c.Window.Backend {
	case "gl", "terminal", "headless":
	default:
		return errors.Errorf("unknown backend %q", c.Window.Backend)
	}
	if c.Window.Scale < 1 {
		return errors.New("window scale must be at least 1")
	}
	return nil
}

// ParseColor parses RRGGBB or RRGGBBAA (an optional leading # is allowed)
// into its components. Alpha defaults to 255.
func ParseColor(s string) ([4]uint8, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return [4]uint8{}, errors.Errorf("color %q must have 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return [4]uint8{}, errors.Wrapf(err, "color %q", s)
	}
	if len(s) == 6 {
		v = v<<8 | 0xFF
	}
	return [4]uint8{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}
