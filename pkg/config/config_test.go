package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retro.yaml")
	cfg := DefaultConfig()
	cfg.Display.Width = 160
	cfg.Display.Height = 144
	cfg.Effects.Startup["scanlines"] = 0.5
	cfg.Window.Backend = "headless"
	require.NoError(t, SaveConfig(cfg, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 160, got.Display.Width)
	assert.Equal(t, 144, got.Display.Height)
	assert.Equal(t, 0.5, got.Effects.Startup["scanlines"])
	assert.Equal(t, "headless", got.Window.Backend)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display:\n  width: 64\n  height: 48\n"), 0644))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, got.Display.Width)
	assert.Equal(t, "@", got.Text.EscapeChar)
	assert.Equal(t, 16384, got.Renderer.BatchVertices)
}

func TestLoadMissingFile(t *testing.T) {
	got, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DefaultConfig().Display, got.Display)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("renderer:\n  filter: cubic\n"), 0644))
	got, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Equal(t, "point", got.Renderer.Filter)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Display.Width = 0 }},
		{"batch too big", func(c *Config) { c.Renderer.BatchVertices = 70000 }},
		{"pool above batch", func(c *Config) { c.Renderer.PoolMinVertices = 32768; c.Renderer.BatchVertices = 1024 }},
		{"no front buffers", func(c *Config) { c.Renderer.MaxFrontBuffers = 0 }},
		{"bad clear", func(c *Config) { c.Renderer.ClearColor = "12" }},
		{"long escape", func(c *Config) { c.Text.EscapeChar = "@@" }},
		{"zero cadence", func(c *Config) { c.Text.ShakeCadence = 0 }},
		{"bad backend", func(c *Config) { c.Window.Backend = "vulkan" }},
		{"zero scale", func(c *Config) { c.Window.Scale = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{255, 128, 0, 255}, c)

	c, err = ParseColor("10203040")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{0x10, 0x20, 0x30, 0x40}, c)

	_, err = ParseColor("zzzzzz")
	assert.Error(t, err)
}
