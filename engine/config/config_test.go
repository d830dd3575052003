package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "okapi.toml")
	data := `
[window]
title = "demo"
width = 640
height = 480

[renderer]
validation = true
max_objects = 128
clear_color = [0.0, 0.0, 0.0, 1.0]

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Window.Title)
	assert.Equal(t, uint32(640), cfg.Window.Width)
	assert.Equal(t, uint32(100), cfg.Window.X, "unset keys keep their default")
	assert.True(t, cfg.Renderer.Validation)
	assert.Equal(t, uint32(128), cfg.Renderer.MaxObjects)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cfg.Renderer.ClearColor)
	assert.Equal(t, "shaders/shader.vert.spv", cfg.Assets.VertexShader)
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"zero width", "[window]\nwidth = 0"},
		{"zero objects", "[renderer]\nmax_objects = 0"},
		{"too many objects", "[renderer]\nmax_objects = 2000000"},
		{"bad level", "[log]\nlevel = \"loud\""},
		{"no vertex shader", "[assets]\nvertex_shader = \"\""},
		{"unknown key", "[window]\ncolour = 3"},
		{"malformed", "[window\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decode([]byte(tt.data), Default())
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	want := Default()
	want.Window.Title = "round trip"

	data, err := want.Encode()
	require.NoError(t, err)

	got := &Config{}
	require.NoError(t, Decode(data, got))
	assert.Equal(t, want, got)
}

func TestAssetPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("assets", "shaders", "a.spv"), cfg.AssetPath("shaders/a.spv"))
	assert.Equal(t, "/abs/a.spv", cfg.AssetPath("/abs/a.spv"))
	assert.Empty(t, cfg.AssetPath(""))
}
