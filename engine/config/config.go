package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/okapi/engine/core"
)

const (
	DefaultPath = "okapi.toml"

	maxObjectsLimit = 1 << 20
)

type Window struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type Renderer struct {
	// Validation turns on the Khronos validation layer. Its absence is fatal
	// when set.
	Validation bool       `toml:"validation"`
	MaxObjects uint32     `toml:"max_objects"`
	ClearColor [4]float32 `toml:"clear_color"`
}

type Assets struct {
	Root           string `toml:"root"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
	// TexturedFragmentShader is optional. When empty no textured material is
	// created.
	TexturedFragmentShader string `toml:"textured_fragment_shader"`
	// Watch enables hot reload of the shaders through the asset watcher.
	Watch bool `toml:"watch"`
}

type Log struct {
	Level string `toml:"level"`
}

type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Assets   Assets   `toml:"assets"`
	Log      Log      `toml:"log"`
}

func Default() *Config {
	return &Config{
		Window: Window{
			Title:  "Okapi",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: Renderer{
			MaxObjects: 10000,
			ClearColor: [4]float32{0.1, 0.1, 0.2, 1},
		},
		Assets: Assets{
			Root:                   "assets",
			VertexShader:           "shaders/shader.vert.spv",
			FragmentShader:         "shaders/shader.frag.spv",
			TexturedFragmentShader: "shaders/textured.frag.spv",
			Watch:                  true,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the file at path on top of the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogInfo("no configuration at %s, using defaults", path)
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, err
	}
	if err := Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays data onto cfg and validates the result. Unknown keys are
// rejected.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s", core.ErrInvalidConfig, strict.String())
		}
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window size %dx%d", core.ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if c.Renderer.MaxObjects == 0 || c.Renderer.MaxObjects > maxObjectsLimit {
		return fmt.Errorf("%w: max_objects %d not in [1, %d]", core.ErrInvalidConfig, c.Renderer.MaxObjects, maxObjectsLimit)
	}
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	if c.Assets.VertexShader == "" || c.Assets.FragmentShader == "" {
		return fmt.Errorf("%w: vertex and fragment shaders are required", core.ErrInvalidConfig)
	}
	return nil
}

// AssetPath resolves name against the assets root.
func (c *Config) AssetPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Assets.Root, name)
}

func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
