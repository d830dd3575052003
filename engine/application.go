package engine

import (
	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/okapi/engine/config"
	"github.com/spaghettifunk/okapi/engine/core"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name     string
	LogLevel log.Level

	Validation bool
	MaxObjects uint32
	ClearColor [4]float32

	AssetsRoot             string
	VertexShader           string
	FragmentShader         string
	TexturedFragmentShader string
	WatchAssets            bool
}

// NewApplicationConfig maps a loaded configuration file. Shader paths stay
// relative to AssetsRoot.
func NewApplicationConfig(cfg *config.Config) (*ApplicationConfig, error) {
	level, err := core.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return &ApplicationConfig{
		StartPosX:              cfg.Window.X,
		StartPosY:              cfg.Window.Y,
		StartWidth:             cfg.Window.Width,
		StartHeight:            cfg.Window.Height,
		Name:                   cfg.Window.Title,
		LogLevel:               level,
		Validation:             cfg.Renderer.Validation,
		MaxObjects:             cfg.Renderer.MaxObjects,
		ClearColor:             cfg.Renderer.ClearColor,
		AssetsRoot:             cfg.Assets.Root,
		VertexShader:           cfg.Assets.VertexShader,
		FragmentShader:         cfg.Assets.FragmentShader,
		TexturedFragmentShader: cfg.Assets.TexturedFragmentShader,
		WatchAssets:            cfg.Assets.Watch,
	}, nil
}
