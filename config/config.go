package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/envy"
	"github.com/sirupsen/logrus"
)

// Configuration defines everything the triangle application can be tuned with
type Configuration struct {
	Window   WindowConfiguration
	Renderer RendererConfiguration
	LogLevel logrus.Level
}

type WindowConfiguration struct {
	Title  string
	Width  int
	Height int
}

type RendererConfiguration struct {
	EnableValidation bool
	// ShaderDirectory holds the compiled vert.spv and frag.spv
	ShaderDirectory string
	ClearColor      mgl32.Vec4

	PauseInterval time.Duration
	StatsInterval time.Duration
}

const (
	envTitle           = "TRIANGLE_TITLE"
	envWidth           = "TRIANGLE_WIDTH"
	envHeight          = "TRIANGLE_HEIGHT"
	envValidation      = "TRIANGLE_VALIDATION"
	envShaderDirectory = "TRIANGLE_SHADER_DIR"
	envClearColor      = "TRIANGLE_CLEAR_COLOR"
	envPauseInterval   = "TRIANGLE_PAUSE_INTERVAL"
	envStatsInterval   = "TRIANGLE_STATS_INTERVAL"
	envLogLevel        = "TRIANGLE_LOG_LEVEL"
)

func Default() Configuration {
	return Configuration{
		Window: WindowConfiguration{
			Title:  "Vulkan",
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfiguration{
			EnableValidation: true,
			ShaderDirectory:  "./shaders",
			ClearColor:       mgl32.Vec4{0, 0, 0, 1},
			PauseInterval:    16 * time.Millisecond,
			StatsInterval:    5 * time.Second,
		},
		LogLevel: logrus.InfoLevel,
	}
}

// Load reads the configuration from the environment (and a .env file, if present),
// falling back to Default for anything unset
func Load() (Configuration, error) {
	cfg := Default()
	var err error

	if title, set := lookup(envTitle); set {
		cfg.Window.Title = title
	}

	cfg.Window.Width, err = positiveInt(envWidth, cfg.Window.Width)
	if err != nil {
		return cfg, err
	}

	cfg.Window.Height, err = positiveInt(envHeight, cfg.Window.Height)
	if err != nil {
		return cfg, err
	}

	if validation, set := lookup(envValidation); set {
		cfg.Renderer.EnableValidation, err = strconv.ParseBool(validation)
		if err != nil {
			return cfg, errors.Wrapf(err, "%s", envValidation)
		}
	}

	if dir, set := lookup(envShaderDirectory); set {
		cfg.Renderer.ShaderDirectory = dir
	}

	if color, set := lookup(envClearColor); set {
		cfg.Renderer.ClearColor, err = parseColor(color)
		if err != nil {
			return cfg, errors.Wrapf(err, "%s", envClearColor)
		}
	}

	cfg.Renderer.PauseInterval, err = duration(envPauseInterval, cfg.Renderer.PauseInterval)
	if err != nil {
		return cfg, err
	}

	cfg.Renderer.StatsInterval, err = duration(envStatsInterval, cfg.Renderer.StatsInterval)
	if err != nil {
		return cfg, err
	}

	if level, set := lookup(envLogLevel); set {
		cfg.LogLevel, err = logrus.ParseLevel(level)
		if err != nil {
			return cfg, errors.Wrapf(err, "%s", envLogLevel)
		}
	}

	return cfg, nil
}

// lookup treats an empty variable as unset
func lookup(key string) (string, bool) {
	value := strings.TrimSpace(envy.Get(key, ""))
	return value, value != ""
}

func positiveInt(key string, fallback int) (int, error) {
	value, set := lookup(key)
	if !set {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	if parsed <= 0 {
		return 0, errors.Newf("%s: must be positive, got %d", key, parsed)
	}
	return parsed, nil
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	value, set := lookup(key)
	if !set {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	if parsed < 0 {
		return 0, errors.Newf("%s: must not be negative, got %s", key, parsed)
	}
	return parsed, nil
}

// parseColor reads "r,g,b,a" with every component in [0, 1]
func parseColor(value string) (mgl32.Vec4, error) {
	var color mgl32.Vec4

	components := strings.Split(value, ",")
	if len(components) != len(color) {
		return color, errors.Newf("expected %d comma separated components, got %d", len(color), len(components))
	}

	for i, component := range components {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(component), 32)
		if err != nil {
			return color, errors.Wrapf(err, "component %d", i)
		}
		if parsed < 0 || parsed > 1 {
			return color, errors.Newf("component %d out of range: %g", i, parsed)
		}
		color[i] = float32(parsed)
	}

	return color, nil
}
