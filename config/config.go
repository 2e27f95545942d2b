package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from environment variables before they are mapped
	// onto config paths: TILEDMAP_WINDSHAFT_HOST sets windshaft.host.
	EnvPrefix = "TILEDMAP_"

	// EnvConfigFile names an explicit YAML file to load.
	EnvConfigFile = EnvPrefix + "CONFIG"

	defaultConfigFile = "config.yaml"
)

// Options controls where Load reads from. The zero value reads config.yaml
// from the working directory when it exists, then the environment.
type Options struct {
	// File is an explicit YAML path; a missing explicit file is an error.
	File string
	// YAML is inline YAML applied after File.
	YAML []byte
	// SkipEnv ignores environment variables.
	SkipEnv bool
}

// Load loads configuration with priority env > YAML > defaults. The YAML
// path comes from TILEDMAP_CONFIG, falling back to an optional config.yaml.
func Load() (*Config, error) {
	return LoadWith(Options{File: os.Getenv(EnvConfigFile)})
}

// LoadWith loads configuration from the sources in opts.
func LoadWith(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadFile(k, opts.File); err != nil {
		return nil, err
	}

	if len(opts.YAML) > 0 {
		if err := k.Load(rawbytes.Provider(opts.YAML), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse inline config: %w", err)
		}
	}

	if !opts.SkipEnv {
		if err := k.Load(envprovider.Provider(".", envprovider.Opt{
			Prefix:        EnvPrefix,
			TransformFunc: transformEnv,
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// transformEnv maps TILEDMAP_STYLE_PLOT_MARKERSIZE to style.plot.markersize.
func transformEnv(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	if key == "CONFIG" {
		return "", nil
	}
	return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"log.level":  "info",
		"log.pretty": false,

		"windshaft.scheme":       "http",
		"windshaft.host":         "127.0.0.1",
		"windshaft.port":         4000,
		"windshaft.database":     "",
		"windshaft.timeout":      "30s",
		"windshaft.retries":      2,
		"windshaft.retrydelay":   "500ms",
		"windshaft.concurrency":  4,
		"windshaft.rate":         10.0,
		"windshaft.burst":        4,
		"windshaft.maxseedtiles": 1000000,

		// Datastore URLs have no defaults; database commands fail with a
		// not-configured error until they are set.
		"datastore.pool.maxopen":     10,
		"datastore.pool.maxidle":     2,
		"datastore.pool.maxlifetime": "30m",

		"geometry.webmercator": "_the_geom_webmercator",
		"geometry.latlng":      "_geom",

		"style.plot.fillcolor":         "#EE0000",
		"style.plot.linecolor":         "#FFFFFF",
		"style.plot.markersize":        8,
		"style.plot.gridresolution":    4,
		"style.gridded.basecolor":      "#F02323",
		"style.gridded.markersize":     8,
		"style.gridded.gridresolution": 8,
		"style.heatmap.intensity":      0.1,
		"style.heatmap.gradient":       "#0000FF, #00FFFF, #00FF00, #FFFF00, #FFA500, #FF0000",
		"style.heatmap.markerurl":      "!markers!/alpharadiantdeg20px.png",
		"style.heatmap.markersize":     20,

		"zoom.min":         3,
		"zoom.max":         18,
		"zoom.initial.min": 3,
		"zoom.initial.max": 6,

		"tilelayer.url":     "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		"tilelayer.opacity": 0.8,

		"server.host":            "0.0.0.0",
		"server.port":            8080,
		"server.basepath":        "",
		"server.readtimeout":     "15s",
		"server.writetimeout":    "60s",
		"server.shutdowntimeout": "10s",
		"server.ratelimit":       0,
		"server.cachemaxage":     "1h",
		"server.publicurl":       "",

		"observability.enabled":          false,
		"observability.servicename":      "tiledmap",
		"observability.trace.enabled":    true,
		"observability.trace.endpoint":   "stdout",
		"observability.trace.protocol":   "http",
		"observability.trace.samplerate": 1.0,
		"observability.metrics.enabled":  true,
		"observability.metrics.endpoint": "stdout",
		"observability.metrics.protocol": "http",
		"observability.metrics.interval": "30s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
