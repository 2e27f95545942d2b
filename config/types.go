package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the loaded, validated configuration. Values are read once at
// startup and passed down by value or pointer; nothing mutates them afterwards.
type Config struct {
	Log       LogConfig       `koanf:"log" json:"log" yaml:"log"`
	Windshaft WindshaftConfig `koanf:"windshaft" json:"windshaft" yaml:"windshaft"`
	Datastore DatastoreConfig `koanf:"datastore" json:"datastore" yaml:"datastore"`
	Geometry  GeometryConfig  `koanf:"geometry" json:"geometry" yaml:"geometry"`
	Style     StyleConfig     `koanf:"style" json:"style" yaml:"style"`
	Zoom      ZoomConfig      `koanf:"zoom" json:"zoom" yaml:"zoom"`
	TileLayer TileLayerConfig `koanf:"tilelayer" json:"tilelayer" yaml:"tilelayer"`
	Server    ServerConfig    `koanf:"server" json:"server" yaml:"server"`

	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// WindshaftConfig locates the tile renderer and bounds how hard it is driven.
type WindshaftConfig struct {
	Scheme   string `koanf:"scheme" json:"scheme" yaml:"scheme" validate:"required,oneof=http https"`
	Host     string `koanf:"host" json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `koanf:"port" json:"port" yaml:"port" validate:"required,min=1,max=65535"`
	Database string `koanf:"database" json:"database" yaml:"database"`

	Timeout    time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	Retries    int           `koanf:"retries" json:"retries" yaml:"retries" validate:"min=0,max=10"`
	RetryDelay time.Duration `koanf:"retrydelay" json:"retrydelay" yaml:"retrydelay" validate:"min=0"`

	// Seeding only.
	Concurrency int     `koanf:"concurrency" json:"concurrency" yaml:"concurrency" validate:"min=1,max=64"`
	Rate        float64 `koanf:"rate" json:"rate" yaml:"rate" validate:"min=0"`
	Burst       int     `koanf:"burst" json:"burst" yaml:"burst" validate:"min=1"`
	// MaxSeedTiles bounds the tiles one seed may cover across all zooms.
	MaxSeedTiles int64 `koanf:"maxseedtiles" json:"maxseedtiles" yaml:"maxseedtiles" validate:"min=1"`
}

// BaseURL returns scheme://host:port.
func (w WindshaftConfig) BaseURL() string {
	u := url.URL{Scheme: w.Scheme, Host: w.Host + ":" + strconv.Itoa(w.Port)}
	return u.String()
}

// DatastoreConfig holds the connection strings of the datastore database.
// Reads go through ReadURL; geometry maintenance uses WriteURL.
type DatastoreConfig struct {
	ReadURL  string     `koanf:"readurl" json:"readurl" yaml:"readurl" validate:"omitempty,url"`
	WriteURL string     `koanf:"writeurl" json:"writeurl" yaml:"writeurl" validate:"omitempty,url"`
	Pool     PoolConfig `koanf:"pool" json:"pool" yaml:"pool"`
}

// PoolConfig sizes the database/sql pool.
type PoolConfig struct {
	MaxOpen     int           `koanf:"maxopen" json:"maxopen" yaml:"maxopen" validate:"min=0"`
	MaxIdle     int           `koanf:"maxidle" json:"maxidle" yaml:"maxidle" validate:"min=0"`
	MaxLifetime time.Duration `koanf:"maxlifetime" json:"maxlifetime" yaml:"maxlifetime" validate:"min=0"`
}

// GeometryConfig names the PostGIS columns added to every mapped table.
type GeometryConfig struct {
	WebMercator string `koanf:"webmercator" json:"webmercator" yaml:"webmercator" validate:"required,identifier"`
	LatLng      string `koanf:"latlng" json:"latlng" yaml:"latlng" validate:"required,identifier"`
}

// StyleConfig holds the per-style rendering defaults.
type StyleConfig struct {
	Plot    PlotStyle    `koanf:"plot" json:"plot" yaml:"plot"`
	Gridded GriddedStyle `koanf:"gridded" json:"gridded" yaml:"gridded"`
	Heatmap HeatmapStyle `koanf:"heatmap" json:"heatmap" yaml:"heatmap"`
}

// PlotStyle draws one marker per distinct point.
type PlotStyle struct {
	FillColor      string `koanf:"fillcolor" json:"fillcolor" yaml:"fillcolor" validate:"required,hexcolor"`
	LineColor      string `koanf:"linecolor" json:"linecolor" yaml:"linecolor" validate:"required,hexcolor"`
	MarkerSize     int    `koanf:"markersize" json:"markersize" yaml:"markersize" validate:"min=1,max=256"`
	GridResolution int    `koanf:"gridresolution" json:"gridresolution" yaml:"gridresolution" validate:"min=1,max=256"`
}

// GriddedStyle aggregates points into square cells.
type GriddedStyle struct {
	BaseColor      string `koanf:"basecolor" json:"basecolor" yaml:"basecolor" validate:"required,hexcolor"`
	MarkerSize     int    `koanf:"markersize" json:"markersize" yaml:"markersize" validate:"min=1,max=256"`
	GridResolution int    `koanf:"gridresolution" json:"gridresolution" yaml:"gridresolution" validate:"min=1,max=256"`
}

// HeatmapStyle renders a density surface from point sprites.
type HeatmapStyle struct {
	Intensity  float64 `koanf:"intensity" json:"intensity" yaml:"intensity" validate:"gt=0,lte=1"`
	Gradient   string  `koanf:"gradient" json:"gradient" yaml:"gradient" validate:"required"`
	MarkerURL  string  `koanf:"markerurl" json:"markerurl" yaml:"markerurl" validate:"required"`
	MarkerSize int     `koanf:"markersize" json:"markersize" yaml:"markersize" validate:"min=1,max=256"`
}

// ZoomConfig constrains the map zoom and the automatic initial zoom.
type ZoomConfig struct {
	Min     int        `koanf:"min" json:"min" yaml:"min" validate:"min=0,max=30"`
	Max     int        `koanf:"max" json:"max" yaml:"max" validate:"min=0,max=30,gtefield=Min"`
	Initial ZoomBounds `koanf:"initial" json:"initial" yaml:"initial"`
}

// ZoomBounds is an inclusive zoom range.
type ZoomBounds struct {
	Min int `koanf:"min" json:"min" yaml:"min" validate:"min=0,max=30"`
	Max int `koanf:"max" json:"max" yaml:"max" validate:"min=0,max=30,gtefield=Min"`
}

// TileLayerConfig is the base layer drawn under the data tiles.
type TileLayerConfig struct {
	URL     string  `koanf:"url" json:"url" yaml:"url" validate:"required"`
	Opacity float64 `koanf:"opacity" json:"opacity" yaml:"opacity" validate:"min=0,max=1"`
}

// ServerConfig configures the HTTP tile endpoint started by `tiledmap serve`.
type ServerConfig struct {
	Host            string        `koanf:"host" json:"host" yaml:"host"`
	Port            int           `koanf:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`
	BasePath        string        `koanf:"basepath" json:"basepath" yaml:"basepath"`
	ReadTimeout     time.Duration `koanf:"readtimeout" json:"readtimeout" yaml:"readtimeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"writetimeout" json:"writetimeout" yaml:"writetimeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout" json:"shutdowntimeout" yaml:"shutdowntimeout" validate:"min=0"`
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit int `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" validate:"min=0"`
	// CacheMaxAge is sent as Cache-Control max-age on tiles.
	CacheMaxAge time.Duration `koanf:"cachemaxage" json:"cachemaxage" yaml:"cachemaxage" validate:"min=0"`
	// PublicURL is the tile endpoint advertised in map-info documents. When
	// empty the request's own scheme and host are used.
	PublicURL string `koanf:"publicurl" json:"publicurl" yaml:"publicurl" validate:"omitempty,url"`
}

// ObservabilityConfig enables OpenTelemetry traces and metrics for the
// long-running commands.
type ObservabilityConfig struct {
	Enabled     bool              `koanf:"enabled" json:"enabled" yaml:"enabled"`
	ServiceName string            `koanf:"servicename" json:"servicename" yaml:"servicename" validate:"required"`
	Trace       TelemetryExporter `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics     TelemetryExporter `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// TelemetryExporter selects where one signal is exported. Endpoint "stdout"
// prints to the command output; anything else is an OTLP collector address.
type TelemetryExporter struct {
	Enabled  bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure bool   `koanf:"insecure" json:"insecure" yaml:"insecure"`
	// SampleRate applies to traces only.
	SampleRate float64 `koanf:"samplerate" json:"samplerate" yaml:"samplerate" validate:"min=0,max=1"`
	// Interval applies to metrics only.
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"min=0"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Clamp restricts z to the configured zoom bounds.
func (z ZoomConfig) Clamp(zoom int) int {
	return min(max(zoom, z.Min), z.Max)
}

// String renders a short human-readable summary without credentials.
func (c *Config) String() string {
	return fmt.Sprintf("windshaft=%s log=%s geometry=%s/%s",
		c.Windshaft.BaseURL(), c.Log.Level, c.Geometry.WebMercator, c.Geometry.LatLng)
}
