// Package mapinfo assembles the settings document a map view loads before
// requesting tiles: zoom limits, base layer, enabled styles, record counts
// and the bounds to fit.
package mapinfo

import (
	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/datastore"
	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
)

// DefaultBounds is used when the filtered records have no geometry.
var DefaultBounds = [2][2]float64{{83, -170}, {-83, 170}}

// MapInfo is serialized as the map-info JSON document.
type MapInfo struct {
	Geospatial  bool                          `json:"geospatial"`
	ZoomBounds  config.ZoomBounds             `json:"zoom_bounds"`
	InitialZoom config.ZoomBounds             `json:"initial_zoom"`
	TileLayer   config.TileLayerConfig        `json:"tile_layer"`
	MapStyle    tilequery.Style               `json:"map_style,omitempty"`
	MapStyles   map[tilequery.Style]StyleInfo `json:"map_styles"`
	TotalCount  int64                         `json:"total_count"`
	GeomCount   int64                         `json:"geom_count"`
	// Bounds is [[north, west], [south, east]].
	Bounds [2][2]float64 `json:"bounds"`
}

// StyleInfo describes one selectable style.
type StyleInfo struct {
	Name       string     `json:"name"`
	IconURL    string     `json:"icon,omitempty"`
	HasGrid    bool       `json:"has_grid"`
	TileSource TileSource `json:"tile_source"`
}

// TileSource tells the view where to fetch tiles. URL and GridURL carry
// {z}, {x} and {y} placeholders.
type TileSource struct {
	URL     string         `json:"url"`
	GridURL string         `json:"grid_url,omitempty"`
	Params  map[string]any `json:"params"`
}

// View is the per-view part of the document.
type View struct {
	ResourceID string
	// TileURL is the tile endpoint base; the style, resource and coordinate
	// path are appended to it.
	TileURL string
	Styles  []tilequery.Style
	UTFGrid bool
}

// Build creates the document for view from cfg and the measured extent.
// When several styles are enabled the first of Styles becomes the default.
func Build(cfg *config.Config, view View, ext datastore.Extent) MapInfo {
	info := MapInfo{
		Geospatial:  true,
		ZoomBounds:  config.ZoomBounds{Min: cfg.Zoom.Min, Max: cfg.Zoom.Max},
		InitialZoom: cfg.Zoom.Initial,
		TileLayer:   cfg.TileLayer,
		MapStyles:   map[tilequery.Style]StyleInfo{},
		TotalCount:  ext.TotalCount,
		GeomCount:   ext.GeomCount,
		Bounds:      DefaultBounds,
	}
	if ext.Bounds != nil {
		info.Bounds = boundsOf(*ext.Bounds)
	}

	for i, style := range view.Styles {
		si, ok := styleInfo(cfg.Style, style)
		if !ok {
			continue
		}
		base := view.TileURL + "/" + string(style) + "/" + view.ResourceID + "/{z}/{x}/{y}"
		si.TileSource.URL = base + "." + string(tile.FormatPNG)
		if view.UTFGrid && style != tilequery.StyleHeatmap {
			si.HasGrid = true
			si.TileSource.GridURL = base + "." + string(tile.FormatGrid)
		}
		info.MapStyles[style] = si
		if i == 0 {
			info.MapStyle = style
		}
	}
	return info
}

func styleInfo(cfg config.StyleConfig, style tilequery.Style) (StyleInfo, bool) {
	switch style {
	case tilequery.StylePlot:
		return StyleInfo{Name: "Plot Map", IconURL: "/img/plot.png", TileSource: TileSource{Params: map[string]any{
			"point_radius":  cfg.Plot.MarkerSize / 2,
			"point_colour":  cfg.Plot.FillColor,
			"border_colour": cfg.Plot.LineColor,
		}}}, true
	case tilequery.StyleGridded:
		return StyleInfo{Name: "Distribution Map", IconURL: "/img/gridded.png", TileSource: TileSource{Params: map[string]any{
			"grid_resolution": cfg.Gridded.GridResolution,
			"base_colour":     cfg.Gridded.BaseColor,
		}}}, true
	case tilequery.StyleHeatmap:
		return StyleInfo{Name: "Heat Map", IconURL: "/img/heatmap.png", TileSource: TileSource{Params: map[string]any{
			"point_radius": cfg.Heatmap.MarkerSize / 2,
			"intensity":    cfg.Heatmap.Intensity,
			"gradient":     cfg.Heatmap.Gradient,
		}}}, true
	default:
		return StyleInfo{}, false
	}
}

func boundsOf(b tile.Bounds) [2][2]float64 {
	return [2][2]float64{
		{b.NorthWest.Lat, b.NorthWest.Lng},
		{b.SouthEast.Lat, b.SouthEast.Lng},
	}
}
