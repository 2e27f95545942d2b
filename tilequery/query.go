// Package tilequery builds the SQL the tile renderer runs for each map style.
//
// Every statement is assembled with the templated Select builder, so dataset
// identifiers, filter values and drawn geometries reach the renderer only
// through its sanitizer.
package tilequery

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/database"
	"github.com/gaborage/go-tiledmap/database/types"
	"github.com/gaborage/go-tiledmap/logger"
	"github.com/gaborage/go-tiledmap/tile"
)

// Style is a map rendering style.
type Style string

const (
	StylePlot    Style = "plot"
	StyleGridded Style = "gridded"
	StyleHeatmap Style = "heatmap"
)

// Styles lists the supported styles.
var Styles = []Style{StylePlot, StyleGridded, StyleHeatmap}

const (
	// CountColumn carries the number of records behind a rendered marker or cell.
	CountColumn   = "_mapplugin_count"
	subqueryAlias = "_mapplugin_sub"
	fullTextField = "_full_text"

	// coordPrecision matches the ten decimals the renderer has always been sent.
	coordPrecision = 1e10
)

var (
	// ErrMissingResource is returned when a request names no dataset.
	ErrMissingResource = errors.New("resource id is required")
	// ErrUnknownStyle is returned for styles outside Styles.
	ErrUnknownStyle = errors.New("unknown map style")
)

// ParseStyle validates a style name.
func ParseStyle(s string) (Style, error) {
	for _, style := range Styles {
		if string(style) == s {
			return style, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
}

// Request describes the records to draw: a dataset table, the filters and
// full-text query of the current view, and the tile being rendered.
type Request struct {
	ResourceID string
	Coord      tile.Coord
	Filters    Filters
	Q          string
	// Fields are exposed through UTFGrid interactivity.
	Fields []string
}

// Validate checks the resource and tile coordinate.
func (r Request) Validate() error {
	if r.ResourceID == "" {
		return ErrMissingResource
	}
	return r.Coord.Validate()
}

// Generator builds renderer SQL using the configured geometry columns and style.
type Generator struct {
	geometry config.GeometryConfig
	style    config.StyleConfig
	logger   logger.Logger
	opts     []database.Option
}

// Option customizes a Generator.
type Option func(*Generator)

// WithNewlines renders each clause on its own line.
func WithNewlines() Option {
	return func(g *Generator) { g.opts = append(g.opts, database.WithNewlines()) }
}

// WithStrict rejects filter values containing characters the sanitizer would drop.
func WithStrict() Option {
	return func(g *Generator) { g.opts = append(g.opts, database.WithStrict()) }
}

// WithLogger sets the logger that receives suspicious-input warnings.
func WithLogger(log logger.Logger) Option {
	return func(g *Generator) { g.logger = log }
}

// New creates a Generator from the geometry and style sections of cfg.
func New(geometry config.GeometryConfig, style config.StyleConfig, opts ...Option) *Generator {
	g := &Generator{
		geometry: geometry,
		style:    style,
		logger:   logger.NewNop(),
		opts:     []database.Option{database.WithCompact()},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Tile returns the raster tile SQL of style.
func (g *Generator) Tile(style Style, req Request) (*database.Select, error) {
	if err := g.prepare(req); err != nil {
		return nil, err
	}
	switch style {
	case StylePlot:
		return g.plot(req, false), nil
	case StyleGridded:
		return g.gridded(req), nil
	case StyleHeatmap:
		return g.heatmap(req), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
}

// Grid returns the UTFGrid SQL of style and the interactivity columns the
// renderer must encode. Heatmaps have no grid.
func (g *Generator) Grid(style Style, req Request) (*database.Select, []string, error) {
	if err := g.prepare(req); err != nil {
		return nil, nil, err
	}
	switch style {
	case StylePlot:
		return g.plot(req, true), interactivity(req.Fields), nil
	case StyleGridded:
		return g.gridded(req), []string{CountColumn}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q has no grid", ErrUnknownStyle, style)
	}
}

// interactivity lists the grid columns as the SQL names them, so fields go
// through the same sanitizer as the quoted identifiers.
func interactivity(fields []string) []string {
	out := make([]string, 0, len(fields)+1)
	out = append(out, CountColumn)
	for _, f := range fields {
		out = append(out, database.Sanitize(f))
	}
	return out
}

// Extent returns the statement counting the filtered records and measuring
// their lat/lng bounds. Columns: total_count, geom_count, south, west, north, east.
func (g *Generator) Extent(req Request) (*database.Select, error) {
	if req.ResourceID == "" {
		return nil, ErrMissingResource
	}
	g.screen(req)

	s := g.newSelect(req)
	s.SelectFrom("{resource}").
		Select("COUNT(*) AS total_count").
		Select("COUNT({geom4326}) AS geom_count").
		Select("ST_YMin(ST_Extent({geom4326})) AS south").
		Select("ST_XMin(ST_Extent({geom4326})) AS west").
		Select("ST_YMax(ST_Extent({geom4326})) AS north").
		Select("ST_XMax(ST_Extent({geom4326})) AS east")
	g.where(s, req)
	return s, nil
}

func (g *Generator) prepare(req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	g.screen(req)
	return nil
}

func (g *Generator) newSelect(req Request) *database.Select {
	opts := make([]database.Option, 0, len(g.opts)+1)
	opts = append(opts, g.opts...)
	opts = append(opts, database.WithIdentifiers(types.Identifiers{
		"resource": types.Ident(req.ResourceID),
		"geom":     types.QualifiedIdent(req.ResourceID, g.geometry.WebMercator),
		"geom4326": types.QualifiedIdent(req.ResourceID, g.geometry.LatLng),
	}))
	return database.NewSelect(opts...)
}

// where adds the view filters and the full-text query.
func (g *Generator) where(s *database.Select, req Request) {
	for _, f := range req.Filters {
		if len(f.Values) == 0 {
			continue
		}
		if f.Field == GeometryField {
			for _, wkt := range f.Values {
				s.Where("ST_Intersects({geom}, ST_Transform(ST_GeomFromText({wkt}, 4326), 3857))",
					types.Values{"wkt": types.Text(wkt)})
			}
			continue
		}
		field := types.Identifiers{"field": types.QualifiedIdent(req.ResourceID, f.Field)}
		if len(f.Values) == 1 {
			s.Where("{field} = {value}", field, types.Values{"value": types.Text(f.Values[0])})
			continue
		}
		s.Where(inTemplate(len(f.Values)), field, valueList(f.Values))
	}

	if req.Q != "" {
		s.Where("{fulltext} @@ plainto_tsquery({q})",
			types.Identifiers{"fulltext": types.QualifiedIdent(req.ResourceID, fullTextField)},
			types.Values{"q": types.Text(req.Q)})
	}
}

func inTemplate(n int) string {
	tmpl := "{field} IN ("
	for i := range n {
		if i > 0 {
			tmpl += ", "
		}
		tmpl += "{v" + strconv.Itoa(i) + "}"
	}
	return tmpl + ")"
}

func valueList(values []string) types.Values {
	vals := make(types.Values, len(values))
	for i, v := range values {
		vals["v"+strconv.Itoa(i)] = types.Text(v)
	}
	return vals
}

// inTile keeps points whose marker, radius pixels wide, may overlap the tile.
func inTile(s *database.Select, c tile.Coord, radius float64) {
	b := c.Bounds()
	s.Where("ST_Intersects({geom}, ST_Expand( ST_Transform( ST_SetSrid( ST_MakeBox2D( "+
		"ST_Makepoint({west}, {north}), ST_Makepoint({east}, {south}) ), 4326), 3857), !pixel_width! * {radius}))",
		types.Values{
			"west":   types.Float(round(b.NorthWest.Lng)),
			"north":  types.Float(round(b.NorthWest.Lat)),
			"east":   types.Float(round(b.SouthEast.Lng)),
			"south":  types.Float(round(b.SouthEast.Lat)),
			"radius": types.Float(radius),
		})
}

func round(v float64) float64 {
	return math.Round(v*coordPrecision) / coordPrecision
}

// plot draws one marker per distinct location in random order so no field
// value systematically wins the top of the pile. The grid variant also
// carries the overlap count and the interactivity fields.
func (g *Generator) plot(req Request, grid bool) *database.Select {
	inner := g.newSelect(req)
	inner.SelectFrom("{resource}").DistinctOn("{geom}")
	if grid {
		inner.Select("COUNT(*) OVER (PARTITION BY {geom}) AS {count}",
			types.Identifiers{"count": types.Ident(CountColumn)})
		for _, f := range req.Fields {
			inner.Select("{field}", types.Identifiers{"field": types.QualifiedIdent(req.ResourceID, f)})
		}
	}
	inner.Select("{geom}")
	g.where(inner, req)
	inTile(inner, req.Coord, float64(g.style.Plot.MarkerSize)/2)

	outer := database.NewSelect(g.opts...)
	outer.SelectFrom("({inner}) AS "+subqueryAlias, types.Values{"inner": types.Subquery(inner)})
	if grid {
		outer.Select("{count}", types.Identifiers{"count": types.Ident(CountColumn)})
		for _, f := range req.Fields {
			outer.Select("{field}", types.Identifiers{"field": types.Ident(f)})
		}
	}
	outer.Select("{geom}", types.Identifiers{"geom": types.Ident(g.geometry.WebMercator)})
	if !grid {
		outer.OrderBy("random()")
	}
	return outer
}

// gridded snaps points to cells grid_resolution pixels wide and counts them.
func (g *Generator) gridded(req Request) *database.Select {
	cell := types.Values{"resolution": types.Int(int64(g.style.Gridded.GridResolution))}
	snap := "ST_SnapToGrid({geom}, !pixel_width! * {resolution}, !pixel_height! * {resolution})"

	s := g.newSelect(req)
	s.SelectFrom("{resource}").
		Select("COUNT({geom}) AS {count}", types.Identifiers{"count": types.Ident(CountColumn)}).
		Select(snap+" AS {alias}", cell, types.Identifiers{"alias": types.Ident(g.geometry.WebMercator)})
	g.where(s, req)
	inTile(s, req.Coord, float64(g.style.Gridded.GridResolution))
	s.GroupBy(snap, cell)
	return s
}

// heatmap returns every matching point; density is computed by the renderer.
func (g *Generator) heatmap(req Request) *database.Select {
	s := g.newSelect(req)
	s.SelectFrom("{resource}").Select("{geom}")
	g.where(s, req)
	inTile(s, req.Coord, float64(g.style.Heatmap.MarkerSize)/2)
	return s
}
