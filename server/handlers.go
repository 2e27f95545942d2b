package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/mapinfo"
	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
	"github.com/gaborage/go-tiledmap/windshaft"
)

// tile serves GET /tiles/:style/:resource/:z/:x/:y where y carries the
// .png or .grid.json suffix.
func (s *Server) tile(c echo.Context) error {
	style, err := tilequery.ParseStyle(c.Param("style"))
	if err != nil {
		return err
	}
	coord, format, err := tile.ParsePath(c.Param("z") + "/" + c.Param("x") + "/" + c.Param("y"))
	if err != nil {
		return err
	}
	req := viewRequest(c, coord)

	var t *windshaft.Tile
	if format == tile.FormatGrid {
		t, err = s.renderer.Grid(c.Request().Context(), style, req)
	} else {
		t, err = s.renderer.Tile(c.Request().Context(), style, req)
	}
	if err != nil {
		return err
	}

	if s.cfg.Server.CacheMaxAge > 0 {
		c.Response().Header().Set(echo.HeaderCacheControl,
			"public, max-age="+strconv.Itoa(int(s.cfg.Server.CacheMaxAge.Seconds())))
	}
	return c.Blob(http.StatusOK, contentType(t), t.Data)
}

func contentType(t *windshaft.Tile) string {
	if t.ContentType != "" {
		return t.ContentType
	}
	if t.Format == tile.FormatGrid {
		return echo.MIMEApplicationJSON
	}
	return "image/png"
}

// mapInfo serves GET /map-info/:resource. Query parameters: filters, q,
// styles (comma separated, first is the default) and utfgrid.
func (s *Server) mapInfo(c echo.Context) error {
	if s.extents == nil {
		return config.NewNotConfiguredError("map-info", "datastore.readurl")
	}

	styles := tilequery.Styles
	if raw := c.QueryParam("styles"); raw != "" {
		styles = nil
		for _, name := range splitList(raw) {
			style, err := tilequery.ParseStyle(name)
			if err != nil {
				return err
			}
			styles = append(styles, style)
		}
	}
	utfgrid := true
	if raw := c.QueryParam("utfgrid"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "utfgrid must be a boolean")
		}
		utfgrid = v
	}

	req := viewRequest(c, tile.Coord{})
	ext, err := s.extents.QueryExtent(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, mapinfo.Build(s.cfg, mapinfo.View{
		ResourceID: req.ResourceID,
		TileURL:    s.tileBaseURL(c),
		Styles:     styles,
		UTFGrid:    utfgrid,
	}, ext))
}

// tileBaseURL is the configured public URL, or this server's own tile
// prefix as reached by the client.
func (s *Server) tileBaseURL(c echo.Context) string {
	if s.cfg.Server.PublicURL != "" {
		return strings.TrimRight(s.cfg.Server.PublicURL, "/")
	}
	return c.Scheme() + "://" + c.Request().Host + s.path(tilesPrefix)
}

// viewRequest reads the filtered view from the route and query string.
// fields may be repeated or comma separated.
func viewRequest(c echo.Context, coord tile.Coord) tilequery.Request {
	var fields []string
	for _, raw := range c.QueryParams()["fields"] {
		fields = append(fields, splitList(raw)...)
	}
	return tilequery.Request{
		ResourceID: c.Param("resource"),
		Coord:      coord,
		Filters:    tilequery.ParseFilters(c.QueryParam("filters")),
		Q:          c.QueryParam("q"),
		Fields:     fields,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
