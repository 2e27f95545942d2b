// Package server exposes map tiles and map-info documents over HTTP. Tiles are
// proxied from the renderer with the SQL built for the requested style and
// view; map-info documents are measured against the datastore.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/datastore"
	"github.com/gaborage/go-tiledmap/logger"
	"github.com/gaborage/go-tiledmap/tilequery"
	"github.com/gaborage/go-tiledmap/windshaft"
)

// Renderer produces tiles. *windshaft.Client implements it.
type Renderer interface {
	Tile(ctx context.Context, style tilequery.Style, req tilequery.Request) (*windshaft.Tile, error)
	Grid(ctx context.Context, style tilequery.Style, req tilequery.Request) (*windshaft.Tile, error)
}

// ExtentQuerier measures filtered views. *datastore.Store implements it.
type ExtentQuerier interface {
	QueryExtent(ctx context.Context, req tilequery.Request) (datastore.Extent, error)
}

const (
	healthRoute  = "/health"
	mapInfoRoute = "/map-info/:resource"
	tilesPrefix  = "/tiles"
	tileRoute    = tilesPrefix + "/:style/:resource/:z/:x/:y"
)

// Server is the HTTP tile endpoint.
type Server struct {
	echo     *echo.Echo
	cfg      *config.Config
	renderer Renderer
	extents  ExtentQuerier
	logger   logger.Logger
	basePath string
}

// New wires routes and middleware. extents may be nil, in which case
// map-info requests answer 503 until a datastore is configured.
func New(cfg *config.Config, renderer Renderer, extents ExtentQuerier, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		cfg:      cfg,
		renderer: renderer,
		extents:  extents,
		logger:   logger.Component(log, "server"),
		basePath: normalizeBasePath(cfg.Server.BasePath),
	}
	e.HTTPErrorHandler = s.handleError

	setupMiddlewares(e, s.logger, cfg, s.path(healthRoute))

	e.GET(s.path(healthRoute), s.health)
	e.GET(s.path(mapInfoRoute), s.mapInfo)
	e.GET(s.path(tileRoute), s.tile)

	s.logger.Debug().
		Str("base_path", s.basePath).
		Str("tile_route", s.path(tileRoute)).
		Msg("Server routes configured")
	return s
}

// normalizeBasePath ensures a leading "/" and no trailing "/". An empty
// path stays empty.
func normalizeBasePath(basePath string) string {
	basePath = strings.TrimRight(basePath, "/")
	if basePath == "" {
		return ""
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return basePath
}

func (s *Server) path(route string) string {
	return s.basePath + route
}

// Handler returns the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on cfg.Server.Address() until ctx is canceled, then shuts down
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      s.echo,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("address", srv.Addr).
			Str("renderer", s.cfg.Windshaft.BaseURL()).
			Msg("Starting tile server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("Shutting down tile server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"datastore": s.extents != nil,
	})
}
