package windshaft

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
)

var (
	// ErrInvalidZoomRange is returned when a seed range is empty or out of bounds.
	ErrInvalidZoomRange = errors.New("invalid zoom range")
	// ErrTooManyTiles is returned when a seed covers more tiles than the
	// configured limit.
	ErrTooManyTiles = errors.New("seed covers too many tiles")
)

// DefaultMaxSeedTiles applies when windshaft.maxseedtiles is unset.
const DefaultMaxSeedTiles = 1_000_000

// SeedRequest renders every tile covering Bounds from MinZoom to MaxZoom.
// Query.Coord is ignored.
type SeedRequest struct {
	Style   tilequery.Style
	Query   tilequery.Request
	Bounds  tile.Bounds
	MinZoom int
	MaxZoom int
	// Grids also fetches the UTFGrid of every tile. Heatmaps have none.
	Grids bool
	// OnTile, when set, receives each rendered tile. It is called concurrently.
	OnTile func(*Tile)
}

// SeedResult summarizes a finished seed.
type SeedResult struct {
	Tiles   int64
	Grids   int64
	Bytes   int64
	Elapsed time.Duration
}

// Seed warms the renderer cache. At most Concurrency tiles are in flight and
// requests are paced at Rate per second with Burst. The first failure cancels
// the remaining work and is returned with the partial result.
func (c *Client) Seed(ctx context.Context, req SeedRequest) (SeedResult, error) {
	if req.MinZoom < 0 || req.MaxZoom > tile.MaxZoom || req.MinZoom > req.MaxZoom {
		return SeedResult{}, fmt.Errorf("%w: %d-%d", ErrInvalidZoomRange, req.MinZoom, req.MaxZoom)
	}
	if _, err := tilequery.ParseStyle(string(req.Style)); err != nil {
		return SeedResult{}, err
	}
	grids := req.Grids && req.Style != tilequery.StyleHeatmap

	maxTiles := uint64(DefaultMaxSeedTiles)
	if c.cfg.MaxSeedTiles > 0 {
		maxTiles = uint64(c.cfg.MaxSeedTiles)
	}
	var total uint64
	for z := req.MinZoom; z <= req.MaxZoom; z++ {
		total += tile.Count(req.Bounds, z)
		if total > maxTiles {
			return SeedResult{}, fmt.Errorf("%w: zoom %d-%d exceeds the limit of %d",
				ErrTooManyTiles, req.MinZoom, req.MaxZoom, maxTiles)
		}
	}

	limit := rate.Inf
	if c.cfg.Rate > 0 {
		limit = rate.Limit(c.cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, max(c.cfg.Burst, 1))

	var tiles, gridCount, bytes atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.Concurrency, 1))

	render := func(q tilequery.Request) error {
		if err := limiter.Wait(gctx); err != nil {
			return err
		}
		t, err := c.Tile(gctx, req.Style, q)
		if err != nil {
			return err
		}
		tiles.Add(1)
		bytes.Add(int64(len(t.Data)))
		if req.OnTile != nil {
			req.OnTile(t)
		}
		if !grids {
			return nil
		}

		if err := limiter.Wait(gctx); err != nil {
			return err
		}
		grid, err := c.Grid(gctx, req.Style, q)
		if err != nil {
			return err
		}
		gridCount.Add(1)
		bytes.Add(int64(len(grid.Data)))
		if req.OnTile != nil {
			req.OnTile(grid)
		}
		return nil
	}

schedule:
	for z := req.MinZoom; z <= req.MaxZoom; z++ {
		c.logger.Info().
			Str("resource_id", req.Query.ResourceID).
			Str("style", string(req.Style)).
			Int("zoom", z).
			Uint64("tiles", tile.Count(req.Bounds, z)).
			Msg("Seeding zoom level")

		for coord := range tile.Cover(req.Bounds, z) {
			if gctx.Err() != nil {
				break schedule
			}
			q := req.Query
			q.Coord = coord
			g.Go(func() error { return render(q) })
		}
	}

	err := g.Wait()
	result := SeedResult{Tiles: tiles.Load(), Grids: gridCount.Load(), Bytes: bytes.Load(), Elapsed: time.Since(start)}

	event := c.logger.Info()
	if err != nil {
		event = c.logger.Error().Err(err)
	}
	event.Str("resource_id", req.Query.ResourceID).
		Int64("tiles", result.Tiles).
		Int64("grids", result.Grids).
		Int64("bytes", result.Bytes).
		Dur("elapsed", result.Elapsed).
		Msg("Seed finished")

	if err != nil {
		return result, fmt.Errorf("seed %s: %w", req.Query.ResourceID, err)
	}
	return result, nil
}
