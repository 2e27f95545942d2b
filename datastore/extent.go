package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
)

// Extent counts the records of a filtered view and bounds their points.
// Bounds is nil when no record has a geometry.
type Extent struct {
	TotalCount int64
	GeomCount  int64
	Bounds     *tile.Bounds
}

// QueryExtent measures the records matching req's filters and full-text query.
func (s *Store) QueryExtent(ctx context.Context, req tilequery.Request) (Extent, error) {
	stmt, err := s.queries.Extent(req)
	if err != nil {
		return Extent{}, err
	}

	var (
		ext                      Extent
		south, west, north, east sql.NullFloat64
	)
	start := time.Now()
	err = sq.QueryRowContextWith(ctx, sq.WrapStdSqlCtx(s.db), stmt).
		Scan(&ext.TotalCount, &ext.GeomCount, &south, &west, &north, &east)
	track(ctx, start)
	if err != nil {
		return Extent{}, fmt.Errorf("query extent of %s: %w", req.ResourceID, err)
	}

	if south.Valid && west.Valid && north.Valid && east.Valid {
		ext.Bounds = &tile.Bounds{
			NorthWest: tile.LatLng{Lat: north.Float64, Lng: west.Float64},
			SouthEast: tile.LatLng{Lat: south.Float64, Lng: east.Float64},
		}
	}

	s.logger.Debug().
		Str("resource_id", req.ResourceID).
		Int64("total_count", ext.TotalCount).
		Int64("geom_count", ext.GeomCount).
		Msg("Measured extent")
	return ext, nil
}
