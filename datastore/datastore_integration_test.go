//go:build integration

package datastore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/logger"
	"github.com/gaborage/go-tiledmap/testing/containers"
	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
)

func setupPostGIS(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	pg := containers.MustStartPostGIS(ctx, t, nil)

	cfg := &config.Config{
		Datastore: config.DatastoreConfig{
			WriteURL: pg.ConnectionString(),
			Pool:     config.PoolConfig{MaxOpen: 4, MaxIdle: 2, MaxLifetime: time.Minute},
		},
		Geometry: testGeometry,
		Style: config.StyleConfig{
			Plot:    config.PlotStyle{MarkerSize: 8, GridResolution: 4},
			Gridded: config.GriddedStyle{MarkerSize: 8, GridResolution: 8},
			Heatmap: config.HeatmapStyle{MarkerSize: 20},
		},
	}
	store, err := Connect(ctx, cfg, ReadWrite, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.DB().ExecContext(ctx, `CREATE TABLE "`+resourceID+`" (
		"_id" serial PRIMARY KEY,
		"country" text,
		"lat" text,
		"lng" text
	)`)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx, `INSERT INTO "`+resourceID+`" ("country", "lat", "lng") VALUES
		('France', '48.85', '2.35'),
		('France', '43.30', '5.37'),
		('Spain', '40.41', '-3.70'),
		('Spain', NULL, NULL),
		('Nowhere', '95', '10')`)
	require.NoError(t, err)

	return store, ctx
}

func TestGeometryLifecycleIntegration(t *testing.T) {
	store, ctx := setupPostGIS(t)

	has, err := store.HasGeometryColumns(ctx, resourceID)
	require.NoError(t, err)
	assert.False(t, has)

	n, err := store.EnsureGeometryColumns(ctx, resourceID, "lat", "lng")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	has, err = store.HasGeometryColumns(ctx, resourceID)
	require.NoError(t, err)
	assert.True(t, has)

	var projected int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT COUNT("_the_geom_webmercator") FROM "`+resourceID+`"`).Scan(&projected))
	assert.Equal(t, 3, projected, "latitude 95 must not be projected")

	t.Run("extent of a filtered view", func(t *testing.T) {
		ext, err := store.QueryExtent(ctx, tilequery.Request{
			ResourceID: resourceID,
			Filters:    tilequery.ParseFilters("country:France"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), ext.TotalCount)
		assert.Equal(t, int64(2), ext.GeomCount)
		require.NotNil(t, ext.Bounds)
		assert.InDelta(t, 48.85, ext.Bounds.NorthWest.Lat, 1e-6)
		assert.InDelta(t, 2.35, ext.Bounds.NorthWest.Lng, 1e-6)
		assert.InDelta(t, 43.30, ext.Bounds.SouthEast.Lat, 1e-6)
		assert.InDelta(t, 5.37, ext.Bounds.SouthEast.Lng, 1e-6)
	})

	t.Run("tile sql runs against postgis", func(t *testing.T) {
		coord := tile.At(tile.LatLng{Lat: 46, Lng: 2}, 4)
		for _, style := range tilequery.Styles {
			s, err := store.queries.Tile(style, tilequery.Request{ResourceID: resourceID, Coord: coord})
			require.NoError(t, err)
			sql, err := s.ToSQL()
			require.NoError(t, err)

			// The renderer substitutes its pixel size tokens before running the query.
			sql = strings.NewReplacer("!pixel_width!", "9783.94", "!pixel_height!", "9783.94").Replace(sql)
			rows, err := store.DB().QueryContext(ctx, sql)
			require.NoError(t, err, string(style))
			count := 0
			for rows.Next() {
				count++
			}
			require.NoError(t, rows.Err())
			_ = rows.Close()
			assert.Positive(t, count, string(style))
		}
	})
}
