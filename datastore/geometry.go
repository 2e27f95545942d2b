package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/gaborage/go-tiledmap/database"
	"github.com/gaborage/go-tiledmap/database/types"
)

const (
	schema = "public"

	sridLatLng      = 4326
	sridWebMercator = 3857
)

// ErrMissingLatLngFields is returned when the coordinate source columns are not named.
var ErrMissingLatLngFields = errors.New("latitude and longitude fields are required")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// HasGeometryColumns reports whether the table of resourceID already carries
// both geometry columns.
func (s *Store) HasGeometryColumns(ctx context.Context, resourceID string) (bool, error) {
	query := psql.Select("COUNT(*)").
		From("information_schema.columns").
		Where(sq.Eq{
			"table_schema": schema,
			"table_name":   resourceID,
			"column_name":  []string{s.geometry.LatLng, s.geometry.WebMercator},
		})

	start := time.Now()
	var n int
	err := query.RunWith(s.db).QueryRowContext(ctx).Scan(&n)
	track(ctx, start)
	if err != nil {
		return false, fmt.Errorf("inspect columns of %s: %w", resourceID, err)
	}
	return n == 2, nil
}

// CreateGeometryColumns adds the EPSG:4326 and EPSG:3857 point columns to
// the table of resourceID in one transaction.
func (s *Store) CreateGeometryColumns(ctx context.Context, resourceID string) error {
	stmts := []sq.Sqlizer{
		addGeometryColumn(resourceID, s.geometry.LatLng, sridLatLng),
		addGeometryColumn(resourceID, s.geometry.WebMercator, sridWebMercator),
	}
	if err := s.inTx(ctx, stmts); err != nil {
		return fmt.Errorf("create geometry columns on %s: %w", resourceID, err)
	}
	s.logger.Info().Str("resource_id", resourceID).Msg("Created geometry columns")
	return nil
}

func addGeometryColumn(table, column string, srid int) sq.SelectBuilder {
	return psql.Select().Column(
		sq.Expr("AddGeometryColumn(?::varchar, ?::varchar, ?::varchar, ?::integer, 'POINT', 2)", schema, table, column, srid),
	)
}

// PopulateGeometryColumns fills the lat/lng point from the latitude and
// longitude columns and projects it to web mercator. Rows whose latitude is
// outside [-90, 90] keep a NULL web mercator point. It returns the number of
// rows that received a lat/lng point.
func (s *Store) PopulateGeometryColumns(ctx context.Context, resourceID, latField, lngField string) (int64, error) {
	if latField == "" || lngField == "" {
		return 0, ErrMissingLatLngFields
	}

	table := database.QuoteIdentifier(types.Ident(resourceID))
	latlng := database.QuoteIdentifier(types.Ident(s.geometry.LatLng))
	mercator := database.QuoteIdentifier(types.Ident(s.geometry.WebMercator))
	lat := database.QuoteIdentifier(types.Ident(latField))
	lng := database.QuoteIdentifier(types.Ident(lngField))

	points := psql.Update(table).
		Set(latlng, sq.Expr(fmt.Sprintf("st_setsrid(st_makepoint(%s::float8, %s::float8), %d)", lng, lat, sridLatLng))).
		Where(lat + " IS NOT NULL")
	project := psql.Update(table).
		Set(mercator, sq.Expr(fmt.Sprintf("st_transform(%s, %d)", latlng, sridWebMercator))).
		Where(fmt.Sprintf("st_y(%s) <= 90", latlng)).
		Where(fmt.Sprintf("st_y(%s) >= -90", latlng))

	var populated int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, points)
		if err != nil {
			return err
		}
		if populated, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, project)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("populate geometry columns on %s: %w", resourceID, err)
	}

	s.logger.Info().
		Str("resource_id", resourceID).
		Str("latitude_field", latField).
		Str("longitude_field", lngField).
		Int64("rows", populated).
		Msg("Populated geometry columns")
	return populated, nil
}

// EnsureGeometryColumns creates the geometry columns when missing and then
// populates them.
func (s *Store) EnsureGeometryColumns(ctx context.Context, resourceID, latField, lngField string) (int64, error) {
	ok, err := s.HasGeometryColumns(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	if !ok {
		if err := s.CreateGeometryColumns(ctx, resourceID); err != nil {
			return 0, err
		}
	}
	return s.PopulateGeometryColumns(ctx, resourceID, latField, lngField)
}

func (s *Store) inTx(ctx context.Context, stmts []sq.Sqlizer) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := s.exec(ctx, tx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, stmt sq.Sqlizer) (sql.Result, error) {
	start := time.Now()
	res, err := sq.ExecContextWith(ctx, tx, stmt)
	track(ctx, start)
	return res, err
}
