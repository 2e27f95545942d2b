package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-tiledmap/datastore"
	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/windshaft"
)

var (
	seedView    viewFlags
	seedBounds  []float64
	seedMinZoom int
	seedMaxZoom int
	seedGrids   bool
	seedOut     string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Prefetch every tile of a zoom range",
	Long: `Render every tile covering an area so the renderer cache is warm.
Without --bounds the area is the extent of the filtered records, measured in
the datastore. The zoom range defaults to the configured initial zoom.`,
	Example: `  # Warm zooms 3-6 over the records' extent
  tiledmap seed -r 5f0c8ac2

  # Explicit area (north,west,south,east), grids included, tiles saved
  tiledmap seed -r 5f0c8ac2 --bounds 55,-10,35,30 --min-zoom 2 --max-zoom 5 --grids -o tiles`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		style, req, err := seedView.request(tile.Coord{})
		if err != nil {
			return err
		}
		minZoom, maxZoom := cfg.Zoom.Initial.Min, cfg.Zoom.Initial.Max
		if cmd.Flags().Changed("min-zoom") {
			minZoom = seedMinZoom
		}
		if cmd.Flags().Changed("max-zoom") {
			maxZoom = seedMaxZoom
		}

		var bounds tile.Bounds
		switch len(seedBounds) {
		case 4:
			bounds = tile.Bounds{
				NorthWest: tile.LatLng{Lat: seedBounds[0], Lng: seedBounds[1]},
				SouthEast: tile.LatLng{Lat: seedBounds[2], Lng: seedBounds[3]},
			}
		case 0:
			store, err := datastore.Connect(cmd.Context(), cfg, datastore.ReadOnly, log)
			if err != nil {
				return err
			}
			defer store.Close()
			ext, err := store.QueryExtent(cmd.Context(), req)
			if err != nil {
				return err
			}
			if ext.Bounds == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No records with a geometry, nothing to seed.")
				return nil
			}
			bounds = *ext.Bounds
		default:
			return fmt.Errorf("--bounds takes north,west,south,east")
		}

		sr := windshaft.SeedRequest{
			Style:   style,
			Query:   req,
			Bounds:  bounds,
			MinZoom: minZoom,
			MaxZoom: maxZoom,
			Grids:   seedGrids,
		}
		if seedOut != "" {
			sr.OnTile = func(t *windshaft.Tile) {
				if _, err := writeTile(seedOut, t); err != nil {
					log.Error().Err(err).Str("tile", t.Coord.String()).Msg("Failed to save tile")
				}
			}
		}

		flush, err := startTelemetry(cmd)
		if err != nil {
			return err
		}
		defer flush()

		client := windshaft.New(cfg.Windshaft, newGenerator(), log)
		res, err := client.Seed(cmd.Context(), sr)
		fmt.Fprintf(cmd.OutOrStdout(), "Rendered %d tiles and %d grids (%d bytes) in %s\n",
			res.Tiles, res.Grids, res.Bytes, res.Elapsed.Round(time.Millisecond))
		return err
	},
}

func init() {
	f := seedCmd.Flags()
	seedView.bind(f)
	f.Float64SliceVar(&seedBounds, "bounds", nil, "area to seed: north,west,south,east")
	f.IntVar(&seedMinZoom, "min-zoom", 0, "first zoom level (default: zoom.initial.min)")
	f.IntVar(&seedMaxZoom, "max-zoom", 0, "last zoom level (default: zoom.initial.max)")
	f.BoolVar(&seedGrids, "grids", false, "also fetch UTFGrid tiles")
	f.StringVarP(&seedOut, "out", "o", "", "save rendered tiles to this directory")
}
