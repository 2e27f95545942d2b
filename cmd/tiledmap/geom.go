package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-tiledmap/datastore"
)

var (
	geomResource   string
	geomLatField   string
	geomLngField   string
	geomCreateOnly bool
)

var geomCmd = &cobra.Command{
	Use:   "geom",
	Short: "Create and populate the geometry columns of a dataset",
	Long: `Add the EPSG:4326 and web mercator point columns to a datastore table
when missing, then fill them from its latitude and longitude columns.
Requires datastore.writeurl.`,
	Example: `  tiledmap geom -r 5f0c8ac2 --lat decimalLatitude --lng decimalLongitude`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if geomResource == "" {
			return fmt.Errorf("--resource is required")
		}
		store, err := datastore.Connect(cmd.Context(), cfg, datastore.ReadWrite, log)
		if err != nil {
			return err
		}
		defer store.Close()

		if geomCreateOnly {
			has, err := store.HasGeometryColumns(cmd.Context(), geomResource)
			if err != nil {
				return err
			}
			if has {
				fmt.Fprintln(cmd.OutOrStdout(), "Geometry columns already present.")
				return nil
			}
			if err := store.CreateGeometryColumns(cmd.Context(), geomResource); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Geometry columns created.")
			return nil
		}

		n, err := store.EnsureGeometryColumns(cmd.Context(), geomResource, geomLatField, geomLngField)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Populated geometries of %d rows.\n", n)
		return nil
	},
}

func init() {
	f := geomCmd.Flags()
	f.StringVarP(&geomResource, "resource", "r", "", "datastore resource id (table name)")
	f.StringVar(&geomLatField, "lat", "latitude", "latitude column")
	f.StringVar(&geomLngField, "lng", "longitude", "longitude column")
	f.BoolVar(&geomCreateOnly, "create-only", false, "only add the columns, do not populate them")
}
