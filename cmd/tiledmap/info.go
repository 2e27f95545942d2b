package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-tiledmap/datastore"
	"github.com/gaborage/go-tiledmap/mapinfo"
	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
)

var (
	infoView    viewFlags
	infoStyles  []string
	infoTileURL string
	infoUTFGrid bool
)

var infoCmd = &cobra.Command{
	Use:     "info",
	Short:   "Print the map-info document of a dataset view",
	Example: `  tiledmap info -r 5f0c8ac2 --filters 'country:France' --styles plot,heatmap`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, req, err := infoView.request(tile.Coord{})
		if err != nil {
			return err
		}
		styles := make([]tilequery.Style, 0, len(infoStyles))
		for _, s := range infoStyles {
			style, err := tilequery.ParseStyle(s)
			if err != nil {
				return err
			}
			styles = append(styles, style)
		}

		store, err := datastore.Connect(cmd.Context(), cfg, datastore.ReadOnly, log)
		if err != nil {
			return err
		}
		defer store.Close()
		ext, err := store.QueryExtent(cmd.Context(), req)
		if err != nil {
			return err
		}

		info := mapinfo.Build(cfg, mapinfo.View{
			ResourceID: req.ResourceID,
			TileURL:    resolveString(infoTileURL, cfg.Windshaft.BaseURL()),
			Styles:     styles,
			UTFGrid:    infoUTFGrid,
		}, ext)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	f := infoCmd.Flags()
	infoView.bind(f)
	f.StringSliceVar(&infoStyles, "styles", []string{"plot", "gridded", "heatmap"}, "enabled styles, default first")
	f.StringVar(&infoTileURL, "tile-url", "", "public tile endpoint (default: the renderer URL)")
	f.BoolVar(&infoUTFGrid, "utfgrid", true, "advertise UTFGrid tiles for plot and gridded styles")
}
