package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/windshaft"
)

var (
	tileView viewFlags
	tileOut  string
)

var tileCmd = &cobra.Command{
	Use:   "tile z/x/y.png | z/x/y.grid.json",
	Short: "Fetch one tile from the renderer",
	Example: `  # Save a heatmap tile to ./tiles/4_5_6.png
  tiledmap tile -r 5f0c8ac2 -s heatmap -o tiles 4/5/6.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, format, err := tile.ParsePath(args[0])
		if err != nil {
			return err
		}
		style, req, err := tileView.request(coord)
		if err != nil {
			return err
		}

		client := windshaft.New(cfg.Windshaft, newGenerator(), log)
		var t *windshaft.Tile
		if format == tile.FormatGrid {
			t, err = client.Grid(cmd.Context(), style, req)
		} else {
			t, err = client.Tile(cmd.Context(), style, req)
		}
		if err != nil {
			return err
		}

		path, err := writeTile(tileOut, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", path, len(t.Data))
		return nil
	},
}

func init() {
	f := tileCmd.Flags()
	tileView.bind(f)
	f.StringVarP(&tileOut, "out", "o", ".", "output directory")
}

func writeTile(dir string, t *windshaft.Tile) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, t.Filename())
	if err := os.WriteFile(path, t.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing tile: %w", err)
	}
	return path, nil
}
