package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-tiledmap/database"
	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
)

var (
	sqlView     viewFlags
	sqlNewlines bool
	sqlStrict   bool
	sqlExtent   bool
)

var sqlCmd = &cobra.Command{
	Use:   "sql [z/x/y.png | z/x/y.grid.json]",
	Short: "Print the renderer SQL for a tile",
	Long: `Print the SQL the renderer runs to draw one tile of a dataset view.
A .grid.json path prints the UTFGrid statement and its interactivity columns.
With --extent no tile is needed and the count/bounds statement is printed.`,
	Example: `  # Plot tile SQL
  tiledmap sql -r 5f0c8ac2 4/5/6.png

  # Gridded UTFGrid SQL for a filtered view, one clause per line
  tiledmap sql -r 5f0c8ac2 -s gridded --filters 'country:France' --newlines 4/5/6.grid.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []tilequery.Option
		if sqlNewlines {
			opts = append(opts, tilequery.WithNewlines())
		}
		if sqlStrict {
			opts = append(opts, tilequery.WithStrict())
		}
		gen := newGenerator(opts...)

		if sqlExtent {
			_, req, err := sqlView.request(tile.Coord{})
			if err != nil {
				return err
			}
			s, err := gen.Extent(req)
			if err != nil {
				return err
			}
			return printSQL(cmd, s, nil)
		}

		if len(args) != 1 {
			return fmt.Errorf("a tile path such as 4/5/6.png is required")
		}
		coord, format, err := tile.ParsePath(args[0])
		if err != nil {
			return err
		}
		style, req, err := sqlView.request(coord)
		if err != nil {
			return err
		}

		if format == tile.FormatGrid {
			s, interactivity, err := gen.Grid(style, req)
			if err != nil {
				return err
			}
			return printSQL(cmd, s, interactivity)
		}
		s, err := gen.Tile(style, req)
		if err != nil {
			return err
		}
		return printSQL(cmd, s, nil)
	},
}

func init() {
	f := sqlCmd.Flags()
	sqlView.bind(f)
	f.BoolVar(&sqlNewlines, "newlines", false, "put each clause on its own line")
	f.BoolVar(&sqlStrict, "strict", false, "fail instead of dropping disallowed characters")
	f.BoolVar(&sqlExtent, "extent", false, "print the count and bounds statement instead of a tile")
}

func printSQL(cmd *cobra.Command, s *database.Select, interactivity []string) error {
	out, err := s.ToSQL()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(interactivity) > 0 {
		fmt.Fprintf(w, "-- interactivity: %s\n", strings.Join(interactivity, ","))
	}
	fmt.Fprintln(w, out)
	return nil
}
