package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
)

// viewFlags describes the filtered dataset view shared by the rendering commands.
type viewFlags struct {
	resource string
	style    string
	filters  string
	q        string
	fields   []string
}

func (v *viewFlags) bind(f *pflag.FlagSet) {
	f.StringVarP(&v.resource, "resource", "r", "", "datastore resource id (table name)")
	f.StringVarP(&v.style, "style", "s", string(tilequery.StylePlot), "map style: plot, gridded or heatmap")
	f.StringVar(&v.filters, "filters", "", `view filters, "field:value|field:value"`)
	f.StringVar(&v.q, "q", "", "full-text query")
	f.StringSliceVar(&v.fields, "fields", nil, "fields exposed through UTFGrid interactivity")
}

func (v *viewFlags) request(coord tile.Coord) (tilequery.Style, tilequery.Request, error) {
	if v.resource == "" {
		return "", tilequery.Request{}, fmt.Errorf("--resource is required")
	}
	style, err := tilequery.ParseStyle(v.style)
	if err != nil {
		return "", tilequery.Request{}, err
	}
	return style, tilequery.Request{
		ResourceID: v.resource,
		Coord:      coord,
		Filters:    tilequery.ParseFilters(v.filters),
		Q:          v.q,
		Fields:     v.fields,
	}, nil
}

func newGenerator(opts ...tilequery.Option) *tilequery.Generator {
	opts = append([]tilequery.Option{tilequery.WithLogger(log)}, opts...)
	return tilequery.New(cfg.Geometry, cfg.Style, opts...)
}
