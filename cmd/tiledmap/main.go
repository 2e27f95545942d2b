// Command tiledmap renders and prefetches dataset map tiles.
//
// Commands:
//   - sql: print the renderer SQL of a style for one tile
//   - tile: fetch one PNG or UTFGrid tile from the renderer
//   - seed: prefetch every tile of a zoom range
//   - serve: proxy tiles and map-info documents over HTTP
//   - geom: create and populate the PostGIS geometry columns of a dataset
//   - info: print the map-info document of a filtered view
//   - config: show the effective configuration
//
// Configuration is read from TILEDMAP_CONFIG or config.yaml, then from
// TILEDMAP_* environment variables.
package main

func main() {
	Execute()
}
