// Package tile converts between slippy-map tile coordinates and WGS84 positions.
package tile

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
)

// MaxZoom is the deepest zoom level accepted. 2^30 tiles per axis still fits an int32.
const MaxZoom = 30

// MaxLatitude is the northern edge of the Web Mercator projection.
const MaxLatitude = 85.0511287798

// Format is the kind of artifact requested for a tile.
type Format string

const (
	// FormatPNG is a rendered raster tile.
	FormatPNG Format = "png"
	// FormatGrid is a UTFGrid interactivity layer.
	FormatGrid Format = "grid.json"
)

var (
	// ErrInvalidCoord is returned for coordinates outside the tile pyramid.
	ErrInvalidCoord = errors.New("invalid tile coordinate")
	// ErrInvalidPath is returned when a tile path cannot be parsed.
	ErrInvalidPath = errors.New("invalid tile path")
)

// Coord addresses one tile of the Web Mercator pyramid.
type Coord struct {
	Z int
	X int
	Y int
}

// LatLng is a WGS84 position in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// Bounds is the lat/lng rectangle covered by a tile or a dataset.
type Bounds struct {
	NorthWest LatLng
	SouthEast LatLng
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Validate checks 0 <= z <= MaxZoom and 0 <= x, y < 2^z.
func (c Coord) Validate() error {
	if c.Z < 0 || c.Z > MaxZoom {
		return fmt.Errorf("%w: zoom %d outside 0-%d", ErrInvalidCoord, c.Z, MaxZoom)
	}
	n := 1 << c.Z
	if c.X < 0 || c.X >= n || c.Y < 0 || c.Y >= n {
		return fmt.Errorf("%w: %s outside 0-%d at zoom %d", ErrInvalidCoord, c, n-1, c.Z)
	}
	return nil
}

// NorthWest returns the position of the tile's top left corner.
func (c Coord) NorthWest() LatLng {
	return cornerOf(c.X, c.Y, c.Z)
}

// Bounds returns the rectangle covered by the tile.
func (c Coord) Bounds() Bounds {
	return Bounds{
		NorthWest: cornerOf(c.X, c.Y, c.Z),
		SouthEast: cornerOf(c.X+1, c.Y+1, c.Z),
	}
}

func cornerOf(x, y, z int) LatLng {
	n := math.Exp2(float64(z))
	lng := float64(x)/n*360.0 - 180.0
	lat := math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * 180.0 / math.Pi
	return LatLng{Lat: lat, Lng: lng}
}

// At returns the tile containing p at zoom z. Latitudes beyond the Web
// Mercator limit clamp to the first or last row.
func At(p LatLng, z int) Coord {
	n := 1 << z
	x := int(math.Floor((p.Lng + 180.0) / 360.0 * float64(n)))

	var y int
	switch {
	case p.Lat >= MaxLatitude:
		y = 0
	case p.Lat <= -MaxLatitude:
		y = n - 1
	default:
		latRad := p.Lat * math.Pi / 180.0
		y = int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * float64(n)))
	}
	return Coord{Z: z, X: clamp(x, 0, n-1), Y: clamp(y, 0, n-1)}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// columns is an inclusive run of tile columns.
type columns struct{ from, to int }

// span returns the column runs and the row range of b at zoom z. A west edge
// east of the east edge crosses the antimeridian and wraps into two runs.
func span(b Bounds, z int) (runs []columns, top, bottom int) {
	nw := At(b.NorthWest, z)
	se := At(b.SouthEast, z)
	top, bottom = min(nw.Y, se.Y), max(nw.Y, se.Y)

	last := 1<<z - 1
	switch {
	case b.NorthWest.Lng <= b.SouthEast.Lng:
		runs = []columns{{nw.X, se.X}}
	case se.X >= nw.X:
		// Both edges fall in one column, so the wrap covers every column.
		runs = []columns{{0, last}}
	default:
		runs = []columns{{nw.X, last}, {0, se.X}}
	}
	return runs, top, bottom
}

// Count returns the number of tiles Cover yields for b at zoom z.
func Count(b Bounds, z int) uint64 {
	runs, top, bottom := span(b, z)
	var n uint64
	for _, r := range runs {
		n += uint64(r.to - r.from + 1)
	}
	return n * uint64(bottom-top+1)
}

// Cover yields every tile at zoom z intersecting b, row by row from the
// north. Tiles are produced lazily.
func Cover(b Bounds, z int) iter.Seq[Coord] {
	runs, top, bottom := span(b, z)
	return func(yield func(Coord) bool) {
		for y := top; y <= bottom; y++ {
			for _, r := range runs {
				for x := r.from; x <= r.to; x++ {
					if !yield(Coord{Z: z, X: x, Y: y}) {
						return
					}
				}
			}
		}
	}
}

// ParsePath parses "z/x/y.png" or "z/x/y.grid.json". A leading slash is ignored.
func ParsePath(path string) (Coord, Format, error) {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 {
		return Coord{}, "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	var format Format
	last := parts[2]
	switch {
	case strings.HasSuffix(last, "."+string(FormatGrid)):
		format = FormatGrid
	case strings.HasSuffix(last, "."+string(FormatPNG)):
		format = FormatPNG
	default:
		return Coord{}, "", fmt.Errorf("%w: %q has no .png or .grid.json suffix", ErrInvalidPath, path)
	}
	parts[2] = strings.TrimSuffix(last, "."+string(format))

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Coord{}, "", fmt.Errorf("%w: %q: %w", ErrInvalidPath, path, err)
		}
		nums[i] = n
	}

	c := Coord{Z: nums[0], X: nums[1], Y: nums[2]}
	if err := c.Validate(); err != nil {
		return Coord{}, "", err
	}
	return c, format, nil
}

// Path renders the coordinate as "z/x/y.<format>".
func (c Coord) Path(f Format) string {
	return c.String() + "." + string(f)
}
