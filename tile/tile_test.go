package tile

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coordDelta = 1e-9

func TestCoordBounds(t *testing.T) {
	tests := []struct {
		name  string
		coord Coord
		nw    LatLng
		se    LatLng
	}{
		{
			name:  "zoom 4",
			coord: Coord{Z: 4, X: 5, Y: 6},
			nw:    LatLng{Lat: 40.9798980696, Lng: -67.5},
			se:    LatLng{Lat: 21.9430455334, Lng: -45.0},
		},
		{
			name:  "whole world",
			coord: Coord{Z: 0, X: 0, Y: 0},
			nw:    LatLng{Lat: MaxLatitude, Lng: -180},
			se:    LatLng{Lat: -MaxLatitude, Lng: 180},
		},
		{
			name:  "equator corner",
			coord: Coord{Z: 1, X: 1, Y: 1},
			nw:    LatLng{Lat: 0, Lng: 0},
			se:    LatLng{Lat: -MaxLatitude, Lng: 180},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.coord.Bounds()
			assert.InDelta(t, tt.nw.Lat, b.NorthWest.Lat, coordDelta)
			assert.InDelta(t, tt.nw.Lng, b.NorthWest.Lng, coordDelta)
			assert.InDelta(t, tt.se.Lat, b.SouthEast.Lat, coordDelta)
			assert.InDelta(t, tt.se.Lng, b.SouthEast.Lng, coordDelta)
			assert.Equal(t, b.NorthWest, tt.coord.NorthWest())
		})
	}
}

func TestCoordValidate(t *testing.T) {
	tests := []struct {
		name    string
		coord   Coord
		wantErr bool
	}{
		{name: "origin", coord: Coord{}, wantErr: false},
		{name: "last tile", coord: Coord{Z: 3, X: 7, Y: 7}, wantErr: false},
		{name: "x past edge", coord: Coord{Z: 3, X: 8, Y: 0}, wantErr: true},
		{name: "negative y", coord: Coord{Z: 3, X: 0, Y: -1}, wantErr: true},
		{name: "negative zoom", coord: Coord{Z: -1}, wantErr: true},
		{name: "zoom too deep", coord: Coord{Z: MaxZoom + 1}, wantErr: true},
		{name: "deepest zoom", coord: Coord{Z: MaxZoom, X: 1<<MaxZoom - 1}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coord.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoord)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		coord  Coord
		format Format
		err    error
	}{
		{name: "png", path: "1/2/3.png", err: ErrInvalidCoord},
		{name: "png in range", path: "4/5/6.png", coord: Coord{Z: 4, X: 5, Y: 6}, format: FormatPNG},
		{name: "grid", path: "/4/5/6.grid.json", coord: Coord{Z: 4, X: 5, Y: 6}, format: FormatGrid},
		{name: "unknown suffix", path: "4/5/6.jpg", err: ErrInvalidPath},
		{name: "too few parts", path: "5/6.png", err: ErrInvalidPath},
		{name: "not a number", path: "4/five/6.png", err: ErrInvalidPath},
		{name: "empty", path: "", err: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, format, err := ParsePath(tt.path)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.coord, coord)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestPathRoundTrip(t *testing.T) {
	c := Coord{Z: 7, X: 12, Y: 100}
	for _, f := range []Format{FormatPNG, FormatGrid} {
		parsed, format, err := ParsePath(c.Path(f))
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
		assert.Equal(t, f, format)
	}
}

func TestAt(t *testing.T) {
	tests := []struct {
		name string
		p    LatLng
		z    int
		want Coord
	}{
		{name: "inside 4/5/6", p: LatLng{Lat: 30, Lng: -60}, z: 4, want: Coord{Z: 4, X: 5, Y: 6}},
		{name: "north pole clamps", p: LatLng{Lat: 90, Lng: 0}, z: 2, want: Coord{Z: 2, X: 2, Y: 0}},
		{name: "south pole clamps", p: LatLng{Lat: -90, Lng: 0}, z: 2, want: Coord{Z: 2, X: 2, Y: 3}},
		{name: "antimeridian clamps", p: LatLng{Lat: 0, Lng: 180}, z: 2, want: Coord{Z: 2, X: 3, Y: 2}},
		{name: "zoom zero", p: LatLng{Lat: 51.5, Lng: -0.12}, z: 0, want: Coord{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, At(tt.p, tt.z))
		})
	}
}

func TestCover(t *testing.T) {
	tests := []struct {
		name string
		b    Bounds
		z    int
		want []Coord
	}{
		{
			name: "single tile",
			b:    Bounds{NorthWest: LatLng{Lat: 35, Lng: -65}, SouthEast: LatLng{Lat: 25, Lng: -50}},
			z:    4,
			want: []Coord{{Z: 4, X: 5, Y: 6}},
		},
		{
			name: "block of tiles",
			b:    Bounds{NorthWest: LatLng{Lat: 45, Lng: -70}, SouthEast: LatLng{Lat: 25, Lng: -40}},
			z:    4,
			want: []Coord{
				{Z: 4, X: 4, Y: 5}, {Z: 4, X: 5, Y: 5}, {Z: 4, X: 6, Y: 5},
				{Z: 4, X: 4, Y: 6}, {Z: 4, X: 5, Y: 6}, {Z: 4, X: 6, Y: 6},
			},
		},
		{
			name: "swapped latitudes",
			b:    Bounds{NorthWest: LatLng{Lat: 25, Lng: -65}, SouthEast: LatLng{Lat: 35, Lng: -50}},
			z:    4,
			want: []Coord{{Z: 4, X: 5, Y: 6}},
		},
		{
			name: "crosses the antimeridian",
			b:    Bounds{NorthWest: LatLng{Lat: 10, Lng: 170}, SouthEast: LatLng{Lat: -10, Lng: -170}},
			z:    2,
			want: []Coord{
				{Z: 2, X: 3, Y: 1}, {Z: 2, X: 0, Y: 1},
				{Z: 2, X: 3, Y: 2}, {Z: 2, X: 0, Y: 2},
			},
		},
		{
			name: "wrap within one column covers the row",
			b:    Bounds{NorthWest: LatLng{Lat: 10, Lng: 20}, SouthEast: LatLng{Lat: 5, Lng: 10}},
			z:    1,
			want: []Coord{{Z: 1, X: 0, Y: 0}, {Z: 1, X: 1, Y: 0}},
		},
		{
			name: "world at zoom 1",
			b:    Bounds{NorthWest: LatLng{Lat: 90, Lng: -180}, SouthEast: LatLng{Lat: -90, Lng: 180}},
			z:    1,
			want: []Coord{{Z: 1, X: 0, Y: 0}, {Z: 1, X: 1, Y: 0}, {Z: 1, X: 0, Y: 1}, {Z: 1, X: 1, Y: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slices.Collect(Cover(tt.b, tt.z)))
			assert.Equal(t, uint64(len(tt.want)), Count(tt.b, tt.z))
		})
	}
}

func TestCoverIsLazyAtMaxZoom(t *testing.T) {
	world := Bounds{NorthWest: LatLng{Lat: 85, Lng: -180}, SouthEast: LatLng{Lat: -85, Lng: 179.9}}

	assert.Greater(t, Count(world, MaxZoom), uint64(1)<<58)

	var got []Coord
	for c := range Cover(world, MaxZoom) {
		got = append(got, c)
		if len(got) == 3 {
			break
		}
	}
	require.Len(t, got, 3)
	assert.Equal(t, got[0].Y, got[2].Y)
	assert.Equal(t, got[0].X+2, got[2].X)
}
