package geo

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"AOI_Salmon_River":         "Salmon_River",
		"DrySpy_AOI_Eel_north":     "Eel",
		"DrySpy_AOI_Eel_Central":   "Eel",
		"Klamath_west":             "Klamath",
		"AOI_Westfork":             "Westfork",
		"gage_11475800":            "gage_11475800",
		"DrySpy_Scott_River_south": "DrySpy_Scott_River",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}

func TestLoadAOI_FeatureCollection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "DrySpy_AOI_Navarro_east.geojson")
	doc := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
	    {"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [5,5]}},
	    {"type": "Feature", "properties": {}, "geometry": {"type": "MultiPolygon", "coordinates": [[[[2,2],[3,2],[3,3],[2,3],[2,2]]]]}}
	  ]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	aoi, err := LoadAOI(path)
	require.NoError(t, err)
	assert.Equal(t, "Navarro", aoi.Name)
	assert.Equal(t, "DrySpy_AOI_Navarro_east", aoi.Stem)
	assert.Len(t, aoi.Geometry, 2)
	assert.Greater(t, aoi.AreaSqKm(), 0.0)
	assert.Equal(t, "MultiPolygon", aoi.GeoJSON().Type)
}

func TestLoadAOI_BareGeometry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AOI_Russian.geojson")
	doc := `{"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	aoi, err := LoadAOI(path)
	require.NoError(t, err)
	assert.Equal(t, "Russian", aoi.Name)
	assert.Equal(t, "Polygon", aoi.GeoJSON().Type)
}

func TestLoadAOI_NoPolygon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.geojson")
	doc := `{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [1,1]}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := LoadAOI(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPolygon))
}

func TestLoadAOI_MissingFile(t *testing.T) {
	_, err := LoadAOI(filepath.Join(t.TempDir(), "nope.geojson"))
	assert.Error(t, err)
}

func TestCoverage(t *testing.T) {
	aoi := orb.MultiPolygon{square(0, 0, 2, 2)}

	tests := []struct {
		name      string
		footprint orb.Geometry
		want      float64
	}{
		{"full", square(-1, -1, 3, 3), 1},
		{"exact", square(0, 0, 2, 2), 1},
		{"half", square(1, -1, 3, 3), 0.5},
		{"quarter", square(1, 1, 5, 5), 0.25},
		{"disjoint", square(10, 10, 11, 11), 0},
		{"nil", nil, 0},
		{"clockwise footprint", orb.Polygon{orb.Ring{{-1, -1}, {-1, 3}, {3, 3}, {3, -1}, {-1, -1}}}, 1},
		{"multipolygon footprint", orb.MultiPolygon{square(0, 0, 1, 2), square(1, 0, 2, 1)}, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coverage(aoi, tt.footprint)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCoverage_ConcaveAOIAndHoles(t *testing.T) {
	// L-shaped AOI: 3 unit squares.
	lshape := orb.Polygon{orb.Ring{{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 2}, {0, 2}, {0, 0}}}
	got := Coverage(orb.MultiPolygon{lshape}, square(0, 0, 1, 2))
	assert.InDelta(t, 2.0/3.0, got, 1e-9)

	// Square with a hole in its left half.
	holed := orb.Polygon{
		orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		orb.Ring{{0.5, 0.5}, {1.5, 0.5}, {1.5, 1.5}, {0.5, 1.5}, {0.5, 0.5}},
	}
	got = Coverage(orb.MultiPolygon{holed}, square(2, 0, 4, 4))
	assert.InDelta(t, 8.0/15.0, got, 1e-9)
}

func TestRingArea(t *testing.T) {
	assert.InDelta(t, 4, ringArea(square(0, 0, 2, 2)[0]), 1e-12)
	assert.Equal(t, 0.0, ringArea(orb.Ring{{0, 0}, {1, 1}}))
	assert.False(t, math.IsNaN(Coverage(orb.MultiPolygon{}, square(0, 0, 1, 1))))
}

func TestLoadAOI_OverlappingFeatures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AOI_Gualala.geojson")
	doc := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
	    {"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[1,1],[3,1],[3,3],[1,3],[1,1]]]}}
	  ]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := LoadAOI(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverlappingParts))
}

func TestNew_PartOverlap(t *testing.T) {
	lshape := orb.Polygon{orb.Ring{{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 2}, {0, 2}, {0, 0}}}
	donut := orb.Polygon{
		orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		orb.Ring{{1, 1}, {3, 1}, {3, 3}, {1, 3}, {1, 1}},
	}

	tests := []struct {
		name    string
		parts   orb.MultiPolygon
		overlap bool
	}{
		{"crossing squares", orb.MultiPolygon{square(0, 0, 2, 2), square(1, 1, 3, 3)}, true},
		{"nested", orb.MultiPolygon{square(0, 0, 4, 4), square(1, 1, 2, 2)}, true},
		{"identical", orb.MultiPolygon{square(0, 0, 1, 1), square(0, 0, 1, 1)}, true},
		{"shared edge", orb.MultiPolygon{square(0, 0, 1, 1), square(1, 0, 2, 1)}, false},
		{"shared corner", orb.MultiPolygon{square(0, 0, 1, 1), square(1, 1, 2, 2)}, false},
		{"apart", orb.MultiPolygon{square(0, 0, 1, 1), square(5, 5, 6, 6)}, false},
		{"in the notch of a concave part", orb.MultiPolygon{lshape, square(1.2, 1.2, 1.8, 1.8)}, false},
		{"in a hole", orb.MultiPolygon{donut, square(1.5, 1.5, 2.5, 2.5)}, false},
		{"filling a hole", orb.MultiPolygon{donut, square(1, 1, 3, 3)}, false},
		{"over a hole edge", orb.MultiPolygon{donut, square(0.5, 0.5, 1.5, 1.5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("AOI_Test", tt.parts)
			if tt.overlap {
				assert.True(t, errors.Is(err, ErrOverlappingParts), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
