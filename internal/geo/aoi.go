// Package geo loads Areas of Interest from GeoJSON and measures how much of an
// AOI a scene footprint covers.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// ErrNoPolygon is returned when a GeoJSON document carries no polygonal geometry.
var ErrNoPolygon = errors.New("geojson contains no polygon geometry")

var (
	aoiPrefix    = regexp.MustCompile(`^(DrySpy_)?AOI_`)
	cardinalTail = regexp.MustCompile(`(?i)_(central|north|south|east|west)$`)
)

// AOI is a named polygonal area in geographic (EPSG:4326) coordinates.
type AOI struct {
	// Name is the normalized file stem, used for archival paths and the ledger.
	Name string
	// Stem is the raw file stem, used for provider order names.
	Stem     string
	Geometry orb.MultiPolygon
}

// NormalizeName strips the AOI_/DrySpy_AOI_ prefix and a trailing cardinal
// direction suffix from a file stem.
func NormalizeName(stem string) string {
	cleaned := aoiPrefix.ReplaceAllString(stem, "")
	return cardinalTail.ReplaceAllString(cleaned, "")
}

// LoadAOI reads a GeoJSON FeatureCollection, Feature or bare geometry and
// merges every polygon it contains into a single AOI. Polygons that overlap
// one another are rejected with ErrOverlappingParts.
func LoadAOI(path string) (*AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aoi: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mp, err := parsePolygons(data)
	if err != nil {
		return nil, fmt.Errorf("parse aoi %s: %w", path, err)
	}

	return &AOI{
		Name:     NormalizeName(stem),
		Stem:     stem,
		Geometry: mp,
	}, nil
}

// New wraps an in-memory geometry as an AOI.
func New(stem string, g orb.Geometry) (*AOI, error) {
	mp := collect(nil, g)
	if len(mp) == 0 {
		return nil, ErrNoPolygon
	}
	if err := checkDisjoint(mp); err != nil {
		return nil, err
	}
	return &AOI{Name: NormalizeName(stem), Stem: stem, Geometry: mp}, nil
}

func parsePolygons(data []byte) (orb.MultiPolygon, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	var mp orb.MultiPolygon
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		for _, f := range fc.Features {
			mp = collect(mp, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		mp = collect(mp, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		mp = collect(mp, g.Geometry())
	}

	if len(mp) == 0 {
		return nil, ErrNoPolygon
	}
	if err := checkDisjoint(mp); err != nil {
		return nil, err
	}
	return mp, nil
}

func collect(mp orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		mp = append(mp, v)
	case orb.MultiPolygon:
		mp = append(mp, v...)
	case orb.Collection:
		for _, c := range v {
			mp = collect(mp, c)
		}
	}
	return mp
}

// AreaSqKm is the geodesic area of the AOI in square kilometres.
func (a *AOI) AreaSqKm() float64 {
	return orbgeo.Area(a.Geometry) / 1e6
}

// GeoJSON returns the AOI geometry in its GeoJSON wire form. A single polygon
// is emitted as a Polygon rather than a one-element MultiPolygon.
func (a *AOI) GeoJSON() *geojson.Geometry {
	if len(a.Geometry) == 1 {
		return geojson.NewGeometry(a.Geometry[0])
	}
	return geojson.NewGeometry(a.Geometry)
}
