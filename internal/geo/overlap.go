package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrOverlappingParts is returned when two polygons of one AOI share interior area.
var ErrOverlappingParts = errors.New("aoi polygons overlap")

type placement int

const (
	outside placement = iota
	boundary
	inside
)

// checkDisjoint rejects a multipolygon whose parts overlap. Parts may share
// edges or vertices.
func checkDisjoint(mp orb.MultiPolygon) error {
	for i := range mp {
		for j := i + 1; j < len(mp); j++ {
			if partsOverlap(mp[i], mp[j]) {
				return fmt.Errorf("%w: part %d and part %d", ErrOverlappingParts, i+1, j+1)
			}
		}
	}
	return nil
}

func partsOverlap(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 || !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, ra := range a {
		for _, rb := range b {
			if ringsCross(ra, rb) {
				return true
			}
		}
	}
	return reaches(a, b) || reaches(b, a)
}

// reaches reports whether a puts any sample point in the interior of b, or
// lies entirely within a hole-free b.
func reaches(a, b orb.Polygon) bool {
	enclosed := len(b) == 1
	for _, p := range samples(a) {
		switch locate(p, b) {
		case inside:
			return true
		case outside:
			enclosed = false
		}
	}
	return enclosed
}

// samples returns every vertex and edge midpoint of every ring of p.
func samples(p orb.Polygon) []orb.Point {
	var pts []orb.Point
	for _, r := range p {
		r = open(r)
		for i := range r {
			a, b := r[i], r[(i+1)%len(r)]
			pts = append(pts, a, orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2})
		}
	}
	return pts
}

func locate(p orb.Point, poly orb.Polygon) placement {
	switch locateRing(p, poly[0]) {
	case outside:
		return outside
	case boundary:
		return boundary
	}
	for _, hole := range poly[1:] {
		switch locateRing(p, hole) {
		case inside:
			return outside
		case boundary:
			return boundary
		}
	}
	return inside
}

func locateRing(p orb.Point, r orb.Ring) placement {
	r = open(r)
	in := false
	for i := range r {
		a, b := r[i], r[(i+1)%len(r)]
		if onSegment(p, a, b) {
			return boundary
		}
		if (a[1] > p[1]) != (b[1] > p[1]) {
			x := a[0] + (p[1]-a[1])*(b[0]-a[0])/(b[1]-a[1])
			if p[0] < x {
				in = !in
			}
		}
	}
	if in {
		return inside
	}
	return outside
}

func onSegment(p, a, b orb.Point) bool {
	if cross(a, b, p) != 0 {
		return false
	}
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}

// ringsCross reports whether an edge of r properly crosses an edge of s.
// Touching at an endpoint or running along a shared edge does not count.
func ringsCross(r, s orb.Ring) bool {
	r, s = open(r), open(s)
	for i := range r {
		a, b := r[i], r[(i+1)%len(r)]
		for j := range s {
			c, d := s[j], s[(j+1)%len(s)]
			if cross(a, b, c)*cross(a, b, d) < 0 && cross(c, d, a)*cross(c, d, b) < 0 {
				return true
			}
		}
	}
	return false
}
