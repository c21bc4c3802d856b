package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Coverage returns the fraction of the AOI's planar (lon/lat) area that lies
// inside footprint, in [0, 1]. Each footprint polygon is treated as its convex
// hull, which matches the quadrilateral footprints reported for PSScene items.
func Coverage(aoi orb.MultiPolygon, footprint orb.Geometry) float64 {
	total := multiPolygonArea(aoi)
	if total == 0 || footprint == nil {
		return 0
	}

	var clips []orb.Ring
	for _, p := range collect(nil, footprint) {
		if len(p) == 0 {
			continue
		}
		if hull := convexHull(p[0]); len(hull) >= 3 {
			clips = append(clips, hull)
		}
	}

	covered := 0.0
	for _, clip := range clips {
		for _, poly := range aoi {
			covered += clippedPolygonArea(poly, clip)
		}
	}

	return math.Max(0, math.Min(1, covered/total))
}

func clippedPolygonArea(poly orb.Polygon, clip orb.Ring) float64 {
	if len(poly) == 0 {
		return 0
	}
	area := ringArea(clipRing(poly[0], clip))
	for _, hole := range poly[1:] {
		area -= ringArea(clipRing(hole, clip))
	}
	return math.Max(0, area)
}

func multiPolygonArea(mp orb.MultiPolygon) float64 {
	total := 0.0
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		a := ringArea(poly[0])
		for _, hole := range poly[1:] {
			a -= ringArea(hole)
		}
		total += math.Max(0, a)
	}
	return total
}

// ringArea is the unsigned shoelace area of a ring, closed or not.
func ringArea(r orb.Ring) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		a, b := r[i], r[(i+1)%n]
		sum += a[0]*b[1] - b[0]*a[1]
	}
	return math.Abs(sum) / 2
}

// clipRing clips subject against a convex counter-clockwise clip ring
// (Sutherland–Hodgman). The subject may be concave.
func clipRing(subject, clip orb.Ring) orb.Ring {
	out := open(subject)
	cl := open(clip)

	for i := range cl {
		if len(out) == 0 {
			break
		}
		a, b := cl[i], cl[(i+1)%len(cl)]
		in := out
		out = nil

		prev := in[len(in)-1]
		for _, cur := range in {
			curIn, prevIn := cross(a, b, cur) >= 0, cross(a, b, prev) >= 0
			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn && !prevIn:
				out = append(out, intersect(prev, cur, a, b), cur)
			case !curIn && prevIn:
				out = append(out, intersect(prev, cur, a, b))
			}
			prev = cur
		}
	}
	return out
}

func open(r orb.Ring) orb.Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// cross is positive when p lies to the left of the directed edge a->b.
func cross(a, b, p orb.Point) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

func intersect(p, q, a, b orb.Point) orb.Point {
	d1x, d1y := q[0]-p[0], q[1]-p[1]
	d2x, d2y := b[0]-a[0], b[1]-a[1]
	den := d1x*d2y - d1y*d2x
	if den == 0 {
		return q
	}
	t := ((a[0]-p[0])*d2y - (a[1]-p[1])*d2x) / den
	return orb.Point{p[0] + t*d1x, p[1] + t*d1y}
}

// convexHull returns the counter-clockwise convex hull of r (monotone chain).
func convexHull(r orb.Ring) orb.Ring {
	pts := make([]orb.Point, len(open(r)))
	copy(pts, open(r))
	if len(pts) < 3 {
		return nil
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	hull := make(orb.Ring, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
