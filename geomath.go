package nvdbseg

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geom"
)

// Distances are planar (x, y) in the native coordinate system of the data, which for
// the registry is UTM33 (EPSG:5973). Z values are interpolated but never measured.

// toOrbLine returns 2D projection of given line
func toOrbLine(line *geom.LineString) orb.LineString {
	ans := make(orb.LineString, line.NumCoords())
	for i := range ans {
		c := line.Coord(i)
		ans[i] = orb.Point{c.X(), c.Y()}
	}
	return ans
}

func toOrbPoint(c geom.Coord) orb.Point {
	return orb.Point{c.X(), c.Y()}
}

// lineLength returns planar length of the line. Nil line has zero length
func lineLength(line *geom.LineString) float64 {
	if line == nil || line.NumCoords() < 2 {
		return 0
	}
	return planar.Length(toOrbLine(line))
}

// geometryLength returns planar length for lines and zero for anything else
func geometryLength(g geom.T) float64 {
	line, ok := g.(*geom.LineString)
	if !ok {
		return 0
	}
	return lineLength(line)
}

// findDistance returns straight-line distance between two coordinates
func findDistance(p, q geom.Coord) float64 {
	return planar.Distance(toOrbPoint(p), toOrbPoint(q))
}

// pointOnSegmentByFraction returns coordinate on segment [p, q] at given fraction.
// Every ordinate of the layout (Z and M included) is interpolated
func pointOnSegmentByFraction(p, q geom.Coord, fraction float64) geom.Coord {
	ans := make(geom.Coord, len(p))
	for i := range p {
		ans[i] = (1-fraction)*p[i] + fraction*q[i]
	}
	return ans
}

// interpolateLine returns coordinate at given planar distance from start of the line.
// Distance is clamped to [0, length]
func interpolateLine(line *geom.LineString, distance float64) geom.Coord {
	n := line.NumCoords()
	if distance <= 0 || n == 1 {
		return copyCoord(line.Coord(0))
	}
	cl := 0.0
	for i := 1; i < n; i++ {
		p, q := line.Coord(i-1), line.Coord(i)
		segLen := findDistance(p, q)
		if cl+segLen >= distance && segLen > 0 {
			return pointOnSegmentByFraction(p, q, (distance-cl)/segLen)
		}
		cl += segLen
	}
	return copyCoord(line.Coord(n - 1))
}

// reverseLine reverses order of points in given line. Returns new line
func reverseLine(line *geom.LineString) *geom.LineString {
	n := line.NumCoords()
	coords := make([]geom.Coord, n)
	for i := 0; i < n; i++ {
		coords[n-i-1] = copyCoord(line.Coord(i))
	}
	return newLine(line.Layout(), coords)
}

// copyLine returns deep copy of given line
func copyLine(line *geom.LineString) *geom.LineString {
	return newLine(line.Layout(), line.Coords())
}

func copyCoord(c geom.Coord) geom.Coord {
	ans := make(geom.Coord, len(c))
	copy(ans, c)
	return ans
}

func newLine(layout geom.Layout, coords []geom.Coord) *geom.LineString {
	copied := make([]geom.Coord, len(coords))
	for i := range coords {
		copied[i] = copyCoord(coords[i])
	}
	return geom.NewLineString(layout).MustSetCoords(copied)
}

// copyGeometry returns deep copy of supported geometries. Anything else is returned as is
func copyGeometry(g geom.T) geom.T {
	switch v := g.(type) {
	case *geom.LineString:
		if v == nil {
			return nil
		}
		return copyLine(v)
	case *geom.Point:
		if v == nil {
			return nil
		}
		return geom.NewPoint(v.Layout()).MustSetCoords(copyCoord(v.Coords()))
	}
	return g
}

// endpoints returns first and last coordinates of line or point geometry
func endpoints(g geom.T) (geom.Coord, geom.Coord, bool) {
	switch v := g.(type) {
	case *geom.LineString:
		if v == nil || v.NumCoords() == 0 {
			return nil, nil, false
		}
		return v.Coord(0), v.Coord(v.NumCoords() - 1), true
	case *geom.Point:
		if v == nil || v.Empty() {
			return nil, nil, false
		}
		return v.Coords(), v.Coords(), true
	}
	return nil, nil, false
}

// geometryBound returns 2D bounding box of line or point geometry
func geometryBound(g geom.T) (orb.Bound, bool) {
	switch v := g.(type) {
	case *geom.LineString:
		if v == nil || v.NumCoords() == 0 {
			return orb.Bound{}, false
		}
		return toOrbLine(v).Bound(), true
	case *geom.Point:
		if v == nil || v.Empty() {
			return orb.Bound{}, false
		}
		return toOrbPoint(v.Coords()).Bound(), true
	}
	return orb.Bound{}, false
}
