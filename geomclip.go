package nvdbseg

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

// lengthTolerance absorbs float rounding when comparing computed distances with line lengths (meters)
const lengthTolerance = 1e-6

// Cut splits line in two at given planar distance from its start.
//
// Single element (copy of the line) is returned when distance <= 0 or distance >= length,
// nil is returned for nil line.
// When the cut point coincides with an existing vertex that vertex is reused as is,
// otherwise a new vertex is interpolated (Z included).
func Cut(line *geom.LineString, distance float64) []*geom.LineString {
	if line == nil {
		return nil
	}
	length := lineLength(line)
	if distance <= 0 || distance >= length {
		return []*geom.LineString{copyLine(line)}
	}
	coords := line.Coords()
	layout := line.Layout()
	cl := 0.0
	for i := 1; i < len(coords); i++ {
		cl += findDistance(coords[i-1], coords[i])
		if cl == distance {
			return []*geom.LineString{
				newLine(layout, coords[:i+1]),
				newLine(layout, coords[i:]),
			}
		}
		if cl > distance {
			segLen := findDistance(coords[i-1], coords[i])
			cp := pointOnSegmentByFraction(coords[i-1], coords[i], 1-(cl-distance)/segLen)
			head := append(append([]geom.Coord{}, coords[:i]...), cp)
			tail := append([]geom.Coord{cp}, coords[i:]...)
			return []*geom.LineString{
				newLine(layout, head),
				newLine(layout, tail),
			}
		}
	}
	return []*geom.LineString{copyLine(line)}
}

// ClipToLinearRange cuts the part of line matching target interval, given that the whole
// line spans original interval. Scale factor is L = length / (original.To - original.From).
//
// Returns InvariantViolation when target is not inside original.
func ClipToLinearRange(line *geom.LineString, original, target LinearInterval) (*geom.LineString, error) {
	if target.From < original.From-positionEpsilon || target.To > original.To+positionEpsilon || target.From > target.To {
		return nil, &InvariantViolation{
			Op:     "ClipToLinearRange",
			Detail: fmt.Sprintf("target %v-%v is outside of original %v-%v", target.From, target.To, original.From, original.To),
		}
	}
	if line == nil {
		return nil, nil
	}
	span := original.To - original.From
	length := lineLength(line)
	if span <= 0 || length == 0 {
		return copyLine(line), nil
	}
	scale := length / span
	headDist := (target.From - original.From) * scale
	tailDist := (target.To - original.From) * scale
	if tailDist > length+lengthTolerance*math.Max(1, length) {
		return nil, &InvariantViolation{
			Op:     "ClipToLinearRange",
			Detail: fmt.Sprintf("cut distance %f exceeds line length %f", tailDist, length),
		}
	}
	if tailDist-headDist <= lengthTolerance {
		cp := interpolateLine(line, headDist)
		return newLine(line.Layout(), []geom.Coord{cp, cp}), nil
	}
	clipped := line
	if pieces := Cut(clipped, tailDist); len(pieces) == 2 {
		clipped = pieces[0]
	}
	if pieces := Cut(clipped, headDist); len(pieces) == 2 {
		clipped = pieces[1]
	}
	if clipped == line {
		return copyLine(line), nil
	}
	return clipped, nil
}

// clipGeometry is ClipToLinearRange for any geometry: points and empty or missing geometries
// are returned as copies since there is nothing to cut
func clipGeometry(g geom.T, original, target LinearInterval) (geom.T, error) {
	line, ok := g.(*geom.LineString)
	if !ok || line == nil || line.NumCoords() < 2 {
		return copyGeometry(g), nil
	}
	return ClipToLinearRange(line, original, target)
}
