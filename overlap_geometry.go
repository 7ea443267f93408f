package nvdbseg

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ResolveGeometryOverlap clips two line geometries down to their common linear extent.
//
// The shorter of the two lines is the one to cut: its excess before or after the overlap
// is removed. When one interval contains the other, the contained geometry is returned as is.
// When either geometry is missing, empty or of zero length, the other side is returned unchanged.
// For non-overlapping intervals the result is (nil, zero interval, false).
//
// InvariantViolation is returned if the computed cut position falls outside the line being cut.
func ResolveGeometryOverlap(g1 geom.T, i1 LinearInterval, g2 geom.T, i2 LinearInterval) (geom.T, LinearInterval, bool, error) {
	line1, line2 := nonDegenerateLine(g1), nonDegenerateLine(g2)
	if line1 == nil {
		logger.Debug("Degenerate geometry on first side of overlap, using second", zap.Stringer("interval", i1))
		return copyGeometry(g2), i2, true, nil
	}
	if line2 == nil {
		logger.Debug("Degenerate geometry on second side of overlap, using first", zap.Stringer("interval", i2))
		return copyGeometry(g1), i1, true, nil
	}

	if !(i1.From < i2.To && i1.To > i2.From) {
		logger.Warn("No overlap between linear positions", zap.Stringer("first", i1), zap.Stringer("second", i2))
		return nil, LinearInterval{}, false, nil
	}
	overlap := LinearInterval{
		SequenceID: i1.SequenceID,
		From:       math.Max(i1.From, i2.From),
		To:         math.Min(i1.To, i2.To),
	}

	// One extent is a subset of the other: nothing to cut
	if i1.From >= i2.From && i1.To <= i2.To {
		return copyLine(line1), overlap, true, nil
	}
	if i2.From >= i1.From && i2.To <= i1.To {
		return copyLine(line2), overlap, true, nil
	}

	short, shortInterval, longInterval := line2, i2, i1
	if lineLength(line1) < lineLength(line2) {
		short, shortInterval, longInterval = line1, i1, i2
	}

	// The short line sticks out either before or after the long one
	cutPos, keep := longInterval.To, 0
	if shortInterval.From < longInterval.From {
		cutPos, keep = longInterval.From, 1
	}
	if cutPos < shortInterval.From || cutPos > shortInterval.To {
		return nil, LinearInterval{}, false, &InvariantViolation{
			Op:     "ResolveGeometryOverlap",
			Detail: fmt.Sprintf("cut position %v is outside of %v-%v", cutPos, shortInterval.From, shortInterval.To),
		}
	}
	shortLength := lineLength(short)
	cutDist := (cutPos - shortInterval.From) / (shortInterval.To - shortInterval.From) * shortLength
	if cutDist > shortLength+lengthTolerance*math.Max(1, shortLength) {
		return nil, LinearInterval{}, false, &InvariantViolation{
			Op:     "ResolveGeometryOverlap",
			Detail: fmt.Sprintf("cut distance %f exceeds line length %f", cutDist, shortLength),
		}
	}
	pieces := Cut(short, cutDist)
	if len(pieces) == 1 {
		return pieces[0], overlap, true, nil
	}
	return pieces[keep], overlap, true, nil
}

// ResolveChainageOverlap returns the chainage text matching the common extent of two
// references. Empty string and false are returned when either text is unparseable or
// the references do not overlap
func ResolveChainageOverlap(chainageA, chainageB string) (string, bool) {
	overlap, ok := ChainageOverlap(ParseChainage(chainageA), ParseChainage(chainageB))
	if !ok {
		return "", false
	}
	return overlap.String(), true
}

// deriveChainage maps a sub-interval of a record onto its chainage reference by linear
// interpolation of the meter values. Empty string is returned when chainage is unparseable
func deriveChainage(chainage string, original, target LinearInterval) string {
	if chainage == "" {
		return ""
	}
	ref := ParseChainage(chainage)
	if !ref.IsValid() {
		return ""
	}
	span := original.To - original.From
	if span <= 0 {
		return ref.String()
	}
	from := ref.meterAt((target.From - original.From) / span)
	to := ref.meterAt((target.To - original.From) / span)
	return NewChainageReference(ref.Root, from, to).String()
}

func nonDegenerateLine(g geom.T) *geom.LineString {
	line, ok := g.(*geom.LineString)
	if !ok || line == nil || lineLength(line) == 0 {
		return nil
	}
	return line
}
