package nvdbseg

import (
	"fmt"
	"math"
)

// SequenceID identifies a road link sequence (veglenkesekvens): one continuous
// independently addressable piece of the road network
type SequenceID int64

// PositionDomain tells how linear positions along a sequence are expressed
type PositionDomain uint8

const (
	// DomainFractional positions are relative, in [0, 1]
	DomainFractional PositionDomain = iota
	// DomainReal positions are any non-negative real values (e.g. meters)
	DomainReal
)

func (d PositionDomain) String() string {
	switch d {
	case DomainFractional:
		return "fractional"
	case DomainReal:
		return "real"
	default:
		return "undefined"
	}
}

// positionEpsilon is the tolerance for comparing two linear positions.
// The registry publishes positions with 8 decimals.
const positionEpsilon = 1e-9

// LinearInterval is an interval along a road link sequence. A point (LinearPoint)
// is the degenerate interval where From == To
type LinearInterval struct {
	SequenceID SequenceID
	From       float64
	To         float64
	point      bool
}

// NewLinearInterval builds and validates fractional interval
func NewLinearInterval(sequenceID SequenceID, from, to float64) (LinearInterval, error) {
	li := LinearInterval{SequenceID: sequenceID, From: from, To: to}
	return li, li.Validate(DomainFractional)
}

// NewLinearPoint builds and validates fractional point
func NewLinearPoint(sequenceID SequenceID, position float64) (LinearInterval, error) {
	li := LinearInterval{SequenceID: sequenceID, From: position, To: position, point: true}
	return li, li.Validate(DomainFractional)
}

// IsPoint returns true if interval has been constructed as a point
func (li LinearInterval) IsPoint() bool {
	return li.point
}

// Position returns position of the point. For intervals it is the start position
func (li LinearInterval) Position() float64 {
	return li.From
}

// Length returns linear length of the interval (zero for points)
func (li LinearInterval) Length() float64 {
	return li.To - li.From
}

// Validate checks that From <= To and both values belong to the given domain
func (li LinearInterval) Validate(domain PositionDomain) error {
	if math.IsNaN(li.From) || math.IsNaN(li.To) {
		return &ValidationError{From: li.From, To: li.To, Reason: "NaN position"}
	}
	if li.From > li.To {
		return &ValidationError{From: li.From, To: li.To, Reason: "from is greater than to"}
	}
	switch domain {
	case DomainFractional:
		if li.From < 0 || li.To > 1 {
			return &ValidationError{From: li.From, To: li.To, Reason: "fractional positions must be in [0, 1]"}
		}
	case DomainReal:
		if li.From < 0 {
			return &ValidationError{From: li.From, To: li.To, Reason: "real positions must be non-negative"}
		}
	default:
		return &ValidationError{From: li.From, To: li.To, Reason: fmt.Sprintf("unknown position domain %d", domain)}
	}
	return nil
}

// Overlaps tells whether two intervals on the same sequence intersect.
//
// Interval vs interval uses strict inequality (a.from < b.to && a.to > b.from), so touching
// intervals do not overlap. Point vs point requires equal positions. Point vs interval
// is inclusive at both interval ends.
func (li LinearInterval) Overlaps(other LinearInterval) bool {
	if li.SequenceID != other.SequenceID {
		return false
	}
	switch {
	case li.point && other.point:
		return math.Abs(li.From-other.From) <= positionEpsilon
	case li.point:
		return li.From >= other.From && li.From <= other.To
	case other.point:
		return other.From >= li.From && other.From <= li.To
	}
	return li.From < other.To && li.To > other.From
}

// Contains tells whether other lies fully inside li (same sequence, li.from <= other.from and other.to <= li.to)
func (li LinearInterval) Contains(other LinearInterval) bool {
	if li.SequenceID != other.SequenceID {
		return false
	}
	return other.From >= li.From && other.To <= li.To
}

// Intersection returns the overlapping part of two intervals: (max(from), min(to)).
// Second value is false when the intervals do not overlap
func (li LinearInterval) Intersection(other LinearInterval) (LinearInterval, bool) {
	if !li.Overlaps(other) {
		return LinearInterval{}, false
	}
	return LinearInterval{
		SequenceID: li.SequenceID,
		From:       math.Max(li.From, other.From),
		To:         math.Min(li.To, other.To),
		point:      li.point || other.point,
	}, true
}

// String returns the registry's short form: "0.25-0.75@1158097", or "0.5@1158097" for points
func (li LinearInterval) String() string {
	if li.point {
		return fmt.Sprintf("%s@%d", formatPosition(li.From), li.SequenceID)
	}
	return fmt.Sprintf("%s-%s@%d", formatPosition(li.From), formatPosition(li.To), li.SequenceID)
}

func formatPosition(pos float64) string {
	return fmt.Sprintf("%.8g", pos)
}

// sameSpan reports whether two intervals cover the same positions within tolerance
func sameSpan(a, b LinearInterval) bool {
	return math.Abs(a.From-b.From) <= positionEpsilon && math.Abs(a.To-b.To) <= positionEpsilon
}
