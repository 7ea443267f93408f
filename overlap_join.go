package nvdbseg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// JoinKind is either inner or left overlap join
type JoinKind uint8

const (
	// JoinInner keeps overlapping pairs only
	JoinInner JoinKind = iota
	// JoinLeft keeps overlapping pairs and the uncovered parts of left records
	JoinLeft
)

func (kind JoinKind) String() string {
	switch kind {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	default:
		return "undefined"
	}
}

// WithPrefix sets namespace token for columns of the right dataset, e.g. "t105_".
// Default is "t" + right dataset name + "_"
func WithPrefix(prefix string) func(*JoinResult) {
	return func(jr *JoinResult) {
		jr.prefix = prefix
	}
}

// WithClipGeometry enables clipping of geometries to the overlap extent. Default is false
func WithClipGeometry(clip bool) func(*JoinResult) {
	return func(jr *JoinResult) {
		jr.clipped = clip
	}
}

// WithClipChainage enables recalculation of chainage reference for the overlap extent. Default is true
func WithClipChainage(clip bool) func(*JoinResult) {
	return func(jr *JoinResult) {
		jr.clipChainage = clip
	}
}

// OverlapPair is one row of a join result: a left record and the right record it overlaps.
// Right is nil for residual parts of left records that no right record covers (left join only)
type OverlapPair struct {
	Left     Record
	Right    *Record
	Overlap  LinearInterval
	Geometry geom.T
	Chainage string
}

// Matched returns false for unmatched left residuals
func (pair OverlapPair) Matched() bool {
	return pair.Right != nil
}

// JoinResult holds pairs produced by an overlap join
type JoinResult struct {
	Kind  JoinKind
	Pairs []OverlapPair

	name         string
	domain       PositionDomain
	prefix       string
	clipped      bool
	clipChainage bool
	leftColumns  []string
	rightColumns []string
}

// Prefix returns namespace token used for columns of the right dataset
func (jr *JoinResult) Prefix() string {
	return jr.prefix
}

// InnerJoin pairs every record of a with every record of b on the same sequence whose
// linear extent overlaps. Overlap interval is (max(from), min(to)).
func InnerJoin(a, b *Dataset, options ...func(*JoinResult)) (*JoinResult, error) {
	return overlapJoin(JoinInner, a, b, options...)
}

// LeftJoin is InnerJoin plus, for every record of a, the parts of its extent not covered by
// any record of b. A record with no match at all is emitted unchanged.
// Residual parts get their own clipped geometry and chainage.
func LeftJoin(a, b *Dataset, options ...func(*JoinResult)) (*JoinResult, error) {
	return overlapJoin(JoinLeft, a, b, options...)
}

func overlapJoin(kind JoinKind, a, b *Dataset, options ...func(*JoinResult)) (*JoinResult, error) {
	if a == nil || b == nil {
		return nil, &SchemaError{Reason: "join requires two datasets"}
	}
	result := &JoinResult{
		Kind:         kind,
		name:         a.Name(),
		domain:       a.Domain(),
		clipChainage: true,
		leftColumns:  a.Columns(),
	}
	for _, option := range options {
		option(result)
	}
	if result.prefix == "" {
		if b.Name() == "" {
			return nil, &SchemaError{Dataset: b.Name(), Column: ColumnObjectType, Reason: "can't derive column prefix: right dataset has no name, use WithPrefix"}
		}
		result.prefix = "t" + b.Name() + "_"
	}
	result.rightColumns = rightColumns(b, result.prefix)

	groups := b.bySequence()
	for i := range a.records {
		left := &a.records[i]
		matched := []LinearInterval{}
		for _, j := range groups[left.Interval.SequenceID] {
			right := &b.records[j]
			if !left.Interval.IsPoint() && !right.Interval.IsPoint() && right.Interval.From >= left.Interval.To {
				break
			}
			if right.Interval.From > left.Interval.To {
				break
			}
			if !left.Interval.Overlaps(right.Interval) {
				continue
			}
			pair, err := result.makePair(left, right)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't join %s with %s", left.Interval, right.Interval)
			}
			result.Pairs = append(result.Pairs, pair)
			matched = append(matched, pair.Overlap)
		}
		if kind != JoinLeft {
			continue
		}
		residuals, err := leftResiduals(left, matched)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't find unmatched parts of %s", left.Interval)
		}
		result.Pairs = append(result.Pairs, residuals...)
	}
	return result, nil
}

func (jr *JoinResult) makePair(left, right *Record) (OverlapPair, error) {
	overlap, _ := left.Interval.Intersection(right.Interval)
	leftCopy, rightCopy := left.Copy(), right.Copy()
	pair := OverlapPair{
		Left:     leftCopy,
		Right:    &rightCopy,
		Overlap:  overlap,
		Geometry: copyGeometry(left.Geometry),
		Chainage: left.Chainage,
	}
	if jr.clipped {
		switch {
		case right.Interval.IsPoint():
			pair.Geometry = copyGeometry(right.Geometry)
		case left.Interval.IsPoint():
		default:
			g, interval, ok, err := ResolveGeometryOverlap(left.directedGeometry(), left.Interval, right.directedGeometry(), right.Interval)
			if err != nil {
				return pair, err
			}
			if !ok {
				return pair, &InvariantViolation{
					Op:     "InnerJoin",
					Detail: fmt.Sprintf("pair %s and %s presumed overlapping has no common extent", left.Interval, right.Interval),
				}
			}
			// Degenerate side: resolver hands back the other geometry at its own extent
			if !sameSpan(interval, overlap) {
				g, err = clipGeometry(g, interval, overlap)
				if err != nil {
					return pair, err
				}
			}
			pair.Geometry = orientGeometry(g, left.Reversed)
		}
	}
	if jr.clipChainage {
		pair.Chainage = overlapChainage(left, right, pair.Overlap)
	}
	return pair, nil
}

// overlapChainage prefers the common part of both references. When only one side has a
// parseable reference it is interpolated down to the overlap
func overlapChainage(left, right *Record, overlap LinearInterval) string {
	if left.Chainage != "" && right.Chainage != "" {
		if c, ok := ResolveChainageOverlap(left.Chainage, right.Chainage); ok {
			return c
		}
		return ""
	}
	if left.Chainage != "" {
		return segmentChainage(left, overlap)
	}
	if right.Chainage != "" {
		return segmentChainage(right, overlap)
	}
	return ""
}

func leftResiduals(left *Record, matched []LinearInterval) ([]OverlapPair, error) {
	if len(matched) == 0 {
		leftCopy := left.Copy()
		return []OverlapPair{{
			Left:     leftCopy,
			Overlap:  left.Interval,
			Geometry: copyGeometry(left.Geometry),
			Chainage: left.Chainage,
		}}, nil
	}
	if left.Interval.IsPoint() {
		return nil, nil
	}
	residuals := antiOverlap(left.Interval, matched)
	ans := make([]OverlapPair, 0, len(residuals))
	for _, residual := range residuals {
		g, err := clipGeometry(left.directedGeometry(), left.Interval, residual)
		if err != nil {
			return nil, err
		}
		g = orientGeometry(g, left.Reversed)
		ans = append(ans, OverlapPair{
			Left:     left.Copy(),
			Overlap:  residual,
			Geometry: g,
			Chainage: segmentChainage(left, residual),
		})
	}
	return ans, nil
}

// antiOverlap returns parts of base not covered by any of the given intervals.
// Covering intervals are sorted and merged first; zero-length leftovers are dropped
func antiOverlap(base LinearInterval, covers []LinearInterval) []LinearInterval {
	merged := mergeIntervals(covers)
	ans := []LinearInterval{}
	start := base.From
	for _, c := range merged {
		if c.To <= start {
			continue
		}
		if c.From >= base.To {
			break
		}
		if c.From-start > positionEpsilon {
			ans = append(ans, LinearInterval{SequenceID: base.SequenceID, From: start, To: c.From})
		}
		if c.To > start {
			start = c.To
		}
	}
	if base.To-start > positionEpsilon {
		ans = append(ans, LinearInterval{SequenceID: base.SequenceID, From: start, To: base.To})
	}
	return ans
}

// mergeIntervals sorts intervals and collapses overlapping or touching ones
func mergeIntervals(intervals []LinearInterval) []LinearInterval {
	sorted := append([]LinearInterval{}, intervals...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return sorted[i].To < sorted[j].To
	})
	merged := []LinearInterval{}
	for _, li := range sorted {
		last := len(merged) - 1
		if last >= 0 && li.From <= merged[last].To {
			if li.To > merged[last].To {
				merged[last].To = li.To
			}
			continue
		}
		merged = append(merged, LinearInterval{SequenceID: li.SequenceID, From: li.From, To: li.To})
	}
	return merged
}

func rightColumns(b *Dataset, prefix string) []string {
	columns := []string{}
	for _, col := range []string{ColumnFrom, ColumnTo, ColumnPosition, ColumnChainage} {
		columns = append(columns, prefixed(prefix, col))
	}
	for _, col := range b.columns {
		columns = append(columns, prefixed(prefix, col))
	}
	return columns
}

// prefixed adds prefix unless column name already carries it (result of an earlier join)
func prefixed(prefix, column string) string {
	if strings.HasPrefix(column, prefix) {
		return column
	}
	return prefix + column
}

// Dataset flattens join result into a new dataset named after the left one.
//
// Left columns are kept as is. Right columns get the prefix, right positions are kept as
// prefixed columns too. Each record is located at the overlap interval, which makes
// chained joins possible:
//
//	first, _ := InnerJoin(tunnels, speedLimits)
//	firstDs, _ := first.Dataset()
//	second, _ := InnerJoin(firstDs, traffic)
func (jr *JoinResult) Dataset() (*Dataset, error) {
	columns := append([]string{}, jr.leftColumns...)
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		seen[col] = struct{}{}
	}
	for _, col := range jr.rightColumns {
		if _, ok := seen[col]; ok {
			logger.Warn("Column name collision in join result, right value wins", zap.String("column", col))
			continue
		}
		seen[col] = struct{}{}
		columns = append(columns, col)
	}
	if _, ok := seen[ColumnSegmentLength]; jr.clipped && !ok {
		columns = append(columns, ColumnSegmentLength)
	}

	records := make([]Record, 0, len(jr.Pairs))
	for _, pair := range jr.Pairs {
		attrs := pair.Left.Attributes.Copy()
		if pair.Right != nil {
			right := pair.Right
			if right.Interval.IsPoint() {
				attrs[prefixed(jr.prefix, ColumnPosition)] = right.Interval.From
			} else {
				attrs[prefixed(jr.prefix, ColumnFrom)] = right.Interval.From
				attrs[prefixed(jr.prefix, ColumnTo)] = right.Interval.To
			}
			if right.Chainage != "" {
				attrs[prefixed(jr.prefix, ColumnChainage)] = right.Chainage
			}
			for k, v := range right.Attributes {
				attrs[prefixed(jr.prefix, k)] = v
			}
		}
		if jr.clipped {
			attrs[ColumnSegmentLength] = geometryLength(pair.Geometry)
		}
		records = append(records, Record{
			Interval:   pair.Overlap,
			Geometry:   pair.Geometry,
			Chainage:   pair.Chainage,
			Reversed:   pair.Left.Reversed,
			Attributes: attrs,
		})
	}
	return NewDataset(jr.name, columns, records, WithDomain(jr.domain))
}
