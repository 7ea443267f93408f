package nvdbseg

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

const (
	// DefaultSafetyFactor discounts linear length (span * scale) in the minimum length check:
	// on tight curves (roundabouts) straight-line distance underestimates true extent
	DefaultSafetyFactor = 0.8
	// DefaultOverlapTolerance is the smallest linear overlap counted when matching layer records to a micro-segment
	DefaultOverlapTolerance = 1e-6
)

// DefaultIgnoredColumns are not aggregated into micro-segments
var DefaultIgnoredColumns = []string{"nvdbId", "objektType", ColumnObjectType, ColumnSegmentLength}

// Layer is an auxiliary dataset to be aggregated onto the road network
type Layer struct {
	Dataset *Dataset
	// Prefix is prepended to every output column of the layer. Could be empty
	Prefix string
	// Aggregations per column. Columns not listed use Default
	Aggregations map[string]Aggregation
	Default      Aggregation
}

func (layer *Layer) aggregation(column string) Aggregation {
	if agg, ok := layer.Aggregations[column]; ok {
		return agg
	}
	return layer.Default
}

// Segmenter cuts road network records into micro-segments at every position where any layer
// starts or ends, and aggregates layer attributes onto each micro-segment
type Segmenter struct {
	minLength        float64
	safetyFactor     float64
	overlapTolerance float64
	ignoredColumns   map[string]struct{}
}

func (sg *Segmenter) String() string {
	ignored := make([]string, 0, len(sg.ignoredColumns))
	for col := range sg.ignoredColumns {
		ignored = append(ignored, col)
	}
	sort.Strings(ignored)
	return fmt.Sprintf(`
Segmenter parameters:
	min_length: %f
	safety_factor: %f
	overlap_tolerance: %g
	ignored_columns: '%s'
	`,
		sg.minLength,
		sg.safetyFactor,
		sg.overlapTolerance,
		strings.Join(ignored, ","),
	)
}

// NewSegmenter returns segmenter with defaults: no minimum length, safety factor 0.8,
// overlap tolerance 1e-6, DefaultIgnoredColumns
func NewSegmenter(options ...func(*Segmenter)) *Segmenter {
	sg := &Segmenter{
		minLength:        0,
		safetyFactor:     DefaultSafetyFactor,
		overlapTolerance: DefaultOverlapTolerance,
	}
	WithIgnoredColumns(DefaultIgnoredColumns)(sg)
	for _, option := range options {
		option(sg)
	}
	return sg
}

// WithMinLength sets minimum micro-segment length in meters (minsteLengde)
func WithMinLength(minLength float64) func(*Segmenter) {
	return func(sg *Segmenter) {
		sg.minLength = minLength
	}
}

// WithSafetyFactor overrides DefaultSafetyFactor
func WithSafetyFactor(safetyFactor float64) func(*Segmenter) {
	return func(sg *Segmenter) {
		sg.safetyFactor = safetyFactor
	}
}

// WithOverlapTolerance overrides DefaultOverlapTolerance
func WithOverlapTolerance(tolerance float64) func(*Segmenter) {
	return func(sg *Segmenter) {
		sg.overlapTolerance = tolerance
	}
}

// WithIgnoredColumns replaces the set of columns which are not aggregated
func WithIgnoredColumns(columns []string) func(*Segmenter) {
	return func(sg *Segmenter) {
		sg.ignoredColumns = make(map[string]struct{}, len(columns))
		for _, col := range columns {
			sg.ignoredColumns[col] = struct{}{}
		}
	}
}

type breakpoint struct {
	pos   float64
	coord geom.Coord
}

// Segment splits every record of the base network dataset into micro-segments.
//
// Breakpoints are the ends of the base record plus the ends of every layer record
// overlapping it. Breakpoints closer than the minimum length are merged. For every
// micro-segment the base geometry is clipped, chainage is recalculated and attributes of
// covering layer records are aggregated. Micro-segments of one base record exactly cover it.
//
// SchemaError is returned when base contains point records or output column names collide.
func (sg *Segmenter) Segment(base *Dataset, layers []Layer) (*Dataset, error) {
	if base == nil {
		return nil, &SchemaError{Reason: "segmentation requires base network dataset"}
	}
	if base.HasPoints() {
		return nil, &SchemaError{Dataset: base.Name(), Column: ColumnFrom, Reason: "base network must consist of line records"}
	}
	columns, err := sg.outputColumns(base, layers)
	if err != nil {
		return nil, err
	}
	groups := make([]map[SequenceID][]int, len(layers))
	for i := range layers {
		groups[i] = layers[i].Dataset.bySequence()
	}

	records := []Record{}
	for i := range base.records {
		segments, err := sg.segmentRecord(&base.records[i], layers, groups)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't segment %s", base.records[i].Interval)
		}
		records = append(records, segments...)
	}
	return NewDataset(base.Name(), columns, records, WithDomain(base.Domain()))
}

func (sg *Segmenter) outputColumns(base *Dataset, layers []Layer) ([]string, error) {
	columns := base.Columns()
	seen := make(map[string]string, len(columns))
	for _, col := range columns {
		seen[col] = base.Name()
	}
	for i := range layers {
		if layers[i].Dataset == nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("layer #%d has no dataset", i)}
		}
		for _, col := range layers[i].Dataset.columns {
			if _, ignored := sg.ignoredColumns[col]; ignored {
				continue
			}
			out := prefixed(layers[i].Prefix, col)
			if owner, ok := seen[out]; ok {
				return nil, &SchemaError{
					Dataset: layers[i].Dataset.Name(),
					Column:  out,
					Reason:  fmt.Sprintf("output column collides with column of '%s', set layer prefix", owner),
				}
			}
			seen[out] = layers[i].Dataset.Name()
			columns = append(columns, out)
		}
	}
	if _, ok := seen[ColumnSegmentLength]; ok {
		return columns, nil
	}
	return append(columns, ColumnSegmentLength), nil
}

func (sg *Segmenter) segmentRecord(rec *Record, layers []Layer, groups []map[SequenceID][]int) ([]Record, error) {
	directed := rec.directedGeometry()
	line, _ := directed.(*geom.LineString)
	scale := 0.0
	if span := rec.Interval.Length(); span > 0 {
		scale = lineLength(line) / span
	}
	points := sg.collectBreakpoints(rec, line, scale, layers, groups)
	points = sg.mergeShort(rec, points, scale)

	ans := make([]Record, 0, len(points)-1)
	for k := 0; k+1 < len(points); k++ {
		sub := LinearInterval{SequenceID: rec.Interval.SequenceID, From: points[k].pos, To: points[k+1].pos}
		g, err := clipGeometry(directed, rec.Interval, sub)
		if err != nil {
			return nil, err
		}
		g = orientGeometry(g, rec.Reversed)
		attrs := rec.Attributes.Copy()
		for i := range layers {
			sg.aggregateLayer(attrs, &layers[i], groups[i], sub, k+2 == len(points))
		}
		attrs[ColumnSegmentLength] = geometryLength(g)
		ans = append(ans, Record{
			Interval:   sub,
			Geometry:   g,
			Chainage:   segmentChainage(rec, sub),
			Reversed:   rec.Reversed,
			Attributes: attrs,
		})
	}
	return ans, nil
}

// covers tells whether layer record takes part in the given extent: lines must overlap by more
// than the tolerance, points must lie inside (end is inclusive only for the last micro-segment)
func (sg *Segmenter) covers(layerRec *Record, sub LinearInterval, closedEnd bool) bool {
	li := layerRec.Interval
	if li.SequenceID != sub.SequenceID {
		return false
	}
	if li.IsPoint() {
		return li.From >= sub.From && (li.From < sub.To || (closedEnd && li.From <= sub.To))
	}
	return math.Min(li.To, sub.To)-math.Max(li.From, sub.From) > sg.overlapTolerance
}

func (sg *Segmenter) collectBreakpoints(rec *Record, line *geom.LineString, scale float64, layers []Layer, groups []map[SequenceID][]int) []breakpoint {
	from, to := rec.Interval.From, rec.Interval.To
	points := []breakpoint{{pos: from}, {pos: to}}
	if first, last, ok := endpoints(line); ok {
		points[0].coord, points[1].coord = first, last
	}
	for i := range layers {
		for _, j := range groups[i][rec.Interval.SequenceID] {
			layerRec := &layers[i].Dataset.records[j]
			if layerRec.Interval.From > to {
				break
			}
			if !sg.covers(layerRec, rec.Interval, true) {
				continue
			}
			// Reversed records get their coordinate order flipped so start matches From
			first, last, ok := endpoints(layerRec.directedGeometry())
			if layerRec.Interval.From > from {
				bp := breakpoint{pos: layerRec.Interval.From}
				if ok {
					bp.coord = first
				}
				points = append(points, bp)
			}
			if !layerRec.Interval.IsPoint() && layerRec.Interval.To < to {
				bp := breakpoint{pos: layerRec.Interval.To}
				if ok {
					bp.coord = last
				}
				points = append(points, bp)
			}
		}
	}
	sort.SliceStable(points, func(a, b int) bool {
		return points[a].pos < points[b].pos
	})

	// Drop duplicates: the first one of a cluster wins, base ends are pinned
	unique := []breakpoint{points[0]}
	for _, bp := range points[1:] {
		if bp.pos-unique[len(unique)-1].pos <= positionEpsilon {
			if unique[len(unique)-1].coord == nil {
				unique[len(unique)-1].coord = bp.coord
			}
			continue
		}
		unique = append(unique, bp)
	}
	if len(unique) == 1 {
		unique = append(unique, breakpoint{pos: to, coord: points[len(points)-1].coord})
	}
	unique[0].pos = from
	unique[len(unique)-1].pos = to
	if line != nil && line.NumCoords() > 0 {
		for k := range unique {
			if unique[k].coord == nil {
				unique[k].coord = interpolateLine(line, (unique[k].pos-from)*scale)
			}
		}
	}
	return unique
}

// mergeShort is the minimum length pass. The working segment is extended until either the
// straight-line distance between its ends, or its linear span times scale times safety
// factor, exceeds the minimum length. The last breakpoint is always kept
func (sg *Segmenter) mergeShort(rec *Record, points []breakpoint, scale float64) []breakpoint {
	if sg.minLength <= 0 || len(points) <= 2 {
		return points
	}
	if scale == 0 {
		logger.Debug("No geometry to measure, minimum length is not applied", zap.Stringer("interval", rec.Interval))
		return points
	}
	kept := []breakpoint{points[0]}
	start := points[0]
	for i := 1; i < len(points); i++ {
		candidate := points[i]
		if i == len(points)-1 {
			kept = append(kept, candidate)
			break
		}
		straight := 0.0
		if start.coord != nil && candidate.coord != nil {
			straight = findDistance(start.coord, candidate.coord)
		}
		linear := (candidate.pos - start.pos) * scale * sg.safetyFactor
		if straight > sg.minLength || linear > sg.minLength {
			kept = append(kept, candidate)
			start = candidate
		}
	}
	return kept
}

func (sg *Segmenter) aggregateLayer(attrs Attributes, layer *Layer, group map[SequenceID][]int, sub LinearInterval, closedEnd bool) {
	matches := []*Record{}
	for _, j := range group[sub.SequenceID] {
		layerRec := &layer.Dataset.records[j]
		if layerRec.Interval.From > sub.To {
			break
		}
		if sg.covers(layerRec, sub, closedEnd) {
			matches = append(matches, layerRec)
		}
	}
	if len(matches) == 0 {
		return
	}
	for _, col := range layer.Dataset.columns {
		if _, ignored := sg.ignoredColumns[col]; ignored {
			continue
		}
		values := make([]interface{}, len(matches))
		for m := range matches {
			values[m] = matches[m].Attributes[col]
		}
		attrs[prefixed(layer.Prefix, col)] = layer.aggregation(col).Apply(values)
	}
}

// segmentChainage interpolates record chainage onto a part of its extent.
// For records against the sequence direction meter values run the other way
func segmentChainage(rec *Record, sub LinearInterval) string {
	if !rec.Reversed {
		return deriveChainage(rec.Chainage, rec.Interval, sub)
	}
	mirrored := LinearInterval{
		SequenceID: sub.SequenceID,
		From:       rec.Interval.From + rec.Interval.To - sub.To,
		To:         rec.Interval.From + rec.Interval.To - sub.From,
	}
	return deriveChainage(rec.Chainage, rec.Interval, mirrored)
}
