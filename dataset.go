package nvdbseg

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Column names used by the registry when flattening records into rows
const (
	ColumnSequenceID     = "veglenkesekvensid"
	ColumnFrom           = "startposisjon"
	ColumnTo             = "sluttposisjon"
	ColumnPosition       = "relativPosisjon"
	ColumnPositionString = "stedfesting"
	ColumnGeometry       = "geometry"
	ColumnGeometryWKT    = "geometri"
	ColumnChainage       = "vref"
	ColumnChainageLong   = "vegsystemreferanse"
	ColumnDirection      = "segmentretning"
	ColumnObjectType     = "objekttype"
	ColumnSegmentLength  = "segmentlengde"
)

// Values of segmentretning: along or against the sequence direction
const (
	DirectionAlong   = "MED"
	DirectionAgainst = "MOT"
)

var reservedColumns = map[string]struct{}{
	ColumnSequenceID:     {},
	ColumnFrom:           {},
	ColumnTo:             {},
	ColumnPosition:       {},
	ColumnPositionString: {},
	ColumnGeometry:       {},
	ColumnGeometryWKT:    {},
	ColumnChainage:       {},
	ColumnChainageLong:   {},
	ColumnDirection:      {},
}

// Dataset is an immutable collection of records of one object type or one network layer.
//
// Every operation of the package takes datasets as input and returns new ones: records
// are copied on the way in and on the way out.
type Dataset struct {
	name    string
	domain  PositionDomain
	columns []string
	records []Record
}

// WithDomain sets position domain used for validation. Default is DomainFractional
func WithDomain(domain PositionDomain) func(*Dataset) {
	return func(ds *Dataset) {
		ds.domain = domain
	}
}

// NewDataset validates and copies given records.
//
// name is object type identifier (e.g. "105") or layer name. columns defines attribute
// order; when nil it is derived from the records.
func NewDataset(name string, columns []string, records []Record, options ...func(*Dataset)) (*Dataset, error) {
	ds := &Dataset{
		name:   name,
		domain: DomainFractional,
	}
	for _, option := range options {
		option(ds)
	}
	ds.records = make([]Record, len(records))
	for i := range records {
		if err := records[i].Interval.Validate(ds.domain); err != nil {
			return nil, errors.Wrapf(err, "Can't add record #%d to dataset '%s'", i, name)
		}
		ds.records[i] = records[i].Copy()
	}
	if columns == nil {
		ds.columns = attributeColumns(records)
	} else {
		ds.columns = append([]string{}, columns...)
	}
	return ds, nil
}

// Name returns dataset name (object type or layer name)
func (ds *Dataset) Name() string {
	return ds.name
}

// Domain returns position domain of the dataset
func (ds *Dataset) Domain() PositionDomain {
	return ds.domain
}

// Len returns number of records
func (ds *Dataset) Len() int {
	return len(ds.records)
}

// Columns returns attribute column names in order
func (ds *Dataset) Columns() []string {
	return append([]string{}, ds.columns...)
}

// Record returns copy of i-th record
func (ds *Dataset) Record(i int) Record {
	return ds.records[i].Copy()
}

// Records returns copies of all records
func (ds *Dataset) Records() []Record {
	ans := make([]Record, len(ds.records))
	for i := range ds.records {
		ans[i] = ds.records[i].Copy()
	}
	return ans
}

// HasPoints tells whether any record is a point
func (ds *Dataset) HasPoints() bool {
	for i := range ds.records {
		if ds.records[i].Interval.IsPoint() {
			return true
		}
	}
	return false
}

// bySequence groups record indices by sequence. Every group is sorted by From
func (ds *Dataset) bySequence() map[SequenceID][]int {
	groups := make(map[SequenceID][]int)
	for i := range ds.records {
		sid := ds.records[i].Interval.SequenceID
		groups[sid] = append(groups[sid], i)
	}
	for _, idx := range groups {
		sort.SliceStable(idx, func(a, b int) bool {
			return ds.records[idx[a]].Interval.From < ds.records[idx[b]].Interval.From
		})
	}
	return groups
}

func attributeColumns(records []Record) []string {
	seen := make(map[string]struct{})
	columns := []string{}
	for i := range records {
		keys := make([]string, 0, len(records[i].Attributes))
		for k := range records[i].Attributes {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
				seen[k] = struct{}{}
			}
		}
		sort.Strings(keys)
		columns = append(columns, keys...)
	}
	return columns
}

// DatasetFromRows converts flattened rows (column name -> value) into a typed dataset.
//
// The linear location is looked up in this order:
// veglenkesekvensid + startposisjon/sluttposisjon (line), veglenkesekvensid + relativPosisjon (point),
// stedfesting text "0.25-0.75@1158097". SchemaError is returned when none is present.
// A geometry column (geometry or geometri; WKT text or geom.T) is required as well, though
// individual values may be empty.
//
// columns defines attribute order (e.g. CSV header); when nil the keys are sorted.
func DatasetFromRows(name string, columns []string, rows []map[string]interface{}, options ...func(*Dataset)) (*Dataset, error) {
	if name == "" {
		name = objectTypeName(rows)
	}
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		rec, err := recordFromRow(name, row)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't convert row #%d", i)
		}
		records = append(records, rec)
	}
	var attrColumns []string
	if columns != nil {
		attrColumns = make([]string, 0, len(columns))
		for _, col := range columns {
			if _, reserved := reservedColumns[col]; !reserved {
				attrColumns = append(attrColumns, col)
			}
		}
	}
	return NewDataset(name, attrColumns, records, options...)
}

func objectTypeName(rows []map[string]interface{}) string {
	for _, row := range rows {
		if v, ok := row[ColumnObjectType]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func recordFromRow(dataset string, row map[string]interface{}) (Record, error) {
	rec := Record{Attributes: make(Attributes)}
	interval, err := intervalFromRow(dataset, row)
	if err != nil {
		return rec, err
	}
	rec.Interval = interval

	rawGeom, ok := row[ColumnGeometry]
	if !ok {
		rawGeom, ok = row[ColumnGeometryWKT]
	}
	if !ok {
		return rec, &SchemaError{Dataset: dataset, Column: ColumnGeometry, Reason: "geometry column is missing"}
	}
	rec.Geometry, err = geometryValue(rawGeom)
	if err != nil {
		logger.Warn("Can't parse geometry, record keeps no geometry", zap.String("dataset", dataset), zap.Stringer("interval", interval), zap.Error(err))
		rec.Geometry = nil
	}

	if v, ok := row[ColumnChainage]; ok && v != nil {
		rec.Chainage = fmt.Sprintf("%v", v)
	} else if v, ok := row[ColumnChainageLong]; ok && v != nil {
		rec.Chainage = fmt.Sprintf("%v", v)
	}
	if v, ok := row[ColumnDirection]; ok && v != nil {
		rec.Reversed = strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", v)), DirectionAgainst)
	}

	for k, v := range row {
		if _, reserved := reservedColumns[k]; reserved {
			continue
		}
		rec.Attributes[k] = attributeValue(v)
	}
	return rec, nil
}

func intervalFromRow(dataset string, row map[string]interface{}) (LinearInterval, error) {
	rawSeq, hasSeq := row[ColumnSequenceID]
	rawFrom, hasFrom := row[ColumnFrom]
	rawTo, hasTo := row[ColumnTo]
	rawPos, hasPos := row[ColumnPosition]
	switch {
	case hasSeq && hasFrom && hasTo:
		seq, err := sequenceValue(rawSeq)
		if err != nil {
			return LinearInterval{}, &SchemaError{Dataset: dataset, Column: ColumnSequenceID, Reason: err.Error()}
		}
		from, err := floatValue(rawFrom)
		if err != nil {
			return LinearInterval{}, &SchemaError{Dataset: dataset, Column: ColumnFrom, Reason: err.Error()}
		}
		to, err := floatValue(rawTo)
		if err != nil {
			return LinearInterval{}, &SchemaError{Dataset: dataset, Column: ColumnTo, Reason: err.Error()}
		}
		return LinearInterval{SequenceID: seq, From: from, To: to}, nil
	case hasSeq && hasPos:
		seq, err := sequenceValue(rawSeq)
		if err != nil {
			return LinearInterval{}, &SchemaError{Dataset: dataset, Column: ColumnSequenceID, Reason: err.Error()}
		}
		pos, err := floatValue(rawPos)
		if err != nil {
			return LinearInterval{}, &SchemaError{Dataset: dataset, Column: ColumnPosition, Reason: err.Error()}
		}
		return LinearInterval{SequenceID: seq, From: pos, To: pos, point: true}, nil
	}
	if raw, ok := row[ColumnPositionString]; ok && raw != nil {
		li, err := ParsePositionString(fmt.Sprintf("%v", raw))
		if err != nil {
			return LinearInterval{}, &SchemaError{Dataset: dataset, Column: ColumnPositionString, Reason: err.Error()}
		}
		return li, nil
	}
	return LinearInterval{}, &SchemaError{
		Dataset: dataset,
		Reason:  fmt.Sprintf("no linear location: need %s with %s/%s or %s, or %s", ColumnSequenceID, ColumnFrom, ColumnTo, ColumnPosition, ColumnPositionString),
	}
}

// ParsePositionString parses the registry's short position form: "0.25-0.75@1158097" for
// intervals and "0.5@1158097" for points
func ParsePositionString(text string) (LinearInterval, error) {
	parts := strings.Split(strings.TrimSpace(text), "@")
	if len(parts) != 2 {
		return LinearInterval{}, fmt.Errorf("position string '%s' has no sequence marker '@'", text)
	}
	seq, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return LinearInterval{}, fmt.Errorf("position string '%s' has bad sequence id", text)
	}
	positions := strings.Split(parts[0], "-")
	from, err := strconv.ParseFloat(strings.TrimSpace(positions[0]), 64)
	if err != nil {
		return LinearInterval{}, fmt.Errorf("position string '%s' has bad start position", text)
	}
	switch len(positions) {
	case 1:
		return LinearInterval{SequenceID: SequenceID(seq), From: from, To: from, point: true}, nil
	case 2:
		to, err := strconv.ParseFloat(strings.TrimSpace(positions[1]), 64)
		if err != nil {
			return LinearInterval{}, fmt.Errorf("position string '%s' has bad end position", text)
		}
		return LinearInterval{SequenceID: SequenceID(seq), From: from, To: to}, nil
	}
	return LinearInterval{}, fmt.Errorf("position string '%s' has too many range separators", text)
}

func sequenceValue(v interface{}) (SequenceID, error) {
	switch t := v.(type) {
	case SequenceID:
		return t, nil
	case int:
		return SequenceID(t), nil
	case int64:
		return SequenceID(t), nil
	case float64:
		return SequenceID(t), nil
	case json.Number:
		n, err := t.Int64()
		return SequenceID(n), err
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return SequenceID(n), err
	}
	return 0, fmt.Errorf("unsupported sequence id value %v (%T)", v, v)
}

func floatValue(v interface{}) (float64, error) {
	if f, ok := numericValue(v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return 0, fmt.Errorf("unsupported numeric value %v (%T)", v, v)
}

// numericValue converts Go and JSON numbers to float64. Strings are not numbers here
func numericValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func geometryValue(v interface{}) (geom.T, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case geom.T:
		return copyGeometry(t), nil
	case string:
		return ParseGeometry(t)
	}
	return nil, fmt.Errorf("unsupported geometry value of type %T", v)
}

// attributeValue keeps scalars and serializes nested structures to JSON text
func attributeValue(v interface{}) interface{} {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
	return v
}
