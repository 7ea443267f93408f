package nvdbseg

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

func TestDatasetFromRows(t *testing.T) {
	columns := []string{"objekttype", "nvdbId", "veglenkesekvensid", "startposisjon", "sluttposisjon", "vref", "segmentretning", "Fartsgrense", "geometri"}
	rows := []map[string]interface{}{
		{
			"objekttype":        105,
			"nvdbId":            int64(85953497),
			"veglenkesekvensid": 1158097,
			"startposisjon":     0.2,
			"sluttposisjon":     "0.75",
			"vref":              "EV6 S78D1 m200-750",
			"segmentretning":    "MED",
			"Fartsgrense":       80,
			"geometri":          "LINESTRING Z (263200 7050000 100, 263750 7050000 101)",
		},
		{
			"objekttype":        105,
			"nvdbId":            int64(85953498),
			"veglenkesekvensid": "1158098",
			"startposisjon":     0.0,
			"sluttposisjon":     1.0,
			"segmentretning":    "MOT",
			"Fartsgrense":       60,
			"geometri":          "LINESTRING (0 0, 10 0)",
		},
	}
	ds, err := DatasetFromRows("", columns, rows)
	require.NoError(t, err)
	assert.Equal(t, "105", ds.Name())
	assert.Equal(t, []string{"objekttype", "nvdbId", "Fartsgrense"}, ds.Columns())
	require.Equal(t, 2, ds.Len())

	first := ds.Record(0)
	assert.Equal(t, LinearInterval{SequenceID: 1158097, From: 0.2, To: 0.75}, first.Interval)
	assert.Equal(t, "EV6 S78D1 m200-750", first.Chainage)
	assert.False(t, first.Reversed)
	assert.Equal(t, 80, first.Attributes["Fartsgrense"])
	require.NotNil(t, first.Line())
	assert.Equal(t, geom.XYZ, first.Line().Layout())
	assert.InDelta(t, 550, first.Length(), 1e-9)
	assert.NotContains(t, first.Attributes, "geometri")
	assert.NotContains(t, first.Attributes, "vref")

	second := ds.Record(1)
	assert.Equal(t, SequenceID(1158098), second.Interval.SequenceID)
	assert.True(t, second.Reversed)
	assert.Equal(t, "", second.Chainage)
}

func TestDatasetFromRowsPositions(t *testing.T) {
	rows := []map[string]interface{}{
		{"stedfesting": "0.25-0.75@1158097", "geometry": nil, "vegsystemreferanse": "EV6 S78D1 m0-10"},
		{"veglenkesekvensid": 7, "relativPosisjon": 0.5, "geometry": "POINT (1 2)"},
	}
	ds, err := DatasetFromRows("mixed", nil, rows)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 0.25, ds.Record(0).Interval.From)
	assert.Equal(t, 0.75, ds.Record(0).Interval.To)
	assert.Equal(t, "EV6 S78D1 m0-10", ds.Record(0).Chainage)
	assert.Nil(t, ds.Record(0).Geometry)
	assert.True(t, ds.Record(1).Interval.IsPoint())
	assert.True(t, ds.HasPoints())
	assert.IsType(t, &geom.Point{}, ds.Record(1).Geometry)
}

func TestDatasetFromRowsSchemaErrors(t *testing.T) {
	var schemaErr *SchemaError

	_, err := DatasetFromRows("105", nil, []map[string]interface{}{
		{"veglenkesekvensid": 1, "startposisjon": 0.1, "geometri": ""},
	})
	require.True(t, errors.As(err, &schemaErr))

	_, err = DatasetFromRows("105", nil, []map[string]interface{}{
		{"veglenkesekvensid": 1, "startposisjon": 0.1, "sluttposisjon": 0.2},
	})
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, ColumnGeometry, schemaErr.Column)

	_, err = DatasetFromRows("105", nil, []map[string]interface{}{
		{"veglenkesekvensid": "abc", "startposisjon": 0.1, "sluttposisjon": 0.2, "geometri": ""},
	})
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, ColumnSequenceID, schemaErr.Column)

	_, err = DatasetFromRows("105", nil, []map[string]interface{}{
		{"stedfesting": "0.5-0.1@3", "geometri": ""},
	})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestDatasetFromRowsBadGeometry(t *testing.T) {
	logs := observeLogs(t, zap.WarnLevel)
	ds, err := DatasetFromRows("105", nil, []map[string]interface{}{
		{"veglenkesekvensid": 1, "startposisjon": 0.1, "sluttposisjon": 0.2, "geometri": "LINESTRING (oops)"},
		{"veglenkesekvensid": 1, "startposisjon": 0.2, "sluttposisjon": 0.3, "geometri": "POLYGON ((0 0, 1 0, 1 1, 0 0))"},
	})
	require.NoError(t, err)
	assert.Nil(t, ds.Record(0).Geometry)
	assert.Nil(t, ds.Record(1).Geometry)
	assert.Equal(t, 2, logs.FilterMessage("Can't parse geometry, record keeps no geometry").Len())
}

func TestDatasetFromRowsNested(t *testing.T) {
	ds, err := DatasetFromRows("5", nil, []map[string]interface{}{
		{
			"stedfesting": "0-1@1",
			"geometri":    "",
			"relasjoner":  map[string]interface{}{"foreldre": []interface{}{1, 2}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"foreldre":[1,2]}`, ds.Record(0).Attributes["relasjoner"])
}

func TestDatasetImmutable(t *testing.T) {
	rec := sequenceRecord(1, 0, 1, "", Attributes{"x": 1})
	ds := mustDataset(t, "a", rec)
	rec.Attributes["x"] = 2
	rec.Geometry.(*geom.LineString).FlatCoords()[0] = 0
	assert.Equal(t, 1, ds.Record(0).Attributes["x"])
	assert.Equal(t, 263000.0, ds.Record(0).Line().Coord(0).X())

	got := ds.Record(0)
	got.Attributes["x"] = 3
	assert.Equal(t, 1, ds.Record(0).Attributes["x"])
}

func TestDatasetRealDomain(t *testing.T) {
	records := []Record{{Interval: LinearInterval{SequenceID: 1, From: 100, To: 250}, Attributes: Attributes{}}}
	_, err := NewDataset("meters", nil, records)
	assert.Error(t, err)
	ds, err := NewDataset("meters", nil, records, WithDomain(DomainReal))
	require.NoError(t, err)
	assert.Equal(t, DomainReal, ds.Domain())
}
