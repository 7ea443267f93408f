package nvdbseg

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func csvTestDataset(t *testing.T) *Dataset {
	line := sequenceRecord(1158097, 0.2, 0.75, "EV6 S78D1 m200-750", Attributes{"Fartsgrense": 80, "navn": "Tunnel A"})
	line.Reversed = true
	sign := pointRecord(5, 0.5, Attributes{"navn": "Skilt; nr 1"})
	return mustDataset(t, "105", line, sign)
}

func TestWriteCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, csvTestDataset(t).WriteCSV(buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "veglenkesekvensid;startposisjon;sluttposisjon;relativPosisjon;vref;segmentretning;Fartsgrense;navn;geometri", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1158097;0.2;0.75;;EV6 S78D1 m200-750;MOT;80;Tunnel A;LINESTRING"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], `5;;;0.5;;MED;;"Skilt; nr 1";POINT`), lines[2])
}

func TestCSVRoundTrip(t *testing.T) {
	source := csvTestDataset(t)
	fname := filepath.Join(t.TempDir(), "fartsgrense.csv")
	require.NoError(t, source.ExportToCSV(fname))

	ds, err := ReadCSV(fname, "105")
	require.NoError(t, err)
	assert.Equal(t, "105", ds.Name())
	assert.Equal(t, []string{"Fartsgrense", "navn"}, ds.Columns())
	require.Equal(t, 2, ds.Len())

	line := ds.Record(0)
	assert.Equal(t, source.Record(0).Interval, line.Interval)
	assert.Equal(t, "EV6 S78D1 m200-750", line.Chainage)
	assert.True(t, line.Reversed)
	assert.Equal(t, int64(80), line.Attributes["Fartsgrense"])
	assert.Equal(t, "Tunnel A", line.Attributes["navn"])
	require.NotNil(t, line.Line())
	assert.Equal(t, geom.XYZ, line.Line().Layout())
	assert.Equal(t, source.Record(0).Line().FlatCoords(), line.Line().FlatCoords())

	sign := ds.Record(1)
	assert.True(t, sign.Interval.IsPoint())
	assert.Equal(t, 0.5, sign.Interval.Position())
	assert.False(t, sign.Reversed)
	assert.Equal(t, "Skilt; nr 1", sign.Attributes["navn"])
	assert.NotContains(t, sign.Attributes, "Fartsgrense")
	assert.IsType(t, &geom.Point{}, sign.Geometry)
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"), "105")
	assert.Error(t, err)
}
