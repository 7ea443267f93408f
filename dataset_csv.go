package nvdbseg

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
)

var csvLeadingColumns = []string{ColumnSequenceID, ColumnFrom, ColumnTo, ColumnPosition, ColumnChainage, ColumnDirection}

// ExportToCSV writes dataset to semicolon separated file with WKT geometry in the last column
func (ds *Dataset) ExportToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()
	return ds.WriteCSV(file)
}

// WriteCSV writes dataset as semicolon separated values.
// Columns: veglenkesekvensid;startposisjon;sluttposisjon;relativPosisjon;vref;segmentretning;<attributes...>;geometri
func (ds *Dataset) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	header := append(append([]string{}, csvLeadingColumns...), ds.columns...)
	header = append(header, ColumnGeometryWKT)
	err := writer.Write(header)
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	for i := range ds.records {
		rec := &ds.records[i]
		row := make([]string, 0, len(header))
		row = append(row, fmt.Sprintf("%d", rec.Interval.SequenceID))
		if rec.Interval.IsPoint() {
			row = append(row, "", "", formatCSVFloat(rec.Interval.From))
		} else {
			row = append(row, formatCSVFloat(rec.Interval.From), formatCSVFloat(rec.Interval.To), "")
		}
		direction := DirectionAlong
		if rec.Reversed {
			direction = DirectionAgainst
		}
		row = append(row, rec.Chainage, direction)
		for _, col := range ds.columns {
			row = append(row, formatCSVValue(rec.Attributes[col]))
		}
		row = append(row, PrepareWKT(rec.Geometry))
		err = writer.Write(row)
		if err != nil {
			return errors.Wrap(err, "Can't write record")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "Can't flush records")
}

// ReadCSV reads semicolon separated file, see ReadCSVFrom
func ReadCSV(fname, name string, options ...func(*Dataset)) (*Dataset, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open file")
	}
	defer file.Close()
	return ReadCSVFrom(file, name, options...)
}

// ReadCSVFrom reads semicolon separated values with a header row into a dataset.
// Empty cells are treated as absent values; numeric-looking cells become numbers.
// Column names follow DatasetFromRows
func ReadCSVFrom(r io.Reader, name string, options ...func(*Dataset)) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "Can't read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	rows := []map[string]interface{}{}
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Can't read row #%d", len(rows))
		}
		row := make(map[string]interface{}, len(header))
		for i, col := range header {
			value := ""
			if i < len(cells) {
				value = cells[i]
			}
			switch {
			case col == ColumnGeometry || col == ColumnGeometryWKT:
				row[col] = value
			case value == "":
			case col == ColumnChainage || col == ColumnChainageLong || col == ColumnDirection || col == ColumnPositionString:
				row[col] = value
			default:
				row[col] = csvValue(value)
			}
		}
		rows = append(rows, row)
	}
	return DatasetFromRows(name, header, rows, options...)
}

func csvValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func formatCSVFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatCSVValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return formatCSVFloat(t)
	case geom.T:
		return PrepareWKT(t)
	}
	return fmt.Sprintf("%v", v)
}
