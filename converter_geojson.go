package nvdbseg

import (
	"os"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
)

// PrepareGeoJSONGeometry returns GeoJSON geometry for line or point. Z is kept when present
func PrepareGeoJSONGeometry(g geom.T) *geojson.Geometry {
	switch v := g.(type) {
	case *geom.LineString:
		if v == nil || v.NumCoords() == 0 {
			return nil
		}
		pts := make([][]float64, v.NumCoords())
		for i := range pts {
			pts[i] = append([]float64{}, v.Coord(i)...)
		}
		return geojson.NewLineStringGeometry(pts)
	case *geom.Point:
		if v == nil || v.Empty() {
			return nil
		}
		return geojson.NewPointGeometry(append([]float64{}, v.Coords()...))
	}
	return nil
}

// ToGeoJSON converts dataset into FeatureCollection. Positions, chainage and direction
// become properties along with every attribute
func (ds *Dataset) ToGeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	var bound orb.Bound
	hasBound := false
	for i := range ds.records {
		rec := &ds.records[i]
		feature := geojson.NewFeature(PrepareGeoJSONGeometry(rec.Geometry))
		feature.SetProperty(ColumnSequenceID, int64(rec.Interval.SequenceID))
		if rec.Interval.IsPoint() {
			feature.SetProperty(ColumnPosition, rec.Interval.From)
		} else {
			feature.SetProperty(ColumnFrom, rec.Interval.From)
			feature.SetProperty(ColumnTo, rec.Interval.To)
		}
		if rec.Chainage != "" {
			feature.SetProperty(ColumnChainage, rec.Chainage)
		}
		if rec.Reversed {
			feature.SetProperty(ColumnDirection, DirectionAgainst)
		}
		for _, col := range ds.columns {
			if v, ok := rec.Attributes[col]; ok {
				feature.SetProperty(col, v)
			}
		}
		fc.AddFeature(feature)
		if b, ok := geometryBound(rec.Geometry); ok {
			if hasBound {
				bound = bound.Union(b)
			} else {
				bound, hasBound = b, true
			}
		}
	}
	if hasBound {
		fc.BoundingBox = []float64{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()}
	}
	return fc
}

// ExportToGeoJSON writes dataset as GeoJSON FeatureCollection
func (ds *Dataset) ExportToGeoJSON(fname string) error {
	b, err := ds.ToGeoJSON().MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "Can't convert dataset to GeoJSON")
	}
	err = os.WriteFile(fname, b, 0644)
	if err != nil {
		return errors.Wrap(err, "Can't write file")
	}
	return nil
}
