package nvdbseg

import (
	"github.com/twpayne/go-geom"
)

// Attributes holds named values of a record: numbers, strings, or JSON text for nested structures
type Attributes map[string]interface{}

// Copy returns a shallow copy of attributes map
func (attrs Attributes) Copy() Attributes {
	ans := make(Attributes, len(attrs))
	for k, v := range attrs {
		ans[k] = v
	}
	return ans
}

// Record is one row of a dataset: location along the network plus geometry and attributes
type Record struct {
	Interval LinearInterval
	// Geometry is *geom.LineString for line records, *geom.Point for point records. Could be nil
	Geometry geom.T
	// Chainage is route-system reference text (vegsystemreferanse), empty if unknown
	Chainage string
	// Reversed is true when record's direction is against the sequence direction (segmentretning = MOT)
	Reversed   bool
	Attributes Attributes
}

// Copy returns deep copy of the record
func (rec Record) Copy() Record {
	return Record{
		Interval:   rec.Interval,
		Geometry:   copyGeometry(rec.Geometry),
		Chainage:   rec.Chainage,
		Reversed:   rec.Reversed,
		Attributes: rec.Attributes.Copy(),
	}
}

// Line returns record geometry as line. Nil if geometry is not a line
func (rec Record) Line() *geom.LineString {
	line, _ := rec.Geometry.(*geom.LineString)
	return line
}

// Length returns planar length of record geometry
func (rec Record) Length() float64 {
	return geometryLength(rec.Geometry)
}

// directedGeometry returns the geometry oriented along the sequence direction
func (rec Record) directedGeometry() geom.T {
	return orientGeometry(rec.Geometry, rec.Reversed)
}

// orientGeometry flips line when reversed is set. Anything else is returned as is
func orientGeometry(g geom.T, reversed bool) geom.T {
	line, ok := g.(*geom.LineString)
	if !ok || line == nil || !reversed {
		return g
	}
	return reverseLine(line)
}
