package nvdbseg

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ParseGeometry parses WKT text (2D or 3D) into LineString or Point. Empty text gives nil geometry
func ParseGeometry(text string) (geom.T, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, errors.Wrap(err, "Can't parse WKT")
	}
	switch g.(type) {
	case *geom.LineString, *geom.Point:
		return g, nil
	}
	return nil, errors.Errorf("Unsupported geometry type %T", g)
}

// PrepareWKT returns WKT representation of geometry. Nil geometry gives empty string
func PrepareWKT(g geom.T) string {
	if g == nil {
		return ""
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		logger.Warn("Can't convert geometry to WKT")
		return ""
	}
	return s
}
