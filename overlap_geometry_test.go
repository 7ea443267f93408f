package nvdbseg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

func TestResolveGeometryOverlapContainment(t *testing.T) {
	outerLine := straightLine(263000, 264000, 5)
	outer := LinearInterval{SequenceID: 1000, From: 0, To: 1}
	innerLine := straightLine(263200, 263400, 5)
	inner := LinearInterval{SequenceID: 1000, From: 0.2, To: 0.4}

	for _, swap := range []bool{false, true} {
		var g geom.T
		var interval LinearInterval
		var ok bool
		var err error
		if swap {
			g, interval, ok, err = ResolveGeometryOverlap(innerLine, inner, outerLine, outer)
		} else {
			g, interval, ok, err = ResolveGeometryOverlap(outerLine, outer, innerLine, inner)
		}
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, inner.From, interval.From)
		assert.Equal(t, inner.To, interval.To)
		assert.Equal(t, innerLine.FlatCoords(), g.(*geom.LineString).FlatCoords())
	}
}

func TestResolveGeometryOverlapPartial(t *testing.T) {
	// Sequence of 1000 m: 0.4-0.5 is 100 m
	g, interval, ok, err := ResolveGeometryOverlap(
		straightLine(263000, 263500, 5), LinearInterval{SequenceID: 1000, From: 0, To: 0.5},
		straightLine(263400, 264000, 5), LinearInterval{SequenceID: 1000, From: 0.4, To: 1},
	)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.4, interval.From)
	assert.Equal(t, 0.5, interval.To)
	assert.InDelta(t, 100, geometryLength(g), 1e-6)
	first, last, _ := endpoints(g)
	assert.InDelta(t, 263400, first.X(), 1e-6)
	assert.InDelta(t, 263500, last.X(), 1e-6)

	// Sequence of 500 m: 0.4-0.5 is 50 m
	g, interval, ok, err = ResolveGeometryOverlap(
		straightLine(263000, 263250, 5), LinearInterval{SequenceID: 1000, From: 0, To: 0.5},
		straightLine(263200, 263500, 5), LinearInterval{SequenceID: 1000, From: 0.4, To: 1},
	)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.4, interval.From)
	assert.Equal(t, 0.5, interval.To)
	assert.InDelta(t, 50, geometryLength(g), 1e-6)
}

func TestResolveGeometryOverlapShortSticksOutAfter(t *testing.T) {
	g, interval, ok, err := ResolveGeometryOverlap(
		straightLine(263500, 264000, 5), LinearInterval{SequenceID: 7, From: 0.5, To: 1},
		straightLine(263000, 263600, 5), LinearInterval{SequenceID: 7, From: 0, To: 0.6},
	)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.5, interval.From)
	assert.Equal(t, 0.6, interval.To)
	assert.InDelta(t, 100, geometryLength(g), 1e-6)
	first, _, _ := endpoints(g)
	assert.InDelta(t, 263500, first.X(), 1e-6)
}

func TestResolveGeometryOverlapDegenerate(t *testing.T) {
	line := straightLine(263400, 264000, 5)
	interval := LinearInterval{SequenceID: 1000, From: 0.4, To: 1}

	g, got, ok, err := ResolveGeometryOverlap(nil, LinearInterval{SequenceID: 1000, From: 0, To: 0.5}, line, interval)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, interval, got)
	assert.Equal(t, line.FlatCoords(), g.(*geom.LineString).FlatCoords())

	zeroLength := lineXY(263000, 7050000, 263000, 7050000)
	g, got, ok, err = ResolveGeometryOverlap(line, interval, zeroLength, LinearInterval{SequenceID: 1000, From: 0, To: 0.5})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, interval, got)
	assert.Equal(t, line.FlatCoords(), g.(*geom.LineString).FlatCoords())
}

func TestResolveGeometryOverlapDisjoint(t *testing.T) {
	logs := observeLogs(t, zap.WarnLevel)
	g, interval, ok, err := ResolveGeometryOverlap(
		straightLine(263000, 263300, 5), LinearInterval{SequenceID: 1, From: 0, To: 0.3},
		straightLine(263500, 264000, 5), LinearInterval{SequenceID: 1, From: 0.5, To: 1},
	)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, g)
	assert.Equal(t, LinearInterval{}, interval)
	assert.Equal(t, 1, logs.FilterMessage("No overlap between linear positions").Len())
}
