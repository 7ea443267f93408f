package nvdbseg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observeLogs replaces package logger with in-memory one for the duration of the test
func observeLogs(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	core, logs := observer.New(level)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestParseChainage(t *testing.T) {
	c := ParseChainage("EV6 K S78D1 m0-674")
	require.True(t, c.IsValid())
	assert.Equal(t, "EV6 K S78D1 ", c.Root)
	assert.Equal(t, 0, c.FromMeter)
	assert.Equal(t, 674, c.ToMeter)
	assert.Equal(t, 674, c.Length())
	assert.False(t, c.IsPoint())

	pt := ParseChainage("EV6 K S78D1 m40")
	require.True(t, pt.IsValid())
	assert.True(t, pt.IsPoint())
	assert.Equal(t, 40, pt.FromMeter)
	assert.Equal(t, 40, pt.ToMeter)
	assert.Equal(t, "EV6 K S78D1 m40", pt.String())

	upper := ParseChainage("EV6 K S78D1 M10-20")
	require.True(t, upper.IsValid())
	assert.Equal(t, "EV6 K S78D1 ", upper.Root)
	assert.Equal(t, "EV6 K S78D1 m10-20", upper.String())

	// Root of a junction reference carries its own meter value
	junction := ParseChainage("FV4302 S1D1 m300 KS1 m40-41")
	require.True(t, junction.IsValid())
	assert.Equal(t, "FV4302 S1D1 m300 KS1 ", junction.Root)
	assert.Equal(t, 40, junction.FromMeter)
	assert.Equal(t, 41, junction.ToMeter)
}

func TestParseChainageMalformed(t *testing.T) {
	logs := observeLogs(t, zap.WarnLevel)
	bad := []string{"", "EV6 K S78D1", "EV6 K S78D1 m", "EV6 m10-x", "EV6 m1-2-3", "EV6 m20-10"}
	for _, text := range bad {
		c := ParseChainage(text)
		assert.False(t, c.IsValid(), text)
		assert.Equal(t, "", c.String())
		assert.Equal(t, 0, c.Length())
	}
	assert.Equal(t, len(bad), logs.FilterMessage("Can't parse chainage reference").Len())
}

func TestChainageRoundTrip(t *testing.T) {
	texts := []string{
		"EV6 K S78D1 m0-674",
		"EV6 K S78D1 M0-674",
		"RV3 S1D1 m5-5",
		"KV1244 S2D1 m787",
		"FV4302 S1D1 m300 KS1 m40-41",
	}
	for _, text := range texts {
		first := ParseChainage(text)
		require.True(t, first.IsValid(), text)
		second := ParseChainage(first.String())
		require.True(t, second.IsValid(), first.String())
		assert.Equal(t, first.Root, second.Root)
		assert.Equal(t, first.FromMeter, second.FromMeter)
		assert.Equal(t, first.ToMeter, second.ToMeter)
	}
}

func TestNewChainageReference(t *testing.T) {
	c := NewChainageReference("EV6 K S78D1 ", 300, 99)
	assert.Equal(t, 99, c.FromMeter)
	assert.Equal(t, 300, c.ToMeter)
	assert.Equal(t, "EV6 K S78D1 m99-300", c.String())
}

func TestChainageOverlap(t *testing.T) {
	overlap, ok := ResolveChainageOverlap("EV6 K S78D1 m0-300", "EV6 K S78D1 m99-674")
	require.True(t, ok)
	assert.Equal(t, "EV6 K S78D1 m99-300", overlap)

	overlap, ok = ResolveChainageOverlap("EV6 K S78D1 m99-674", "EV6 K S78D1 m0-300")
	require.True(t, ok)
	assert.Equal(t, "EV6 K S78D1 m99-300", overlap)

	// Touching ranges give a point
	overlap, ok = ResolveChainageOverlap("EV6 K S78D1 m0-100", "EV6 K S78D1 m100-200")
	require.True(t, ok)
	assert.Equal(t, "EV6 K S78D1 m100", overlap)

	// Root labels compared case- and whitespace-insensitive, root of the first one is kept
	overlap, ok = ResolveChainageOverlap("ev6 k  s78d1 m0-300", "EV6 K S78D1 m99-674")
	require.True(t, ok)
	assert.Equal(t, "ev6 k  s78d1 m99-300", overlap)

	_, ok = ResolveChainageOverlap("EV6 K S78D1 m0-300", "EV6 K S78D2 m99-674")
	assert.False(t, ok, "different roots")
	_, ok = ResolveChainageOverlap("EV6 K S78D1 m0-90", "EV6 K S78D1 m99-674")
	assert.False(t, ok, "disjoint ranges")
	_, ok = ResolveChainageOverlap("garbage", "EV6 K S78D1 m99-674")
	assert.False(t, ok, "unparseable")
}

func TestJoinChainages(t *testing.T) {
	joined := JoinChainageStrings([]string{"KV1244 S2D1 m787-826", "KV1244 S2D1 m826-926"})
	assert.Equal(t, []string{"KV1244 S2D1 m787-926"}, joined)

	joined = JoinChainageStrings([]string{"B m0-5", "A m20-30", "not a reference", "A m0-10", "A m5-12"})
	assert.Equal(t, []string{"A m0-12", "A m20-30", "B m0-5"}, joined)

	assert.Empty(t, JoinChainages(nil))
}

func TestChainageLength(t *testing.T) {
	assert.Equal(t, 5, ChainageLength("FV4302 S1D1 m40-44,FV4302 S1D1 m300 KS1 m40-41"))
	assert.Equal(t, 10, ChainageLength("EV6 m10,EV6 m20-30"))
	assert.Equal(t, 674, ChainageLength("EV6 K S78D1 m0-674, broken m1-x"))
	assert.Equal(t, 0, ChainageLength(""))
}

func TestDeriveChainage(t *testing.T) {
	original := LinearInterval{SequenceID: 1, From: 0, To: 1}
	assert.Equal(t, "EV6 S1D1 m250-750", deriveChainage("EV6 S1D1 m0-1000", original, LinearInterval{SequenceID: 1, From: 0.25, To: 0.75}))
	assert.Equal(t, "EV6 S1D1 m1000", deriveChainage("EV6 S1D1 m0-1000", original, LinearInterval{SequenceID: 1, From: 1, To: 1}))
	assert.Equal(t, "", deriveChainage("", original, original))
	assert.Equal(t, "", deriveChainage("junk", original, original))
}
