package nvdbseg

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ChainageReference is a parsed route-system reference (vegsystemreferanse) such as
// "EV6 K S78D1 m0-674": the root label followed by from/to meter values.
//
// Root is kept verbatim, trailing space included. Zero value is the "unparseable" sentinel.
type ChainageReference struct {
	Root      string
	FromMeter int
	ToMeter   int
	valid     bool
}

// NewChainageReference builds valid reference. Meter values are swapped if given in reversed order
func NewChainageReference(root string, fromMeter, toMeter int) ChainageReference {
	if fromMeter > toMeter {
		fromMeter, toMeter = toMeter, fromMeter
	}
	return ChainageReference{Root: root, FromMeter: fromMeter, ToMeter: toMeter, valid: true}
}

// IsValid returns false for the unparseable sentinel
func (c ChainageReference) IsValid() bool {
	return c.valid
}

// IsPoint returns true for references on the form ROOTmN
func (c ChainageReference) IsPoint() bool {
	return c.valid && c.FromMeter == c.ToMeter
}

// Length returns ToMeter - FromMeter
func (c ChainageReference) Length() int {
	if !c.valid {
		return 0
	}
	return c.ToMeter - c.FromMeter
}

// String formats reference back to text. The meter marker is always lower-case "m".
// Unparseable sentinel gives empty string
func (c ChainageReference) String() string {
	if !c.valid {
		return ""
	}
	if c.FromMeter == c.ToMeter {
		return fmt.Sprintf("%sm%d", c.Root, c.FromMeter)
	}
	return fmt.Sprintf("%sm%d-%d", c.Root, c.FromMeter, c.ToMeter)
}

// normalizedRoot is used for root label comparison only
func (c ChainageReference) normalizedRoot() string {
	return strings.ToLower(strings.Join(strings.Fields(c.Root), " "))
}

// SameRoot compares root labels case- and whitespace-insensitive
func (c ChainageReference) SameRoot(other ChainageReference) bool {
	return c.normalizedRoot() == other.normalizedRoot()
}

// ParseChainage parses "ROOTmN" or "ROOTmN-M" (marker is case-insensitive).
//
// It never fails: malformed text is logged and the unparseable sentinel is returned,
// so one bad string does not abort a whole batch.
func ParseChainage(text string) ChainageReference {
	c, err := parseChainage(text)
	if err != nil {
		logger.Warn("Can't parse chainage reference", zap.String("chainage", text), zap.Error(err))
		return ChainageReference{}
	}
	return c
}

func parseChainage(text string) (ChainageReference, error) {
	idx := strings.LastIndexAny(text, "mM")
	if idx < 0 {
		return ChainageReference{}, fmt.Errorf("no meter marker")
	}
	root := text[:idx]
	meters := strings.TrimSpace(text[idx+1:])
	if meters == "" {
		return ChainageReference{}, fmt.Errorf("no meter values after marker")
	}
	parts := strings.Split(meters, "-")
	if len(parts) > 2 {
		return ChainageReference{}, fmt.Errorf("too many range separators")
	}
	from, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return ChainageReference{}, fmt.Errorf("bad from-meter '%s'", parts[0])
	}
	to := from
	if len(parts) == 2 {
		to, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return ChainageReference{}, fmt.Errorf("bad to-meter '%s'", parts[1])
		}
	}
	if from < 0 || to < from {
		return ChainageReference{}, fmt.Errorf("meter values %d-%d out of order", from, to)
	}
	return ChainageReference{Root: root, FromMeter: from, ToMeter: to, valid: true}, nil
}

// ChainageOverlap returns the common sub-range of two references.
//
// Second value is false (with a diagnostic logged) when root labels differ or the meter
// ranges do not touch. Root label of c1 is kept.
func ChainageOverlap(c1, c2 ChainageReference) (ChainageReference, bool) {
	if !c1.valid || !c2.valid {
		logger.Debug("Chainage overlap on unparseable reference", zap.String("c1", c1.String()), zap.String("c2", c2.String()))
		return ChainageReference{}, false
	}
	if !c1.SameRoot(c2) || c1.FromMeter > c2.ToMeter || c2.FromMeter > c1.ToMeter {
		logger.Debug("No overlap between chainage references", zap.String("c1", c1.String()), zap.String("c2", c2.String()))
		return ChainageReference{}, false
	}
	return ChainageReference{
		Root:      c1.Root,
		FromMeter: maxInt(c1.FromMeter, c2.FromMeter),
		ToMeter:   minInt(c1.ToMeter, c2.ToMeter),
		valid:     true,
	}, true
}

// JoinChainages merges touching or overlapping references sharing a root label into
// the minimal covering list. Unparseable entries are dropped.
//
// E.g. ["KV1244 S2D1 m787-826", "KV1244 S2D1 m826-926"] => ["KV1244 S2D1 m787-926"]
func JoinChainages(refs []ChainageReference) []ChainageReference {
	sorted := make([]ChainageReference, 0, len(refs))
	for _, ref := range refs {
		if ref.valid {
			sorted = append(sorted, ref)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].normalizedRoot(), sorted[j].normalizedRoot()
		if ri != rj {
			return ri < rj
		}
		if sorted[i].FromMeter != sorted[j].FromMeter {
			return sorted[i].FromMeter < sorted[j].FromMeter
		}
		return sorted[i].ToMeter < sorted[j].ToMeter
	})
	joined := []ChainageReference{}
	for _, ref := range sorted {
		last := len(joined) - 1
		if last >= 0 && joined[last].SameRoot(ref) && ref.FromMeter <= joined[last].ToMeter {
			joined[last].ToMeter = maxInt(joined[last].ToMeter, ref.ToMeter)
			continue
		}
		joined = append(joined, ref)
	}
	return joined
}

// JoinChainageStrings is JoinChainages for text input and output
func JoinChainageStrings(refs []string) []string {
	parsed := make([]ChainageReference, len(refs))
	for i := range refs {
		parsed[i] = ParseChainage(refs[i])
	}
	joined := JoinChainages(parsed)
	ans := make([]string, len(joined))
	for i := range joined {
		ans[i] = joined[i].String()
	}
	return ans
}

// ChainageLength sums meter lengths of comma-separated list of range references,
// e.g. "FV4302 S1D1 m40-44,FV4302 S1D1 m300 KS1 m40-41" gives 5.
// Items without a range or with unparseable meters are ignored without notice
func ChainageLength(text string) int {
	total := 0
	for _, item := range strings.Split(text, ",") {
		if !strings.Contains(item, "-") {
			continue
		}
		c, err := parseChainage(strings.TrimSpace(item))
		if err != nil {
			continue
		}
		total += c.Length()
	}
	return total
}

// meterAt interpolates the meter value at relative fraction [0, 1] of the reference range
func (c ChainageReference) meterAt(fraction float64) int {
	return c.FromMeter + int(math.Round(fraction*float64(c.ToMeter-c.FromMeter)))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
