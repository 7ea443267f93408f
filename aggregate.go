package nvdbseg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Aggregation tells how values of one column are combined when several records cover the same micro-segment
type Aggregation uint8

const (
	// AggregateFirst takes the value of the first covering record (by start position)
	AggregateFirst Aggregation = iota
	AggregateMean
	AggregateMedian
	AggregateMin
	AggregateMax
	// AggregateUnique joins distinct values with comma
	AggregateUnique
	// AggregateAuto: single value as is, strings joined as unique, numbers averaged
	AggregateAuto
)

func (agg Aggregation) String() string {
	switch agg {
	case AggregateFirst:
		return "first"
	case AggregateMean:
		return "mean"
	case AggregateMedian:
		return "median"
	case AggregateMin:
		return "min"
	case AggregateMax:
		return "max"
	case AggregateUnique:
		return "unique"
	case AggregateAuto:
		return "auto"
	default:
		return "undefined"
	}
}

// ParseAggregation parses aggregation name (case-insensitive)
func ParseAggregation(name string) (Aggregation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first":
		return AggregateFirst, nil
	case "mean", "avg":
		return AggregateMean, nil
	case "median":
		return AggregateMedian, nil
	case "min":
		return AggregateMin, nil
	case "max":
		return AggregateMax, nil
	case "unique":
		return AggregateUnique, nil
	case "auto":
		return AggregateAuto, nil
	}
	return AggregateFirst, errors.Errorf("unknown aggregation '%s'", name)
}

// UnmarshalText makes Aggregation usable as YAML or JSON value
func (agg *Aggregation) UnmarshalText(text []byte) error {
	parsed, err := ParseAggregation(string(text))
	if err != nil {
		return err
	}
	*agg = parsed
	return nil
}

// MarshalText is the inverse of UnmarshalText
func (agg Aggregation) MarshalText() ([]byte, error) {
	return []byte(agg.String()), nil
}

// Apply combines values. Nil values are skipped; empty input gives nil.
// Numeric rules ignore non-numeric values and give nil if none is numeric.
// Min and max fall back to string comparison when there are no numbers
func (agg Aggregation) Apply(values []interface{}) interface{} {
	present := make([]interface{}, 0, len(values))
	for _, v := range values {
		if v != nil {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil
	}
	switch agg {
	case AggregateFirst:
		return present[0]
	case AggregateMean:
		return mean(numbers(present))
	case AggregateMedian:
		return median(numbers(present))
	case AggregateMin:
		return extreme(present, func(a, b float64) bool { return a < b }, func(a, b string) bool { return a < b })
	case AggregateMax:
		return extreme(present, func(a, b float64) bool { return a > b }, func(a, b string) bool { return a > b })
	case AggregateUnique:
		return uniqueJoin(present)
	case AggregateAuto:
		if len(present) == 1 {
			return present[0]
		}
		if _, ok := present[0].(string); ok {
			return uniqueJoin(present)
		}
		if _, ok := numericValue(present[0]); ok {
			return mean(numbers(present))
		}
		return nil
	}
	return nil
}

func numbers(values []interface{}) []float64 {
	ans := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := numericValue(v); ok {
			ans = append(ans, f)
		}
	}
	return ans
}

func mean(values []float64) interface{} {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) interface{} {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func extreme(values []interface{}, betterNum func(a, b float64) bool, betterStr func(a, b string) bool) interface{} {
	if nums := numbers(values); len(nums) > 0 {
		best := nums[0]
		for _, v := range nums[1:] {
			if betterNum(v, best) {
				best = v
			}
		}
		return best
	}
	best := fmt.Sprintf("%v", values[0])
	for _, v := range values[1:] {
		if s := fmt.Sprintf("%v", v); betterStr(s, best) {
			best = s
		}
	}
	return best
}

// uniqueJoin keeps the order of first appearance
func uniqueJoin(values []interface{}) string {
	seen := make(map[string]struct{}, len(values))
	parts := make([]string, 0, len(values))
	for _, v := range values {
		s := fmt.Sprintf("%v", v)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		parts = append(parts, s)
	}
	return strings.Join(parts, ",")
}
