// Package interval provides half-open integer interval arithmetic used by
// the scheduling engine: merging, overlap tests, free-gap extraction and
// grid quantization.
package interval

import "sort"

// Interval is the half-open range [Start, End).
type Interval struct {
	Start int
	End   int
}

// Empty reports whether the interval contains no point.
func (i Interval) Empty() bool { return i.End <= i.Start }

// Len returns the length of the interval, zero when empty.
func (i Interval) Len() int {
	if i.Empty() {
		return 0
	}
	return i.End - i.Start
}

// Overlaps reports whether i and o share at least one point.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether x lies inside i.
func (i Interval) Contains(x int) bool { return i.Start <= x && x < i.End }

// Merge returns the sorted union of the given intervals. Overlapping and
// adjacent intervals collapse into one; empty intervals are dropped.
func Merge(in []Interval) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	if len(out) < 2 {
		return out
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Start == out[b].Start {
			return out[a].End < out[b].End
		}
		return out[a].Start < out[b].Start
	})
	merged := out[:1]
	for _, iv := range out[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Gaps returns the free sub-intervals of [lo, hi) not covered by busy.
func Gaps(busy []Interval, lo, hi int) []Interval {
	if hi <= lo {
		return nil
	}
	var gaps []Interval
	cursor := lo
	for _, b := range Merge(busy) {
		if b.End <= cursor {
			continue
		}
		if b.Start >= hi {
			break
		}
		if b.Start > cursor {
			gaps = append(gaps, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
	}
	if cursor < hi {
		gaps = append(gaps, Interval{Start: cursor, End: hi})
	}
	return gaps
}

// AnyOverlap reports whether x overlaps any of the given intervals.
func AnyOverlap(x Interval, in []Interval) bool {
	for _, iv := range in {
		if x.Overlaps(iv) {
			return true
		}
	}
	return false
}

// CeilTo rounds v up to the next multiple of step.
func CeilTo(v, step int) int {
	if step <= 0 {
		return v
	}
	r := v % step
	switch {
	case r == 0:
		return v
	case r > 0:
		return v + step - r
	default:
		return v - r
	}
}

// FloorTo rounds v down to the previous multiple of step.
func FloorTo(v, step int) int {
	if step <= 0 {
		return v
	}
	r := v % step
	switch {
	case r == 0:
		return v
	case r > 0:
		return v - r
	default:
		return v - r - step
	}
}

// RoundTo rounds v to the nearest multiple of step, halves rounding up.
func RoundTo(v, step int) int {
	if step <= 0 {
		return v
	}
	return FloorTo(v+step/2, step)
}

// CeilMinutes rounds a fractional duration up to whole minutes and then to
// the grid step.
func CeilMinutes(minutes float64, step int) int {
	whole := int(minutes)
	if float64(whole) < minutes {
		whole++
	}
	if whole < 0 {
		whole = 0
	}
	return CeilTo(whole, step)
}
