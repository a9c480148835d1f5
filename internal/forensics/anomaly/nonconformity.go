// Package anomaly implements split-conformal prediction with dual
// value/timing nonconformity scores over the blackboard's per-metric
// calibration history.
package anomaly

import (
	"math"
	"sort"
)

const minCalibrationCountForFlag = 8

// valueNonconformity returns the conformal p-value, nonconformity
// score, and center (median) of the value history against the
// candidate value.
func valueNonconformity(history []float64, value float64) (pValue, ncm, center float64) {
	if len(history) == 0 {
		return 1, 0, 0
	}
	center = median(history)
	ncm = math.Abs(value - center)

	exceed := 0
	for _, h := range history {
		if math.Abs(h-center) >= ncm {
			exceed++
		}
	}
	pValue = float64(exceed+1) / float64(len(history)+1)
	return pValue, ncm, center
}

// timingNonconformity builds the log1p inter-arrival interval sequence
// from the timestamp history and scores the candidate gap against it.
func timingNonconformity(timestamps []int64, observedAt int64) (pValue, ncm float64) {
	if len(timestamps) == 0 {
		return 1, 0
	}
	intervals := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		intervals = append(intervals, math.Log1p(float64(timestamps[i]-timestamps[i-1])))
	}
	if len(intervals) == 0 {
		return 1, 0
	}
	last := timestamps[len(timestamps)-1]
	if observedAt <= last {
		return 1, 0
	}

	gap := math.Log1p(float64(observedAt - last))
	med := median(intervals)
	ncm = math.Abs(gap - med)

	exceed := 0
	for _, i := range intervals {
		if math.Abs(i-med) >= ncm {
			exceed++
		}
	}
	pValue = float64(exceed+1) / float64(len(intervals)+1)
	return pValue, ncm
}

// combine applies the two-sided Bonferroni correction over the value
// and timing p-values.
func combine(pValue, pTiming float64) float64 {
	return math.Min(1, 2*math.Min(pValue, pTiming))
}

// legacyZScore is a display-only z-score against the value history,
// zeroed when the standard deviation is negligible or history is thin.
func legacyZScore(history []float64, value float64) float64 {
	if len(history) < 2 {
		return 0
	}
	m := mean(history)
	sd := stddev(history, m)
	if sd < 1e-9 {
		return 0
	}
	return (value - m) / sd
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
