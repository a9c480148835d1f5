// Package causal discovers directed co-activation relationships
// between signal types via bucketed lift and MDL scoring.
package causal

import (
	"math"
	"sort"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

const (
	bucketMs             int64 = 30 * 60 * 1000
	lookbackBuckets            = 8
	minSupport                 = 4
	minCausalScore             = 0.15
	maxCausalEdges             = 40
	minSignalsForRun           = 8
	minSignalTypesForRun       = 3
)

// Discover finds bucketed co-activation edges between signal types,
// returning at most 40 edges sorted by descending causal score.
// Returns empty when the batch is too small or too undiversified to
// support discovery.
func Discover(signals []domain.Signal) []domain.CausalEdge {
	if len(signals) < minSignalsForRun {
		return nil
	}

	byType := make(map[string][]domain.Signal)
	var typeOrder []string
	for _, s := range signals {
		if _, ok := byType[s.SignalType]; !ok {
			typeOrder = append(typeOrder, s.SignalType)
		}
		byType[s.SignalType] = append(byType[s.SignalType], s)
	}
	if len(typeOrder) < minSignalTypesForRun {
		return nil
	}

	minTime, maxTime := int64(math.MaxInt64), int64(math.MinInt64)
	for _, s := range signals {
		if s.ObservedAt < minTime {
			minTime = s.ObservedAt
		}
		if s.ObservedAt > maxTime {
			maxTime = s.ObservedAt
		}
	}
	totalBuckets := int((maxTime-minTime)/bucketMs) + 1
	if totalBuckets < 1 {
		totalBuckets = 1
	}

	activeBuckets := make(map[string]map[int]bool, len(typeOrder))
	for _, t := range typeOrder {
		var positives []float64
		for _, s := range byType[t] {
			if s.Value > 0 {
				positives = append(positives, s.Value)
			}
		}
		threshold := percentile(positives, 0.70)

		buckets := make(map[int]bool)
		for _, s := range byType[t] {
			if s.Value >= threshold && threshold > 0 {
				buckets[bucketIndex(s.ObservedAt, minTime)] = true
			}
		}
		activeBuckets[t] = buckets
	}

	baseline := make(map[string]float64, len(typeOrder))
	for _, t := range typeOrder {
		baseline[t] = float64(len(activeBuckets[t])) / float64(totalBuckets)
	}

	var edges []domain.CausalEdge
	for _, a := range typeOrder {
		for _, b := range typeOrder {
			if a == b {
				continue
			}
			edge, ok := evaluatePair(a, b, activeBuckets, baseline, totalBuckets)
			if ok {
				edges = append(edges, edge)
			}
		}
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].CausalScore > edges[j].CausalScore })
	if len(edges) > maxCausalEdges {
		edges = edges[:maxCausalEdges]
	}
	return edges
}

func evaluatePair(a, b string, activeBuckets map[string]map[int]bool, baseline map[string]float64, totalBuckets int) (domain.CausalEdge, bool) {
	aBuckets := sortedKeys(activeBuckets[a])
	bBuckets := activeBuckets[b]
	if len(aBuckets) == 0 {
		return domain.CausalEdge{}, false
	}

	var offsets []int
	coactiv := 0
	for _, bucket := range aBuckets {
		for offset := 1; offset <= lookbackBuckets; offset++ {
			candidate := bucket + offset
			if bBuckets[candidate] {
				coactiv++
				offsets = append(offsets, offset)
				break
			}
		}
	}
	if coactiv < minSupport {
		return domain.CausalEdge{}, false
	}

	pBGivenA := float64(coactiv) / float64(len(aBuckets))
	adjBaseline := clamp(1-math.Pow(1-baseline[b], lookbackBuckets), 1e-9, 1)
	lift := pBGivenA / adjBaseline
	if lift <= 1 {
		return domain.CausalEdge{}, false
	}

	mdlGain := lift * math.Log2(lift) * (float64(coactiv) / float64(totalBuckets))
	score := sigmoid(2*mdlGain - 1)
	if score < minCausalScore {
		return domain.CausalEdge{}, false
	}

	delayBuckets := medianInt(offsets)
	delayMs := int64(math.Round(delayBuckets)) * bucketMs

	return domain.CausalEdge{
		Cause:           a,
		Effect:          b,
		SupportCount:    coactiv,
		ConditionalLift: lift,
		CausalScore:     score,
		DelayMs:         delayMs,
	}, true
}

func bucketIndex(observedAt, minTime int64) int {
	return int((observedAt - minTime) / bucketMs)
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func percentile(vals []float64, p float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func medianInt(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]int(nil), xs...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return float64(sorted[mid-1]+sorted[mid]) / 2
	}
	return float64(sorted[mid])
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
