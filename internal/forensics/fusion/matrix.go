// Package fusion implements weak-supervision expectation-maximization
// over multiple noisy signal-type labelers.
package fusion

import (
	"sort"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

// sourceMatrix is the V[i,j] value matrix plus per-source metadata,
// built in insertion order for deterministic iteration.
type sourceMatrix struct {
	sourceIDs   []string
	sourceIndex map[string]int
	types       []string
	typeIndex   map[string]int

	v          [][]float64 // v[i][j]
	domain     []string    // per source
	region     []string    // per source
	evidence   []map[string]bool
	observedAt []int64 // latest observed_at per source
}

func buildMatrix(signals []domain.Signal) *sourceMatrix {
	m := &sourceMatrix{
		sourceIndex: make(map[string]int),
		typeIndex:   make(map[string]int),
	}

	for _, s := range signals {
		si, ok := m.sourceIndex[s.SourceID]
		if !ok {
			si = len(m.sourceIDs)
			m.sourceIndex[s.SourceID] = si
			m.sourceIDs = append(m.sourceIDs, s.SourceID)
			m.domain = append(m.domain, s.Domain)
			m.region = append(m.region, s.Region)
			m.evidence = append(m.evidence, map[string]bool{})
			m.observedAt = append(m.observedAt, 0)
		}
		if s.ObservedAt > m.observedAt[si] {
			m.observedAt[si] = s.ObservedAt
		}
		ti, ok := m.typeIndex[s.SignalType]
		if !ok {
			ti = len(m.types)
			m.typeIndex[s.SignalType] = ti
			m.types = append(m.types, s.SignalType)
		}
		for len(m.v) <= si {
			m.v = append(m.v, make([]float64, len(m.types)))
		}
		for i := range m.v {
			for len(m.v[i]) < len(m.types) {
				m.v[i] = append(m.v[i], 0)
			}
		}
		m.v[si][ti] += s.Value
		for id := range s.EvidenceIDs {
			m.evidence[si][id] = true
		}
	}

	// Final pass: ensure every row has a cell for every discovered type.
	for i := range m.v {
		for len(m.v[i]) < len(m.types) {
			m.v[i] = append(m.v[i], 0)
		}
	}
	return m
}

func (m *sourceMatrix) nSources() int { return len(m.sourceIDs) }
func (m *sourceMatrix) nTypes() int   { return len(m.types) }

// columnThresholds computes the 70th percentile of positive values per
// column.
func columnThresholds(m *sourceMatrix) []float64 {
	thresholds := make([]float64, m.nTypes())
	for j := 0; j < m.nTypes(); j++ {
		var positives []float64
		for i := 0; i < m.nSources(); i++ {
			if m.v[i][j] > 0 {
				positives = append(positives, m.v[i][j])
			}
		}
		thresholds[j] = percentile(positives, 0.70)
	}
	return thresholds
}

// percentile returns the p-quantile (0..1) of vals using linear
// interpolation between closest ranks. Returns 0 for an empty input.
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

// buildLabels derives L[i,j] in {-1,0,+1} from the matrix and
// per-column thresholds.
func buildLabels(m *sourceMatrix, thresholds []float64) [][]int {
	labels := make([][]int, m.nSources())
	for i := range labels {
		labels[i] = make([]int, m.nTypes())
		for j := 0; j < m.nTypes(); j++ {
			v := m.v[i][j]
			switch {
			case v >= thresholds[j] && thresholds[j] > 0:
				labels[i][j] = 1
			case v > 0 && v < thresholds[j]:
				labels[i][j] = -1
			case v > 0 && thresholds[j] == 0:
				labels[i][j] = 1
			default:
				labels[i][j] = 0
			}
		}
	}
	return labels
}

// propensities computes prop_j = fraction of non-abstaining rows.
func propensities(labels [][]int, nSources int) []float64 {
	if nSources == 0 {
		return nil
	}
	nTypes := 0
	if len(labels) > 0 {
		nTypes = len(labels[0])
	}
	props := make([]float64, nTypes)
	for j := 0; j < nTypes; j++ {
		count := 0
		for i := 0; i < len(labels); i++ {
			if labels[i][j] != 0 {
				count++
			}
		}
		props[j] = float64(count) / float64(nSources)
	}
	return props
}
