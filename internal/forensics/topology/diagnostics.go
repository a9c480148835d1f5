package topology

import "math"

// diagnostics aggregates the persistence pairs into the scalar
// topology features (TSI, beta1, component count).
func diagnostics(pairs []persistencePair, n int) (tsi float64, beta1 int, componentCount int) {
	var totalH0, totalH1 float64
	for _, p := range pairs {
		per := p.persistence()
		if per <= persistenceEpsilon {
			if p.creatorDim == 0 && p.essential {
				componentCount++
			}
			continue
		}
		switch p.creatorDim {
		case 0:
			totalH0 += per
			if p.essential {
				componentCount++
			}
		case 1:
			totalH1 += per
			if per > 0.05 {
				beta1++
			}
		}
	}

	h0Denom := float64(n - 1)
	if h0Denom < 1 {
		h0Denom = 1
	}
	h1Denom := float64(n) / 2
	if h1Denom < 1 {
		h1Denom = 1
	}

	h0Norm := totalH0 / h0Denom
	h1Norm := totalH1 / h1Denom

	tsi = h0Norm*40 + h1Norm*60
	if tsi < 0 {
		tsi = 0
	}
	if tsi > 100 {
		tsi = 100
	}
	return tsi, beta1, componentCount
}

// buildEdgeSet materializes the thresholded adjacency used for node
// metrics (degree_strength, cycle_strength, cycle_count). An edge
// exists iff 1 − distance ≥ 0.55.
const edgeSimilarityThreshold = 0.55

func buildEdgeSet(nodes []*Node, dm *distanceMatrix) (adjacency [][]bool) {
	n := len(nodes)
	adjacency = make([][]bool, n)
	for i := range adjacency {
		adjacency[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if 1-dm.at(i, j) >= edgeSimilarityThreshold {
				adjacency[i][j] = true
				adjacency[j][i] = true
			}
		}
	}
	return adjacency
}

// computeNodeMetrics fills DegreeStrength, CycleStrength and
// CycleCount for every node.
func computeNodeMetrics(nodes []*Node, dm *distanceMatrix, adjacency [][]bool) {
	n := len(nodes)
	for i := 0; i < n; i++ {
		var degreeSum float64
		for j := 0; j < n; j++ {
			if adjacency[i][j] {
				degreeSum += dm.at(i, j)
			}
		}
		nodes[i].DegreeStrength = degreeSum
	}

	for i := 0; i < n; i++ {
		var cycleSum float64
		count := 0
		for j := 0; j < n; j++ {
			if i == j || !adjacency[i][j] {
				continue
			}
			for k := j + 1; k < n; k++ {
				if k == i || !adjacency[i][k] || !adjacency[j][k] {
					continue
				}
				meanWeight := (dm.at(i, j) + dm.at(i, k) + dm.at(j, k)) / 3
				cycleSum += meanWeight
				count++
			}
		}
		nodes[i].CycleStrength = cycleSum
		nodes[i].CycleCount = count
	}
}

// normalizeBy returns v scaled into [0,1] by max, or 0 when max is
// non-positive.
func normalizeBy(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	r := v / max
	return math.Max(0, math.Min(1, r))
}
