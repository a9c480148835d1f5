package fusion

import "math"

const minOverlapForCorrelation = 6

// dependencyPenalties measures, for each column, the strongest
// pairwise Pearson correlation of its non-zero labels against every
// other column over co-observed rows (requiring >= 6 overlaps),
// aggregated into [0, 0.95].
func dependencyPenalties(labels [][]int) []float64 {
	nSources := len(labels)
	nTypes := 0
	if nSources > 0 {
		nTypes = len(labels[0])
	}
	dep := make([]float64, nTypes)

	for j := 0; j < nTypes; j++ {
		var maxAbsCorr float64
		for k := 0; k < nTypes; k++ {
			if k == j {
				continue
			}
			var xs, ys []float64
			for i := 0; i < nSources; i++ {
				if labels[i][j] != 0 && labels[i][k] != 0 {
					xs = append(xs, float64(labels[i][j]))
					ys = append(ys, float64(labels[i][k]))
				}
			}
			if len(xs) < minOverlapForCorrelation {
				continue
			}
			c := math.Abs(pearson(xs, ys))
			if c > maxAbsCorr {
				maxAbsCorr = c
			}
		}
		dep[j] = domainClamp(maxAbsCorr*0.95, 0, 0.95)
	}
	return dep
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return 0
	}
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var num, denX, denY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	if denX <= 0 || denY <= 0 {
		return 0
	}
	return num / math.Sqrt(denX*denY)
}

func domainClamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
