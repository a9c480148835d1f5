package fusion

import (
	"math"
	"sort"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

const maxContributors = 8

// Fuse runs the full weak-supervision EM pipeline over an enriched
// signal batch and returns per-source fused signals sorted by
// descending score.
func Fuse(signals []domain.Signal) []domain.FusedSignal {
	m := buildMatrix(signals)
	if m.nSources() == 0 {
		return nil
	}

	thresholds := columnThresholds(m)
	labels := buildLabels(m, thresholds)
	props := propensities(labels, m.nSources())
	deps := dependencyPenalties(labels)

	model := fitEM(labels, props, deps)
	probabilities := eStepProbabilities(labels, model)
	weights := columnWeights(model, props, deps)

	colMin, colMax := columnPositiveBounds(m)

	out := make([]domain.FusedSignal, 0, m.nSources())
	for i := 0; i < m.nSources(); i++ {
		p := probabilities[i]

		type contrib struct {
			typ   string
			value float64
			w     float64
		}
		var candidates []contrib
		var activeVoteScale float64
		for j := 0; j < m.nTypes(); j++ {
			if labels[i][j] == 0 {
				continue
			}
			activeVoteScale += model.voteScale[j]
			rng := colMax[j] - colMin[j]
			if rng <= 0 {
				rng = 1
			}
			normalized := (m.v[i][j] - colMin[j]) / rng
			contribution := normalized * weights[j] * 100
			candidates = append(candidates, contrib{typ: m.types[j], value: contribution, w: weights[j]})
		}

		sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].value > candidates[b].value })
		if len(candidates) > maxContributors {
			candidates = candidates[:maxContributors]
		}

		var weightSum float64
		for _, c := range candidates {
			weightSum += c.w
		}

		contributors := make([]domain.Contributor, 0, len(candidates))
		var contributionSum float64
		for _, c := range candidates {
			learned := 0.0
			if weightSum > 0 {
				learned = c.w / weightSum
			}
			contributors = append(contributors, domain.Contributor{
				SignalType:    c.typ,
				Contribution:  c.value,
				LearnedWeight: learned,
			})
			contributionSum += c.value
		}

		score := domainClamp(0.7*p*100+0.3*contributionSum, 0, 100)

		margin := 1.96 * math.Sqrt(p*(1-p)/math.Max(1, 2*activeVoteScale))
		lower := domainClamp(p-margin, 0, 1)
		upper := domainClamp(p+margin, 0, 1)
		if lower > p {
			lower = p
		}
		if upper < p {
			upper = p
		}

		out = append(out, domain.FusedSignal{
			SourceID:        m.sourceIDs[i],
			Domain:          m.domain[i],
			Region:          m.region[i],
			Probability:     p,
			Score:           score,
			ConfidenceLower: lower,
			ConfidenceUpper: upper,
			Contributors:    contributors,
			EvidenceIDs:     m.evidence[i],
			ObservedAt:      m.observedAt[i],
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func columnPositiveBounds(m *sourceMatrix) (mins, maxs []float64) {
	mins = make([]float64, m.nTypes())
	maxs = make([]float64, m.nTypes())
	for j := 0; j < m.nTypes(); j++ {
		mins[j] = math.Inf(1)
		maxs[j] = math.Inf(-1)
		found := false
		for i := 0; i < m.nSources(); i++ {
			if m.v[i][j] > 0 {
				found = true
				if m.v[i][j] < mins[j] {
					mins[j] = m.v[i][j]
				}
				if m.v[i][j] > maxs[j] {
					maxs[j] = m.v[i][j]
				}
			}
		}
		if !found {
			mins[j], maxs[j] = 0, 0
		}
	}
	return mins, maxs
}
