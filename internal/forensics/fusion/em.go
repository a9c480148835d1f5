package fusion

import "math"

const (
	maxEMIterations   = 80
	emAccuracyTol     = 1e-5
	emPriorTol        = 1e-6
	initialAccuracy   = 0.7
	initialClassPrior = 0.5
	betaPriorStrength = 6.0
	betaPriorP        = 0.55
)

// emModel is the fitted per-column accuracy vector and class prior.
type emModel struct {
	accuracy   []float64
	classPrior float64
	voteScale  []float64
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func logit(p float64) float64 {
	p = domainClamp(p, 1e-9, 1-1e-9)
	return math.Log(p / (1 - p))
}

func voteScaleFor(dep, prop float64) float64 {
	v := (1 - 0.7*dep) * (0.4 + 0.6*prop)
	return domainClamp(v, 0.15, 1)
}

// fitEM runs the weak-supervision EM loop.
func fitEM(labels [][]int, props, deps []float64) emModel {
	nSources := len(labels)
	nTypes := 0
	if nSources > 0 {
		nTypes = len(labels[0])
	}

	voteScale := make([]float64, nTypes)
	for j := 0; j < nTypes; j++ {
		voteScale[j] = voteScaleFor(deps[j], props[j])
	}

	accuracy := make([]float64, nTypes)
	for j := range accuracy {
		accuracy[j] = initialAccuracy
	}
	prior := initialClassPrior

	p := make([]float64, nSources)

	for iter := 0; iter < maxEMIterations; iter++ {
		// E-step
		for i := 0; i < nSources; i++ {
			logOdds := logit(prior)
			for j := 0; j < nTypes; j++ {
				if labels[i][j] == 0 {
					continue
				}
				a := domainClamp(accuracy[j], 0.501, 0.999)
				logOdds += float64(labels[i][j]) * math.Log(a/(1-a)) * voteScale[j]
			}
			p[i] = sigmoid(logOdds)
		}

		newPrior := mean(p)
		newPrior = domainClamp(newPrior, 0.05, 0.95)

		newAccuracy := make([]float64, nTypes)
		for j := 0; j < nTypes; j++ {
			var numer float64
			var active int
			for i := 0; i < nSources; i++ {
				if labels[i][j] == 0 {
					continue
				}
				active++
				if labels[i][j] > 0 {
					numer += p[i]
				} else {
					numer += 1 - p[i]
				}
			}
			newAccuracy[j] = domainClamp(
				(numer+betaPriorStrength*betaPriorP)/(float64(active)+betaPriorStrength),
				0.501, 0.999,
			)
		}

		var sumDeltaA float64
		for j := 0; j < nTypes; j++ {
			sumDeltaA += math.Abs(newAccuracy[j] - accuracy[j])
		}
		deltaPrior := math.Abs(newPrior - prior)

		accuracy = newAccuracy
		prior = newPrior

		if sumDeltaA < emAccuracyTol && deltaPrior < emPriorTol {
			break
		}
	}

	return emModel{accuracy: accuracy, classPrior: prior, voteScale: voteScale}
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

// eStepProbabilities re-runs the E-step once on a fitted model to
// produce final per-source probabilities.
func eStepProbabilities(labels [][]int, model emModel) []float64 {
	nSources := len(labels)
	nTypes := len(model.accuracy)
	p := make([]float64, nSources)
	for i := 0; i < nSources; i++ {
		logOdds := logit(model.classPrior)
		for j := 0; j < nTypes; j++ {
			if labels[i][j] == 0 {
				continue
			}
			a := domainClamp(model.accuracy[j], 0.501, 0.999)
			logOdds += float64(labels[i][j]) * math.Log(a/(1-a)) * model.voteScale[j]
		}
		p[i] = sigmoid(logOdds)
	}
	return p
}

// columnWeights computes normalized contributor weights from the
// fitted model and propensity/dependency statistics.
func columnWeights(model emModel, props, deps []float64) []float64 {
	nTypes := len(model.accuracy)
	raw := make([]float64, nTypes)
	var sum float64
	for j := 0; j < nTypes; j++ {
		accTerm := math.Max(0.001, 2*(model.accuracy[j]-0.5))
		propTerm := math.Max(0.02, props[j])
		depTerm := math.Max(0.1, math.Pow(1-deps[j], 0.8))
		raw[j] = accTerm * propTerm * depTerm
		sum += raw[j]
	}
	if sum <= 0 {
		return raw
	}
	weights := make([]float64, nTypes)
	for j := range raw {
		weights[j] = raw[j] / sum
	}
	return weights
}
