// Package policy implements the ε-greedy Q-learning phase ordering
// selector.
package policy

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

// StateHash computes the FNV-1a 32-bit hash of the run's discretized
// state descriptor.
func StateHash(dom string, alpha float64, signals []domain.Signal) string {
	typeSet := make(map[string]bool)
	regionSet := make(map[string]bool)
	for _, s := range signals {
		typeSet[s.SignalType] = true
		regionSet[s.Region] = true
	}
	types := sortedTop(typeSet, 10)
	regions := sortedTop(regionSet, 10)

	n := len(signals)
	nb := n / 10
	if nb > 8 {
		nb = 8
	}

	descriptor := fmt.Sprintf("%s|a:%.3f|n:%d|nb:%d|t:%v|r:%v", dom, alpha, n, nb, types, regions)

	h := fnv.New32a()
	_, _ = h.Write([]byte(descriptor))
	return fmt.Sprintf("%08x", h.Sum32())
}

func sortedTop(set map[string]bool, limit int) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Reward computes the phase-completion reward.
func Reward(success bool, outputRows int, elapsedSeconds float64) float64 {
	if !success {
		return -1
	}
	return 1 + math.Log1p(float64(outputRows))/math.Log1p(math.Max(elapsedSeconds, 0.1)+1)
}
