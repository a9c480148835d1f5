package topology

import "sort"

const (
	hyperedgeSimilarityThreshold = 0.6
	hyperedgeWindowMs            = 4 * 60 * 60 * 1000
	maxHyperedges                = 20
)

// hyperedge is a coordination-proxy subset of >= 3 nodes whose pairwise
// similarities all exceed a threshold within a time window and span
// distinct domains.
type hyperedge struct {
	members []int
	meanSim float64
}

func within(a, b int64, window int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= window
}

// findHyperedges enumerates ordered triples (and their 4-node
// extensions) meeting the similarity/time/domain-diversity
// constraints, deduplicated by subset containment and capped at 20.
func findHyperedges(nodes []*Node, dm *distanceMatrix) []hyperedge {
	n := len(nodes)
	var found []hyperedge

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			simIJ := 1 - dm.at(i, j)
			if simIJ < hyperedgeSimilarityThreshold {
				continue
			}
			for k := j + 1; k < n; k++ {
				simIK := 1 - dm.at(i, k)
				simJK := 1 - dm.at(j, k)
				if simIK < hyperedgeSimilarityThreshold || simJK < hyperedgeSimilarityThreshold {
					continue
				}
				if !within(nodes[i].LatestObsAt, nodes[j].LatestObsAt, hyperedgeWindowMs) ||
					!within(nodes[i].LatestObsAt, nodes[k].LatestObsAt, hyperedgeWindowMs) ||
					!within(nodes[j].LatestObsAt, nodes[k].LatestObsAt, hyperedgeWindowMs) {
					continue
				}
				domains := map[string]bool{nodes[i].Domain: true, nodes[j].Domain: true, nodes[k].Domain: true}
				if len(domains) < 3 {
					continue
				}

				members := []int{i, j, k}
				meanSim := (simIJ + simIK + simJK) / 3

				// Attempt a 4-node extension: add l > k meeting all
				// pairwise/time/domain constraints against i, j, k.
				for l := k + 1; l < n; l++ {
					if !extendsHyperedge(nodes, dm, members, l) {
						continue
					}
					members = append(members, l)
					meanSim = meanPairwiseSim(nodes, dm, members)
					break
				}

				found = append(found, hyperedge{members: members, meanSim: meanSim})
			}
		}
	}

	return dedupeHyperedges(found)
}

func extendsHyperedge(nodes []*Node, dm *distanceMatrix, members []int, candidate int) bool {
	domains := map[string]bool{}
	for _, m := range members {
		domains[nodes[m].Domain] = true
		if 1-dm.at(m, candidate) < hyperedgeSimilarityThreshold {
			return false
		}
		if !within(nodes[m].LatestObsAt, nodes[candidate].LatestObsAt, hyperedgeWindowMs) {
			return false
		}
	}
	domains[nodes[candidate].Domain] = true
	return len(domains) >= 3
}

func meanPairwiseSim(nodes []*Node, dm *distanceMatrix, members []int) float64 {
	var sum float64
	count := 0
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			sum += 1 - dm.at(members[a], members[b])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func memberSet(members []int) map[int]bool {
	s := make(map[int]bool, len(members))
	for _, m := range members {
		s[m] = true
	}
	return s
}

func isSubset(a, b map[int]bool) bool {
	if len(a) > len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// dedupeHyperedges removes hyperedges whose member set is a subset of
// another's, keeping up to maxHyperedges, largest-first.
func dedupeHyperedges(found []hyperedge) []hyperedge {
	sort.SliceStable(found, func(i, j int) bool {
		return len(found[i].members) > len(found[j].members)
	})

	kept := make([]hyperedge, 0, len(found))
	keptSets := make([]map[int]bool, 0, len(found))
	for _, h := range found {
		set := memberSet(h.members)
		dominated := false
		for _, ks := range keptSets {
			if isSubset(set, ks) {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}
		kept = append(kept, h)
		keptSets = append(keptSets, set)
		if len(kept) >= maxHyperedges {
			break
		}
	}
	return kept
}

// participatingNodes returns the count of distinct nodes across all
// hyperedges.
func participatingNodes(hyperedges []hyperedge) int {
	seen := map[int]bool{}
	for _, h := range hyperedges {
		for _, m := range h.members {
			seen[m] = true
		}
	}
	return len(seen)
}
