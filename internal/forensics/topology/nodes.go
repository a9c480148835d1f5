package topology

import (
	"math"
	"sort"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

const maxNodes = 40

// Node is one accumulated financial source in the correlation graph.
type Node struct {
	SourceID      string
	Domain        string
	Region        string
	AbsValueSum   float64
	ConfidenceSum float64
	ConfidenceN   int
	SignalTypes   map[string]bool
	LatestObsAt   int64

	// metrics, populated once the distance matrix and edge set exist.
	DegreeStrength float64
	CycleStrength  float64
	CycleCount     int
}

func (n *Node) avgConfidence() float64 {
	if n.ConfidenceN == 0 {
		return 0
	}
	return n.ConfidenceSum / float64(n.ConfidenceN)
}

// buildNodes groups financial signals by source_id, ranks by
// accumulated |value| and keeps the top maxNodes nodes, in insertion
// order for ties.
func buildNodes(signals []domain.Signal) []*Node {
	order := make([]string, 0)
	bySource := make(map[string]*Node)

	for _, s := range signals {
		if !isFinancial(s.Domain, s.SourceID, s.SignalType) {
			continue
		}
		n, ok := bySource[s.SourceID]
		if !ok {
			n = &Node{
				SourceID:    s.SourceID,
				Domain:      s.Domain,
				Region:      s.Region,
				SignalTypes: make(map[string]bool),
			}
			bySource[s.SourceID] = n
			order = append(order, s.SourceID)
		}
		n.AbsValueSum += math.Abs(s.Value)
		n.ConfidenceSum += s.Confidence
		n.ConfidenceN++
		n.SignalTypes[s.SignalType] = true
		if s.ObservedAt >= n.LatestObsAt {
			n.LatestObsAt = s.ObservedAt
			n.Domain = s.Domain
			n.Region = s.Region
		}
	}

	nodes := make([]*Node, 0, len(order))
	for _, id := range order {
		nodes = append(nodes, bySource[id])
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].AbsValueSum > nodes[j].AbsValueSum
	})

	if len(nodes) > maxNodes {
		nodes = nodes[:maxNodes]
	}
	return nodes
}
