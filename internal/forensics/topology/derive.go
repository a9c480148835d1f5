package topology

import (
	"context"
	"sort"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

const (
	maxTopNodes       = 24
	maxRegionRisk     = 6
	minRegionRiskVal  = 10
	maxDerivedSignals = 80
)

// Deriver computes financial-graph topology features over an enriched
// signal batch and emits derived signals plus baseline-delta signals.
type Deriver struct {
	Baseline BaselineStore
}

// NewDeriver constructs a topology Deriver backed by the given
// baseline store (normally the process Blackboard).
func NewDeriver(baseline BaselineStore) *Deriver {
	return &Deriver{Baseline: baseline}
}

// Derive returns the derived signals and scalar diagnostics for the
// financial subset of signals. Returns an empty result with zeroed
// diagnostics when fewer than 4 financial nodes are present.
func (d *Deriver) Derive(ctx context.Context, requestDomain string, signals []domain.Signal) ([]domain.Signal, domain.TopologyDiagnostics, error) {
	nodes := buildNodes(signals)
	if len(nodes) < 4 {
		return nil, domain.TopologyDiagnostics{}, nil
	}

	dm := buildDistanceMatrix(nodes)
	simplices := buildFiltration(len(nodes), dm)
	pairs := reduceFiltration(simplices)
	tsi, beta1, componentCount := diagnostics(pairs, len(nodes))

	adjacency := buildEdgeSet(nodes, dm)
	computeNodeMetrics(nodes, dm, adjacency)

	hyperedges := findHyperedges(nodes, dm)

	var derived []domain.Signal

	maxObsAt := int64(0)
	for _, n := range nodes {
		if n.LatestObsAt > maxObsAt {
			maxObsAt = n.LatestObsAt
		}
	}

	derived = append(derived, domain.Signal{
		SourceID: "topology:global", Region: "global", Domain: requestDomain,
		SignalType: "topology_tsi", Value: tsi, Confidence: 1, ObservedAt: maxObsAt,
	})
	derived = append(derived, domain.Signal{
		SourceID: "topology:global", Region: "global", Domain: requestDomain,
		SignalType: "topology_beta1", Value: float64(beta1), Confidence: 1, ObservedAt: maxObsAt,
	})

	derived = append(derived, nodeDerivedSignals(nodes, requestDomain)...)
	derived = append(derived, regionCycleRiskSignals(nodes, requestDomain)...)

	if len(hyperedges) > 0 {
		density := float64(participatingNodes(hyperedges)) / float64(len(nodes)) * 100
		var simSum float64
		for _, h := range hyperedges {
			simSum += h.meanSim
		}
		crossSync := simSum / float64(len(hyperedges)) * 100

		derived = append(derived, domain.Signal{
			SourceID: "topology:global", Region: "global", Domain: requestDomain,
			SignalType: "topology_hyperedge_density", Value: density, Confidence: 1, ObservedAt: maxObsAt,
		})
		derived = append(derived, domain.Signal{
			SourceID: "topology:global", Region: "global", Domain: requestDomain,
			SignalType: "topology_cross_domain_sync", Value: crossSync, Confidence: 1, ObservedAt: maxObsAt,
		})
	}

	if d.Baseline != nil {
		derived = append(derived, emitBaselineDeltas(ctx, d.Baseline, derived)...)
	}

	derived = dedupeSignals(derived)

	diag := domain.TopologyDiagnostics{
		TSI: tsi, Beta1: beta1, ComponentCount: componentCount,
		HyperedgeCount: len(hyperedges), NodeCount: len(nodes),
	}
	return derived, diag, nil
}

// nodeDerivedSignals ranks the top maxTopNodes nodes by a blended
// degree/cycle risk score and emits per-node centrality/cycle signals.
func nodeDerivedSignals(nodes []*Node, requestDomain string) []domain.Signal {
	maxDegree, maxCycle := 0.0, 0.0
	for _, n := range nodes {
		if n.DegreeStrength > maxDegree {
			maxDegree = n.DegreeStrength
		}
		if n.CycleStrength > maxCycle {
			maxCycle = n.CycleStrength
		}
	}

	type ranked struct {
		node *Node
		risk float64
	}
	rankedNodes := make([]ranked, 0, len(nodes))
	for _, n := range nodes {
		degreeNorm := normalizeBy(n.DegreeStrength, maxDegree)
		cycleNorm := normalizeBy(n.CycleStrength, maxCycle)
		risk := 55*degreeNorm + 45*cycleNorm
		rankedNodes = append(rankedNodes, ranked{node: n, risk: risk})
	}
	sort.SliceStable(rankedNodes, func(i, j int) bool { return rankedNodes[i].risk > rankedNodes[j].risk })
	if len(rankedNodes) > maxTopNodes {
		rankedNodes = rankedNodes[:maxTopNodes]
	}

	var out []domain.Signal
	for _, r := range rankedNodes {
		degreeNorm := normalizeBy(r.node.DegreeStrength, maxDegree)
		cycleNorm := normalizeBy(r.node.CycleStrength, maxCycle)
		if degreeNorm > 0.15 {
			out = append(out, domain.Signal{
				SourceID: r.node.SourceID, Region: r.node.Region, Domain: requestDomain,
				SignalType: "topology_degree_centrality", Value: degreeNorm * 100,
				Confidence: 1, ObservedAt: r.node.LatestObsAt,
			})
		}
		if cycleNorm > 0.1 || r.node.CycleCount > 0 {
			out = append(out, domain.Signal{
				SourceID: r.node.SourceID, Region: r.node.Region, Domain: requestDomain,
				SignalType: "topology_cycle_membership", Value: cycleNorm * 100,
				Confidence: 1, ObservedAt: r.node.LatestObsAt,
			})
		}
	}
	return out
}

// regionCycleRiskSignals aggregates node cycle risk per region and
// emits the top maxRegionRisk regions with risk >= minRegionRiskVal.
func regionCycleRiskSignals(nodes []*Node, requestDomain string) []domain.Signal {
	maxCycle := 0.0
	for _, n := range nodes {
		if n.CycleStrength > maxCycle {
			maxCycle = n.CycleStrength
		}
	}

	type agg struct {
		sum       float64
		n         int
		latestObs int64
	}
	byRegion := make(map[string]*agg)
	order := make([]string, 0)
	for _, n := range nodes {
		a, ok := byRegion[n.Region]
		if !ok {
			a = &agg{}
			byRegion[n.Region] = a
			order = append(order, n.Region)
		}
		a.sum += normalizeBy(n.CycleStrength, maxCycle) * 100
		a.n++
		if n.LatestObsAt > a.latestObs {
			a.latestObs = n.LatestObsAt
		}
	}

	type regionRisk struct {
		region string
		risk   float64
		obsAt  int64
	}
	risks := make([]regionRisk, 0, len(order))
	for _, region := range order {
		a := byRegion[region]
		risk := a.sum / float64(a.n)
		if risk >= minRegionRiskVal {
			risks = append(risks, regionRisk{region: region, risk: risk, obsAt: a.latestObs})
		}
	}
	sort.SliceStable(risks, func(i, j int) bool { return risks[i].risk > risks[j].risk })
	if len(risks) > maxRegionRisk {
		risks = risks[:maxRegionRisk]
	}

	out := make([]domain.Signal, 0, len(risks))
	for _, r := range risks {
		out = append(out, domain.Signal{
			SourceID: "topology:region:" + r.region, Region: r.region, Domain: requestDomain,
			SignalType: "topology_cycle_risk", Value: r.risk, Confidence: 1, ObservedAt: r.obsAt,
		})
	}
	return out
}

// dedupeSignals keeps at most maxDerivedSignals, and when two share
// (source_id, signal_type, region) retains the one with the higher
// value.
func dedupeSignals(signals []domain.Signal) []domain.Signal {
	best := make(map[string]domain.Signal)
	order := make([]string, 0, len(signals))
	for _, s := range signals {
		key := s.SourceID + "|" + s.SignalType + "|" + s.Region
		if existing, ok := best[key]; !ok || s.Value > existing.Value {
			if _, existed := best[key]; !existed {
				order = append(order, key)
			}
			best[key] = s
		}
	}

	out := make([]domain.Signal, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	if len(out) > maxDerivedSignals {
		out = out[:maxDerivedSignals]
	}
	return out
}
