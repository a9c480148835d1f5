// Package domain holds the explicit, validated types that flow through
// the forensics shadow pipeline: signals in, fused scores / calibrated
// anomalies / causal edges / phase traces out.
package domain

import "time"

// Signal is a single normalized observation from a source.
//
// Signals are immutable once accepted by the Ingestor.
type Signal struct {
	SourceID    string          `json:"source_id" db:"source_id"`
	Region      string          `json:"region" db:"region"`
	Domain      string          `json:"domain" db:"domain"`
	SignalType  string          `json:"signal_type" db:"signal_type"`
	Value       float64         `json:"value" db:"value"`
	Confidence  float64         `json:"confidence" db:"confidence"`
	ObservedAt  int64           `json:"observed_at" db:"observed_at"` // epoch ms
	EvidenceIDs map[string]bool `json:"evidence_ids,omitempty" db:"-"`
}

// RawSignal is the weakly-typed payload as it arrives at the boundary,
// before validation and default-filling.
type RawSignal struct {
	SourceID    string
	Region      string
	Domain      string
	SignalType  string
	Value       float64
	HasValue    bool
	Confidence  float64
	HasConf     bool
	ObservedAt  int64
	EvidenceIDs []string
}

// Contributor is one labeler's contribution to a fused signal.
type Contributor struct {
	SignalType    string  `json:"signal_type"`
	Contribution  float64 `json:"contribution"`   // 0..100
	LearnedWeight float64 `json:"learned_weight"` // sums to 1 across contributors
}

// FusedSignal is the weak-supervision EM output for one source.
type FusedSignal struct {
	SourceID        string          `json:"source_id"`
	Domain          string          `json:"domain"`
	Region          string          `json:"region"`
	Probability     float64         `json:"probability"`
	Score           float64         `json:"score"` // 0..100
	ConfidenceLower float64         `json:"confidence_lower"`
	ConfidenceUpper float64         `json:"confidence_upper"`
	Contributors    []Contributor   `json:"contributors"` // up to 8, descending contribution
	EvidenceIDs     map[string]bool `json:"evidence_ids,omitempty"`
	ObservedAt      int64           `json:"observed_at"`
}

// Severity bands for calibrated anomalies.
type Severity string

const (
	SeverityUnspecified Severity = "unspecified"
	SeverityLow         Severity = "low"
	SeverityMedium      Severity = "medium"
	SeverityHigh        Severity = "high"
)

// CalibratedAnomaly is the dual-nonconformity conformal prediction
// output for one input signal.
type CalibratedAnomaly struct {
	SourceID            string   `json:"source_id"`
	Domain              string   `json:"domain"`
	Region              string   `json:"region"`
	SignalType          string   `json:"signal_type"`
	Value               float64  `json:"value"`
	PValue              float64  `json:"p_value"`
	Alpha               float64  `json:"alpha"`
	LegacyZScore        float64  `json:"legacy_z_score"`
	IsAnomaly           bool     `json:"is_anomaly"`
	Severity            Severity `json:"severity"`
	CalibrationCount    int      `json:"calibration_count"`
	CalibrationCenter   float64  `json:"calibration_center"`
	Nonconformity       float64  `json:"nonconformity"`
	PValueValue         float64  `json:"p_value_value"`
	PValueTiming        float64  `json:"p_value_timing"`
	TimingNonconformity float64  `json:"timing_nonconformity"`
	IntervalMs          int64    `json:"interval_ms"`
	ObservedAt          int64    `json:"observed_at"`
}

// CausalEdge is a discovered bucketed co-activation relationship
// between two signal types.
type CausalEdge struct {
	Cause           string  `json:"cause"`
	Effect          string  `json:"effect"`
	SupportCount    int     `json:"support_count"`
	ConditionalLift float64 `json:"conditional_lift"`
	CausalScore     float64 `json:"causal_score"`
	DelayMs         int64   `json:"delay_ms"`
}

// PhaseStatus enumerates phase trace states.
type PhaseStatus string

const (
	PhaseSuccess PhaseStatus = "success"
	PhaseFailed  PhaseStatus = "failed"
	PhaseSkipped PhaseStatus = "skipped"
	PhasePending PhaseStatus = "pending"
)

// PhaseTraceEntry records one phase execution in the run's trace DAG.
type PhaseTraceEntry struct {
	Phase        string      `json:"phase"`
	Status       PhaseStatus `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  time.Time   `json:"completed_at"`
	ElapsedMs    int64       `json:"elapsed_ms"`
	Error        string      `json:"error,omitempty"`
	ParentPhases []string    `json:"parent_phases"`
}

// PolicyAction enumerates the two orderable analysis phases.
type PolicyAction string

const (
	ActionFusion  PolicyAction = "weak-supervision-fusion"
	ActionAnomaly PolicyAction = "conformal-anomaly"
)

// PolicyEntry is one (domain, state_hash, action) Q-table row.
type PolicyEntry struct {
	Domain      string       `json:"domain"`
	StateHash   string       `json:"state_hash"`
	Action      PolicyAction `json:"action"`
	QValue      float64      `json:"q_value"`
	VisitCount  int64        `json:"visit_count"`
	LastReward  float64      `json:"last_reward"`
	LastUpdated time.Time    `json:"last_updated"`
}

// BaselineEntry is the Welford running-moment state for one
// (domain, region, signal_type) metric key.
type BaselineEntry struct {
	Domain      string    `json:"domain"`
	Region      string    `json:"region"`
	SignalType  string    `json:"signal_type"`
	Count       int64     `json:"count"`
	Mean        float64   `json:"mean"`
	M2          float64   `json:"m2"`
	StdDev      float64   `json:"std_dev"`
	MinValue    float64   `json:"min_value"`
	MaxValue    float64   `json:"max_value"`
	LastValue   float64   `json:"last_value"`
	LastUpdated time.Time `json:"last_updated"`
}

// RunStatus enumerates run-record terminal states.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the per-invocation run record.
type Run struct {
	RunID       string              `json:"run_id" db:"run_id"`
	Domain      string              `json:"domain" db:"domain"`
	StartedAt   time.Time           `json:"started_at" db:"started_at"`
	CompletedAt time.Time           `json:"completed_at" db:"completed_at"`
	Status      RunStatus           `json:"status" db:"status"`
	WorkerMode  string              `json:"worker_mode,omitempty" db:"worker_mode"`
	Fused       []FusedSignal       `json:"fused_signals"`
	Anomalies   []CalibratedAnomaly `json:"anomalies"`
	CausalEdges []CausalEdge        `json:"causal_edges"`
	Trace       []PhaseTraceEntry   `json:"trace"`
	Error       string              `json:"error,omitempty"`
}

// RunSummary is the lightweight listing projection for ListForensicsRuns.
type RunSummary struct {
	RunID               string    `json:"run_id"`
	Domain              string    `json:"domain"`
	StartedAt           time.Time `json:"started_at"`
	CompletedAt         time.Time `json:"completed_at"`
	Status              RunStatus `json:"status"`
	FusedCount          int       `json:"fused_count"`
	AnomalyCount        int       `json:"anomaly_count"`
	AnomalyFlaggedCount int       `json:"anomaly_flagged_count"`
	MaxFusedScore       float64   `json:"max_fused_score"`
	MinPValue           float64   `json:"min_p_value"`
}

// TopologyDiagnostics holds the scalar homology outputs alongside the
// derived signals.
type TopologyDiagnostics struct {
	TSI            float64 `json:"tsi"`
	Beta1          int     `json:"beta1"`
	ComponentCount int     `json:"component_count"`
	HyperedgeCount int     `json:"hyperedge_count"`
	NodeCount      int     `json:"node_count"`
}

// TopologyAlert is a threshold-crossing diagnostic surfaced to the
// summary RPC.
type TopologyAlert struct {
	RunID  string  `json:"run_id"`
	Domain string  `json:"domain"`
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Region string  `json:"region,omitempty"`
}

// TopologyTrendPoint is one historical sample of a topology metric.
type TopologyTrendPoint struct {
	CompletedAt time.Time `json:"completed_at"`
	Value       float64   `json:"value"`
}

// FeedbackRecord is operator feedback on a prior source/signal-type
// pairing, submitted via SubmitForensicsFeedback and persisted through
// the blackboard's shared feedback ring for future calibration passes.
type FeedbackRecord struct {
	SourceID       string    `json:"source_id"`
	SignalType     string    `json:"signal_type"`
	IsTruePositive bool      `json:"is_true_positive"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
