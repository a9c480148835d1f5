package domain

import "errors"

// Error taxonomy for the forensics shadow pipeline.
var (
	// ErrEmptyBatch is returned when neither the signal batch nor any
	// evidence-derived signals produced usable input.
	ErrEmptyBatch = errors.New("no valid forensics signals or evidence IDs were provided")

	// ErrInvalidArgument covers missing run_id where required. A
	// non-positive alpha is not rejected; it is replaced by 0.05.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when the blackboard has no record for a
	// requested run_id.
	ErrNotFound = errors.New("not found")

	// ErrWorkerUnavailable indicates the worker offload call failed or
	// timed out; callers fall back to local compute and do not
	// propagate this as a hard failure.
	ErrWorkerUnavailable = errors.New("worker unavailable")

	// ErrPhaseFailure wraps an analysis-phase error captured by the
	// trace wrapper.
	ErrPhaseFailure = errors.New("phase failure")

	// ErrBlackboardUnavailable indicates a cache read returned nothing;
	// treated as empty history/baseline/policy rather than a hard error.
	ErrBlackboardUnavailable = errors.New("blackboard unavailable")
)
