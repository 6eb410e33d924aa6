// Package scrub implements the consistency scrubber for tiered log storage:
// an anomaly detector that walks a partition's manifest chain verifying it
// against the object store, a jittered scheduler, and the orchestrator tying
// them to gating, quota accounting and anomaly persistence.
package scrub

// Status is the tri-state outcome of a scrub pass.
type Status int

const (
	// StatusFull means every planned check ran to completion.
	StatusFull Status = iota
	// StatusPartial means some checks were skipped or failed transiently;
	// findings are valid but incomplete.
	StatusPartial
	// StatusFailed means the pass produced no usable findings.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFull:
		return "full"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Merge combines two statuses. Failed absorbs everything, partial absorbs
// full. Merge is associative and commutative, so partial results can be
// folded in any order.
func (s Status) Merge(other Status) Status {
	if s == StatusFailed || other == StatusFailed {
		return StatusFailed
	}
	if s == StatusPartial || other == StatusPartial {
		return StatusPartial
	}
	return StatusFull
}
