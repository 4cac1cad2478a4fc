package engine

import "github.com/buildenergy/epmod/internal/registry"

// Mode selects plan versus commit execution.
type Mode string

const (
	// ModeDryRun applies the batch to a shadow copy: the session model
	// and the on-disk document are untouched, but the reported ChangeSets
	// are exactly what apply would have produced.
	ModeDryRun Mode = "dry_run"
	// ModeApply mutates the live session model and persists it once at
	// batch end.
	ModeApply Mode = "apply"
)

// Outcome is the per-operation result classification.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Status is the batch-level classification derived from the outcomes.
type Status string

const (
	StatusAllOK     Status = "all_ok"
	StatusPartial   Status = "partial"
	StatusAllFailed Status = "all_failed"
)

// OperationRequest is one client-supplied batch entry.
type OperationRequest struct {
	Op     string         `json:"op"`
	Params map[string]any `json:"params,omitempty"`
	// Target is "all", a name, a list of names, or a field predicate
	// {"field": ..., "equals": ...}. Nil means the operation default.
	Target any `json:"target,omitempty"`
}

// Batch is one executor call.
type Batch struct {
	Operations []OperationRequest `json:"operations"`
	Mode       Mode               `json:"mode"`
	// OutputPath overrides the persist destination; empty persists in
	// place over the session's source document.
	OutputPath string `json:"output_path,omitempty"`
	// StrictAbort skips the remainder of the batch after the first
	// failure. Default is continue-on-error.
	StrictAbort bool `json:"strict_abort,omitempty"`
}

// ErrorDetail is the structured failure attached to an outcome.
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is one per-operation outcome record.
type Result struct {
	Op          string            `json:"op"`
	TargetCount int               `json:"target_count"`
	Outcome     Outcome           `json:"outcome"`
	Changes     []registry.Change `json:"changes,omitempty"`
	Error       *ErrorDetail      `json:"error,omitempty"`
}

// Report is the aggregate execution report for one batch. Immutable once
// returned.
type Report struct {
	BatchID       string       `json:"batch_id"`
	Status        Status       `json:"status"`
	Mode          Mode         `json:"mode"`
	Results       []Result     `json:"results"`
	PersistedPath string       `json:"persisted_path,omitempty"`
	PersistError  *ErrorDetail `json:"persist_error,omitempty"`
}

// deriveStatus: all_ok iff every outcome is
// applied, all_failed iff every outcome is failed, otherwise partial.
// An empty batch is all_ok (nothing could fail).
func deriveStatus(results []Result) Status {
	if len(results) == 0 {
		return StatusAllOK
	}
	applied, failed := 0, 0
	for _, r := range results {
		switch r.Outcome {
		case OutcomeApplied:
			applied++
		case OutcomeFailed:
			failed++
		}
	}
	switch {
	case applied == len(results):
		return StatusAllOK
	case failed == len(results):
		return StatusAllFailed
	default:
		return StatusPartial
	}
}
