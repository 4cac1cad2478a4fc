package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/buildenergy/epmod/internal/ops"
	"github.com/buildenergy/epmod/internal/registry"
)

// ErrorKind classifies a failure for the execution report. Per-operation
// kinds are local: they fail one outcome and the batch continues. Only
// KindPersist escalates to the batch level.
type ErrorKind string

const (
	KindUnknownOperation ErrorKind = "unknown_operation"
	KindSchemaValidation ErrorKind = "schema_validation"
	KindTargetNotFound   ErrorKind = "target_not_found"
	KindMutation         ErrorKind = "mutation"
	KindPersist          ErrorKind = "persist"
)

// TargetNotFoundError reports explicitly-named targets that do not exist
// in the operation's collection. Predicate selectors never produce it:
// zero predicate matches is a valid empty result.
type TargetNotFoundError struct {
	Class string
	Names []string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("engine: no %s object named %s", e.Class, strings.Join(e.Names, ", "))
}

// classify maps an error from lookup, validation, resolution, or mutation
// onto the report taxonomy.
func classify(err error) *ErrorDetail {
	var unknownOp *registry.UnknownOperationError
	if errors.As(err, &unknownOp) {
		return &ErrorDetail{Kind: KindUnknownOperation, Message: unknownOp.Error()}
	}
	var validation *registry.ValidationError
	if errors.As(err, &validation) {
		return &ErrorDetail{Kind: KindSchemaValidation, Message: validation.Error()}
	}
	var notFound *TargetNotFoundError
	if errors.As(err, &notFound) {
		return &ErrorDetail{Kind: KindTargetNotFound, Message: notFound.Error()}
	}
	var mutation *ops.MutationError
	if errors.As(err, &mutation) {
		return &ErrorDetail{Kind: KindMutation, Message: mutation.Error()}
	}
	// Anything a handler returns that is not one of the structured kinds
	// is still a handler-internal precondition failure.
	return &ErrorDetail{Kind: KindMutation, Message: err.Error()}
}
