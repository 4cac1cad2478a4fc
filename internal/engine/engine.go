// Package engine is the plan/apply executor: it walks a client-submitted
// operation batch in order, resolves targets against the current model
// state, invokes the registered mutation functions, and produces a
// deterministic execution report.
//
// Failures are local by default: a failed operation degrades its own
// outcome and the batch continues. Only the final persist escalates to a
// batch-level error.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/buildenergy/epmod/internal/idf"
	"github.com/buildenergy/epmod/internal/registry"
	"github.com/buildenergy/epmod/internal/session"
	"github.com/buildenergy/epmod/internal/telemetry"
)

// Executor runs batches against sessions.
type Executor struct {
	registry       *registry.Registry
	gateway        *idf.Gateway
	logger         *slog.Logger
	persistTimeout time.Duration

	batchCounter metric.Int64Counter
}

// New creates an executor. persistTimeout bounds the final document write
// so a stalled disk is reported as a persist failure instead of hanging
// the batch.
func New(reg *registry.Registry, gateway *idf.Gateway, logger *slog.Logger, persistTimeout time.Duration) *Executor {
	counter, err := telemetry.Meter("epmod/engine").Int64Counter("epmod.batches",
		metric.WithDescription("Executed operation batches by mode and status"))
	if err != nil {
		logger.Warn("engine: batch counter init failed", "error", err)
	}
	return &Executor{
		registry:       reg,
		gateway:        gateway,
		logger:         logger,
		persistTimeout: persistTimeout,
		batchCounter:   counter,
	}
}

// Execute runs one batch against the session. In apply mode the session's
// exclusive lock is held from the first target resolution through the
// persist call; in dry-run mode the batch operates on a snapshot and the
// live model is never touched.
func (e *Executor) Execute(ctx context.Context, sess *session.Session, batch Batch) *Report {
	report := &Report{
		BatchID: uuid.NewString(),
		Mode:    batch.Mode,
		Results: []Result{},
	}

	if batch.Mode == "" {
		batch.Mode = ModeDryRun
		report.Mode = ModeDryRun
	}
	if batch.Mode != ModeDryRun && batch.Mode != ModeApply {
		// Never guess: an unrecognized mode must not silently run as a
		// dry run, and must never reach apply.
		detail := &ErrorDetail{
			Kind:    KindSchemaValidation,
			Message: fmt.Sprintf("engine: unknown mode %q (valid: %s, %s)", batch.Mode, ModeDryRun, ModeApply),
		}
		for _, req := range batch.Operations {
			report.Results = append(report.Results, Result{Op: req.Op, Outcome: OutcomeFailed, Error: detail})
		}
		report.Status = StatusAllFailed
		e.logger.Warn("batch rejected", "batch_id", report.BatchID, "mode", batch.Mode)
		return report
	}

	var model *idf.Model
	if batch.Mode == ModeApply {
		sess.Lock()
		defer sess.Unlock()
		model = sess.Model()
	} else {
		model = sess.Snapshot()
	}

	aborted := false
	for _, req := range batch.Operations {
		if aborted {
			report.Results = append(report.Results, Result{
				Op:      req.Op,
				Outcome: OutcomeSkipped,
			})
			continue
		}
		result := e.executeOne(model, req)
		report.Results = append(report.Results, result)
		if batch.StrictAbort && result.Outcome == OutcomeFailed {
			aborted = true
		}
	}

	report.Status = deriveStatus(report.Results)

	if batch.Mode == ModeApply {
		path := batch.OutputPath
		if path == "" {
			path = sess.Path
		}
		persistCtx, cancel := context.WithTimeout(ctx, e.persistTimeout)
		defer cancel()
		if err := e.gateway.Save(persistCtx, model, path); err != nil {
			// In-memory mutations stand; only the on-disk document is
			// unchanged. Reported apart from per-operation outcomes.
			report.PersistError = &ErrorDetail{Kind: KindPersist, Message: err.Error()}
			e.logger.Error("batch persist failed", "batch_id", report.BatchID, "path", path, "error", err)
		} else {
			report.PersistedPath = path
		}
	}

	if e.batchCounter != nil {
		e.batchCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("mode", string(batch.Mode)),
			attribute.String("status", string(report.Status)),
		))
	}
	e.logger.Info("batch executed",
		"batch_id", report.BatchID,
		"session_id", sess.ID,
		"mode", batch.Mode,
		"operations", len(batch.Operations),
		"status", report.Status,
	)
	return report
}

// executeOne runs a single request: lookup, schema validation, target
// resolution, mutation. Every failure path returns a failed Result and
// leaves the model exactly as the mutation function left it (validation
// and resolution failures never mutate).
func (e *Executor) executeOne(model *idf.Model, req OperationRequest) Result {
	result := Result{Op: req.Op}

	desc, err := e.registry.Lookup(req.Op)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = classify(err)
		return result
	}

	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	if err := desc.Schema.Validate(desc.ID, params); err != nil {
		result.Outcome = OutcomeFailed
		result.Error = classify(err)
		return result
	}

	sel, err := parseSelector(req.Target)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = &ErrorDetail{Kind: KindSchemaValidation, Message: err.Error()}
		return result
	}
	targets, err := resolveTargets(model, desc, sel)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = classify(err)
		return result
	}
	result.TargetCount = len(targets)

	changes, err := desc.Mutate(model, params, targets)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = classify(err)
		return result
	}

	// An empty ChangeSet is still applied: resolving zero predicate
	// matches or updating fields to their current values is a valid
	// no-op, distinguishable from failure.
	result.Outcome = OutcomeApplied
	result.Changes = changes
	return result
}
