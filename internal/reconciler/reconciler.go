// Package reconciler brings ledger records up to date with provider order
// state and archives the results of finished orders.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/archive"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/logger"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/observability"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/planet"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/store"
	"github.com/kdbartholomew/flowzero-orders-cli/pkg/api"
)

// State is the reconciler's verdict for one order.
type State string

const (
	// StatePending means the provider is still working; the ledger is unchanged.
	StatePending State = "pending"
	// StateCompleted means the order was archived and marked successful.
	StateCompleted State = "completed"
	// StateFailed means the provider reported a terminal failure.
	StateFailed State = "failed"
	// StateUntracked means the order is not in the ledger. Status is reported only.
	StateUntracked State = "untracked"
	// StateSkipped means the order was already complete and was not re-queried.
	StateSkipped State = "skipped"
	// StateError means the status check or archival failed; a rerun retries.
	StateError State = "error"
)

// OrderGetter fetches provider order state.
type OrderGetter interface {
	GetOrder(ctx context.Context, orderID string) (*api.Order, error)
}

// Archiver stores the results of a successful order.
type Archiver interface {
	Archive(ctx context.Context, rec store.OrderRecord, order *api.Order) (*archive.Report, error)
}

// Outcome is the result of reconciling one order.
type Outcome struct {
	OrderID       string
	AOIName       string
	ProviderState string
	State         State
	// Status is the ledger status after reconciliation.
	Status        store.OrderStatus
	ArchivePath   string
	ArchivedFiles int
	Message       string
	Err           error
}

// BatchReport collects per-member outcomes in ledger order.
type BatchReport struct {
	BatchID  string
	Outcomes []Outcome
}

// Count returns the number of outcomes in state s.
func (b *BatchReport) Count(s State) int {
	n := 0
	for _, o := range b.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// HasFailures reports whether any member errored or failed at the provider.
func (b *BatchReport) HasFailures() bool {
	return b.Count(StateError) > 0 || b.Count(StateFailed) > 0
}

// Reconciler checks orders one at a time.
type Reconciler struct {
	provider OrderGetter
	archiver Archiver
	ledger   store.Ledger
	logger   *slog.Logger

	tracer  trace.Tracer
	metrics *observability.Metrics
}

func New(provider OrderGetter, archiver Archiver, ledger store.Ledger, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		provider: provider,
		archiver: archiver,
		ledger:   ledger,
		logger:   log,
		tracer:   otel.Tracer("github.com/kdbartholomew/flowzero-orders-cli/internal/reconciler"),
		metrics:  observability.DefaultMetrics(),
	}
}

// ReconcileOrder queries the provider for orderID and applies the result to
// the ledger. Provider and archival problems are reported in the outcome;
// the error is reserved for ledger failures.
func (r *Reconciler) ReconcileOrder(ctx context.Context, orderID string) (Outcome, error) {
	rec, err := r.ledger.Get(ctx, orderID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec = nil
	case err != nil:
		return Outcome{OrderID: orderID, State: StateError, Err: err}, fmt.Errorf("read ledger: %w", err)
	}
	return r.reconcile(ctx, orderID, rec)
}

func (r *Reconciler) reconcile(ctx context.Context, orderID string, rec *store.OrderRecord) (out Outcome, err error) {
	ctx = logger.WithOrderID(ctx, orderID)
	ctx, span := r.tracer.Start(ctx, "reconciler.order", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer func() {
		span.SetAttributes(attribute.String("outcome", string(out.State)))
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, string(out.State))
		}
		span.End()
		r.metrics.OrdersReconciled.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(out.State))))
	}()

	log := logger.FromContext(ctx, r.logger)
	out = Outcome{OrderID: orderID}
	if rec != nil {
		out.AOIName = rec.AOIName
		out.Status = rec.Status
	}

	order, err := r.provider.GetOrder(ctx, orderID)
	if err != nil {
		out.State = StateError
		out.Err = err
		out.Message = "status check failed"
		log.Warn("status check failed", "error", err)
		return out, nil
	}
	out.ProviderState = order.State
	out.Message = order.LastMsg

	terminal := planet.IsSuccess(order.State) || planet.IsFailure(order.State)
	switch {
	case !terminal:
		out.State = StatePending
		return out, nil
	case rec == nil:
		out.State = StateUntracked
		out.Message = "order not in ledger; nothing archived"
		log.Warn("order not found in ledger", "state", order.State)
		return out, nil
	case planet.IsFailure(order.State):
		status := store.OrderStatus(order.State)
		if err := r.ledger.UpdateStatus(ctx, orderID, status, store.StatusFields{Message: order.LastMsg}); err != nil {
			out.State = StateError
			out.Err = err
			return out, fmt.Errorf("update ledger: %w", err)
		}
		out.State = StateFailed
		out.Status = status
		return out, nil
	}

	report, err := r.archiver.Archive(ctx, *rec, order)
	if err != nil {
		out.State = StateError
		out.Err = err
		out.Message = "archival failed"
		log.Error("archival failed", "error", err)
		return out, nil
	}
	r.metrics.FilesArchived.Add(ctx, int64(len(report.Files)))

	status := store.OrderStatus(order.State)
	fields := store.StatusFields{
		Message:       order.LastMsg,
		ArchivePath:   report.ArchivePath,
		ArchivedFiles: len(report.Files),
	}
	if err := r.ledger.UpdateStatus(ctx, orderID, status, fields); err != nil {
		out.State = StateError
		out.Err = err
		return out, fmt.Errorf("update ledger: %w", err)
	}

	out.State = StateCompleted
	out.Status = status
	out.ArchivePath = report.ArchivePath
	out.ArchivedFiles = len(report.Files)
	log.Info("order archived", "files", len(report.Files), "archive_path", report.ArchivePath)
	return out, nil
}

// ReconcileBatch reconciles every ledger record of batchID in order. With
// skipCompleted, records already in a success state are not re-queried.
// One member's failure never stops the batch; a ledger error does.
func (r *Reconciler) ReconcileBatch(ctx context.Context, batchID string, skipCompleted bool) (*BatchReport, error) {
	members, err := r.ledger.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch %s: %w", batchID, err)
	}

	ctx = logger.WithBatchID(ctx, batchID)
	report := &BatchReport{BatchID: batchID}
	for i := range members {
		rec := members[i]
		if skipCompleted && rec.Status.Completed() {
			report.Outcomes = append(report.Outcomes, Outcome{
				OrderID:     rec.OrderID,
				AOIName:     rec.AOIName,
				State:       StateSkipped,
				Status:      rec.Status,
				ArchivePath: rec.ArchivePath,
			})
			continue
		}

		out, err := r.reconcile(ctx, rec.OrderID, &rec)
		report.Outcomes = append(report.Outcomes, out)
		if err != nil {
			return report, err
		}
	}

	logger.FromContext(ctx, r.logger).Info("batch reconciled",
		"members", len(members),
		"completed", report.Count(StateCompleted),
		"pending", report.Count(StatePending),
		"failed", report.Count(StateFailed),
		"errors", report.Count(StateError),
		"skipped", report.Count(StateSkipped),
	)
	return report, nil
}
