// Package orchestrator turns (AOI, date range) entries into provider orders
// and records each accepted order in the ledger.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/geo"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/logger"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/observability"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/store"
	"github.com/kdbartholomew/flowzero-orders-cli/pkg/api"
)

const (
	FourBands  = "four_bands"
	EightBands = "eight_bands"

	bundleFourBand  = "analytic_sr_udm2"
	bundleEightBand = "analytic_8b_sr_udm2"

	// eightBandFirstYear is the first year 8-band surface reflectance exists.
	eightBandFirstYear = 2022
)

// InputError is a malformed request. Nothing is submitted when one is returned.
type InputError struct {
	// Entry is the 1-based entry position, or 0 for run-level options.
	Entry int
	Err   error
}

func (e *InputError) Error() string {
	if e.Entry > 0 {
		return fmt.Sprintf("entry %d: %v", e.Entry, e.Err)
	}
	return e.Err.Error()
}

func (e *InputError) Unwrap() error { return e.Err }

// SceneSelector picks the scenes to order for one AOI and date range.
type SceneSelector interface {
	Select(ctx context.Context, aoi *geo.AOI, r daterange.Range, cadence selector.Cadence) (*selector.Selection, error)
}

// Provider creates orders and resolves basemap mosaics.
type Provider interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (string, error)
	FindMosaic(ctx context.Context, name string) (*api.Mosaic, error)
}

// Entry is one AOI and the date range to order for it.
type Entry struct {
	AOI    *geo.AOI
	GageID string
	Range  daterange.Range
}

// Options apply to every entry of a run.
type Options struct {
	Cadence selector.Cadence
	// MaxMonths caps each submitted window. Zero disables subdivision.
	MaxMonths      int
	BandConfig     string
	BundleOverride string
	DryRun         bool
	BatchID        string
}

// ProductBundle picks the product bundle for a band configuration. A
// non-empty override always wins.
func ProductBundle(bands, override string, startYear int) string {
	if override != "" {
		return override
	}
	if bands == EightBands && startYear >= eightBandFirstYear {
		return bundleEightBand
	}
	return bundleFourBand
}

// Orchestrator runs entries strictly one after another.
type Orchestrator struct {
	selector SceneSelector
	provider Provider
	ledger   store.Ledger
	logger   *slog.Logger

	tracer  trace.Tracer
	metrics *observability.Metrics
	now     func() time.Time
}

func New(sel SceneSelector, provider Provider, ledger store.Ledger, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		selector: sel,
		provider: provider,
		ledger:   ledger,
		logger:   log,
		tracer:   otel.Tracer("github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"),
		metrics:  observability.DefaultMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validate(entries []Entry, opts Options) error {
	if len(entries) == 0 {
		return &InputError{Err: errors.New("no entries to process")}
	}
	if _, err := selector.ParseCadence(string(opts.Cadence)); err != nil {
		return &InputError{Err: err}
	}
	if opts.MaxMonths < 0 {
		return &InputError{Err: fmt.Errorf("max months must not be negative, got %d", opts.MaxMonths)}
	}
	if opts.BandConfig != FourBands && opts.BandConfig != EightBands {
		return &InputError{Err: fmt.Errorf("invalid band configuration %q: must be %s or %s", opts.BandConfig, FourBands, EightBands)}
	}
	for i, e := range entries {
		if e.AOI == nil || len(e.AOI.Geometry) == 0 {
			return &InputError{Entry: i + 1, Err: geo.ErrNoPolygon}
		}
		if e.Range.Start.IsZero() || e.Range.End.Before(e.Range.Start) {
			return &InputError{Entry: i + 1, Err: fmt.Errorf("%w: %s", daterange.ErrInvalidRange, e.Range)}
		}
	}
	return nil
}

// Run validates every entry, then for each entry and each of its sub-ranges
// selects scenes and submits one order. Provider failures become failed
// outcomes. Only input and ledger errors stop the run; the partial result is
// returned alongside a ledger error.
func (o *Orchestrator) Run(ctx context.Context, entries []Entry, opts Options) (*Result, error) {
	if err := validate(entries, opts); err != nil {
		return nil, err
	}

	plans := make([][]daterange.Range, len(entries))
	for i, e := range entries {
		if opts.MaxMonths == 0 {
			plans[i] = []daterange.Range{e.Range}
			continue
		}
		subs, err := daterange.Subdivide(e.Range, opts.MaxMonths)
		if err != nil {
			return nil, &InputError{Entry: i + 1, Err: err}
		}
		plans[i] = subs
	}

	if opts.BatchID != "" {
		ctx = logger.WithBatchID(ctx, opts.BatchID)
	}
	log := logger.FromContext(ctx, o.logger)

	result := &Result{BatchID: opts.BatchID}
	for i, e := range entries {
		for _, sub := range plans[i] {
			out, err := o.runOne(ctx, i+1, e, sub, opts)
			result.add(out)
			o.metrics.SubmitOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(out.Kind))))
			if err != nil {
				return result, err
			}
			log.Info("processed range", "entry", out.Entry, "aoi", out.AOIName, "range", out.Range.String(),
				"outcome", out.Kind, "order_id", out.OrderID, "scenes", len(out.SceneIDs))
		}
	}
	return result, nil
}

func (o *Orchestrator) runOne(ctx context.Context, n int, e Entry, r daterange.Range, opts Options) (Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.range", trace.WithAttributes(
		attribute.String("aoi", e.AOI.Name),
		attribute.String("gage_id", e.GageID),
		attribute.String("range", r.String()),
	))
	defer span.End()

	log := logger.FromContext(ctx, o.logger)
	out := Outcome{Entry: n, AOIName: e.AOI.Name, GageID: e.GageID, Range: r}

	sel, err := o.selector.Select(ctx, e.AOI, r, opts.Cadence)
	if err != nil {
		out.Kind = KindFailed
		out.Reason = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "scene selection failed")
		log.Warn("scene selection failed", "aoi", e.AOI.Name, "range", r.String(), "error", err)
		return out, nil
	}

	out.Found = sel.Found
	out.Eligible = sel.Eligible
	out.PaginationLimitHit = sel.PaginationLimitHit
	out.SceneIDs = sel.IDs()
	if sel.PaginationLimitHit {
		log.Warn("search hit the page-size ceiling; results may be incomplete", "aoi", e.AOI.Name, "range", r.String(), "found", sel.Found)
	}

	if len(sel.Scenes) == 0 {
		out.Kind = KindNoValidScenes
		return out, nil
	}
	o.metrics.ScenesSelected.Add(ctx, int64(len(sel.Scenes)))

	out.ProductBundle = ProductBundle(opts.BandConfig, opts.BundleOverride, r.Start.Year())
	if opts.DryRun {
		out.Kind = KindWouldSubmit
		return out, nil
	}

	orderID, err := o.provider.CreateOrder(ctx, api.CreateOrderRequest{
		Name: "PSScope Order " + e.AOI.Stem,
		Products: []api.OrderProduct{{
			ItemIDs:       out.SceneIDs,
			ItemType:      api.ItemTypePSScene,
			ProductBundle: out.ProductBundle,
		}},
		Tools: []api.Tool{{Clip: &api.ClipTool{AOI: e.AOI.GeoJSON()}}},
	})
	if err != nil {
		out.Kind = KindFailed
		out.Reason = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "order submission failed")
		log.Warn("order submission failed", "aoi", e.AOI.Name, "range", r.String(), "error", err)
		return out, nil
	}
	out.OrderID = orderID
	span.SetAttributes(attribute.String("order_id", orderID))

	rec := store.OrderRecord{
		OrderID:       orderID,
		AOIName:       e.AOI.Name,
		OrderType:     store.OrderTypeScene,
		StartDate:     r.Start.Format(daterange.Layout),
		EndDate:       r.End.Format(daterange.Layout),
		BandConfig:    opts.BandConfig,
		ProductBundle: out.ProductBundle,
		Cadence:       string(opts.Cadence),
		SceneCount:    len(out.SceneIDs),
		AOIAreaSqKm:   e.AOI.AreaSqKm(),
		Clipped:       true,
		BatchID:       opts.BatchID,
		GageID:        e.GageID,
		SubmittedAt:   o.now(),
		Status:        store.OrderStatusSubmitted,
	}
	if err := o.ledger.Append(ctx, rec); err != nil {
		out.Kind = KindFailed
		out.Reason = "ledger: " + err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger append failed")
		return out, fmt.Errorf("order %s was accepted but could not be recorded: %w", orderID, err)
	}

	out.Kind = KindSubmitted
	o.metrics.OrdersSubmitted.Add(ctx, 1)
	return out, nil
}

// SubmitBasemap orders the named mosaic clipped to aoi and records it.
func (o *Orchestrator) SubmitBasemap(ctx context.Context, aoi *geo.AOI, mosaicName string) (*store.OrderRecord, error) {
	if aoi == nil || len(aoi.Geometry) == 0 {
		return nil, &InputError{Err: geo.ErrNoPolygon}
	}
	if mosaicName == "" {
		return nil, &InputError{Err: errors.New("mosaic name is required")}
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.basemap", trace.WithAttributes(
		attribute.String("aoi", aoi.Name),
		attribute.String("mosaic", mosaicName),
	))
	defer span.End()

	mosaic, err := o.provider.FindMosaic(ctx, mosaicName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("look up mosaic %s: %w", mosaicName, err)
	}
	if mosaic == nil {
		return nil, &InputError{Err: fmt.Errorf("mosaic %q not found", mosaicName)}
	}

	orderID, err := o.provider.CreateOrder(ctx, api.CreateOrderRequest{
		Name:       "Basemap Order " + mosaicName,
		SourceType: "basemaps",
		Products:   []api.OrderProduct{{MosaicName: mosaicName, Geometry: aoi.GeoJSON()}},
		Tools:      []api.Tool{{Clip: &api.ClipTool{}}},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order submission failed")
		return nil, fmt.Errorf("submit basemap order: %w", err)
	}

	rec := store.OrderRecord{
		OrderID:     orderID,
		AOIName:     aoi.Name,
		OrderType:   store.OrderTypeBasemap,
		StartDate:   dateOrNA(mosaic.FirstAcquired),
		EndDate:     dateOrNA(mosaic.LastAcquired),
		MosaicName:  mosaicName,
		AOIAreaSqKm: aoi.AreaSqKm(),
		Clipped:     true,
		SubmittedAt: o.now(),
		Status:      store.OrderStatusSubmitted,
	}
	if err := o.ledger.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("order %s was accepted but could not be recorded: %w", orderID, err)
	}
	o.metrics.OrdersSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("order_type", "basemap")))
	return &rec, nil
}

func dateOrNA(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(daterange.Layout)
}
