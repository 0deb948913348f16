package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promdetal/costing/internal/costing"
	"github.com/promdetal/costing/internal/infra/metrics"
)

// Store is the transactional batch persistence the service drives. Mutating
// methods enforce compare-and-swap on version.
type Store interface {
	FindByID(ctx context.Context, id int64) (*Batch, error)
	FindOrCreate(ctx context.Context, partID, quantity int64) (*Batch, bool, error)
	SaveOutputs(ctx context.Context, id, expectedVersion int64, snap Snapshot, out Outputs) (*Batch, error)
	Freeze(ctx context.Context, id, expectedVersion int64, actorID string) (*Batch, error)
	Unfreeze(ctx context.Context, id, expectedVersion int64, actorID string) (*Batch, error)
}

// RoutingSource supplies a part's routing for aggregation.
type RoutingSource interface {
	Routing(ctx context.Context, partID int64) ([]costing.RoutingOperation, error)
}

// RateSource resolves current catalog rates, normally through the refcache.
type RateSource interface {
	WorkCenterRates(ctx context.Context, id int64) (costing.WorkCenterRates, error)
	MaterialPricePerKg(ctx context.Context, categoryID int64, weightKg decimal.Decimal) (decimal.Decimal, error)
}

// Service is the snapshot manager: in draft every recompute re-pulls current
// rates and overwrites stored outputs; once frozen, reads return stored
// fields verbatim and the calculator is never invoked.
type Service struct {
	log     *slog.Logger
	store   Store
	routing RoutingSource
	rates   RateSource
	m       *metrics.Registry
}

func NewService(log *slog.Logger, store Store, routing RoutingSource, rates RateSource, m *metrics.Registry) *Service {
	return &Service{log: log, store: store, routing: routing, rates: rates, m: m}
}

// RecalcRequest carries one recalculation. Version is the batch version last
// observed by the caller; it is ignored when the batch is created by this
// request.
type RecalcRequest struct {
	PartID   int64
	Quantity int64
	Version  int64

	OverheadCoeff decimal.Decimal
	MarginCoeff   decimal.Decimal
	WasteCoeff    decimal.Decimal
	CoopCoeff     decimal.Decimal

	MaterialCategoryID int64 // 0 = no material line
	MaterialWeightKg   decimal.Decimal

	CoopLines []decimal.Decimal
}

// Recalculate recomputes a draft batch from current rates and saves the
// result under the version check. The batch is created on the first estimate
// request for (part, quantity).
func (s *Service) Recalculate(ctx context.Context, req RecalcRequest) (*Batch, error) {
	start := time.Now()
	if req.Quantity < 1 {
		return nil, costing.ErrInvalidQuantity
	}

	b, created, err := s.store.FindOrCreate(ctx, req.PartID, req.Quantity)
	if err != nil {
		return nil, err
	}
	if b.IsFrozen() {
		return nil, ErrBatchFrozen
	}
	expected := req.Version
	if created {
		expected = b.Version
	}

	breakdown, snap, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}

	saved, err := s.store.SaveOutputs(ctx, b.ID, expected, snap, outputsFrom(breakdown))
	if err != nil {
		s.observeConflict(err)
		return nil, err
	}

	if s.m != nil {
		s.m.RecalcTotal.Inc()
		s.m.RecalcLatencySec.Observe(time.Since(start).Seconds())
	}
	s.log.Info("batch recalculated",
		"batch_id", saved.ID,
		"part_id", saved.PartID,
		"quantity", saved.Quantity,
		"version", saved.Version,
		"unit_cost", saved.Outputs.Unit,
	)
	return saved, nil
}

// Preview is the read path. A frozen batch is returned verbatim from the
// store; a draft is recomputed against current rates for display only,
// without mutating stored state or bumping the version.
func (s *Service) Preview(ctx context.Context, batchID int64) (*Batch, error) {
	b, err := s.store.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.IsFrozen() {
		return b, nil
	}

	req := RecalcRequest{
		PartID:             b.PartID,
		Quantity:           b.Quantity,
		OverheadCoeff:      b.Snapshot.OverheadCoeff,
		MarginCoeff:        b.Snapshot.MarginCoeff,
		WasteCoeff:         b.Snapshot.WasteCoeff,
		CoopCoeff:          b.Snapshot.CoopCoeff,
		MaterialCategoryID: b.Snapshot.MaterialCategoryID,
		MaterialWeightKg:   b.Snapshot.MaterialWeightKg,
	}
	if b.Snapshot.CoopLinesTotal.IsPositive() {
		req.CoopLines = []decimal.Decimal{b.Snapshot.CoopLinesTotal}
	}

	breakdown, snap, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}
	view := *b
	view.Snapshot = snap
	view.Outputs = outputsFrom(breakdown)
	return &view, nil
}

// Freeze captures the batch's current outputs permanently.
func (s *Service) Freeze(ctx context.Context, batchID, version int64, actorID string) (*Batch, error) {
	b, err := s.store.Freeze(ctx, batchID, version, actorID)
	if err != nil {
		s.observeConflict(err)
		return nil, err
	}
	if s.m != nil {
		s.m.Freezes.Inc()
	}
	s.log.Info("batch frozen", "batch_id", b.ID, "version", b.Version, "actor", actorID)
	return b, nil
}

// Unfreeze returns a frozen batch to draft. It does not recompute; the next
// edit does.
func (s *Service) Unfreeze(ctx context.Context, batchID, version int64, actorID string) (*Batch, error) {
	b, err := s.store.Unfreeze(ctx, batchID, version, actorID)
	if err != nil {
		s.observeConflict(err)
		return nil, err
	}
	if s.m != nil {
		s.m.Unfreezes.Inc()
	}
	s.log.Info("batch unfrozen", "batch_id", b.ID, "version", b.Version, "actor", actorID)
	return b, nil
}

// compute runs aggregation, rate resolution and the cost pipeline, returning
// the breakdown together with the input snapshot that produced it.
func (s *Service) compute(ctx context.Context, req RecalcRequest) (costing.Breakdown, Snapshot, error) {
	routing, err := s.routing.Routing(ctx, req.PartID)
	if err != nil {
		return costing.Breakdown{}, Snapshot{}, err
	}
	totals, err := costing.AggregateRouting(routing)
	if err != nil {
		return costing.Breakdown{}, Snapshot{}, err
	}

	rates := make(map[int64]costing.WorkCenterRates, len(totals))
	for _, t := range totals {
		r, err := s.rates.WorkCenterRates(ctx, t.WorkCenterID)
		if err != nil {
			return costing.Breakdown{}, Snapshot{}, err
		}
		rates[t.WorkCenterID] = r
	}

	pricePerKg := decimal.Zero
	if req.MaterialCategoryID != 0 {
		pricePerKg, err = s.rates.MaterialPricePerKg(ctx, req.MaterialCategoryID, req.MaterialWeightKg)
		if err != nil {
			return costing.Breakdown{}, Snapshot{}, err
		}
	}

	coopTotal := decimal.Zero
	for _, l := range req.CoopLines {
		coopTotal = coopTotal.Add(l)
	}

	in := costing.Input{
		Quantity:      req.Quantity,
		Times:         totals,
		Rates:         rates,
		OverheadCoeff: req.OverheadCoeff,
		MarginCoeff:   req.MarginCoeff,
		WeightKg:      req.MaterialWeightKg,
		PricePerKg:    pricePerKg,
		WasteCoeff:    req.WasteCoeff,
		CoopLines:     req.CoopLines,
		CoopCoeff:     req.CoopCoeff,
	}
	breakdown, err := costing.Calculate(in)
	if err != nil {
		return costing.Breakdown{}, Snapshot{}, err
	}

	snap := Snapshot{
		MaterialCategoryID: req.MaterialCategoryID,
		MaterialWeightKg:   req.MaterialWeightKg,
		MaterialPricePerKg: pricePerKg,
		WasteCoeff:         req.WasteCoeff,
		OverheadCoeff:      req.OverheadCoeff,
		MarginCoeff:        req.MarginCoeff,
		CoopCoeff:          req.CoopCoeff,
		CoopLinesTotal:     coopTotal,
	}
	return breakdown, snap, nil
}

func outputsFrom(b costing.Breakdown) Outputs {
	return Outputs{
		Machining: b.Machining,
		Setup:     b.Setup,
		Overhead:  b.Overhead,
		Margin:    b.Margin,
		Material:  b.Material,
		Coop:      b.Coop,
		Unit:      b.Unit,
	}
}

func (s *Service) observeConflict(err error) {
	var vc *VersionConflictError
	if errors.As(err, &vc) && s.m != nil {
		s.m.VersionConflicts.Inc()
	}
}
