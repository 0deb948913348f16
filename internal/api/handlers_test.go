package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/promdetal/costing/internal/costing"
	"github.com/promdetal/costing/internal/domain/batch"
)

/* minimal in-memory fakes behind the batch service */

type memStore struct {
	mu    sync.Mutex
	seq   int64
	byID  map[int64]*batch.Batch
	byKey map[[2]int64]int64
}

func (s *memStore) FindByID(_ context.Context, id int64) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, batch.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (s *memStore) FindOrCreate(_ context.Context, partID, quantity int64) (*batch.Batch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{partID, quantity}
	if id, ok := s.byKey[key]; ok {
		c := *s.byID[id]
		return &c, false, nil
	}
	s.seq++
	b := &batch.Batch{ID: s.seq, PartID: partID, Quantity: quantity, Version: 1, State: batch.StateDraft}
	s.byID[b.ID] = b
	s.byKey[key] = b.ID
	c := *b
	return &c, true, nil
}

func (s *memStore) SaveOutputs(_ context.Context, id, expected int64, snap batch.Snapshot, out batch.Outputs) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, batch.ErrNotFound
	}
	if b.Version != expected {
		return nil, &batch.VersionConflictError{BatchID: id, Version: expected}
	}
	b.Snapshot = snap
	b.Outputs = out
	b.Version++
	c := *b
	return &c, nil
}

func (s *memStore) Freeze(_ context.Context, id, expected int64, actorID string) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, batch.ErrNotFound
	}
	if b.Version != expected {
		return nil, &batch.VersionConflictError{BatchID: id, Version: expected}
	}
	b.State = batch.StateFrozen
	b.Frozen = &batch.FrozenInfo{By: actorID}
	b.Version++
	c := *b
	return &c, nil
}

func (s *memStore) Unfreeze(_ context.Context, id, expected int64, actorID string) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, batch.ErrNotFound
	}
	if b.Version != expected {
		return nil, &batch.VersionConflictError{BatchID: id, Version: expected}
	}
	b.State = batch.StateDraft
	b.Frozen = nil
	b.Version++
	c := *b
	return &c, nil
}

type fakeRouting struct{}

func (fakeRouting) Routing(context.Context, int64) ([]costing.RoutingOperation, error) {
	return []costing.RoutingOperation{
		{Seq: 10, WorkCenterID: 1, SetupMin: decimal.RequireFromString("30"), OpMin: decimal.RequireFromString("2")},
	}, nil
}

type fakeRates struct{}

func (fakeRates) WorkCenterRates(context.Context, int64) (costing.WorkCenterRates, error) {
	return costing.WorkCenterRates{
		Amortization: decimal.RequireFromString("400"),
		Labor:        decimal.RequireFromString("300"),
		Tooling:      decimal.RequireFromString("200"),
		Overhead:     decimal.RequireFromString("100"),
	}, nil
}

func (fakeRates) MaterialPricePerKg(context.Context, int64, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.RequireFromString("45"), nil
}

func newTestHandler() *Handler {
	log := slog.New(slog.DiscardHandler)
	store := &memStore{byID: map[int64]*batch.Batch{}, byKey: map[[2]int64]int64{}}
	svc := batch.NewService(log, store, fakeRouting{}, fakeRates{}, nil)
	one := decimal.NewFromInt(1)
	return New(log, svc, nil, nil, nil, nil, nil, Defaults{OverheadCoeff: one, MarginCoeff: one, WasteCoeff: one}, "EUR")
}

func doJSON(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestRecalculateEndpoint_ReturnsBreakdown(t *testing.T) {
	h := newTestHandler()

	rec := doJSON(t, h, http.MethodPost, "/parts/1/recalculate", `{
		"quantity": 10,
		"overhead_coeff": "1.1",
		"margin_coeff": "1.2",
		"waste_coeff": "1.1",
		"material_category_id": 7,
		"material_weight_kg": "0.5"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var got batchJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.UnitCost.Equal(decimal.RequireFromString("134.75")) {
		t.Fatalf("unit_cost = %s, want 134.75", got.UnitCost)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d, want 2", got.Version)
	}
}

func TestRecalculateEndpoint_StaleVersionConflicts(t *testing.T) {
	h := newTestHandler()

	first := doJSON(t, h, http.MethodPost, "/parts/1/recalculate", `{"quantity": 10}`)
	if first.Code != http.StatusOK {
		t.Fatalf("seed request failed: %d %s", first.Code, first.Body)
	}

	// Version 1 is stale after the seed save bumped it to 2.
	rec := doJSON(t, h, http.MethodPost, "/parts/1/recalculate", `{"quantity": 10, "version": 1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body)
	}

	var body errBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != "version_conflict" || body.StaleVersion != 1 {
		t.Fatalf("error body %+v, want version_conflict with stale_version 1", body)
	}
}

func TestPreviewEndpoint_UnknownBatchIs404(t *testing.T) {
	h := newTestHandler()

	rec := doJSON(t, h, http.MethodGet, "/batches/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body %s", rec.Code, rec.Body)
	}
}

func TestRecalculateEndpoint_ZeroQuantityIsValidationError(t *testing.T) {
	h := newTestHandler()

	rec := doJSON(t, h, http.MethodPost, "/parts/1/recalculate", `{"quantity": 0}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body)
	}
	var body errBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Field != "quantity" {
		t.Fatalf("error names field %q, want quantity", body.Field)
	}
}

func TestFreezeEndpoint_ThenEditConflicts(t *testing.T) {
	h := newTestHandler()

	seed := doJSON(t, h, http.MethodPost, "/parts/1/recalculate", `{"quantity": 10}`)
	var b batchJSON
	if err := json.Unmarshal(seed.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode seed: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/batches/1/freeze", `{"version": 2, "actor_id": "op-17"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("freeze status = %d, body %s", rec.Code, rec.Body)
	}

	edit := doJSON(t, h, http.MethodPost, "/parts/1/recalculate", `{"quantity": 10, "version": 3}`)
	if edit.Code != http.StatusConflict {
		t.Fatalf("edit of frozen batch: status %d, want 409; body %s", edit.Code, edit.Body)
	}
}
