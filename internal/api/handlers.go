package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/promdetal/costing/internal/costing"
	"github.com/promdetal/costing/internal/domain/audit"
	"github.com/promdetal/costing/internal/domain/batch"
	"github.com/promdetal/costing/internal/domain/material"
	"github.com/promdetal/costing/internal/domain/part"
	"github.com/promdetal/costing/internal/domain/workcenter"
	"github.com/promdetal/costing/internal/export"
	"github.com/promdetal/costing/internal/refcache"
)

// Defaults fill coefficients a recalculation request leaves unset.
type Defaults struct {
	OverheadCoeff decimal.Decimal
	MarginCoeff   decimal.Decimal
	WasteCoeff    decimal.Decimal
}

type Handler struct {
	log         *slog.Logger
	batches     *batch.Service
	workcenters *workcenter.Repo
	materials   *material.Repo
	parts       *part.Repo
	auditLog    *audit.Repo
	cache       *refcache.Cache
	defaults    Defaults
	currency    string
}

func New(
	log *slog.Logger,
	batches *batch.Service,
	workcenters *workcenter.Repo,
	materials *material.Repo,
	parts *part.Repo,
	auditLog *audit.Repo,
	cache *refcache.Cache,
	defaults Defaults,
	currency string,
) *Handler {
	return &Handler{
		log:         log,
		batches:     batches,
		workcenters: workcenters,
		materials:   materials,
		parts:       parts,
		auditLog:    auditLog,
		cache:       cache,
		defaults:    defaults,
		currency:    currency,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/parts", func(r chi.Router) {
		r.Post("/", h.createPart)
		r.Put("/{partID}/routing", h.replaceRouting)
		r.Post("/{partID}/recalculate", h.recalculate)
	})

	r.Route("/batches", func(r chi.Router) {
		r.Get("/{batchID}", h.previewBatch)
		r.Post("/{batchID}/freeze", h.freezeBatch)
		r.Post("/{batchID}/unfreeze", h.unfreezeBatch)
		r.Get("/{batchID}/export", h.exportBatch)
		r.Get("/{batchID}/audit", h.batchAudit)
	})

	r.Route("/workcenters", func(r chi.Router) {
		r.Get("/", h.listWorkCenters)
		r.Post("/", h.createWorkCenter)
		r.Put("/{id}/rates", h.updateWorkCenterRates)
		r.Put("/{id}/active", h.setWorkCenterActive)
	})

	r.Route("/materials/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
		r.Put("/{id}/tiers", h.replaceTiers)
	})

	r.Post("/cache/invalidate", h.invalidateCatalogEntity)

	return r
}

/* batches */

type recalcBody struct {
	Quantity int64 `json:"quantity"`
	Version  int64 `json:"version"`

	OverheadCoeff decimal.Decimal `json:"overhead_coeff"`
	MarginCoeff   decimal.Decimal `json:"margin_coeff"`
	WasteCoeff    decimal.Decimal `json:"waste_coeff"`
	CoopCoeff     decimal.Decimal `json:"coop_coeff"`

	MaterialCategoryID int64             `json:"material_category_id"`
	MaterialWeightKg   decimal.Decimal   `json:"material_weight_kg"`
	CoopLines          []decimal.Decimal `json:"coop_lines"`
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	partID, ok := pathID(w, r, "partID")
	if !ok {
		return
	}
	var body recalcBody
	if !h.decode(w, r, &body) {
		return
	}

	req := batch.RecalcRequest{
		PartID:             partID,
		Quantity:           body.Quantity,
		Version:            body.Version,
		OverheadCoeff:      orDefault(body.OverheadCoeff, h.defaults.OverheadCoeff),
		MarginCoeff:        orDefault(body.MarginCoeff, h.defaults.MarginCoeff),
		WasteCoeff:         orDefault(body.WasteCoeff, h.defaults.WasteCoeff),
		CoopCoeff:          orDefault(body.CoopCoeff, decimal.NewFromInt(1)),
		MaterialCategoryID: body.MaterialCategoryID,
		MaterialWeightKg:   body.MaterialWeightKg,
		CoopLines:          body.CoopLines,
	}

	b, err := h.batches.Recalculate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batchResponse(b))
}

func (h *Handler) previewBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}
	b, err := h.batches.Preview(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batchResponse(b))
}

type actionBody struct {
	Version int64  `json:"version"`
	ActorID string `json:"actor_id"`
}

func (h *Handler) freezeBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}
	var body actionBody
	if !h.decode(w, r, &body) {
		return
	}
	b, err := h.batches.Freeze(r.Context(), id, body.Version, body.ActorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batchResponse(b))
}

func (h *Handler) unfreezeBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}
	var body actionBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.ActorID == "" {
		h.writeJSON(w, http.StatusUnprocessableEntity, errBody{Code: "validation", Message: "actor_id is required for unfreeze", Field: "actor_id"})
		return
	}
	b, err := h.batches.Unfreeze(r.Context(), id, body.Version, body.ActorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batchResponse(b))
}

func (h *Handler) exportBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}
	b, err := h.batches.Preview(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.parts.GetByID(r.Context(), b.PartID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if p == nil {
		h.writeJSON(w, http.StatusNotFound, errBody{Code: "not_found", Message: "part not found"})
		return
	}
	data, err := export.BatchWorkbook(b, p, h.currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="batch-`+strconv.FormatInt(id, 10)+`.xlsx"`)
	_, _ = w.Write(data)
}

func (h *Handler) batchAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}
	entries, err := h.auditLog.ListByBatch(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

/* catalog admin */

type workCenterBody struct {
	Name         string          `json:"name"`
	Amortization decimal.Decimal `json:"rate_amortization"`
	Labor        decimal.Decimal `json:"rate_labor"`
	Tooling      decimal.Decimal `json:"rate_tooling"`
	Overhead     decimal.Decimal `json:"rate_overhead"`
	Priority     int             `json:"priority"`
	Active       *bool           `json:"active"`
}

func (b workCenterBody) rates() costing.WorkCenterRates {
	return costing.WorkCenterRates{
		Amortization: b.Amortization,
		Labor:        b.Labor,
		Tooling:      b.Tooling,
		Overhead:     b.Overhead,
	}
}

func (h *Handler) listWorkCenters(w http.ResponseWriter, r *http.Request) {
	out, err := h.workcenters.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createWorkCenter(w http.ResponseWriter, r *http.Request) {
	var body workCenterBody
	if !h.decode(w, r, &body) {
		return
	}
	wc, err := h.workcenters.Create(r.Context(), body.Name, body.rates(), body.Priority)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, wc)
}

func (h *Handler) updateWorkCenterRates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body workCenterBody
	if !h.decode(w, r, &body) {
		return
	}
	wc, err := h.workcenters.UpdateRates(r.Context(), id, body.rates())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wc)
}

func (h *Handler) setWorkCenterActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body workCenterBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.Active == nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, errBody{Code: "validation", Message: "active flag is required", Field: "active"})
		return
	}
	wc, err := h.workcenters.SetActive(r.Context(), id, *body.Active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wc)
}

type categoryBody struct {
	Material string `json:"material"`
	Shape    string `json:"shape"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	out, err := h.materials.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var body categoryBody
	if !h.decode(w, r, &body) {
		return
	}
	c, err := h.materials.CreateCategory(r.Context(), body.Material, body.Shape)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

type tierBody struct {
	MinWeightKg decimal.Decimal  `json:"min_weight_kg"`
	MaxWeightKg *decimal.Decimal `json:"max_weight_kg"`
	PricePerKg  decimal.Decimal  `json:"price_per_kg"`
}

func (h *Handler) replaceTiers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body []tierBody
	if !h.decode(w, r, &body) {
		return
	}
	tiers := make([]material.Tier, 0, len(body))
	for _, t := range body {
		tiers = append(tiers, material.Tier{
			CategoryID:  id,
			MinWeightKg: t.MinWeightKg,
			MaxWeightKg: t.MaxWeightKg,
			PricePerKg:  t.PricePerKg,
		})
	}
	if err := h.materials.ReplaceTiers(r.Context(), id, tiers); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* parts */

type partBody struct {
	PartNo   string `json:"part_no"`
	Name     string `json:"name"`
	Customer string `json:"customer"`
}

func (h *Handler) createPart(w http.ResponseWriter, r *http.Request) {
	var body partBody
	if !h.decode(w, r, &body) {
		return
	}
	p, err := h.parts.Create(r.Context(), body.PartNo, body.Name, body.Customer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

type operationBody struct {
	Seq          int             `json:"seq"`
	WorkCenterID *int64          `json:"work_center_id"`
	SetupMin     decimal.Decimal `json:"setup_min"`
	OpMin        decimal.Decimal `json:"op_min"`
}

func (h *Handler) replaceRouting(w http.ResponseWriter, r *http.Request) {
	partID, ok := pathID(w, r, "partID")
	if !ok {
		return
	}
	var body []operationBody
	if !h.decode(w, r, &body) {
		return
	}
	ops := make([]part.Operation, 0, len(body))
	for _, o := range body {
		ops = append(ops, part.Operation{
			PartID:       partID,
			Seq:          o.Seq,
			WorkCenterID: o.WorkCenterID,
			SetupMin:     o.SetupMin,
			OpMin:        o.OpMin,
		})
	}
	if err := h.parts.ReplaceRouting(r.Context(), partID, ops); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* cache */

type invalidateBody struct {
	Kind refcache.Kind `json:"kind"`
	ID   int64         `json:"id"`
}

// invalidateCatalogEntity is the entry point catalog-admin collaborators call
// after mutating a work-center or material outside this service.
func (h *Handler) invalidateCatalogEntity(w http.ResponseWriter, r *http.Request) {
	var body invalidateBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.Kind != refcache.KindWorkCenter && body.Kind != refcache.KindMaterial {
		h.writeJSON(w, http.StatusUnprocessableEntity, errBody{Code: "validation", Message: "unknown entity kind", Field: "kind"})
		return
	}
	h.cache.Invalidate(body.Kind, body.ID)
	w.WriteHeader(http.StatusNoContent)
}

/* helpers */

func orDefault(v, def decimal.Decimal) decimal.Decimal {
	if v.IsZero() {
		return def
	}
	return v
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid " + name))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody{Code: "bad_request", Message: "malformed JSON body"})
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", "err", err)
	}
}
