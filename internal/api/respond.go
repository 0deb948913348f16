package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promdetal/costing/internal/costing"
	"github.com/promdetal/costing/internal/domain/batch"
)

// errBody is the wire shape of every error. It always names the offending
// field or entity so the caller can highlight it or prompt a reload.
type errBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Field        string `json:"field,omitempty"`
	BatchID      int64  `json:"batch_id,omitempty"`
	StaleVersion int64  `json:"stale_version,omitempty"`
	WorkCenterID int64  `json:"work_center_id,omitempty"`
	Seq          int    `json:"seq,omitempty"`
	CategoryID   int64  `json:"material_category_id,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vc    *batch.VersionConflictError
		verr  *costing.ValidationError
		mwc   *costing.MissingWorkCenterError
		mrate *costing.MissingRateError
		mpr   *costing.MissingPriceError
		dup   *costing.DuplicateSeqError
	)
	switch {
	case errors.Is(err, batch.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errBody{Code: "not_found", Message: err.Error()})
	case errors.As(err, &vc):
		h.writeJSON(w, http.StatusConflict, errBody{
			Code:         "version_conflict",
			Message:      vc.Error(),
			BatchID:      vc.BatchID,
			StaleVersion: vc.Version,
		})
	case errors.Is(err, batch.ErrBatchFrozen), errors.Is(err, batch.ErrBatchNotFrozen):
		h.writeJSON(w, http.StatusConflict, errBody{Code: "batch_state", Message: err.Error()})
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusUnprocessableEntity, errBody{Code: "validation", Message: verr.Error(), Field: verr.Field})
	case errors.As(err, &mwc):
		h.writeJSON(w, http.StatusUnprocessableEntity, errBody{Code: "missing_work_center", Message: mwc.Error(), Seq: mwc.Seq})
	case errors.As(err, &mrate):
		h.writeJSON(w, http.StatusUnprocessableEntity, errBody{Code: "missing_rate_data", Message: mrate.Error(), WorkCenterID: mrate.WorkCenterID})
	case errors.As(err, &mpr):
		h.writeJSON(w, http.StatusUnprocessableEntity, errBody{Code: "missing_rate_data", Message: mpr.Error(), CategoryID: mpr.CategoryID})
	case errors.As(err, &dup):
		h.writeJSON(w, http.StatusUnprocessableEntity, errBody{Code: "duplicate_seq", Message: dup.Error(), Seq: dup.Seq})
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, errBody{Code: "internal", Message: "internal error"})
	}
}

type batchJSON struct {
	ID       int64       `json:"id"`
	PartID   int64       `json:"part_id"`
	Quantity int64       `json:"quantity"`
	Version  int64       `json:"version"`
	State    batch.State `json:"state"`

	FrozenAt *time.Time `json:"frozen_at,omitempty"`
	FrozenBy string     `json:"frozen_by,omitempty"`

	MaterialCategoryID int64           `json:"material_category_id"`
	MaterialWeightKg   decimal.Decimal `json:"material_weight_kg"`
	MaterialPricePerKg decimal.Decimal `json:"material_price_per_kg"`
	WasteCoeff         decimal.Decimal `json:"waste_coeff"`
	OverheadCoeff      decimal.Decimal `json:"overhead_coeff"`
	MarginCoeff        decimal.Decimal `json:"margin_coeff"`
	CoopCoeff          decimal.Decimal `json:"coop_coeff"`

	MachiningCost decimal.Decimal `json:"machining_cost"`
	SetupCost     decimal.Decimal `json:"setup_cost"`
	OverheadCost  decimal.Decimal `json:"overhead_cost"`
	MarginCost    decimal.Decimal `json:"margin_cost"`
	MaterialCost  decimal.Decimal `json:"material_cost"`
	CoopCost      decimal.Decimal `json:"coop_cost"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

func batchResponse(b *batch.Batch) batchJSON {
	out := batchJSON{
		ID:       b.ID,
		PartID:   b.PartID,
		Quantity: b.Quantity,
		Version:  b.Version,
		State:    b.State,

		MaterialCategoryID: b.Snapshot.MaterialCategoryID,
		MaterialWeightKg:   b.Snapshot.MaterialWeightKg,
		MaterialPricePerKg: b.Snapshot.MaterialPricePerKg,
		WasteCoeff:         b.Snapshot.WasteCoeff,
		OverheadCoeff:      b.Snapshot.OverheadCoeff,
		MarginCoeff:        b.Snapshot.MarginCoeff,
		CoopCoeff:          b.Snapshot.CoopCoeff,

		MachiningCost: b.Outputs.Machining,
		SetupCost:     b.Outputs.Setup,
		OverheadCost:  b.Outputs.Overhead,
		MarginCost:    b.Outputs.Margin,
		MaterialCost:  b.Outputs.Material,
		CoopCost:      b.Outputs.Coop,
		UnitCost:      b.Outputs.Unit,
	}
	if b.Frozen != nil {
		at := b.Frozen.At
		out.FrozenAt = &at
		out.FrozenBy = b.Frozen.By
	}
	return out
}
