package batch

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promdetal/costing/internal/domain/audit"
)

// Repo persists batches. Every mutating method runs one transaction spanning
// the version check and all writes; a stale version rolls back and surfaces
// as VersionConflictError, and partial writes of the cost components never
// reach the store.
type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const batchCols = `
	id, part_id, quantity, version, state,
	material_category_id, material_weight_kg, material_price_per_kg,
	waste_coeff, overhead_coeff, margin_coeff, coop_coeff, coop_lines_total,
	out_machining, out_setup, out_overhead, out_margin, out_material, out_coop, out_unit,
	frozen_at, frozen_by, created_at, updated_at`

func scanBatch(row pgx.Row) (*Batch, error) {
	var (
		b        Batch
		frozenAt sql.NullTime
		frozenBy sql.NullString
	)
	if err := row.Scan(
		&b.ID, &b.PartID, &b.Quantity, &b.Version, &b.State,
		&b.Snapshot.MaterialCategoryID, &b.Snapshot.MaterialWeightKg, &b.Snapshot.MaterialPricePerKg,
		&b.Snapshot.WasteCoeff, &b.Snapshot.OverheadCoeff, &b.Snapshot.MarginCoeff,
		&b.Snapshot.CoopCoeff, &b.Snapshot.CoopLinesTotal,
		&b.Outputs.Machining, &b.Outputs.Setup, &b.Outputs.Overhead, &b.Outputs.Margin,
		&b.Outputs.Material, &b.Outputs.Coop, &b.Outputs.Unit,
		&frozenAt, &frozenBy, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if b.State == StateFrozen && frozenAt.Valid {
		b.Frozen = &FrozenInfo{At: frozenAt.Time, By: frozenBy.String}
	}
	return &b, nil
}

func (r *Repo) FindByID(ctx context.Context, id int64) (*Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchCols+` FROM batches WHERE id=$1`, id)
	b, err := scanBatch(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FindOrCreate returns the batch for (part, quantity), creating a fresh draft
// at version 1 on the first estimate request.
func (r *Repo) FindOrCreate(ctx context.Context, partID, quantity int64) (*Batch, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO batches (part_id, quantity) VALUES ($1,$2)
		ON CONFLICT (part_id, quantity) DO NOTHING
		RETURNING `+batchCols, partID, quantity)
	b, err := scanBatch(row)
	if err == nil {
		return b, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	row = r.pool.QueryRow(ctx, `
		SELECT `+batchCols+` FROM batches WHERE part_id=$1 AND quantity=$2
	`, partID, quantity)
	b, err = scanBatch(row)
	if err == pgx.ErrNoRows {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return b, false, nil
}

// explain turns a failed compare-and-swap into the precise error: missing
// row, frozen batch, or stale version.
func (r *Repo) explain(ctx context.Context, tx pgx.Tx, id, staleVersion int64, wantState State) error {
	var state State
	err := tx.QueryRow(ctx, `SELECT state FROM batches WHERE id=$1`, id).Scan(&state)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if state != wantState {
		if wantState == StateDraft {
			return ErrBatchFrozen
		}
		return ErrBatchNotFrozen
	}
	return &VersionConflictError{BatchID: id, Version: staleVersion}
}

// SaveOutputs overwrites the input snapshot and cost outputs of a draft batch
// under compare-and-swap on version.
func (r *Repo) SaveOutputs(ctx context.Context, id, expectedVersion int64, snap Snapshot, out Outputs) (*Batch, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE batches SET
			material_category_id=$3, material_weight_kg=$4, material_price_per_kg=$5,
			waste_coeff=$6, overhead_coeff=$7, margin_coeff=$8, coop_coeff=$9, coop_lines_total=$10,
			out_machining=$11, out_setup=$12, out_overhead=$13, out_margin=$14,
			out_material=$15, out_coop=$16, out_unit=$17,
			version = version + 1, updated_at = now()
		WHERE id=$1 AND version=$2 AND state='draft'
		RETURNING `+batchCols,
		id, expectedVersion,
		snap.MaterialCategoryID, snap.MaterialWeightKg, snap.MaterialPricePerKg,
		snap.WasteCoeff, snap.OverheadCoeff, snap.MarginCoeff, snap.CoopCoeff, snap.CoopLinesTotal,
		out.Machining, out.Setup, out.Overhead, out.Margin, out.Material, out.Coop, out.Unit)
	b, err := scanBatch(row)
	if err == pgx.ErrNoRows {
		return nil, r.explain(ctx, tx, id, expectedVersion, StateDraft)
	}
	if err != nil {
		return nil, err
	}
	return b, tx.Commit(ctx)
}

// Freeze captures the current outputs permanently. The audit entry lands in
// the same transaction.
func (r *Repo) Freeze(ctx context.Context, id, expectedVersion int64, actorID string) (*Batch, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE batches SET
			state='frozen', frozen_at=now(), frozen_by=$3,
			version = version + 1, updated_at = now()
		WHERE id=$1 AND version=$2 AND state='draft'
		RETURNING `+batchCols, id, expectedVersion, actorID)
	b, err := scanBatch(row)
	if err == pgx.ErrNoRows {
		return nil, r.explain(ctx, tx, id, expectedVersion, StateDraft)
	}
	if err != nil {
		return nil, err
	}
	if err := audit.Insert(ctx, tx, id, actorID, audit.ActionFreeze, b.Version); err != nil {
		return nil, err
	}
	return b, tx.Commit(ctx)
}

// Unfreeze returns a frozen batch to draft. It never touches the stored
// numbers; only a subsequent explicit recalculation does.
func (r *Repo) Unfreeze(ctx context.Context, id, expectedVersion int64, actorID string) (*Batch, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE batches SET
			state='draft', frozen_at=NULL, frozen_by=NULL,
			version = version + 1, updated_at = now()
		WHERE id=$1 AND version=$2 AND state='frozen'
		RETURNING `+batchCols, id, expectedVersion)
	b, err := scanBatch(row)
	if err == pgx.ErrNoRows {
		return nil, r.explain(ctx, tx, id, expectedVersion, StateFrozen)
	}
	if err != nil {
		return nil, err
	}
	if err := audit.Insert(ctx, tx, id, actorID, audit.ActionUnfreeze, b.Version); err != nil {
		return nil, err
	}
	return b, tx.Commit(ctx)
}

func (r *Repo) ListByPart(ctx context.Context, partID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+batchCols+` FROM batches WHERE part_id=$1 ORDER BY quantity
	`, partID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
