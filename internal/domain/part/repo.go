package part

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promdetal/costing/internal/costing"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Create(ctx context.Context, partNo, name, customer string) (*Part, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO parts (part_no, name, customer) VALUES ($1,$2,$3)
		ON CONFLICT (part_no) DO NOTHING
		RETURNING id, part_no, name, customer, active, created_at
	`, partNo, name, customer)
	var p Part
	err := row.Scan(&p.ID, &p.PartNo, &p.Name, &p.Customer, &p.Active, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return r.GetByPartNo(ctx, partNo)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Part, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, part_no, name, customer, active, created_at FROM parts WHERE id=$1
	`, id)
	var p Part
	if err := row.Scan(&p.ID, &p.PartNo, &p.Name, &p.Customer, &p.Active, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetByPartNo(ctx context.Context, partNo string) (*Part, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, part_no, name, customer, active, created_at FROM parts WHERE part_no=$1
	`, partNo)
	var p Part
	if err := row.Scan(&p.ID, &p.PartNo, &p.Name, &p.Customer, &p.Active, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Operations(ctx context.Context, partID int64) ([]Operation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, part_id, seq, work_center_id, setup_min, op_min
		FROM operations WHERE part_id=$1 ORDER BY seq
	`, partID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.PartID, &op.Seq, &op.WorkCenterID, &op.SetupMin, &op.OpMin); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// ReplaceRouting swaps a part's routing atomically. Duplicate sequence
// numbers are rejected up front with an error naming the seq; the unique
// constraint backs that check at the storage level.
func (r *Repo) ReplaceRouting(ctx context.Context, partID int64, ops []Operation) error {
	seen := make(map[int]bool, len(ops))
	for _, op := range ops {
		if seen[op.Seq] {
			return &costing.DuplicateSeqError{Seq: op.Seq}
		}
		seen[op.Seq] = true
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM operations WHERE part_id=$1`, partID); err != nil {
		return err
	}
	for _, op := range ops {
		if _, err := tx.Exec(ctx, `
			INSERT INTO operations (part_id, seq, work_center_id, setup_min, op_min)
			VALUES ($1,$2,$3,$4,$5)
		`, partID, op.Seq, op.WorkCenterID, op.SetupMin, op.OpMin); err != nil {
			return fmt.Errorf("insert operation seq %d: %w", op.Seq, err)
		}
	}
	return tx.Commit(ctx)
}

// Routing adapts a part's stored operations to the aggregator's input shape.
func (r *Repo) Routing(ctx context.Context, partID int64) ([]costing.RoutingOperation, error) {
	ops, err := r.Operations(ctx, partID)
	if err != nil {
		return nil, err
	}
	out := make([]costing.RoutingOperation, 0, len(ops))
	for _, op := range ops {
		ro := costing.RoutingOperation{
			Seq:      op.Seq,
			SetupMin: op.SetupMin,
			OpMin:    op.OpMin,
		}
		if op.WorkCenterID != nil {
			ro.WorkCenterID = *op.WorkCenterID
		}
		out = append(out, ro)
	}
	return out, nil
}
