package workcenter

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promdetal/costing/internal/costing"
	"github.com/promdetal/costing/internal/refcache"
)

type Repo struct {
	pool *pgxpool.Pool
	inv  refcache.Invalidator
}

func NewRepo(pool *pgxpool.Pool, inv refcache.Invalidator) *Repo {
	return &Repo{pool: pool, inv: inv}
}

const cols = `id, name, rate_amortization, rate_labor, rate_tooling, rate_overhead, active, priority, created_at`

func scan(row pgx.Row) (*WorkCenter, error) {
	var w WorkCenter
	if err := row.Scan(
		&w.ID,
		&w.Name,
		&w.Rates.Amortization,
		&w.Rates.Labor,
		&w.Rates.Tooling,
		&w.Rates.Overhead,
		&w.Active,
		&w.Priority,
		&w.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repo) Create(ctx context.Context, name string, rates costing.WorkCenterRates, priority int) (*WorkCenter, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO work_centers (name, rate_amortization, rate_labor, rate_tooling, rate_overhead, active, priority)
		VALUES ($1,$2,$3,$4,$5,TRUE,$6)
		RETURNING `+cols,
		name, rates.Amortization, rates.Labor, rates.Tooling, rates.Overhead, priority)
	return scan(row)
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*WorkCenter, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+cols+` FROM work_centers WHERE id=$1`, id)
	w, err := scan(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *Repo) List(ctx context.Context) ([]WorkCenter, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cols+` FROM work_centers ORDER BY priority, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WorkCenter
	for rows.Next() {
		w, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// UpdateRates replaces the four rate components. The cache entry is
// invalidated before the transaction completes so the next calculation
// observes fresh data.
func (r *Repo) UpdateRates(ctx context.Context, id int64, rates costing.WorkCenterRates) (*WorkCenter, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE work_centers
		SET rate_amortization=$2, rate_labor=$3, rate_tooling=$4, rate_overhead=$5
		WHERE id=$1
		RETURNING `+cols,
		id, rates.Amortization, rates.Labor, rates.Tooling, rates.Overhead)
	w, err := scan(row)
	if err != nil {
		return nil, err
	}

	r.inv.Invalidate(refcache.KindWorkCenter, id)
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *Repo) SetActive(ctx context.Context, id int64, active bool) (*WorkCenter, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE work_centers SET active=$2 WHERE id=$1
		RETURNING `+cols, id, active)
	w, err := scan(row)
	if err != nil {
		return nil, err
	}

	r.inv.Invalidate(refcache.KindWorkCenter, id)
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// LoadWorkCenterRates implements refcache.Loader for work-centers. Inactive
// work-centers have no usable rate.
func (r *Repo) LoadWorkCenterRates(ctx context.Context, id int64) (costing.WorkCenterRates, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT rate_amortization, rate_labor, rate_tooling, rate_overhead
		FROM work_centers WHERE id=$1 AND active=TRUE
	`, id)
	var rates costing.WorkCenterRates
	if err := row.Scan(&rates.Amortization, &rates.Labor, &rates.Tooling, &rates.Overhead); err != nil {
		if err == pgx.ErrNoRows {
			return costing.WorkCenterRates{}, false, nil
		}
		return costing.WorkCenterRates{}, false, err
	}
	return rates, true, nil
}
