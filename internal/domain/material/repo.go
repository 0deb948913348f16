package material

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

func (r *Repo) CreateCategory(ctx context.Context, mat, shape string) (*Category, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO material_categories (material, shape) VALUES ($1,$2)
		ON CONFLICT (material, shape) DO NOTHING
		RETURNING id, material, shape, active, created_at
	`, mat, shape)
	var c Category
	err := row.Scan(&c.ID, &c.Material, &c.Shape, &c.Active, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return r.GetCategory(ctx, mat, shape)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetCategory(ctx context.Context, mat, shape string) (*Category, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, material, shape, active, created_at
		FROM material_categories WHERE material=$1 AND shape=$2
	`, mat, shape)
	var c Category
	if err := row.Scan(&c.ID, &c.Material, &c.Shape, &c.Active, &c.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetCategoryByID(ctx context.Context, id int64) (*Category, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, material, shape, active, created_at
		FROM material_categories WHERE id=$1
	`, id)
	var c Category
	if err := row.Scan(&c.ID, &c.Material, &c.Shape, &c.Active, &c.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, material, shape, active, created_at
		FROM material_categories ORDER BY material, shape
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Material, &c.Shape, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceTiers swaps the full band set of a category atomically and
// invalidates the cached entry before commit.
func (r *Repo) ReplaceTiers(ctx context.Context, categoryID int64, tiers []Tier) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM material_price_tiers WHERE category_id=$1`, categoryID); err != nil {
		return err
	}
	for _, t := range tiers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO material_price_tiers (category_id, min_weight_kg, max_weight_kg, price_per_kg)
			VALUES ($1,$2,$3,$4)
		`, categoryID, t.MinWeightKg, t.MaxWeightKg, t.PricePerKg); err != nil {
			return err
		}
	}

	r.inv.Invalidate(refcache.KindMaterial, categoryID)
	return tx.Commit(ctx)
}

func (r *Repo) Tiers(ctx context.Context, categoryID int64) ([]Tier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, category_id, min_weight_kg, max_weight_kg, price_per_kg
		FROM material_price_tiers
		WHERE category_id=$1
		ORDER BY min_weight_kg
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tier
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.ID, &t.CategoryID, &t.MinWeightKg, &t.MaxWeightKg, &t.PricePerKg); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LoadMaterialTiers implements refcache.Loader for material price bands.
func (r *Repo) LoadMaterialTiers(ctx context.Context, categoryID int64) ([]costing.PriceTier, error) {
	tiers, err := r.Tiers(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	out := make([]costing.PriceTier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, costing.PriceTier{
			MinWeightKg: t.MinWeightKg,
			MaxWeightKg: t.MaxWeightKg,
			PricePerKg:  t.PricePerKg,
		})
	}
	return out, nil
}
