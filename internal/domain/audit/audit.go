// Package audit records freeze/unfreeze actions against batches. Entries are
// written in the same transaction as the action they describe.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Action string

const (
	ActionFreeze   Action = "freeze"
	ActionUnfreeze Action = "unfreeze"
)

type Entry struct {
	ID        int64
	BatchID   int64
	ActorID   string
	Action    Action
	Version   int64 // batch version after the action
	CreatedAt time.Time
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Insert writes one entry through the caller's transaction.
func Insert(ctx context.Context, db execer, batchID int64, actor string, action Action, version int64) error {
	_, err := db.Exec(ctx, `
		INSERT INTO batch_audit (batch_id, actor_id, action, version)
		VALUES ($1,$2,$3,$4)
	`, batchID, actor, string(action), version)
	return err
}

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) ListByBatch(ctx context.Context, batchID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, batch_id, actor_id, action, version, created_at
		FROM batch_audit WHERE batch_id=$1 ORDER BY id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.ActorID, &e.Action, &e.Version, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
