package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openedu/ratings/internal/scale"
)

// ScalesRepository looks up named scale definitions.
type ScalesRepository struct {
	pool *pgxpool.Pool
}

// FindScale fetches a named scale record by id. The second return value is
// false when no such scale exists.
func (r *ScalesRepository) FindScale(ctx context.Context, id int64) (scale.Record, bool, error) {
	const query = `SELECT id, name, scaleitems FROM scales WHERE id = $1`

	var record scale.Record
	err := r.pool.QueryRow(ctx, query, id).Scan(&record.ID, &record.Name, &record.Labels)
	if err != nil {
		if err == pgx.ErrNoRows {
			return scale.Record{}, false, nil
		}
		return scale.Record{}, false, fmt.Errorf("find scale: %w", err)
	}
	return record, true, nil
}
