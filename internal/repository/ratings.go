package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openedu/ratings/internal/aggregate"
	"github.com/openedu/ratings/internal/domain"
)

// RatingsRepository provides persistence helpers for rating rows.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

const ratingColumns = `
    id,
    contextid,
    component,
    ratingarea,
    itemid,
    scaleid,
    userid,
    rating,
    timecreated,
    timemodified
`

// RatingKey identifies the unique rating row for one user on one item.
type RatingKey struct {
	ContextID  int64
	Component  string
	RatingArea string
	ItemID     int64
	UserID     int64
}

// UpsertParams captures the payload required to upsert a rating.
type UpsertParams struct {
	RatingKey
	ScaleID int
	Value   int
}

// DeleteFilter selects rating rows for deletion. ContextID is mandatory;
// the remaining fields are optional AND-combined predicates.
type DeleteFilter struct {
	ContextID  int64
	RatingID   *int64
	UserID     *int64
	ItemID     *int64
	Component  *string
	RatingArea *string
}

// ListSort selects the ordering of an item's rating list.
type ListSort string

const (
	SortByName  ListSort = "name"
	SortByValue ListSort = "value"
	SortByTime  ListSort = "time"
)

// Upsert inserts or updates a rating and indicates whether it was newly
// created. The unique constraint makes concurrent submissions by the same
// user collapse into a single atomic insert-or-update.
func (r *RatingsRepository) Upsert(ctx context.Context, params UpsertParams) (domain.Rating, bool, error) {
	query := fmt.Sprintf(`
        INSERT INTO ratings (contextid, component, ratingarea, itemid, scaleid, userid, rating)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (contextid, component, ratingarea, itemid, userid)
        DO UPDATE SET rating = EXCLUDED.rating, scaleid = EXCLUDED.scaleid, timemodified = now()
        RETURNING %s, (xmax = 0) AS inserted
    `, ratingColumns)

	row := r.pool.QueryRow(ctx, query,
		params.ContextID, params.Component, params.RatingArea,
		params.ItemID, params.ScaleID, params.UserID, params.Value)

	var rating domain.Rating
	var inserted bool
	if err := scanRating(row, &rating, &inserted); err != nil {
		return domain.Rating{}, false, fmt.Errorf("upsert rating: %w", err)
	}
	return rating, inserted, nil
}

// FindUserRating retrieves the rating a user gave an item, if any.
func (r *RatingsRepository) FindUserRating(ctx context.Context, key RatingKey) (domain.Rating, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ratings
        WHERE contextid = $1 AND component = $2 AND ratingarea = $3 AND itemid = $4 AND userid = $5
    `, ratingColumns)

	var rating domain.Rating
	err := scanRating(r.pool.QueryRow(ctx, query,
		key.ContextID, key.Component, key.RatingArea, key.ItemID, key.UserID), &rating)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// Delete removes every rating matching the filter. Deleting nothing is not
// an error.
func (r *RatingsRepository) Delete(ctx context.Context, filter DeleteFilter) error {
	where := []string{"contextid = $1"}
	args := []interface{}{filter.ContextID}
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RatingID != nil {
		where = append(where, "id = "+arg(*filter.RatingID))
	}
	if filter.UserID != nil {
		where = append(where, "userid = "+arg(*filter.UserID))
	}
	if filter.ItemID != nil {
		where = append(where, "itemid = "+arg(*filter.ItemID))
	}
	if filter.Component != nil {
		where = append(where, "component = "+arg(*filter.Component))
	}
	if filter.RatingArea != nil {
		where = append(where, "ratingarea = "+arg(*filter.RatingArea))
	}

	query := "DELETE FROM ratings WHERE " + strings.Join(where, " AND ")
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete ratings: %w", err)
	}
	return nil
}

// UserRatings fetches one user's rating rows across a batch of items.
func (r *RatingsRepository) UserRatings(ctx context.Context, contextID int64, component, ratingArea string, itemIDs []int64, userID int64) ([]domain.Rating, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ratings
        WHERE userid = $1 AND contextid = $2 AND component = $3 AND ratingarea = $4 AND itemid = ANY($5)
        ORDER BY itemid
    `, ratingColumns)

	rows, err := r.pool.Query(ctx, query, userID, contextID, component, ratingArea, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("user ratings: %w", err)
	}
	defer rows.Close()

	var results []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := scanRating(rows, &rating); err != nil {
			return nil, err
		}
		results = append(results, rating)
	}
	return results, rows.Err()
}

// ItemAggregates reduces all users' ratings per item with the requested
// aggregation function, alongside a row count per item.
func (r *RatingsRepository) ItemAggregates(ctx context.Context, contextID int64, component, ratingArea string, itemIDs []int64, method domain.Aggregation) (map[int64]aggregate.ItemAggregate, error) {
	query := fmt.Sprintf(`
        SELECT itemid, %s(rating)::float8 AS aggrrating, COUNT(rating) AS numratings
        FROM ratings
        WHERE contextid = $1 AND component = $2 AND ratingarea = $3 AND itemid = ANY($4)
        GROUP BY itemid
        ORDER BY itemid
    `, method.SQLFunc())

	rows, err := r.pool.Query(ctx, query, contextID, component, ratingArea, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("item aggregates: %w", err)
	}
	defer rows.Close()

	results := make(map[int64]aggregate.ItemAggregate)
	for rows.Next() {
		var itemID int64
		var agg aggregate.ItemAggregate
		if err := rows.Scan(&itemID, &agg.Value, &agg.Count); err != nil {
			return nil, err
		}
		results[itemID] = agg
	}
	return results, rows.Err()
}

// GradeByOwner aggregates ratings across all items each user owns in the
// component's item table. The table and column names come from the
// compiled-in component registry, not request input; they are still quoted.
func (r *RatingsRepository) GradeByOwner(ctx context.Context, query aggregate.GradeQuery) ([]domain.UserGrade, error) {
	if query.ItemTable == "" {
		return nil, fmt.Errorf("grade by owner: component has no item table")
	}
	idCol := query.IDColumn
	if idCol == "" {
		idCol = "id"
	}

	owner := pgx.Identifier{query.OwnerColumn}.Sanitize()
	sql := fmt.Sprintf(`
        SELECT i.%s AS userid, %s(r.rating)::float8 AS rawgrade
        FROM %s i
        JOIN ratings r ON r.itemid = i.%s
        WHERE r.contextid = $1 AND r.component = $2 AND r.ratingarea = $3
    `, owner, query.Aggregation.SQLFunc(), pgx.Identifier{query.ItemTable}.Sanitize(), pgx.Identifier{idCol}.Sanitize())

	args := []interface{}{query.ContextID, query.Component, query.RatingArea}
	if query.TargetUserID != 0 {
		args = append(args, query.TargetUserID)
		sql += fmt.Sprintf(" AND i.%s = $4", owner)
	}
	sql += fmt.Sprintf(" GROUP BY i.%s ORDER BY i.%s", owner, owner)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("grade by owner: %w", err)
	}
	defer rows.Close()

	var grades []domain.UserGrade
	for rows.Next() {
		var grade domain.UserGrade
		if err := rows.Scan(&grade.UserID, &grade.RawGrade); err != nil {
			return nil, err
		}
		grades = append(grades, grade)
	}
	return grades, rows.Err()
}

// ListForItem returns every rating for one item joined with the submitter's
// display name, ordered by the requested sort key.
func (r *RatingsRepository) ListForItem(ctx context.Context, contextID int64, component, ratingArea string, itemID int64, sort ListSort) ([]domain.ItemRating, error) {
	var orderBy string
	switch sort {
	case SortByName:
		orderBy = "u.name ASC"
	case SortByValue:
		orderBy = "r.rating ASC"
	default:
		orderBy = "r.timemodified ASC"
	}

	query := fmt.Sprintf(`
        SELECT r.id, r.contextid, r.component, r.ratingarea, r.itemid, r.scaleid, r.userid,
               r.rating, r.timecreated, r.timemodified, COALESCE(u.name, '')
        FROM ratings r
        LEFT JOIN users u ON r.userid = u.id
        WHERE r.contextid = $1 AND r.component = $2 AND r.ratingarea = $3 AND r.itemid = $4
        ORDER BY %s
    `, orderBy)

	rows, err := r.pool.Query(ctx, query, contextID, component, ratingArea, itemID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var results []domain.ItemRating
	for rows.Next() {
		var row domain.ItemRating
		err := rows.Scan(
			&row.ID, &row.ContextID, &row.Component, &row.RatingArea, &row.ItemID,
			&row.ScaleID, &row.UserID, &row.Value, &row.TimeCreated, &row.TimeModified,
			&row.UserName,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// Since returns ratings in a context and component created or modified after
// the given time.
func (r *RatingsRepository) Since(ctx context.Context, contextID int64, component string, since time.Time) ([]domain.Rating, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ratings
        WHERE contextid = $1 AND component = $2 AND (timecreated > $3 OR timemodified > $3)
        ORDER BY id
    `, ratingColumns)

	rows, err := r.pool.Query(ctx, query, contextID, component, since)
	if err != nil {
		return nil, fmt.Errorf("ratings since: %w", err)
	}
	defer rows.Close()

	var results []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := scanRating(rows, &rating); err != nil {
			return nil, err
		}
		results = append(results, rating)
	}
	return results, rows.Err()
}

func scanRating(row pgx.Row, rating *domain.Rating, extra ...interface{}) error {
	dest := []interface{}{
		&rating.ID,
		&rating.ContextID,
		&rating.Component,
		&rating.RatingArea,
		&rating.ItemID,
		&rating.ScaleID,
		&rating.UserID,
		&rating.Value,
		&rating.TimeCreated,
		&rating.TimeModified,
	}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}
