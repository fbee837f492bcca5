// Package aggregate computes per-item rating aggregates and per-user grades.
package aggregate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openedu/ratings/internal/domain"
)

// ItemAggregate is the reduced value and row count for one item, as computed
// by the persistence layer with the chosen SQL aggregate function.
type ItemAggregate struct {
	Value float64
	Count int64
}

// GradeQuery describes a grade-book computation across the items a component
// stores in ItemTable. TargetUserID restricts the result to one item owner;
// zero computes a grade for every owner with rated items.
type GradeQuery struct {
	ItemTable    string
	IDColumn     string
	OwnerColumn  string
	ContextID    int64
	Component    string
	RatingArea   string
	Aggregation  domain.Aggregation
	TargetUserID int64
}

// Store is the slice of the rating repository the aggregator reads from.
type Store interface {
	UserRatings(ctx context.Context, contextID int64, component, ratingArea string, itemIDs []int64, userID int64) ([]domain.Rating, error)
	ItemAggregates(ctx context.Context, contextID int64, component, ratingArea string, itemIDs []int64, method domain.Aggregation) (map[int64]ItemAggregate, error)
	GradeByOwner(ctx context.Context, query GradeQuery) ([]domain.UserGrade, error)
}

// Query is one batch aggregation request.
type Query struct {
	ContextID  int64
	Component  string
	RatingArea string
	Items      []domain.Item
	ActorID    int64
	Settings   domain.Settings
}

// Aggregator joins per-user ratings and grouped aggregates onto item batches.
type Aggregator struct {
	store  Store
	logger *zap.Logger
}

// New builds an aggregator over a rating store.
func New(store Store, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{store: store, logger: logger}
}

// AggregateMany produces one AggregateResult per item in the query. With
// AggregateNone ratings are disabled and no results are produced. Both the
// actor's own rating value and the group aggregate are clamped to the
// current scale maximum; stored history is never mutated.
func (a *Aggregator) AggregateMany(ctx context.Context, query Query) ([]domain.AggregateResult, error) {
	if query.Settings.Aggregation == domain.AggregateNone || len(query.Items) == 0 {
		return nil, nil
	}
	if !query.Settings.Aggregation.Valid() {
		a.logger.Warn("unknown aggregation method, defaulting to average",
			zap.Int("method", int(query.Settings.Aggregation)))
	}

	itemIDs := make([]int64, len(query.Items))
	for i, item := range query.Items {
		itemIDs[i] = item.ID()
	}

	userRatings, err := a.store.UserRatings(ctx, query.ContextID, query.Component, query.RatingArea, itemIDs, query.ActorID)
	if err != nil {
		return nil, fmt.Errorf("load user ratings: %w", err)
	}
	byItem := make(map[int64]domain.Rating, len(userRatings))
	for _, rating := range userRatings {
		byItem[rating.ItemID] = rating
	}

	aggregates, err := a.store.ItemAggregates(ctx, query.ContextID, query.Component, query.RatingArea, itemIDs, query.Settings.Aggregation)
	if err != nil {
		return nil, fmt.Errorf("load item aggregates: %w", err)
	}

	scale := query.Settings.Scale
	results := make([]domain.AggregateResult, 0, len(query.Items))
	for _, item := range query.Items {
		result := domain.AggregateResult{
			ItemID:      item.ID(),
			OwnerID:     item.OwnerID(),
			ItemCreated: item.CreatedAt(),
		}

		if rating, ok := byItem[item.ID()]; ok {
			rating.Value = scale.ClampInt(rating.Value)
			result.UserRating = &rating
		}

		if agg, ok := aggregates[item.ID()]; ok {
			clamped := scale.Clamp(agg.Value)
			result.Aggregate = &clamped
			result.Count = agg.Count
		}

		results = append(results, result)
	}
	return results, nil
}

// GradeUsers aggregates ratings across all items owned by each user and
// clamps the raw grade to the scale maximum. SUM and COUNT can exceed the
// scale; exceeding it means full credit, not an error. An orphaned named
// scale is reported but leaves grades unclamped, matching historical
// grade-book output.
func (a *Aggregator) GradeUsers(ctx context.Context, query GradeQuery, scale domain.Scale) ([]domain.UserGrade, error) {
	grades, err := a.store.GradeByOwner(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("grade by owner: %w", err)
	}

	if scale.ID < 0 && scale.IsNumeric {
		a.logger.Warn("grading against a scale that no longer exists", zap.Int("scaleid", scale.ID))
		return grades, nil
	}

	max := float64(scale.Max)
	for i := range grades {
		if grades[i].RawGrade > max {
			grades[i].RawGrade = max
		}
	}
	return grades, nil
}
