// Package service orchestrates permissions, scale resolution, persistence
// and aggregation into the public rating operations.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openedu/ratings/internal/aggregate"
	"github.com/openedu/ratings/internal/component"
	"github.com/openedu/ratings/internal/domain"
	"github.com/openedu/ratings/internal/permission"
	"github.com/openedu/ratings/internal/repository"
	"github.com/openedu/ratings/internal/scale"
)

// RatingStore is the slice of the repository the service mutates and lists
// through. *repository.RatingsRepository implements it.
type RatingStore interface {
	aggregate.Store
	Upsert(ctx context.Context, params repository.UpsertParams) (domain.Rating, bool, error)
	Delete(ctx context.Context, filter repository.DeleteFilter) error
	ListForItem(ctx context.Context, contextID int64, comp, ratingArea string, itemID int64, sort repository.ListSort) ([]domain.ItemRating, error)
	Since(ctx context.Context, contextID int64, comp string, since time.Time) ([]domain.Rating, error)
}

// GradeNotifier is told when a user's grade-bearing ratings changed so an
// external grade book can recalculate. Notification failures never roll back
// the rating write.
type GradeNotifier interface {
	GradesChanged(ctx context.Context, comp string, contextID, ratedUserID int64) error
}

// Service implements the public rating operations.
type Service struct {
	ratings  RatingStore
	scales   scale.Store
	registry *component.Registry
	gate     *permission.Gate
	grades   GradeNotifier
	logger   *zap.Logger
}

// New wires a rating service. grades may be nil when no external grade book
// is configured.
func New(ratings RatingStore, scales scale.Store, registry *component.Registry, gate *permission.Gate, grades GradeNotifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ratings:  ratings,
		scales:   scales,
		registry: registry,
		gate:     gate,
		grades:   grades,
		logger:   logger,
	}
}

// SubmitRequest carries one rating submission. Rating set to
// domain.UnsetRating clears the actor's existing rating instead.
type SubmitRequest struct {
	ContextID   int64
	Component   string
	RatingArea  string
	ItemID      int64
	ScaleID     int
	Rating      int
	RatedUserID int64
	ActorID     int64
	Aggregation domain.Aggregation
}

// SubmitResult reports the outcome of a submission. Aggregate, Count and
// Display are only populated when HasAggregate is true, i.e. when the actor
// is permitted to see the recomputed aggregate.
type SubmitResult struct {
	ItemID       int64
	HasAggregate bool
	Aggregate    *float64
	Count        int64
	Display      string
}

// Submit stores or clears a rating, pings the grade notifier, and returns
// the item's recomputed aggregate when the actor may view it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	plugin := s.registry.Permissions(ctx, req.ContextID, req.Component, req.RatingArea)
	if !plugin.Rate {
		return SubmitResult{}, ErrRatePermissionDenied
	}

	valid := s.registry.Validate(ctx, component.ValidateParams{
		ContextID:   req.ContextID,
		Component:   req.Component,
		RatingArea:  req.RatingArea,
		ItemID:      req.ItemID,
		ScaleID:     req.ScaleID,
		Rating:      req.Rating,
		RatedUserID: req.RatedUserID,
		Aggregation: req.Aggregation,
	})
	if !valid {
		return SubmitResult{}, ErrRatingInvalid
	}

	key := repository.RatingKey{
		ContextID:  req.ContextID,
		Component:  req.Component,
		RatingArea: req.RatingArea,
		ItemID:     req.ItemID,
		UserID:     req.ActorID,
	}

	if req.Rating == domain.UnsetRating {
		filter := repository.DeleteFilter{
			ContextID:  req.ContextID,
			Component:  &req.Component,
			RatingArea: &req.RatingArea,
			ItemID:     &req.ItemID,
			UserID:     &req.ActorID,
		}
		if err := s.ratings.Delete(ctx, filter); err != nil {
			return SubmitResult{}, fmt.Errorf("clear rating: %w", err)
		}
	} else {
		_, _, err := s.ratings.Upsert(ctx, repository.UpsertParams{
			RatingKey: key,
			ScaleID:   req.ScaleID,
			Value:     req.Rating,
		})
		if err != nil {
			return SubmitResult{}, fmt.Errorf("store rating: %w", err)
		}
	}

	if s.grades != nil {
		if err := s.grades.GradesChanged(ctx, req.Component, req.ContextID, req.RatedUserID); err != nil {
			s.logger.Warn("grade notification failed",
				zap.String("component", req.Component),
				zap.Int64("rateduserid", req.RatedUserID),
				zap.Error(err))
		}
	}

	settings, err := s.buildSettings(ctx, req.ActorID, req.ContextID, req.Component, req.RatingArea,
		req.ScaleID, req.Aggregation, time.Time{}, time.Time{})
	if err != nil {
		return SubmitResult{}, err
	}

	aggregator := aggregate.New(s.ratings, s.logger)
	results, err := aggregator.AggregateMany(ctx, aggregate.Query{
		ContextID:  req.ContextID,
		Component:  req.Component,
		RatingArea: req.RatingArea,
		Items:      []domain.Item{ratedItem{id: req.ItemID, ownerID: req.RatedUserID}},
		ActorID:    req.ActorID,
		Settings:   settings,
	})
	if err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{ItemID: req.ItemID}
	if len(results) == 1 && permission.CanViewAggregate(settings, req.RatedUserID, req.ActorID) {
		result.HasAggregate = true
		result.Aggregate = results[0].Aggregate
		result.Count = results[0].Count
		result.Display = aggregate.DisplayValue(results[0], settings)
	}
	return result, nil
}

// ItemsQuery asks for rating decoration over a batch of a component's items.
type ItemsQuery struct {
	ContextID        int64
	Component        string
	RatingArea       string
	Items            []domain.Item
	ActorID          int64
	ScaleID          int
	Aggregation      domain.Aggregation
	AssessTimeStart  time.Time
	AssessTimeFinish time.Time
}

// RatingsFor computes per-item aggregates and the actor's own ratings for a
// batch of items. The returned settings let the caller evaluate CanRate and
// CanViewAggregate per item and render display values.
func (s *Service) RatingsFor(ctx context.Context, query ItemsQuery) ([]domain.AggregateResult, domain.Settings, error) {
	settings, err := s.buildSettings(ctx, query.ActorID, query.ContextID, query.Component, query.RatingArea,
		query.ScaleID, query.Aggregation, query.AssessTimeStart, query.AssessTimeFinish)
	if err != nil {
		return nil, domain.Settings{}, err
	}

	aggregator := aggregate.New(s.ratings, s.logger)
	results, err := aggregator.AggregateMany(ctx, aggregate.Query{
		ContextID:  query.ContextID,
		Component:  query.Component,
		RatingArea: query.RatingArea,
		Items:      query.Items,
		ActorID:    query.ActorID,
		Settings:   settings,
	})
	if err != nil {
		return nil, domain.Settings{}, err
	}
	return results, settings, nil
}

// ListForItem returns every rating for one item with submitter display
// fields. The actor needs the site view capability and a positive answer
// from the component's visibility callback. Filtering the list down to the
// actor's own row when they lack viewall is the caller's responsibility.
func (s *Service) ListForItem(ctx context.Context, contextID int64, comp, ratingArea string, itemID int64, scaleID int, actorID int64, sort repository.ListSort) ([]domain.ItemRating, error) {
	site, _ := s.gate.Evaluate(ctx, actorID, contextID, comp, ratingArea)
	canSee := s.registry.CanSeeItemRatings(ctx, component.SeeRatingsParams{
		ContextID:  contextID,
		Component:  comp,
		RatingArea: ratingArea,
		ItemID:     itemID,
		ScaleID:    scaleID,
		ActorID:    actorID,
	})
	if !site.View || !canSee {
		return nil, ErrNoViewRate
	}

	rows, err := s.ratings.ListForItem(ctx, contextID, comp, ratingArea, itemID, sort)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return rows, nil
}

// GradesQuery asks for a grade-book computation over a component's items.
// TargetUserID of zero grades every owner with rated items.
type GradesQuery struct {
	ContextID    int64
	Component    string
	RatingArea   string
	ScaleID      int
	Aggregation  domain.Aggregation
	TargetUserID int64
}

// Grades aggregates ratings into one raw grade per item owner, clamped to
// the current scale maximum.
func (s *Service) Grades(ctx context.Context, query GradesQuery) ([]domain.UserGrade, error) {
	fields := s.registry.ItemFields(query.Component, query.RatingArea)
	if fields.Table == "" {
		return nil, fmt.Errorf("component %q has no item table registered", query.Component)
	}

	resolver := scale.NewResolver(s.scales, s.logger)
	scl, err := resolver.Resolve(ctx, query.ScaleID)
	if err != nil {
		return nil, err
	}

	aggregator := aggregate.New(s.ratings, s.logger)
	return aggregator.GradeUsers(ctx, aggregate.GradeQuery{
		ItemTable:    fields.Table,
		IDColumn:     fields.IDColumn,
		OwnerColumn:  fields.OwnerColumn,
		ContextID:    query.ContextID,
		Component:    query.Component,
		RatingArea:   query.RatingArea,
		Aggregation:  query.Aggregation,
		TargetUserID: query.TargetUserID,
	}, scl)
}

// Purge deletes every rating matching the filter. The context id is
// mandatory; deleting nothing is a successful no-op.
func (s *Service) Purge(ctx context.Context, filter repository.DeleteFilter) error {
	if filter.ContextID == 0 {
		return ErrContextRequired
	}
	return s.ratings.Delete(ctx, filter)
}

// RatingsSince lists ratings in a context and component touched after the
// given time, filtered by the per-area plugin permissions: the actor keeps a
// row if it is their own and the area grants view, or if the area grants
// viewany or viewall.
func (s *Service) RatingsSince(ctx context.Context, contextID int64, comp string, since time.Time, actorID int64) ([]domain.Rating, error) {
	rows, err := s.ratings.Since(ctx, contextID, comp, since)
	if err != nil {
		return nil, err
	}

	perms := make(map[string]domain.Permissions)
	var visible []domain.Rating
	for _, row := range rows {
		p, ok := perms[row.RatingArea]
		if !ok {
			p = s.registry.Permissions(ctx, contextID, comp, row.RatingArea)
			perms[row.RatingArea] = p
		}
		if (p.View && row.UserID == actorID) || p.ViewAny || p.ViewAll {
			visible = append(visible, row)
		}
	}
	return visible, nil
}

func (s *Service) buildSettings(ctx context.Context, actorID, contextID int64, comp, ratingArea string, scaleID int, agg domain.Aggregation, start, finish time.Time) (domain.Settings, error) {
	resolver := scale.NewResolver(s.scales, s.logger)
	scl, err := resolver.Resolve(ctx, scaleID)
	if err != nil {
		return domain.Settings{}, err
	}

	site, plugin := s.gate.Evaluate(ctx, actorID, contextID, comp, ratingArea)
	return domain.Settings{
		Scale:            scl,
		Aggregation:      agg,
		AssessTimeStart:  start,
		AssessTimeFinish: finish,
		Site:             site,
		Plugin:           plugin,
	}, nil
}

// ratedItem adapts a bare submission to the Item interface; the submission
// carries no creation time.
type ratedItem struct {
	id      int64
	ownerID int64
}

func (r ratedItem) ID() int64            { return r.id }
func (r ratedItem) OwnerID() int64       { return r.ownerID }
func (r ratedItem) CreatedAt() time.Time { return time.Time{} }
