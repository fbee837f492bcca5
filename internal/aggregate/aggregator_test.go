package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/openedu/ratings/internal/domain"
)

type testItem struct {
	id      int64
	ownerID int64
	created time.Time
}

func (i testItem) ID() int64            { return i.id }
func (i testItem) OwnerID() int64       { return i.ownerID }
func (i testItem) CreatedAt() time.Time { return i.created }

// fakeStore reduces its rating rows in memory the way the SQL layer would.
type fakeStore struct {
	ratings []domain.Rating
	grades  []domain.UserGrade
}

func (f *fakeStore) UserRatings(ctx context.Context, contextID int64, comp, ratingArea string, itemIDs []int64, userID int64) ([]domain.Rating, error) {
	var rows []domain.Rating
	for _, r := range f.ratings {
		if r.UserID != userID || r.ContextID != contextID {
			continue
		}
		for _, id := range itemIDs {
			if r.ItemID == id {
				rows = append(rows, r)
			}
		}
	}
	return rows, nil
}

func (f *fakeStore) ItemAggregates(ctx context.Context, contextID int64, comp, ratingArea string, itemIDs []int64, method domain.Aggregation) (map[int64]ItemAggregate, error) {
	results := make(map[int64]ItemAggregate)
	for _, id := range itemIDs {
		var values []int
		for _, r := range f.ratings {
			if r.ItemID == id && r.ContextID == contextID {
				values = append(values, r.Value)
			}
		}
		if len(values) == 0 {
			continue
		}
		results[id] = ItemAggregate{Value: reduce(values, method), Count: int64(len(values))}
	}
	return results, nil
}

func (f *fakeStore) GradeByOwner(ctx context.Context, query GradeQuery) ([]domain.UserGrade, error) {
	return f.grades, nil
}

func reduce(values []int, method domain.Aggregation) float64 {
	switch method {
	case domain.AggregateCount:
		return float64(len(values))
	case domain.AggregateMaximum:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return float64(max)
	case domain.AggregateMinimum:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return float64(min)
	case domain.AggregateSum:
		sum := 0
		for _, v := range values {
			sum += v
		}
		return float64(sum)
	default:
		sum := 0
		for _, v := range values {
			sum += v
		}
		return float64(sum) / float64(len(values))
	}
}

func ratingsFor(itemID int64, values ...int) []domain.Rating {
	rows := make([]domain.Rating, 0, len(values))
	for i, v := range values {
		rows = append(rows, domain.Rating{
			ID:        int64(i + 1),
			ContextID: 1,
			ItemID:    itemID,
			UserID:    int64(100 + i),
			Value:     v,
			ScaleID:   5,
		})
	}
	return rows
}

func settingsFor(scale domain.Scale, method domain.Aggregation) domain.Settings {
	return domain.Settings{Scale: scale, Aggregation: method}
}

func TestAggregateManyMethods(t *testing.T) {
	tests := []struct {
		name   string
		method domain.Aggregation
		want   float64
	}{
		{"average", domain.AggregateAverage, 10.0 / 3.0},
		{"count", domain.AggregateCount, 3},
		{"maximum", domain.AggregateMaximum, 4},
		{"minimum", domain.AggregateMinimum, 2},
		{"sum", domain.AggregateSum, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{ratings: ratingsFor(11, 2, 4, 4)}
			aggregator := New(store, nil)

			results, err := aggregator.AggregateMany(context.Background(), Query{
				ContextID: 1,
				Items:     []domain.Item{testItem{id: 11, ownerID: 9}},
				ActorID:   100,
				Settings:  settingsFor(domain.NumericScale(5), tt.method),
			})
			if err != nil {
				t.Fatalf("AggregateMany: %v", err)
			}
			if len(results) != 1 {
				t.Fatalf("results = %d, want 1", len(results))
			}
			if results[0].Aggregate == nil {
				t.Fatalf("aggregate missing")
			}
			if got := *results[0].Aggregate; got != tt.want {
				t.Fatalf("aggregate = %v, want %v", got, tt.want)
			}
			if results[0].Count != 3 {
				t.Fatalf("count = %d, want 3", results[0].Count)
			}
		})
	}
}

func TestAggregateManyNoneDisablesRatings(t *testing.T) {
	store := &fakeStore{ratings: ratingsFor(11, 2, 4)}
	aggregator := New(store, nil)

	results, err := aggregator.AggregateMany(context.Background(), Query{
		ContextID: 1,
		Items:     []domain.Item{testItem{id: 11}},
		Settings:  settingsFor(domain.NumericScale(5), domain.AggregateNone),
	})
	if err != nil {
		t.Fatalf("AggregateMany: %v", err)
	}
	if results != nil {
		t.Fatalf("results = %v, want none when ratings are disabled", results)
	}
}

func TestAggregateManyClampsToCurrentScaleMax(t *testing.T) {
	// Ratings issued on a 0..10 scale, scale since shrunk to 0..5.
	store := &fakeStore{ratings: ratingsFor(11, 8, 9)}
	aggregator := New(store, nil)

	results, err := aggregator.AggregateMany(context.Background(), Query{
		ContextID: 1,
		Items:     []domain.Item{testItem{id: 11, ownerID: 9}},
		ActorID:   100,
		Settings:  settingsFor(domain.NumericScale(5), domain.AggregateMaximum),
	})
	if err != nil {
		t.Fatalf("AggregateMany: %v", err)
	}
	if got := *results[0].Aggregate; got != 5 {
		t.Fatalf("aggregate = %v, want clamped to 5", got)
	}
	if results[0].UserRating == nil {
		t.Fatalf("expected actor's own rating")
	}
	if got := results[0].UserRating.Value; got != 5 {
		t.Fatalf("user rating = %d, want clamped to 5", got)
	}
}

func TestAggregateManyUnratedItem(t *testing.T) {
	store := &fakeStore{ratings: ratingsFor(11, 3)}
	aggregator := New(store, nil)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	results, err := aggregator.AggregateMany(context.Background(), Query{
		ContextID: 1,
		Items: []domain.Item{
			testItem{id: 11, ownerID: 9},
			testItem{id: 12, ownerID: 8, created: created},
		},
		ActorID:  200,
		Settings: settingsFor(domain.NumericScale(5), domain.AggregateAverage),
	})
	if err != nil {
		t.Fatalf("AggregateMany: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	unrated := results[1]
	if unrated.Aggregate != nil {
		t.Fatalf("aggregate = %v, want nil for unrated item", *unrated.Aggregate)
	}
	if unrated.Count != 0 {
		t.Fatalf("count = %d, want 0", unrated.Count)
	}
	if unrated.UserRating != nil {
		t.Fatalf("user rating should be nil")
	}
	if unrated.OwnerID != 8 || !unrated.ItemCreated.Equal(created) {
		t.Fatalf("item metadata not carried through: %+v", unrated)
	}
}

func TestGradeUsersClampsRawGrades(t *testing.T) {
	store := &fakeStore{grades: []domain.UserGrade{
		{UserID: 1, RawGrade: 12},
		{UserID: 2, RawGrade: 3.5},
	}}
	aggregator := New(store, nil)

	grades, err := aggregator.GradeUsers(context.Background(), GradeQuery{
		Aggregation: domain.AggregateSum,
	}, domain.NumericScale(5))
	if err != nil {
		t.Fatalf("GradeUsers: %v", err)
	}
	if grades[0].RawGrade != 5 {
		t.Fatalf("grade = %v, want clamped to 5 (full credit)", grades[0].RawGrade)
	}
	if grades[1].RawGrade != 3.5 {
		t.Fatalf("grade = %v, want unchanged", grades[1].RawGrade)
	}
}

func TestGradeUsersOrphanedScaleLeftUnclamped(t *testing.T) {
	store := &fakeStore{grades: []domain.UserGrade{{UserID: 1, RawGrade: 12}}}
	aggregator := New(store, nil)

	// A fallback scale for a deleted named scale: negative id, numeric.
	orphan := domain.NumericScale(3)
	orphan.ID = -3

	grades, err := aggregator.GradeUsers(context.Background(), GradeQuery{}, orphan)
	if err != nil {
		t.Fatalf("GradeUsers: %v", err)
	}
	if grades[0].RawGrade != 12 {
		t.Fatalf("grade = %v, want left unclamped for orphaned scale", grades[0].RawGrade)
	}
}
