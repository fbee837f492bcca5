package domain

import "time"

// UnsetRating is the reserved value meaning "no rating" / "clear my rating".
// Submitting it removes the actor's existing rating for the item.
const UnsetRating = -999

// DefaultScale is the numeric scale used when a component does not configure one.
const DefaultScale = 5

// Rating represents a single user's vote on a single rated item.
//
// ScaleID is the scale identifier that was in effect when the rating was
// submitted. It is frozen at submission time and may differ from the scale
// currently configured for the item's component.
type Rating struct {
	ID           int64
	ContextID    int64
	Component    string
	RatingArea   string
	ItemID       int64
	ScaleID      int
	UserID       int64
	Value        int
	TimeCreated  time.Time
	TimeModified time.Time
}

// ItemRating is a rating row joined with the submitter's display name,
// as returned when listing every rating for one item.
type ItemRating struct {
	Rating
	UserName string
}

// AggregateResult is the per-item computed tuple produced by the aggregator.
// Aggregate is nil when the item has no ratings. UserRating is the requesting
// user's own rating row, nil if they have not rated the item. OwnerID is zero
// when the item has no owner; ItemCreated is zero when unknown.
type AggregateResult struct {
	ItemID      int64
	Aggregate   *float64
	Count       int64
	UserRating  *Rating
	OwnerID     int64
	ItemCreated time.Time
}

// UserGrade is one row of a grade-book computation: the aggregate of all
// ratings across the items owned by UserID.
type UserGrade struct {
	UserID   int64
	RawGrade float64
}

// Item is the adapter each integrating component implements for its rated
// entities. OwnerID returns zero for ownerless items and CreatedAt returns
// the zero time when the creation time is unknown.
type Item interface {
	ID() int64
	OwnerID() int64
	CreatedAt() time.Time
}
