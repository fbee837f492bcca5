package domain

import "time"

// Permissions is the four-way permission set for rating operations.
// View covers the aggregate on the actor's own items, ViewAny the aggregate
// on other people's items, ViewAll individual ratings, Rate submitting.
type Permissions struct {
	View    bool
	ViewAny bool
	ViewAll bool
	Rate    bool
}

// Intersect combines a site-level and a plugin-level permission set. Each
// operation must be permitted by both sides independently.
func (p Permissions) Intersect(other Permissions) Permissions {
	return Permissions{
		View:    p.View && other.View,
		ViewAny: p.ViewAny && other.ViewAny,
		ViewAll: p.ViewAll && other.ViewAll,
		Rate:    p.Rate && other.Rate,
	}
}

// Settings bundles everything needed to evaluate and render the ratings of
// one (context, component, ratingarea) for the duration of a single call.
// Site and Plugin hold the two permission sources; Effective() is their AND.
type Settings struct {
	Scale            Scale
	Aggregation      Aggregation
	AssessTimeStart  time.Time
	AssessTimeFinish time.Time
	Site             Permissions
	Plugin           Permissions
}

// Effective returns the combined permission set.
func (s Settings) Effective() Permissions {
	return s.Site.Intersect(s.Plugin)
}
