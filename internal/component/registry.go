// Package component holds the callback registry through which integrating
// components (forum posts, glossary entries, ...) customise rating behaviour.
// Dynamic callback lookup is replaced with explicit registration at wiring
// time; anything not registered resolves to a fail-closed default.
package component

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openedu/ratings/internal/domain"
)

// ItemFields describes where a component stores its rated items. Table is
// empty when the component has no queryable item table.
type ItemFields struct {
	Table       string
	IDColumn    string
	OwnerColumn string
}

// DefaultItemFields is assumed for components without an ItemFields callback.
var DefaultItemFields = ItemFields{IDColumn: "id", OwnerColumn: "userid"}

// ValidateParams is the submission payload handed to a component's validator.
type ValidateParams struct {
	ContextID   int64
	Component   string
	RatingArea  string
	ItemID      int64
	ScaleID     int
	Rating      int
	RatedUserID int64
	Aggregation domain.Aggregation
}

// SeeRatingsParams identifies the item whose individual ratings the actor
// wants to list.
type SeeRatingsParams struct {
	ContextID  int64
	Component  string
	RatingArea string
	ItemID     int64
	ScaleID    int
	ActorID    int64
}

// Callbacks is the surface a component may implement. Nil members fall back
// to the documented defaults: deny permissions, reject validation, hide
// individual ratings.
type Callbacks struct {
	ItemFields        func(ratingArea string) ItemFields
	Permissions       func(ctx context.Context, contextID int64, component, ratingArea string) domain.Permissions
	Validate          func(ctx context.Context, params ValidateParams) bool
	CanSeeItemRatings func(ctx context.Context, params SeeRatingsParams) bool
}

// Registry maps component names to their callbacks. Safe for concurrent use;
// registration normally happens once at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Callbacks
	logger  *zap.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{entries: make(map[string]Callbacks), logger: logger}
}

// Register installs the callbacks for a component, replacing any previous set.
func (r *Registry) Register(component string, callbacks Callbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[component] = callbacks
}

func (r *Registry) lookup(component string) (Callbacks, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.entries[component]
	return cb, ok
}

// ItemFields resolves the item table description for a component.
func (r *Registry) ItemFields(component, ratingArea string) ItemFields {
	cb, ok := r.lookup(component)
	if !ok || cb.ItemFields == nil {
		return DefaultItemFields
	}
	fields := cb.ItemFields(ratingArea)
	if fields.IDColumn == "" {
		fields.IDColumn = DefaultItemFields.IDColumn
	}
	if fields.OwnerColumn == "" {
		fields.OwnerColumn = DefaultItemFields.OwnerColumn
	}
	return fields
}

// Permissions asks the component for its rating permissions. Components
// without a callback deny everything.
func (r *Registry) Permissions(ctx context.Context, contextID int64, component, ratingArea string) domain.Permissions {
	cb, ok := r.lookup(component)
	if !ok || cb.Permissions == nil {
		r.logger.Warn("no permissions callback registered, denying all",
			zap.String("component", component), zap.String("ratingarea", ratingArea))
		return domain.Permissions{}
	}
	return cb.Permissions(ctx, contextID, component, ratingArea)
}

// Validate runs the component's structural validation over a submission.
// A missing validator rejects the submission.
func (r *Registry) Validate(ctx context.Context, params ValidateParams) bool {
	cb, ok := r.lookup(params.Component)
	if !ok || cb.Validate == nil {
		r.logger.Warn("no rating validation callback registered",
			zap.String("component", params.Component))
		return false
	}
	return cb.Validate(ctx, params)
}

// CanSeeItemRatings reports whether the actor may list an item's individual
// ratings. Absent callbacks deny.
func (r *Registry) CanSeeItemRatings(ctx context.Context, params SeeRatingsParams) bool {
	cb, ok := r.lookup(params.Component)
	if !ok || cb.CanSeeItemRatings == nil {
		return false
	}
	return cb.CanSeeItemRatings(ctx, params)
}
