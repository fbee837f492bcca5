// Package permission decides who may rate items and view rating aggregates.
// Every decision combines a site-level capability check with the owning
// component's callback; both must independently permit an operation.
package permission

import (
	"context"
	"time"

	"github.com/openedu/ratings/internal/component"
	"github.com/openedu/ratings/internal/domain"
)

// Site-level capability names checked against the actor in a context.
const (
	CapView    = "rating:view"
	CapViewAny = "rating:viewany"
	CapViewAll = "rating:viewall"
	CapRate    = "rating:rate"
	CapManage  = "rating:manage"
)

// CapabilityChecker answers site-level capability questions for an actor.
// The caller supplies the implementation (role tables, token claims, ...).
type CapabilityChecker interface {
	HasCapability(ctx context.Context, actorID, contextID int64, capability string) bool
}

// Gate evaluates rating permissions.
type Gate struct {
	caps     CapabilityChecker
	registry *component.Registry
}

// NewGate builds a permission gate over a capability checker and the
// component callback registry.
func NewGate(caps CapabilityChecker, registry *component.Registry) *Gate {
	return &Gate{caps: caps, registry: registry}
}

// Evaluate resolves the site and plugin permission sets for an actor in a
// (context, component, ratingarea).
func (g *Gate) Evaluate(ctx context.Context, actorID, contextID int64, comp, ratingArea string) (site, plugin domain.Permissions) {
	site = domain.Permissions{
		View:    g.caps.HasCapability(ctx, actorID, contextID, CapView),
		ViewAny: g.caps.HasCapability(ctx, actorID, contextID, CapViewAny),
		ViewAll: g.caps.HasCapability(ctx, actorID, contextID, CapViewAll),
		Rate:    g.caps.HasCapability(ctx, actorID, contextID, CapRate),
	}
	plugin = g.registry.Permissions(ctx, contextID, comp, ratingArea)
	return site, plugin
}

// CanRate reports whether the actor may rate an item. Owners cannot rate
// their own items, both permission sources must grant rate, and when an
// assessment window is configured (both bounds set) the item's creation time
// must fall inside it.
func CanRate(settings domain.Settings, ownerID int64, itemCreated time.Time, actorID int64) bool {
	if ownerID != 0 && ownerID == actorID {
		return false
	}
	if !settings.Effective().Rate {
		return false
	}
	start, finish := settings.AssessTimeStart, settings.AssessTimeFinish
	if !start.IsZero() && !finish.IsZero() &&
		(itemCreated.Before(start) || itemCreated.After(finish)) {
		return false
	}
	return true
}

// CanViewAggregate reports whether the actor may see an item's aggregate.
// ViewAny covers other people's items (and ownerless ones) but not the
// actor's own, which need View instead.
func CanViewAggregate(settings domain.Settings, ownerID, actorID int64) bool {
	effective := settings.Effective()
	if (ownerID == 0 || ownerID != actorID) && effective.ViewAny {
		return true
	}
	if ownerID != 0 && ownerID == actorID && effective.View {
		return true
	}
	return false
}
