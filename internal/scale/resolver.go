// Package scale resolves scale identifiers into ordered level sets. A
// non-negative identifier is itself a numeric scale maximum; a negative one
// references a named scale stored by the persistence layer.
package scale

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openedu/ratings/internal/domain"
)

// Record is a stored named-scale definition with a comma-separated label list.
type Record struct {
	ID     int64
	Name   string
	Labels string
}

// Store looks up named scale records. Implemented by the repository; the
// second return value reports whether the record exists.
type Store interface {
	FindScale(ctx context.Context, id int64) (Record, bool, error)
}

// Resolver turns scale identifiers into domain.Scale values, memoizing each
// identifier for its own lifetime. A Resolver is scoped to one top-level
// service call: scale definitions can be edited between requests, so results
// must never be reused across them.
type Resolver struct {
	store  Store
	logger *zap.Logger
	cache  map[int]domain.Scale
}

// NewResolver builds a resolver for a single batch of work.
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger, cache: make(map[int]domain.Scale)}
}

// Resolve returns the scale for scaleID. A named scale whose record is
// missing degrades to a numeric scale with max = abs(scaleID) so that grade
// computations over orphaned scales keep working; the degradation is logged,
// not returned as an error.
func (r *Resolver) Resolve(ctx context.Context, scaleID int) (domain.Scale, error) {
	if cached, ok := r.cache[scaleID]; ok {
		return cached, nil
	}

	resolved, err := r.resolve(ctx, scaleID)
	if err != nil {
		return domain.Scale{}, err
	}
	r.cache[scaleID] = resolved
	return resolved, nil
}

func (r *Resolver) resolve(ctx context.Context, scaleID int) (domain.Scale, error) {
	if scaleID >= 0 {
		return domain.NumericScale(scaleID), nil
	}

	record, found, err := r.store.FindScale(ctx, int64(-scaleID))
	if err != nil {
		return domain.Scale{}, fmt.Errorf("resolve scale %d: %w", scaleID, err)
	}
	if !found {
		r.logger.Warn("named scale not found, falling back to numeric",
			zap.Int("scaleid", scaleID))
		fallback := domain.NumericScale(-scaleID)
		fallback.ID = scaleID
		return fallback, nil
	}

	return domain.NamedScale(scaleID, record.Name, splitLabels(record.Labels)), nil
}

func splitLabels(list string) []string {
	parts := strings.Split(list, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
