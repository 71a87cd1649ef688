package fulfillment

import (
	"context"
	"time"

	"github.com/campuseats/canteen/internal/domain"
)

// Catalog is the read-only gateway to menu data. Implementations return
// (nil, nil) for unknown items, mirroring the repository convention used
// across the services.
type Catalog interface {
	MenuItem(ctx context.Context, id string) (*domain.MenuItem, error)
}

// itemResolver caches catalog lookups for the duration of one placement so
// the prediction pass and the commit pass see the same menu snapshot even
// if the catalog changes mid-flight.
type itemResolver struct {
	catalog Catalog
	cache   map[string]*domain.MenuItem
}

func newItemResolver(catalog Catalog) *itemResolver {
	return &itemResolver{catalog: catalog, cache: make(map[string]*domain.MenuItem)}
}

func (r *itemResolver) resolve(ctx context.Context, id string) (*domain.MenuItem, error) {
	if item, ok := r.cache[id]; ok {
		return item, nil
	}
	item, err := r.catalog.MenuItem(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache[id] = item
	return item, nil
}

// prepTime is the total preparation time for a set of resolved lines:
// Σ(unit prep minutes × quantity). The model is deliberately linear, one
// kitchen bottleneck and no parallel stations, so the prediction is never
// sooner than a single cook could achieve. An all-zero-prep order adds
// nothing and picks up at the queue-free instant.
func prepTime(items []*domain.MenuItem, quantities []int) time.Duration {
	var minutes int
	for i, item := range items {
		minutes += item.PrepTimeMinutes * quantities[i]
	}
	return time.Duration(minutes) * time.Minute
}
