package license

import (
	"context"
	"fmt"
	"strings"
)

// installFetcher is the slice of Client the resolver needs.
type installFetcher interface {
	GetInstall(ctx context.Context, installID string) (Install, error)
	GetPlan(ctx context.Context, planID string) (Plan, error)
}

// Resolver resolves install IDs to license entries, caching positive results.
type Resolver struct {
	client installFetcher
	cache  *Cache
}

func NewResolver(client *Client, cache *Cache) *Resolver {
	return &Resolver{client: client, cache: cache}
}

// Resolve returns the license entry for an install, fetching install and plan
// details from the licensing backend on cache miss.
func (r *Resolver) Resolve(ctx context.Context, installID string) (Entry, error) {
	if entry, ok := r.cache.Get(installID); ok {
		return entry, nil
	}

	install, err := r.client.GetInstall(ctx, installID)
	if err != nil {
		return Entry{}, fmt.Errorf("resolve install %s: %w", installID, err)
	}
	plan, err := r.client.GetPlan(ctx, install.PlanID.String())
	if err != nil {
		return Entry{}, fmt.Errorf("resolve plan for install %s: %w", installID, err)
	}

	entry := Entry{
		License: License{
			InstallID: installID,
			SiteURL:   install.URL,
			PlanName:  strings.ToLower(plan.Name),
		},
		SecretKey: install.SecretKey,
	}
	r.cache.Put(installID, entry)
	return entry, nil
}

// Invalidate evicts a cached entry, forcing the next Resolve to refetch.
func (r *Resolver) Invalidate(installID string) {
	r.cache.Delete(installID)
}
