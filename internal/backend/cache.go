// internal/backend/cache.go
package backend

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/docucontrol/tramites-portal/internal/models"
)

var (
	procedureCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tramites_procedure_cache_hits_total",
		Help: "Procedure lookups served from the cache.",
	})
	procedureCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tramites_procedure_cache_misses_total",
		Help: "Procedure lookups forwarded to the backend.",
	})
)

// ProcedureSource is the uncached lookup, normally *Client.
type ProcedureSource interface {
	GetProcedure(ctx context.Context, id string) models.Result[*models.ProcedureDefinition]
}

// CachedCatalog keeps successful procedure lookups for a while. Failures are
// never cached so a retry reaches the backend again.
type CachedCatalog struct {
	source ProcedureSource
	cache  *expirable.LRU[string, *models.ProcedureDefinition]
}

func NewCachedCatalog(source ProcedureSource, size int, ttl time.Duration) *CachedCatalog {
	if size <= 0 {
		size = 128
	}
	return &CachedCatalog{
		source: source,
		cache:  expirable.NewLRU[string, *models.ProcedureDefinition](size, nil, ttl),
	}
}

func (c *CachedCatalog) GetProcedure(ctx context.Context, id string) models.Result[*models.ProcedureDefinition] {
	if p, ok := c.cache.Get(id); ok {
		procedureCacheHits.Inc()
		return models.Ok(p)
	}
	procedureCacheMisses.Inc()

	res := c.source.GetProcedure(ctx, id)
	if res.Success && res.Data != nil {
		c.cache.Add(id, res.Data)
	}
	return res
}

// Invalidate drops one procedure from the cache.
func (c *CachedCatalog) Invalidate(id string) {
	c.cache.Remove(id)
}

func (c *CachedCatalog) Len() int {
	return c.cache.Len()
}
