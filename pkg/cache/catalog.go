// Package cache keeps the OpenRouter model catalog close to the gateway: an
// in-process LRU in front of a shared Redis copy in front of the API.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/abdhe/openrouter-go/pkg/metrics"
	"github.com/abdhe/openrouter-go/pkg/openrouter"
)

// modelPrefix namespaces single-model entries in the in-process LRU.
const modelPrefix = "openrouter:model:"

// ErrModelNotFound is returned by Catalog.Model for unknown ids.
var ErrModelNotFound = errors.New("cache: model not found")

// ModelLister fetches the catalog. *openrouter.Client satisfies it.
type ModelLister interface {
	ListModels(ctx context.Context) (*openrouter.ListModelsResponse, error)
}

type entry struct {
	catalog *openrouter.ListModelsResponse
	model   openrouter.Model
	expires time.Time
}

// Catalog serves the model catalog from memory, then Redis, then the API.
type Catalog struct {
	lister ModelLister
	redis  *RedisCache // optional
	local  *lru.Cache[string, entry]
	ttl    time.Duration
	now    func() time.Time

	// fetchMu collapses concurrent misses into one API call.
	fetchMu sync.Mutex
}

// NewCatalog creates a catalog holding up to size entries in memory for ttl.
// redis may be nil.
func NewCatalog(lister ModelLister, redis *RedisCache, size int, ttl time.Duration) (*Catalog, error) {
	local, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("cache: new lru: %w", err)
	}
	return &Catalog{
		lister: lister,
		redis:  redis,
		local:  local,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Models returns the full catalog.
func (c *Catalog) Models(ctx context.Context) (*openrouter.ListModelsResponse, error) {
	if resp, ok := c.fromMemory(); ok {
		metrics.RecordCatalogLookup("memory")
		return resp, nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	// Another caller may have filled the cache while we waited.
	if resp, ok := c.fromMemory(); ok {
		metrics.RecordCatalogLookup("memory")
		return resp, nil
	}

	if c.redis != nil {
		resp, remaining, found, err := c.redis.LoadCatalog(ctx)
		if err != nil {
			// Log but don't fail; treat as a miss
			log.Printf("[catalog] redis get error (treating as miss): %v", err)
		}
		if found {
			metrics.RecordCatalogLookup("redis")
			// The local copy must not outlive the shared one.
			c.store(resp, min(c.ttl, remaining))
			return resp, nil
		}
	}

	resp, err := c.lister.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	metrics.RecordCatalogLookup("api")
	c.store(resp, c.ttl)

	if c.redis != nil {
		if err := c.redis.StoreCatalog(ctx, resp); err != nil {
			log.Printf("[catalog] redis set error: %v", err)
		}
	}
	return resp, nil
}

// Model returns one catalog entry by id.
func (c *Catalog) Model(ctx context.Context, id string) (openrouter.Model, error) {
	if e, ok := c.local.Get(modelPrefix + id); ok && c.now().Before(e.expires) {
		return e.model, nil
	}
	resp, err := c.Models(ctx)
	if err != nil {
		return openrouter.Model{}, err
	}
	for _, m := range resp.Data {
		if m.ID == id {
			c.local.Add(modelPrefix+id, entry{model: m, expires: c.now().Add(c.ttl)})
			return m, nil
		}
	}
	return openrouter.Model{}, fmt.Errorf("%w: %s", ErrModelNotFound, id)
}

// Invalidate drops every cached copy.
func (c *Catalog) Invalidate(ctx context.Context) error {
	c.local.Purge()
	if c.redis == nil {
		return nil
	}
	return c.redis.InvalidateCatalog(ctx)
}

func (c *Catalog) fromMemory() (*openrouter.ListModelsResponse, bool) {
	e, ok := c.local.Get(catalogKey)
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.catalog, true
}

func (c *Catalog) store(resp *openrouter.ListModelsResponse, ttl time.Duration) {
	c.local.Add(catalogKey, entry{catalog: resp, expires: c.now().Add(ttl)})
}
