// Package catalog caches the department and vehicle reference lists.
// The composition root owns a single Cache and hands it to its consumers;
// Invalidate forces the next Get to reload.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// Loader fetches the current catalog from its source of truth.
type Loader interface {
	Load(ctx context.Context) (domain.Catalog, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (domain.Catalog, error)

func (f LoaderFunc) Load(ctx context.Context) (domain.Catalog, error) { return f(ctx) }

// FileLoader reads a TOML catalog file:
//
//	[[departments]]
//	name = "EOD"
//
//	[[vehicles]]
//	name  = "Van 1"
//	plate = "ABC 1234"
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(_ context.Context) (domain.Catalog, error) {
	var c domain.Catalog
	if _, err := toml.DecodeFile(l.Path, &c); err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog.FileLoader.Load: %w", err)
	}
	return c, nil
}

// Cache holds the last loaded catalog.
type Cache struct {
	loader Loader

	mu     sync.Mutex
	loaded bool
	data   domain.Catalog
}

// NewCache returns an empty cache backed by loader.
func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader}
}

// Get returns the cached catalog, loading it first if needed. A failed load
// leaves the cache empty so the next call retries.
func (c *Cache) Get(ctx context.Context) (domain.Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.data, nil
	}
	data, err := c.loader.Load(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	c.data = data
	c.loaded = true
	return data, nil
}

// Invalidate drops the cached catalog.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.data = domain.Catalog{}
}
