package catalog

import (
	"context"
	"sync"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
)

// StaticCatalog serves a fixed product list. Unknown ids resolve to a bare
// product with no name or price, so callers must supply both themselves.
type StaticCatalog struct {
	mu       sync.RWMutex
	products map[string]ports.CatalogProduct
}

func NewStaticCatalog(products ...ports.CatalogProduct) *StaticCatalog {
	c := &StaticCatalog{products: make(map[string]ports.CatalogProduct, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *StaticCatalog) GetProduct(ctx context.Context, productID string) (*ports.CatalogProduct, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.products[productID]; ok {
		return &p, nil
	}
	return &ports.CatalogProduct{ID: productID}, nil
}

func (c *StaticCatalog) Put(p ports.CatalogProduct) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}
