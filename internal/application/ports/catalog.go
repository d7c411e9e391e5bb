package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

type CatalogProduct struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*CatalogProduct, error)
}
