package commands

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yuzvak/flashsale-engine/internal/application/use_cases"
)

type ProductCommand struct {
	ID                 string          `json:"id,omitempty"`
	ProductID          string          `json:"product_id" validate:"required,max=128"`
	Name               string          `json:"name" validate:"max=255"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	SalePrice          decimal.Decimal `json:"sale_price"`
	StockQuantity      int             `json:"stock_quantity" validate:"min=0,max=2147483647"`
	MaxQuantityPerUser int             `json:"max_quantity_per_user" validate:"required,min=1,max=2147483647"`
}

type CreateSaleCommand struct {
	Title       string           `json:"title" validate:"required,max=255"`
	Description string           `json:"description" validate:"max=5000"`
	StartDate   time.Time        `json:"start_date" validate:"required"`
	EndDate     time.Time        `json:"end_date" validate:"required,gtfield=StartDate"`
	Draft       bool             `json:"draft"`
	Products    []ProductCommand `json:"products" validate:"required,min=1,dive"`
}

type UpdateSaleCommand struct {
	Title       *string          `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	StartDate   *time.Time       `json:"start_date"`
	EndDate     *time.Time       `json:"end_date"`
	Products    []ProductCommand `json:"products" validate:"omitempty,min=1,dive"`
}

func (c CreateSaleCommand) Input() use_cases.CreateSaleInput {
	return use_cases.CreateSaleInput{
		Title:       c.Title,
		Description: c.Description,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Draft:       c.Draft,
		Products:    productInputs(c.Products),
	}
}

func (c UpdateSaleCommand) Input() use_cases.UpdateSaleInput {
	in := use_cases.UpdateSaleInput{
		Title:       c.Title,
		Description: c.Description,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
	}
	if c.Products != nil {
		in.Products = productInputs(c.Products)
	}
	return in
}

func productInputs(products []ProductCommand) []use_cases.ProductInput {
	out := make([]use_cases.ProductInput, 0, len(products))
	for _, p := range products {
		out = append(out, use_cases.ProductInput{
			ID:                 p.ID,
			ProductID:          p.ProductID,
			Name:               p.Name,
			OriginalPrice:      p.OriginalPrice,
			SalePrice:          p.SalePrice,
			StockQuantity:      p.StockQuantity,
			MaxQuantityPerUser: p.MaxQuantityPerUser,
		})
	}
	return out
}
