package sale

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

var hundred = decimal.NewFromInt(100)

// MaxUnits bounds stock and per-user quantities to what the INTEGER columns hold.
const MaxUnits = math.MaxInt32

type Product struct {
	ID                 string
	FlashSaleID        string
	ProductID          string // catalog reference
	Name               string
	OriginalPrice      decimal.Decimal
	SalePrice          decimal.Decimal
	StockQuantity      int
	SoldQuantity       int
	MaxQuantityPerUser int
	Position           int
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewProduct(id, productID, name string, originalPrice, salePrice decimal.Decimal, stockQuantity, maxQuantityPerUser int, now time.Time) (*Product, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: product id cannot be empty", domainErrors.ErrInvalidSale)
	}

	if strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("%w: catalog product id cannot be empty", domainErrors.ErrInvalidSale)
	}

	if !salePrice.IsPositive() {
		return nil, fmt.Errorf("%w: sale price must be greater than zero", domainErrors.ErrInvalidSale)
	}

	if !salePrice.LessThan(originalPrice) {
		return nil, fmt.Errorf("%w: sale price must be lower than original price", domainErrors.ErrInvalidSale)
	}

	if stockQuantity < 0 {
		return nil, fmt.Errorf("%w: stock quantity cannot be negative", domainErrors.ErrInvalidSale)
	}

	if maxQuantityPerUser < 1 {
		return nil, fmt.Errorf("%w: max quantity per user must be at least 1", domainErrors.ErrInvalidSale)
	}

	if stockQuantity > MaxUnits || maxQuantityPerUser > MaxUnits {
		return nil, fmt.Errorf("%w: quantities cannot exceed %d", domainErrors.ErrInvalidSale, MaxUnits)
	}

	return &Product{
		ID:                 id,
		ProductID:          productID,
		Name:               name,
		OriginalPrice:      originalPrice,
		SalePrice:          salePrice,
		StockQuantity:      stockQuantity,
		MaxQuantityPerUser: maxQuantityPerUser,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// DiscountPercentage is derived from the two prices and rounded to two decimals.
func (p *Product) DiscountPercentage() decimal.Decimal {
	if !p.OriginalPrice.IsPositive() {
		return decimal.Zero
	}

	return p.OriginalPrice.Sub(p.SalePrice).Div(p.OriginalPrice).Mul(hundred).Round(2)
}

func (p *Product) Remaining() int {
	remaining := p.StockQuantity - p.SoldQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (p *Product) IsSoldOut() bool {
	return p.Remaining() == 0
}

func (p *Product) BelongsToSale(saleID string) bool {
	return p.FlashSaleID == saleID
}

// ProductTerms are the operator-editable commercial fields of a product.
type ProductTerms struct {
	OriginalPrice      decimal.Decimal
	SalePrice          decimal.Decimal
	StockQuantity      int
	MaxQuantityPerUser int
}

// NextSoldQuantity computes the sold total after reserving units against a
// stock ceiling. A request either fits completely or is rejected.
func NextSoldQuantity(sold, stock, units int) (int, error) {
	if units < 1 {
		return sold, domainErrors.ErrInvalidQuantity
	}

	// compared by subtraction so a huge units value cannot wrap around
	if units > stock-sold {
		return sold, fmt.Errorf("%w: %d remaining, requested %d", domainErrors.ErrOutOfStock, stock-sold, units)
	}

	return sold + units, nil
}
