package sale

import (
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

type FlashSale struct {
	ID          string
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	IsActive    bool // operator master switch, false means Disabled
	Draft       bool
	TotalViews  int64
	TotalSales  int64
	Products    []*Product
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewFlashSale(id, title, description string, startDate, endDate time.Time, draft bool, products []*Product, now time.Time) (*FlashSale, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: sale id cannot be empty", domainErrors.ErrInvalidSale)
	}

	s := &FlashSale{
		ID:          id,
		Title:       strings.TrimSpace(title),
		Description: description,
		StartDate:   startDate.UTC(),
		EndDate:     endDate.UTC(),
		IsActive:    true,
		Draft:       draft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.validateMetadata(); err != nil {
		return nil, err
	}

	if err := s.setProducts(products); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *FlashSale) validateMetadata() error {
	if s.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", domainErrors.ErrInvalidSale)
	}

	return validateWindow(s.StartDate, s.EndDate)
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", domainErrors.ErrInvalidSale)
	}

	if !start.Before(end) {
		return fmt.Errorf("%w: start date must be before end date", domainErrors.ErrInvalidSale)
	}

	return nil
}

func (s *FlashSale) setProducts(products []*Product) error {
	if len(products) == 0 {
		return fmt.Errorf("%w: a flash sale needs at least one product", domainErrors.ErrInvalidSale)
	}

	seen := make(map[string]bool, len(products))
	for i, p := range products {
		if seen[p.ProductID] {
			return fmt.Errorf("%w: catalog product %s listed twice", domainErrors.ErrInvalidSale, p.ProductID)
		}
		seen[p.ProductID] = true

		p.FlashSaleID = s.ID
		p.Position = i
	}

	s.Products = products
	return nil
}

func (s *FlashSale) Product(id string) (*Product, error) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, nil
		}
	}

	return nil, domainErrors.ErrProductNotFound
}

func (s *FlashSale) SoldQuantity() int {
	total := 0
	for _, p := range s.Products {
		total += p.SoldQuantity
	}
	return total
}

func (s *FlashSale) StockQuantity() int {
	total := 0
	for _, p := range s.Products {
		total += p.StockQuantity
	}
	return total
}

func (s *FlashSale) HasSales() bool {
	return s.SoldQuantity() > 0
}

// UpdateDetails changes title and description. Allowed in every state.
func (s *FlashSale) UpdateDetails(title, description string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", domainErrors.ErrInvalidSale)
	}

	s.Title = title
	s.Description = description
	s.UpdatedAt = now
	return nil
}

// ReplaceProducts swaps the product list. Only allowed while stock is editable
// and nothing has been sold yet.
func (s *FlashSale) ReplaceProducts(products []*Product, now time.Time) error {
	if !s.StockEditable(now) {
		return domainErrors.ErrSaleFrozen
	}

	if s.HasSales() {
		return domainErrors.ErrSaleHasSales
	}

	if err := s.setProducts(products); err != nil {
		return err
	}

	s.UpdatedAt = now
	return nil
}
