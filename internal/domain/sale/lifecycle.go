package sale

import (
	"fmt"
	"time"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

type State string

const (
	StateDraft     State = "draft"
	StateScheduled State = "scheduled"
	StateActive    State = "active"
	StateEnded     State = "ended"
	StateDisabled  State = "disabled"
)

func ParseState(v string) (State, bool) {
	switch State(v) {
	case StateDraft, StateScheduled, StateActive, StateEnded, StateDisabled:
		return State(v), true
	default:
		return "", false
	}
}

// State evaluates the lifecycle lazily from the persisted flags and dates.
func (s *FlashSale) State(now time.Time) State {
	if !s.IsActive {
		return StateDisabled
	}
	return s.scheduleState(now)
}

// scheduleState is the dates-derived state, ignoring the Disabled override.
func (s *FlashSale) scheduleState(now time.Time) State {
	switch {
	case s.Draft:
		return StateDraft
	case now.Before(s.StartDate):
		return StateScheduled
	case now.Before(s.EndDate):
		return StateActive
	default:
		return StateEnded
	}
}

// StockEditable reports whether stock and prices may change. A disabled sale
// is judged by the state it would return to.
func (s *FlashSale) StockEditable(now time.Time) bool {
	switch s.scheduleState(now) {
	case StateDraft, StateScheduled:
		return true
	default:
		return false
	}
}

func (s *FlashSale) Publish(now time.Time) error {
	if !s.Draft {
		return fmt.Errorf("%w: sale is not a draft", domainErrors.ErrInvalidTransition)
	}

	if err := s.validateMetadata(); err != nil {
		return err
	}

	if !now.Before(s.EndDate) {
		return fmt.Errorf("%w: sale window has already passed", domainErrors.ErrInvalidTransition)
	}

	s.Draft = false
	s.UpdatedAt = now
	return nil
}

// Toggle flips the Disabled override and returns the new IsActive value.
func (s *FlashSale) Toggle(now time.Time) bool {
	s.IsActive = !s.IsActive
	s.UpdatedAt = now
	return s.IsActive
}

// Reschedule moves the window. An ended sale becomes scheduled again with its
// sold counters intact; an active sale cannot be moved.
func (s *FlashSale) Reschedule(start, end, now time.Time) error {
	start, end = start.UTC(), end.UTC()

	if start.Equal(s.StartDate) && end.Equal(s.EndDate) {
		return nil
	}

	if s.scheduleState(now) == StateActive {
		return fmt.Errorf("%w: cannot reschedule an active sale", domainErrors.ErrSaleFrozen)
	}

	if err := validateWindow(start, end); err != nil {
		return err
	}

	if !now.Before(end) {
		return fmt.Errorf("%w: new end date must be in the future", domainErrors.ErrInvalidSale)
	}

	s.StartDate = start
	s.EndDate = end
	s.UpdatedAt = now
	return nil
}

// UpdateProductTerms edits price, stock ceiling and per-user cap of one product.
func (s *FlashSale) UpdateProductTerms(productID string, terms ProductTerms, now time.Time) error {
	if !s.StockEditable(now) {
		return domainErrors.ErrSaleFrozen
	}

	p, err := s.Product(productID)
	if err != nil {
		return err
	}

	if terms.StockQuantity < p.SoldQuantity {
		return fmt.Errorf("%w: stock quantity %d is below sold quantity %d", domainErrors.ErrInvalidSale, terms.StockQuantity, p.SoldQuantity)
	}

	updated, err := NewProduct(p.ID, p.ProductID, p.Name, terms.OriginalPrice, terms.SalePrice, terms.StockQuantity, terms.MaxQuantityPerUser, p.CreatedAt)
	if err != nil {
		return err
	}

	p.OriginalPrice = updated.OriginalPrice
	p.SalePrice = updated.SalePrice
	p.StockQuantity = updated.StockQuantity
	p.MaxQuantityPerUser = updated.MaxQuantityPerUser
	p.UpdatedAt = now
	s.UpdatedAt = now
	return nil
}
