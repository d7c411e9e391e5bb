package errors

import (
	"errors"
)

var (
	ErrSaleNotFound    = errors.New("flash sale not found")
	ErrProductNotFound = errors.New("flash sale product not found")

	ErrSaleNotActive        = errors.New("flash sale is not active")
	ErrInvalidQuantity      = errors.New("requested quantity must be at least 1")
	ErrPerUserLimitExceeded = errors.New("purchase would exceed per-user limit")
	ErrOutOfStock           = errors.New("insufficient stock remaining")
	ErrConcurrencyConflict  = errors.New("concurrent update conflict, retry the request")

	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidSale       = errors.New("invalid flash sale")
	ErrSaleFrozen        = errors.New("flash sale stock and prices are frozen")
	ErrSaleHasSales      = errors.New("flash sale already has sold units")
	ErrInvalidTransition = errors.New("invalid flash sale state transition")

	ErrCatalogProductNotFound = errors.New("catalog product not found")

	// ErrReceiptNotStored classifies as Internal and is never retried: the
	// units behind it are already committed.
	ErrReceiptNotStored = errors.New("purchase committed but its receipt was not stored")
)

// Kind is the stable, client-facing classification of an engine error.
type Kind string

const (
	KindNotFound             Kind = "NotFound"
	KindSaleNotActive        Kind = "SaleNotActive"
	KindInvalidQuantity      Kind = "InvalidQuantity"
	KindPerUserLimitExceeded Kind = "PerUserLimitExceeded"
	KindOutOfStock           Kind = "OutOfStock"
	KindConcurrencyConflict  Kind = "ConcurrencyConflict"
	KindInvalidRequest       Kind = "InvalidRequest"
	KindInvalidSale          Kind = "InvalidSale"
	KindSaleFrozen           Kind = "SaleFrozen"
	KindSaleHasSales         Kind = "SaleHasSales"
	KindInternal             Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrSaleNotFound, KindNotFound},
	{ErrProductNotFound, KindNotFound},
	{ErrCatalogProductNotFound, KindNotFound},
	{ErrSaleNotActive, KindSaleNotActive},
	{ErrInvalidQuantity, KindInvalidQuantity},
	{ErrPerUserLimitExceeded, KindPerUserLimitExceeded},
	{ErrOutOfStock, KindOutOfStock},
	{ErrConcurrencyConflict, KindConcurrencyConflict},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrInvalidSale, KindInvalidSale},
	{ErrInvalidTransition, KindInvalidSale},
	{ErrSaleFrozen, KindSaleFrozen},
	{ErrSaleHasSales, KindSaleHasSales},
}

func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsBusinessError reports whether err is a deterministic rejection that a retry
// with the same input cannot change.
func IsBusinessError(err error) bool {
	switch KindOf(err) {
	case KindInternal, KindConcurrencyConflict:
		return false
	default:
		return true
	}
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
