package response

import (
	"net/http"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

type ErrorMapping struct {
	HTTPStatus int
	Status     Status
	Message    string
}

var errorMappings = map[domainErrors.Kind]ErrorMapping{
	domainErrors.KindNotFound: {
		HTTPStatus: http.StatusNotFound,
		Status:     StatusNotFound,
		Message:    "Resource not found",
	},
	domainErrors.KindSaleNotActive: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Sale is not active",
	},
	domainErrors.KindInvalidQuantity: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Quantity must be at least 1",
	},
	domainErrors.KindPerUserLimitExceeded: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Purchase would exceed the per-user limit",
	},
	domainErrors.KindOutOfStock: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Not enough stock remaining",
	},
	domainErrors.KindConcurrencyConflict: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Concurrent update, retry the request",
	},
	domainErrors.KindInvalidRequest: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusValidationError,
		Message:    "Invalid request",
	},
	domainErrors.KindInvalidSale: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusValidationError,
		Message:    "Invalid flash sale",
	},
	domainErrors.KindSaleFrozen: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Sale stock and prices can no longer change",
	},
	domainErrors.KindSaleHasSales: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Sale already has sold units",
	},
}

func MapDomainError(err error) (int, *ErrorResponse) {
	kind := domainErrors.KindOf(err)

	mapping, ok := errorMappings[kind]
	if !ok {
		resp := Error(StatusInternalError, "Internal server error")
		resp.Code = string(domainErrors.KindInternal)
		return http.StatusInternalServerError, resp
	}

	resp := Error(mapping.Status, mapping.Message, err.Error())
	resp.Code = string(kind)
	resp.Retryable = domainErrors.IsRetryable(err)
	return mapping.HTTPStatus, resp
}

func WriteDomainError(w http.ResponseWriter, err error) {
	statusCode, errorResponse := MapDomainError(err)
	WriteJSON(w, statusCode, errorResponse)
}
