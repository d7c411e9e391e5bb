package handlers

import (
	"net/http"

	"github.com/yuzvak/flashsale-engine/internal/application/commands"
	"github.com/yuzvak/flashsale-engine/internal/application/use_cases"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/response"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type PurchaseHandler struct {
	purchaseUseCase *use_cases.PurchaseUseCase
	log             *logger.Logger
}

func NewPurchaseHandler(
	purchaseUseCase *use_cases.PurchaseUseCase,
	log *logger.Logger,
) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseUseCase: purchaseUseCase,
		log:             log,
	}
}

func (h *PurchaseHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	var cmd commands.PurchaseCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}

	cmd.FlashSaleID = r.PathValue("id")
	cmd.FlashSaleProductID = r.PathValue("productId")
	if cmd.IdempotencyKey == "" {
		cmd.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}

	if !validateStruct(w, &cmd) {
		return
	}

	h.log.Debug("Purchase request received",
		"flash_sale_id", cmd.FlashSaleID,
		"flash_sale_product_id", cmd.FlashSaleProductID,
		"buyer_id", cmd.BuyerID,
	)

	handler := commands.NewPurchaseHandler(h.purchaseUseCase, h.log)

	receipt, err := handler.Handle(r.Context(), cmd)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	h.log.Info("Purchase completed",
		"receipt_id", receipt.ID,
		"flash_sale_product_id", receipt.FlashSaleProductID,
		"units", receipt.Units,
		"remaining_stock", receipt.RemainingStock,
	)

	response.WriteSuccess(w, receipt, "Purchase completed successfully")
}

func (h *PurchaseHandler) HandleBuyerClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.purchaseUseCase.BuyerClaim(
		r.Context(),
		r.PathValue("id"),
		r.PathValue("productId"),
		r.PathValue("buyerId"),
	)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, claim)
}
